package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"speakfluent/internal/ports"
)

// recognizerSession is one capture plus transcription run. It reports results while
// running, then at most one error and exactly one end, unless aborted.
type recognizerSession struct {
	engine    *StreamingRecognizer
	streaming ports.StreamingConfig
	listener  ports.RecognitionListener
	logger    *slog.Logger

	aggregator *transcriptAggregator
	stopCh     chan struct{}
	abortCh    chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	abortOnce  sync.Once

	detector ports.VoiceActivityDetector

	mu           sync.Mutex
	started      bool
	aborted      bool
	cancel       context.CancelFunc
	lastActivity time.Time
}

func newRecognizerSession(engine *StreamingRecognizer, streaming ports.StreamingConfig, listener ports.RecognitionListener) *recognizerSession {
	return &recognizerSession{
		engine:     engine,
		streaming:  streaming,
		listener:   listener,
		logger:     engine.logger,
		aggregator: newTranscriptAggregator(),
		stopCh:     make(chan struct{}),
		abortCh:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start opens the stream and the microphone.
func (s *recognizerSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrRecognizerStarted
	}
	s.started = true
	s.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := s.engine.provider.StartStreaming(sessionCtx, s.streaming)
	if err != nil {
		cancel()
		close(s.done)
		return err
	}

	audioSession, err := s.engine.audio.Start(sessionCtx, s.engine.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		close(s.done)
		return err
	}

	if factory := s.engine.cfg.NewVoiceDetector; factory != nil {
		detector, err := factory()
		if err != nil {
			s.logger.Warn("voice activity detection unavailable", "error", err)
		} else {
			s.detector = detector
		}
	}

	s.mu.Lock()
	s.cancel = cancel
	s.lastActivity = time.Now()
	s.mu.Unlock()

	go s.run(audioSession, stream)
	return nil
}

// Stop asks the session to finish. Results still in flight are delivered before OnEnd.
func (s *recognizerSession) Stop() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNoActiveSession
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// Abort discards the session. No further callbacks are made.
func (s *recognizerSession) Abort() error {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
	s.abortOnce.Do(func() { close(s.abortCh) })
	return nil
}

func (s *recognizerSession) run(audio ports.AudioSession, stream ports.StreamingSession) {
	defer close(s.done)

	eventsDone := make(chan struct{})
	pumpDone := make(chan error, 1)
	go consumeTranscriptionEvents(stream, s.aggregator, s.onSegments, eventsDone)
	go pumpAudioChunks(audio, stream, s.engine.cfg.ChunkSize, s.onAudio, pumpDone)

	var silence <-chan time.Time
	if timeout := s.engine.cfg.SilenceTimeout; timeout > 0 {
		ticker := time.NewTicker(silenceCheckPeriod(timeout))
		defer ticker.Stop()
		silence = ticker.C
	}

	var (
		failure      error
		graceful     = true
		pumpFinished bool
		streamClosed bool
	)

wait:
	for {
		select {
		case <-s.abortCh:
			s.teardown(audio, stream, eventsDone, pumpDone, pumpFinished)
			return
		case <-s.stopCh:
			break wait
		case err := <-pumpDone:
			pumpFinished = true
			failure = err
			graceful = false
			break wait
		case <-eventsDone:
			streamClosed = true
			graceful = false
			break wait
		case <-silence:
			if s.idleFor() >= s.engine.cfg.SilenceTimeout {
				s.logger.Debug("ending session after silence", "timeout", s.engine.cfg.SilenceTimeout)
				break wait
			}
		}
	}

	if err := audio.Stop(); err != nil {
		s.logger.Warn("failed to stop audio capture cleanly", "error", err)
	}
	if !pumpFinished {
		<-pumpDone
		pumpFinished = true
	}

	if graceful && s.engine.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(s.engine.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-s.abortCh:
			timer.Stop()
			s.teardown(audio, stream, eventsDone, pumpDone, pumpFinished)
			return
		}
	}

	_ = stream.CloseSend()
	streamErr := waitForStream(stream, defaultStreamWait)
	<-eventsDone
	s.cancelContext()

	if failure == nil && streamErr != nil && (streamClosed || s.aggregator.Raw() == "") {
		failure = streamErr
	}

	if s.isAborted() {
		return
	}
	if failure != nil {
		s.listener.OnError(failure)
	}
	s.listener.OnEnd()
}

func (s *recognizerSession) teardown(
	audio ports.AudioSession,
	stream ports.StreamingSession,
	eventsDone <-chan struct{},
	pumpDone <-chan error,
	pumpFinished bool,
) {
	s.cancelContext()
	_ = audio.Stop()
	_ = stream.Close()
	<-eventsDone
	if !pumpFinished {
		<-pumpDone
	}
}

func (s *recognizerSession) onSegments(segments []ports.RecognitionSegment) {
	s.mu.Lock()
	s.lastActivity = time.Now()
	aborted := s.aborted
	s.mu.Unlock()
	if aborted {
		return
	}
	s.listener.OnResult(segments)
}

func (s *recognizerSession) onAudio(chunk []byte) {
	if s.detector == nil {
		return
	}
	speech, err := s.detector.Speech(chunk)
	if err != nil || !speech {
		return
	}
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *recognizerSession) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func (s *recognizerSession) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *recognizerSession) cancelContext() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
