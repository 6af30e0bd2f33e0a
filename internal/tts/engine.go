package tts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"speakfluent/internal/ports"
)

var ErrEngineClosed = errors.New("speech engine is closed")

// Engine queues utterances and plays them one after another. Cancel drops everything:
// the utterance in flight reports interrupted and queued ones report canceled.
//
// When the output device is unavailable the engine keeps the utterance at the head of
// the queue and pauses; the first Resume retries it once.
type Engine struct {
	synth  ports.SpeechSynthesizer
	sink   ports.AudioSink
	logger *slog.Logger

	mu      sync.Mutex
	queue   []*job
	current *job
	running bool
	paused  bool
	closed  bool
	idle    chan struct{}
}

type job struct {
	utterance   ports.Utterance
	ctx         context.Context
	cancel      context.CancelFunc
	interrupted bool
	// held is set on the retry of an utterance whose device was unavailable.
	held bool
}

func NewEngine(synth ports.SpeechSynthesizer, sink ports.AudioSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		synth:  synth,
		sink:   sink,
		logger: logger.With("component", "tts_engine"),
	}
}

func (e *Engine) Available() bool {
	return e != nil && e.synth != nil && e.sink != nil
}

// Speak enqueues an utterance.
func (e *Engine) Speak(u ports.Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return errors.New("utterance text is empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{utterance: u, ctx: ctx, cancel: cancel}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return ErrEngineClosed
	}
	e.queue = append(e.queue, j)
	e.startLocked()
	e.mu.Unlock()
	return nil
}

// Cancel interrupts the current utterance and drops the queue.
func (e *Engine) Cancel() {
	e.mu.Lock()
	queued := e.queue
	e.queue = nil
	e.paused = false
	current := e.current
	if current != nil {
		current.interrupted = true
	}
	e.mu.Unlock()

	if current != nil {
		current.cancel()
	}
	for _, j := range queued {
		j.cancel()
		if j.utterance.OnError != nil {
			j.utterance.OnError(ports.SynthesisCanceled, context.Canceled)
		}
	}
}

// Speaking reports whether an utterance is playing or waiting.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil || len(e.queue) > 0
}

// Pause holds the queue after the current utterance. The engine also pauses itself when
// the output device is unavailable.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Resume releases a paused queue.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.startLocked()
	e.mu.Unlock()
}

// Close cancels all speech and waits for the player to stop.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.Cancel()

	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()
	if idle != nil {
		<-idle
	}
	return nil
}

func (e *Engine) startLocked() {
	if e.running || e.paused || len(e.queue) == 0 {
		return
	}
	e.running = true
	e.idle = make(chan struct{})
	go e.loop(e.idle)
}

func (e *Engine) loop(idle chan struct{}) {
	defer close(idle)

	for {
		e.mu.Lock()
		if e.paused || len(e.queue) == 0 {
			e.running = false
			e.mu.Unlock()
			return
		}
		j := e.queue[0]
		e.queue = e.queue[1:]
		e.current = j
		e.mu.Unlock()

		e.play(j)

		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
	}
}

func (e *Engine) play(j *job) {
	defer j.cancel()
	u := j.utterance

	if u.OnStart != nil && !j.held {
		u.OnStart()
	}

	pcm, errs := e.synth.StreamPCM(j.ctx, u.Text)
	playErr := e.sink.Play(j.ctx, pcm, e.synth.SampleRate())
	j.cancel()
	var synthErr error
	for err := range errs {
		if err != nil && synthErr == nil {
			synthErr = err
		}
	}

	e.mu.Lock()
	interrupted := j.interrupted
	if !interrupted && !j.held && !e.closed && errors.Is(playErr, ports.ErrOutputUnavailable) {
		e.holdLocked(u)
		e.mu.Unlock()
		e.logger.Warn("audio output unavailable, holding speech", "error", playErr)
		return
	}
	e.mu.Unlock()

	switch {
	case interrupted:
		if u.OnError != nil {
			u.OnError(ports.SynthesisInterrupted, context.Canceled)
		}
	case playErr != nil:
		e.logger.Warn("audio playback failed", "error", playErr)
		if u.OnError != nil {
			u.OnError(ports.SynthesisFailed, playErr)
		}
	case synthErr != nil && !errors.Is(synthErr, context.Canceled):
		e.logger.Warn("speech synthesis failed", "error", synthErr)
		if u.OnError != nil {
			u.OnError(ports.SynthesisFailed, synthErr)
		}
	default:
		if u.OnEnd != nil {
			u.OnEnd()
		}
	}
}

func (e *Engine) holdLocked(u ports.Utterance) {
	ctx, cancel := context.WithCancel(context.Background())
	e.queue = append([]*job{{utterance: u, ctx: ctx, cancel: cancel, held: true}}, e.queue...)
	e.paused = true
}
