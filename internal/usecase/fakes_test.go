package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

// fakeScheduler is a manual clock. Timers fire only from Advance.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	scheduler *fakeScheduler
	at        time.Duration
	seq       int
	fn        func()
	done      bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) ports.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	timer := &fakeTimer{scheduler: s, at: s.now + d, seq: s.seq, fn: f}
	s.timers = append(s.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves the clock forward, firing due timers in order outside the lock.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var due []*fakeTimer
		for _, timer := range s.timers {
			if !timer.done && timer.at <= target {
				due = append(due, timer)
			}
		}
		if len(due) == 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at == due[j].at {
				return due[i].seq < due[j].seq
			}
			return due[i].at < due[j].at
		})
		next := due[0]
		next.done = true
		s.now = next.at
		s.mu.Unlock()

		next.fn()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, timer := range s.timers {
		if !timer.done {
			count++
		}
	}
	return count
}

type recordingEvent struct {
	recording bool
	reason    domain.RecordingEndReason
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu          sync.Mutex
	recordings  []recordingEvent
	transcripts []string
	autoSend    []domain.AutoSendState
	playback    []domain.PlaybackState
	errors      []errorEvent
	messages    []domain.Message
}

func (f *fakeEventSink) RecordingStateChanged(recording bool, reason domain.RecordingEndReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordings = append(f.recordings, recordingEvent{recording: recording, reason: reason})
}

func (f *fakeEventSink) TranscriptChanged(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, text)
}

func (f *fakeEventSink) AutoSendStateChanged(state domain.AutoSendState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoSend = append(f.autoSend, state)
}

func (f *fakeEventSink) PlaybackStateChanged(state domain.PlaybackState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playback = append(f.playback, state)
}

func (f *fakeEventSink) VoiceError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errorEvent{code: code, detail: detail})
}

func (f *fakeEventSink) MessageAdded(message domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeEventSink) snapshotRecordings() []recordingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordingEvent(nil), f.recordings...)
}

func (f *fakeEventSink) snapshotTranscripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.transcripts...)
}

func (f *fakeEventSink) snapshotPlayback() []domain.PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PlaybackState(nil), f.playback...)
}

func (f *fakeEventSink) snapshotErrors() []errorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errorEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotMessages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.messages...)
}

// fakeRecognitionEngine hands out fakeRecognizers and keeps the listeners so tests can
// drive engine callbacks directly.
type fakeRecognitionEngine struct {
	unavailable bool
	startErr    error
	newErr      error

	mu          sync.Mutex
	configs     []ports.RecognitionConfig
	recognizers []*fakeRecognizer
}

func (e *fakeRecognitionEngine) Available() bool { return !e.unavailable }

func (e *fakeRecognitionEngine) NewRecognizer(cfg ports.RecognitionConfig, listener ports.RecognitionListener) (ports.SpeechRecognizer, error) {
	if e.newErr != nil {
		return nil, e.newErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	recognizer := &fakeRecognizer{listener: listener, startErr: e.startErr}
	e.configs = append(e.configs, cfg)
	e.recognizers = append(e.recognizers, recognizer)
	return recognizer, nil
}

func (e *fakeRecognitionEngine) last() *fakeRecognizer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.recognizers) == 0 {
		return nil
	}
	return e.recognizers[len(e.recognizers)-1]
}

func (e *fakeRecognitionEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.recognizers)
}

type fakeRecognizer struct {
	listener ports.RecognitionListener
	startErr error

	mu         sync.Mutex
	starts     int
	stopCalls  int
	abortCalls int
}

func (r *fakeRecognizer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return r.startErr
}

func (r *fakeRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopCalls++
	return nil
}

func (r *fakeRecognizer) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortCalls++
	return nil
}

func (r *fakeRecognizer) stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCalls
}

func (r *fakeRecognizer) aborts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abortCalls
}

func (r *fakeRecognizer) result(transcripts ...string) {
	segments := make([]ports.RecognitionSegment, 0, len(transcripts))
	for i, text := range transcripts {
		segments = append(segments, ports.RecognitionSegment{Transcript: text, Final: i < len(transcripts)-1})
	}
	r.listener.OnResult(segments)
}

// fakeSynthesisEngine records utterances; tests finish them by hand. Cancel reports
// the current utterance as interrupted, like a browser engine.
type fakeSynthesisEngine struct {
	unavailable bool
	speakErr    error
	paused      bool

	mu          sync.Mutex
	utterances  []ports.Utterance
	current     *ports.Utterance
	cancelCalls int
	resumeCalls int
}

func (e *fakeSynthesisEngine) Available() bool { return !e.unavailable }

func (e *fakeSynthesisEngine) Speak(u ports.Utterance) error {
	if e.speakErr != nil {
		return e.speakErr
	}
	e.mu.Lock()
	e.utterances = append(e.utterances, u)
	e.current = &e.utterances[len(e.utterances)-1]
	e.mu.Unlock()
	return nil
}

func (e *fakeSynthesisEngine) Cancel() {
	e.mu.Lock()
	e.cancelCalls++
	current := e.current
	e.current = nil
	e.mu.Unlock()
	if current != nil && current.OnError != nil {
		current.OnError(ports.SynthesisInterrupted, errors.New("interrupted"))
	}
}

func (e *fakeSynthesisEngine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

func (e *fakeSynthesisEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *fakeSynthesisEngine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumeCalls++
	e.paused = false
}

func (e *fakeSynthesisEngine) utterance(i int) ports.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.utterances[i]
}

// stall pauses the engine mid-utterance, like an unavailable output device.
func (e *fakeSynthesisEngine) stall() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

func (e *fakeSynthesisEngine) resumes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumeCalls
}

func (e *fakeSynthesisEngine) finishCurrent() {
	e.mu.Lock()
	current := e.current
	e.current = nil
	e.mu.Unlock()
	if current != nil && current.OnEnd != nil {
		current.OnEnd()
	}
}

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeAudioSession yields its chunks and then blocks until Stop, like a live microphone.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error
	stopped   chan struct{}
	once      sync.Once
	eofAfter  bool
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	eof := f.eofAfter
	f.mu.Unlock()
	if eof {
		return 0, io.EOF
	}
	<-f.stopped
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	err := f.stopErr
	f.mu.Unlock()
	f.once.Do(func() { close(f.stopped) })
	return err
}

func (f *fakeAudioSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeProvider struct {
	sessions []ports.StreamingSession
	err      error
	calls    int
	configs  []ports.StreamingConfig
}

func (f *fakeProvider) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	f.configs = append(f.configs, cfg)
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	events     chan domain.TranscriptEvent
	waitErr    error
	closeSend  int
	closeCalls int
	closed     bool
	mu         sync.Mutex
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16)}
}

func (f *fakeStreamingSession) SendAudio(_ []byte) error { return nil }

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// fakeListener records recognizer callbacks.
type fakeListener struct {
	mu      sync.Mutex
	results [][]ports.RecognitionSegment
	errs    []error
	ends    int
	ended   chan struct{}
}

func newFakeListener() *fakeListener {
	return &fakeListener{ended: make(chan struct{})}
}

func (l *fakeListener) OnResult(segments []ports.RecognitionSegment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, segments)
}

func (l *fakeListener) OnError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *fakeListener) OnEnd() {
	l.mu.Lock()
	l.ends++
	first := l.ends == 1
	l.mu.Unlock()
	if first {
		close(l.ended)
	}
}

func (l *fakeListener) waitEnd(t interface {
	Helper()
	Fatalf(string, ...any)
}) {
	t.Helper()
	select {
	case <-l.ended:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for recognizer end")
	}
}

func (l *fakeListener) snapshot() ([][]ports.RecognitionSegment, []error, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]ports.RecognitionSegment(nil), l.results...), append([]error(nil), l.errs...), l.ends
}
