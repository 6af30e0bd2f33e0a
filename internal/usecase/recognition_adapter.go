package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

var (
	ErrCapabilityUnavailable = errors.New("speech capability is not available")
	ErrAdapterClosed         = errors.New("speech adapter is closed")
)

// RecognitionHandlers receive recognition events. Any of them may be nil.
type RecognitionHandlers struct {
	// OnTranscript receives the full cumulative transcript of the current session.
	OnTranscript func(text string)
	OnError      func(err error)
	OnEnd        func(reason domain.RecordingEndReason)
}

// RecognitionAdapterConfig configures a RecognitionAdapter.
type RecognitionAdapterConfig struct {
	Recognition ports.RecognitionConfig
	// Guard enforces one recording process-wide. Defaults to the shared recording guard.
	Guard  *PlaybackGuard
	Logger *slog.Logger
}

// RecognitionAdapter drives one continuous recognizer at a time and turns its results
// into cumulative transcripts.
type RecognitionAdapter struct {
	engine ports.RecognitionEngine
	cfg    ports.RecognitionConfig
	guard  *PlaybackGuard
	logger *slog.Logger

	mu       sync.Mutex
	handlers RecognitionHandlers
	current  *recognitionSession
	closed   bool
}

type recognitionSession struct {
	id         string
	recognizer ports.SpeechRecognizer
	token      uint64
	stopping   bool
	failed     bool
}

// CreateRecognizer returns ErrCapabilityUnavailable when the engine cannot recognize
// speech in this environment. Callers degrade to text-only input.
func CreateRecognizer(engine ports.RecognitionEngine, cfg RecognitionAdapterConfig, handlers RecognitionHandlers) (*RecognitionAdapter, error) {
	if engine == nil || !engine.Available() {
		return nil, ErrCapabilityUnavailable
	}

	rc := cfg.Recognition
	rc.Continuous = true
	rc.InterimResults = true
	if rc.Language == "" {
		rc.Language = "en-US"
	}
	if rc.MaxAlternatives <= 0 {
		rc.MaxAlternatives = 1
	}
	if cfg.Guard == nil {
		cfg.Guard = recordingGuard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RecognitionAdapter{
		engine:   engine,
		cfg:      rc,
		guard:    cfg.Guard,
		logger:   cfg.Logger.With("component", "recognition"),
		handlers: handlers,
	}, nil
}

// Start begins a recording session. Starting while already recording is a no-op.
func (a *RecognitionAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAdapterClosed
	}
	if a.current != nil && !a.current.stopping {
		a.mu.Unlock()
		return nil
	}
	var previousToken uint64
	if a.current != nil {
		previousToken = a.current.token
	}

	session := &recognitionSession{id: uuid.NewString()}
	recognizer, err := a.engine.NewRecognizer(a.cfg, &sessionListener{adapter: a, session: session})
	if err != nil {
		a.mu.Unlock()
		err = fmt.Errorf("create recognizer: %w", err)
		a.notifyError(err)
		return err
	}
	session.recognizer = recognizer
	a.current = session
	a.mu.Unlock()

	if previousToken != 0 {
		a.guard.Release(previousToken)
	}

	token := a.guard.Acquire(func() { _ = a.stopSession(session) })
	a.mu.Lock()
	session.token = token
	a.mu.Unlock()

	if err := recognizer.Start(ctx); err != nil {
		a.mu.Lock()
		if a.current == session {
			a.current = nil
		}
		a.mu.Unlock()
		a.guard.Release(token)
		a.logger.Warn("recognizer failed to start", "session", session.id, "error", err)
		a.notifyError(err)
		return err
	}

	a.logger.Debug("recording started", "session", session.id, "language", a.cfg.Language)
	return nil
}

// Stop requests the end of the current session. The end is reported through OnEnd
// once the recognizer has delivered its last results. Stop is idempotent.
func (a *RecognitionAdapter) Stop() error {
	a.mu.Lock()
	session := a.current
	a.mu.Unlock()
	if session == nil {
		return nil
	}
	return a.stopSession(session)
}

// Recording reports whether a session is capturing speech.
func (a *RecognitionAdapter) Recording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil && !a.current.stopping
}

// Close detaches all handlers and aborts any session. Late engine callbacks are dropped.
// Close is safe to call more than once.
func (a *RecognitionAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	session := a.current
	a.current = nil
	a.handlers = RecognitionHandlers{}
	var token uint64
	if session != nil {
		token = session.token
	}
	a.mu.Unlock()

	if session == nil {
		return nil
	}
	a.guard.Release(token)
	return session.recognizer.Abort()
}

func (a *RecognitionAdapter) stopSession(session *recognitionSession) error {
	a.mu.Lock()
	if session.stopping || a.current != session {
		a.mu.Unlock()
		return nil
	}
	session.stopping = true
	a.mu.Unlock()

	if err := session.recognizer.Stop(); err != nil {
		a.logger.Warn("recognizer stop failed", "session", session.id, "error", err)
		return err
	}
	return nil
}

func (a *RecognitionAdapter) notifyError(err error) {
	a.mu.Lock()
	onError := a.handlers.OnError
	a.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

type sessionListener struct {
	adapter *RecognitionAdapter
	session *recognitionSession
}

func (l *sessionListener) OnResult(segments []ports.RecognitionSegment) {
	a := l.adapter
	a.mu.Lock()
	if a.current != l.session || l.session.failed {
		a.mu.Unlock()
		return
	}
	onTranscript := a.handlers.OnTranscript
	a.mu.Unlock()

	if onTranscript != nil {
		onTranscript(joinSegments(segments))
	}
}

func (l *sessionListener) OnError(err error) {
	a := l.adapter
	a.mu.Lock()
	if a.current != l.session || l.session.failed {
		a.mu.Unlock()
		return
	}
	l.session.failed = true
	a.current = nil
	token := l.session.token
	handlers := a.handlers
	a.mu.Unlock()

	a.guard.Release(token)
	a.logger.Warn("recognition error", "session", l.session.id, "error", err)
	if handlers.OnError != nil {
		handlers.OnError(err)
	}
	if handlers.OnEnd != nil {
		handlers.OnEnd(domain.RecordingEndError)
	}
}

func (l *sessionListener) OnEnd() {
	a := l.adapter
	a.mu.Lock()
	if a.current != l.session {
		a.mu.Unlock()
		return
	}
	a.current = nil
	reason := domain.RecordingEndEnded
	if l.session.stopping {
		reason = domain.RecordingEndStopped
	}
	onEnd := a.handlers.OnEnd
	token := l.session.token
	a.mu.Unlock()

	a.guard.Release(token)
	a.logger.Debug("recording ended", "session", l.session.id, "reason", string(reason))
	if onEnd != nil {
		onEnd(reason)
	}
}

func joinSegments(segments []ports.RecognitionSegment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Transcript)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
