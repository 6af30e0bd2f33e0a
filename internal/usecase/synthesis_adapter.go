package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"speakfluent/internal/ports"
)

const DefaultResumeDelay = 100 * time.Millisecond

// SynthesisError is a genuine synthesis failure. Interruptions are never reported as one.
type SynthesisError struct {
	Reason ports.SynthesisErrorReason
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("speech synthesis failed: %s", e.Reason)
	}
	return fmt.Sprintf("speech synthesis failed: %s: %v", e.Reason, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// UtteranceCallbacks observe one utterance. Any of them may be nil.
type UtteranceCallbacks struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
	// OnInterrupted runs when the utterance was cancelled on purpose.
	OnInterrupted func()
}

// SynthesisAdapterConfig configures a SynthesisAdapter.
type SynthesisAdapterConfig struct {
	Language    string
	ResumeDelay time.Duration
	Scheduler   ports.Scheduler
	// Guard enforces one audible utterance process-wide. Defaults to the shared speech guard.
	Guard  *PlaybackGuard
	Logger *slog.Logger
}

// SynthesisAdapter reads text aloud, one utterance at a time. A new Speak cancels the
// utterance in flight.
type SynthesisAdapter struct {
	engine    ports.SynthesisEngine
	language  string
	resume    time.Duration
	scheduler ports.Scheduler
	guard     *PlaybackGuard
	logger    *slog.Logger

	mu    sync.Mutex
	token uint64
}

func NewSynthesisAdapter(engine ports.SynthesisEngine, cfg SynthesisAdapterConfig) (*SynthesisAdapter, error) {
	if engine == nil || !engine.Available() {
		return nil, ErrCapabilityUnavailable
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.ResumeDelay <= 0 {
		cfg.ResumeDelay = DefaultResumeDelay
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = RealScheduler{}
	}
	if cfg.Guard == nil {
		cfg.Guard = speechGuard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SynthesisAdapter{
		engine:    engine,
		language:  cfg.Language,
		resume:    cfg.ResumeDelay,
		scheduler: cfg.Scheduler,
		guard:     cfg.Guard,
		logger:    cfg.Logger.With("component", "synthesis"),
	}, nil
}

// Speak cancels any current utterance and starts reading text.
func (a *SynthesisAdapter) Speak(text string, cb UtteranceCallbacks) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	a.engine.Cancel()
	token := a.guard.Acquire(a.engine.Cancel)
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()

	utterance := ports.Utterance{
		Text:     text,
		Language: a.language,
		OnStart: func() {
			if a.guard.Owns(token) && cb.OnStart != nil {
				cb.OnStart()
			}
		},
		OnEnd: func() {
			if a.guard.Release(token) && cb.OnEnd != nil {
				cb.OnEnd()
			}
		},
		OnError: func(reason ports.SynthesisErrorReason, err error) {
			released := a.guard.Release(token)
			if reason == ports.SynthesisInterrupted || reason == ports.SynthesisCanceled {
				if cb.OnInterrupted != nil {
					cb.OnInterrupted()
				}
				return
			}
			if !released {
				return
			}
			synthErr := &SynthesisError{Reason: reason, Err: err}
			a.logger.Error("utterance failed", "error", synthErr)
			if cb.OnError != nil {
				cb.OnError(synthErr)
			}
		},
	}

	if err := a.engine.Speak(utterance); err != nil {
		a.guard.Release(token)
		synthErr := &SynthesisError{Reason: ports.SynthesisFailed, Err: err}
		a.logger.Error("failed to start utterance", "error", err)
		if cb.OnError != nil {
			cb.OnError(synthErr)
		}
		return synthErr
	}

	a.scheduler.AfterFunc(a.resume, func() { a.nudge(token) })
	return nil
}

// nudge resumes a paused engine for as long as the utterance under token is pending.
func (a *SynthesisAdapter) nudge(token uint64) {
	if !a.guard.Owns(token) {
		return
	}
	if a.engine.Paused() {
		a.logger.Debug("resuming paused synthesis")
		a.engine.Resume()
	}
	if a.engine.Speaking() {
		a.scheduler.AfterFunc(a.resume, func() { a.nudge(token) })
	}
}

// Cancel silences the current utterance. Its interruption is not an error.
func (a *SynthesisAdapter) Cancel() {
	a.mu.Lock()
	token := a.token
	a.mu.Unlock()
	a.engine.Cancel()
	a.guard.Release(token)
}

// IsSpeaking reports whether the engine is producing speech.
func (a *SynthesisAdapter) IsSpeaking() bool {
	return a.engine.Speaking()
}

// IsInterruption reports whether err only signals a deliberate cancellation.
func IsInterruption(err error) bool {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		return synthErr.Reason == ports.SynthesisInterrupted || synthErr.Reason == ports.SynthesisCanceled
	}
	return false
}
