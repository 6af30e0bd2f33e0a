package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

const DefaultSupportGrace = time.Second

// SpeechStopper silences speech output before the microphone opens.
type SpeechStopper interface {
	Stop()
}

// VoiceInputConfig configures a VoiceInputController.
type VoiceInputConfig struct {
	Recognition RecognitionAdapterConfig
	AutoSend    AutoSendConfig
	// SupportGrace is how long support stays unknown before it is reported as unavailable.
	SupportGrace time.Duration
	// Correct rewrites each transcript before it reaches the input. Optional.
	Correct   func(text string) string
	Scheduler ports.Scheduler
	Logger    *slog.Logger
}

// VoiceInputController binds recognition and auto-send to one text input field.
type VoiceInputController struct {
	recognition *RecognitionAdapter
	coordinator *AutoSendCoordinator
	speech      SpeechStopper
	events      ports.EventSink
	send        func(text string)
	correct     func(text string) string
	logger      *slog.Logger

	graceTimer ports.Timer

	mu           sync.Mutex
	text         string
	discarding   bool
	sending      bool
	graceElapsed bool
	closed       bool
}

// NewVoiceInputController wires a controller. engine may be nil or unavailable; the
// controller then offers text-only input. send receives trimmed, non-empty text.
func NewVoiceInputController(
	engine ports.RecognitionEngine,
	speech SpeechStopper,
	events ports.EventSink,
	send func(text string),
	cfg VoiceInputConfig,
) *VoiceInputController {
	if cfg.Scheduler == nil {
		cfg.Scheduler = RealScheduler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SupportGrace <= 0 {
		cfg.SupportGrace = DefaultSupportGrace
	}
	if cfg.Recognition.Logger == nil {
		cfg.Recognition.Logger = cfg.Logger
	}

	c := &VoiceInputController{
		speech:  speech,
		events:  events,
		send:    send,
		correct: cfg.Correct,
		logger:  cfg.Logger.With("component", "voice_input"),
	}
	c.coordinator = NewAutoSendCoordinator(cfg.Scheduler, cfg.AutoSend, c.autoSend, c.autoSendStateChanged)

	recognition, err := CreateRecognizer(engine, cfg.Recognition, RecognitionHandlers{
		OnTranscript: c.onTranscript,
		OnError:      c.onRecognitionError,
		OnEnd:        c.onRecordingEnd,
	})
	if err != nil {
		c.logger.Info("speech recognition unavailable, text input only", "error", err)
	} else {
		c.recognition = recognition
	}

	c.graceTimer = cfg.Scheduler.AfterFunc(cfg.SupportGrace, c.graceElapsedFn)
	return c
}

// ToggleRecord starts recording when idle and stops it when recording.
func (c *VoiceInputController) ToggleRecord(ctx context.Context) error {
	if c.recognition == nil {
		return ErrCapabilityUnavailable
	}
	if c.recognition.Recording() {
		return c.recognition.Stop()
	}

	if c.speech != nil {
		c.speech.Stop()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAdapterClosed
	}
	c.discarding = false
	c.mu.Unlock()

	c.coordinator.RecordingStarted()
	if err := c.recognition.Start(ctx); err != nil {
		c.coordinator.RecordingFailed()
		c.emitRecording(false, domain.RecordingEndError)
		return err
	}
	c.emitRecording(true, "")
	return nil
}

// Focus marks the field as being edited.
func (c *VoiceInputController) Focus() {
	c.coordinator.Focus()
}

// Blur marks the field as no longer edited.
func (c *VoiceInputController) Blur() {
	c.coordinator.Blur()
}

// TextChanged replaces the buffer with text typed by the user.
func (c *VoiceInputController) TextChanged(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
	c.coordinator.TextChanged(text)
}

// ManualSend submits text right away. An empty text falls back to the buffer. It is
// refused while a previous message is still being delivered; the buffer is kept.
func (c *VoiceInputController) ManualSend(text string) bool {
	c.mu.Lock()
	sending := c.sending
	c.mu.Unlock()
	if sending {
		return false
	}

	c.coordinator.Cancel()
	if text == "" {
		text = c.Text()
	}

	if c.recognition != nil && c.recognition.Recording() {
		c.mu.Lock()
		c.discarding = true
		c.mu.Unlock()
		if err := c.recognition.Stop(); err != nil {
			c.logger.Warn("failed to stop recording before send", "error", err)
		}
	}
	return c.flush(text)
}

// SetSending blocks auto-send while a previous message is still being delivered.
func (c *VoiceInputController) SetSending(sending bool) {
	c.mu.Lock()
	c.sending = sending
	c.mu.Unlock()
	c.coordinator.SetDisabled(sending)
}

// Text returns the current buffer.
func (c *VoiceInputController) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Recording reports whether a recording session is active.
func (c *VoiceInputController) Recording() bool {
	return c.recognition != nil && c.recognition.Recording()
}

// SpeechSupport reports recognition support. It stays unknown during the grace period
// so the UI does not flash an unsupported notice at startup.
func (c *VoiceInputController) SpeechSupport() domain.SpeechSupport {
	if c.recognition != nil {
		return domain.SpeechSupportSupported
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graceElapsed {
		return domain.SpeechSupportUnsupported
	}
	return domain.SpeechSupportUnknown
}

// Status snapshots the controller for the UI.
func (c *VoiceInputController) Status() domain.VoiceStatus {
	return domain.VoiceStatus{
		Recording: c.Recording(),
		Support:   c.SpeechSupport(),
		AutoSend:  c.coordinator.State(),
		Text:      c.Text(),
	}
}

// Close cancels pending sends and releases the recognizer.
func (c *VoiceInputController) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}
	c.coordinator.Cancel()
	if c.recognition != nil {
		return c.recognition.Close()
	}
	return nil
}

func (c *VoiceInputController) autoSend(text string) {
	c.flush(text)
}

func (c *VoiceInputController) flush(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	c.mu.Lock()
	c.text = ""
	c.mu.Unlock()
	c.coordinator.TextChanged("")
	if c.events != nil {
		c.events.TranscriptChanged("")
	}

	if c.send != nil {
		c.send(trimmed)
	}
	return true
}

func (c *VoiceInputController) onTranscript(text string) {
	if c.correct != nil {
		text = c.correct(text)
	}
	c.mu.Lock()
	if c.discarding || c.closed {
		c.mu.Unlock()
		return
	}
	c.text = text
	c.mu.Unlock()

	if c.events != nil {
		c.events.TranscriptChanged(text)
	}
	c.coordinator.TextChanged(text)
}

func (c *VoiceInputController) onRecognitionError(err error) {
	c.coordinator.Cancel()
	if c.events != nil {
		c.events.VoiceError(domain.ErrorCodeRecognition, err.Error())
	}
}

func (c *VoiceInputController) onRecordingEnd(reason domain.RecordingEndReason) {
	c.mu.Lock()
	c.discarding = false
	c.mu.Unlock()

	if reason == domain.RecordingEndError {
		c.coordinator.RecordingFailed()
	} else {
		c.coordinator.RecordingStopped()
	}
	c.emitRecording(false, reason)
}

func (c *VoiceInputController) autoSendStateChanged(state domain.AutoSendState) {
	if c.events != nil {
		c.events.AutoSendStateChanged(state)
	}
}

func (c *VoiceInputController) graceElapsedFn() {
	c.mu.Lock()
	c.graceElapsed = true
	c.mu.Unlock()
	if c.recognition == nil && c.events != nil {
		c.events.VoiceError(domain.ErrorCodeCapabilityUnavailable, "speech recognition is not available, type your message instead")
	}
}

func (c *VoiceInputController) emitRecording(recording bool, reason domain.RecordingEndReason) {
	if c.events != nil {
		c.events.RecordingStateChanged(recording, reason)
	}
}
