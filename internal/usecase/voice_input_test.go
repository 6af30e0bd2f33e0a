package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"speakfluent/internal/domain"
)

type fakeSpeechStopper struct {
	calls int
}

func (f *fakeSpeechStopper) Stop() { f.calls++ }

type voiceInputHarness struct {
	controller *VoiceInputController
	engine     *fakeRecognitionEngine
	scheduler  *fakeScheduler
	events     *fakeEventSink
	sent       *sendRecorder
	speech     *fakeSpeechStopper
}

func newVoiceInputHarness(t *testing.T, engine *fakeRecognitionEngine) *voiceInputHarness {
	t.Helper()
	h := &voiceInputHarness{
		engine:    engine,
		scheduler: &fakeScheduler{},
		events:    &fakeEventSink{},
		sent:      &sendRecorder{},
		speech:    &fakeSpeechStopper{},
	}
	cfg := VoiceInputConfig{
		Recognition: RecognitionAdapterConfig{Guard: &PlaybackGuard{}},
		AutoSend:    AutoSendConfig{Delay: 3 * time.Second, SettleDelay: 100 * time.Millisecond},
		Scheduler:   h.scheduler,
	}
	if engine == nil {
		h.controller = NewVoiceInputController(nil, h.speech, h.events, h.sent.send, cfg)
	} else {
		h.controller = NewVoiceInputController(engine, h.speech, h.events, h.sent.send, cfg)
	}
	t.Cleanup(func() { _ = h.controller.Close() })
	return h
}

func TestVoiceInputRecordThenAutoSend(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	if err := h.controller.ToggleRecord(context.Background()); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if h.speech.calls != 1 {
		t.Fatalf("recording must silence speech first")
	}
	if !h.controller.Recording() {
		t.Fatalf("expected recording")
	}

	recognizer := h.engine.last()
	recognizer.result("hello")
	recognizer.result("hello", "world")
	if got := h.controller.Text(); got != "hello world" {
		t.Fatalf("unexpected buffer: %q", got)
	}

	if err := h.controller.ToggleRecord(context.Background()); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	recognizer.listener.OnEnd()

	h.scheduler.Advance(100 * time.Millisecond)
	h.scheduler.Advance(3 * time.Second)

	sent := h.sent.snapshot()
	if len(sent) != 1 || sent[0] != "hello world" {
		t.Fatalf("unexpected sends: %v", sent)
	}
	if got := h.controller.Text(); got != "" {
		t.Fatalf("buffer must be cleared after send, got %q", got)
	}

	recordings := h.events.snapshotRecordings()
	if len(recordings) != 2 || !recordings[0].recording || recordings[1].reason != domain.RecordingEndStopped {
		t.Fatalf("unexpected recording events: %+v", recordings)
	}
}

func TestVoiceInputAppliesCorrections(t *testing.T) {
	t.Parallel()

	engine := &fakeRecognitionEngine{}
	sent := &sendRecorder{}
	controller := NewVoiceInputController(engine, &fakeSpeechStopper{}, &fakeEventSink{}, sent.send, VoiceInputConfig{
		Recognition: RecognitionAdapterConfig{Guard: &PlaybackGuard{}},
		Correct:     func(text string) string { return strings.ReplaceAll(text, "wear", "where") },
		Scheduler:   &fakeScheduler{},
	})
	t.Cleanup(func() { _ = controller.Close() })

	if err := controller.ToggleRecord(context.Background()); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	engine.last().result("wear is it")
	if got := controller.Text(); got != "where is it" {
		t.Fatalf("unexpected buffer: %q", got)
	}
}

func TestVoiceInputFocusDuringRecordingPreventsAutoSend(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	if err := h.controller.ToggleRecord(context.Background()); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	recognizer := h.engine.last()
	recognizer.result("let me edit this")
	h.controller.Focus()
	recognizer.listener.OnEnd()

	h.scheduler.Advance(time.Minute)
	if sent := h.sent.snapshot(); len(sent) != 0 {
		t.Fatalf("focused field must not auto-send: %v", sent)
	}
	if got := h.controller.Text(); got != "let me edit this" {
		t.Fatalf("buffer must be kept for editing, got %q", got)
	}
}

func TestVoiceInputManualSendWhileRecording(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	if err := h.controller.ToggleRecord(context.Background()); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	recognizer := h.engine.last()
	recognizer.result("send me")

	if !h.controller.ManualSend("") {
		t.Fatalf("expected manual send to go through")
	}
	if recognizer.stops() != 1 {
		t.Fatalf("manual send must stop recording")
	}

	recognizer.result("send me", "now")
	recognizer.listener.OnEnd()
	h.scheduler.Advance(time.Minute)

	sent := h.sent.snapshot()
	if len(sent) != 1 || sent[0] != "send me" {
		t.Fatalf("unexpected sends: %v", sent)
	}
	if got := h.controller.Text(); got != "" {
		t.Fatalf("late transcripts must not refill the buffer, got %q", got)
	}
}

func TestVoiceInputManualSendEmptyIsIgnored(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	h.controller.TextChanged("   ")
	if h.controller.ManualSend("") {
		t.Fatalf("whitespace must not be sent")
	}
	if sent := h.sent.snapshot(); len(sent) != 0 {
		t.Fatalf("unexpected sends: %v", sent)
	}
}

func TestVoiceInputManualSendRefusedWhileSending(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	h.controller.Focus()
	h.controller.TextChanged("first")
	if !h.controller.ManualSend("") {
		t.Fatalf("expected first send to go through")
	}

	h.controller.SetSending(true)
	h.controller.TextChanged("second")
	if h.controller.ManualSend("") {
		t.Fatalf("manual send must be refused while a send is in flight")
	}
	if got := h.controller.Text(); got != "second" {
		t.Fatalf("refused send must keep the buffer, got %q", got)
	}

	h.controller.SetSending(false)
	if !h.controller.ManualSend("") {
		t.Fatalf("expected send after delivery finished")
	}
	sent := h.sent.snapshot()
	if len(sent) != 2 || sent[0] != "first" || sent[1] != "second" {
		t.Fatalf("unexpected sends: %v", sent)
	}
}

func TestVoiceInputTranscriptWhileRecordingArmsAutoSend(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	if err := h.controller.ToggleRecord(context.Background()); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	h.engine.last().result("still talking")
	if got := h.controller.Status().AutoSend; got != domain.AutoSendArmed {
		t.Fatalf("expected transcript to arm auto-send, got %s", got)
	}

	h.scheduler.Advance(3 * time.Second)
	if sent := h.sent.snapshot(); len(sent) != 1 || sent[0] != "still talking" {
		t.Fatalf("unexpected sends: %v", sent)
	}
}

func TestVoiceInputTypedTextAutoSendsAfterBlur(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	h.controller.Focus()
	h.controller.TextChanged("typed message")
	h.scheduler.Advance(time.Minute)
	if sent := h.sent.snapshot(); len(sent) != 0 {
		t.Fatalf("must not send while focused: %v", sent)
	}

	h.controller.Blur()
	h.scheduler.Advance(3 * time.Second)
	if sent := h.sent.snapshot(); len(sent) != 1 || sent[0] != "typed message" {
		t.Fatalf("unexpected sends: %v", sent)
	}
}

func TestVoiceInputRecognitionErrorCancelsAutoSend(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	if err := h.controller.ToggleRecord(context.Background()); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	recognizer := h.engine.last()
	recognizer.result("partial words")
	recognizer.listener.OnError(errors.New("no-speech"))
	h.scheduler.Advance(time.Minute)

	if sent := h.sent.snapshot(); len(sent) != 0 {
		t.Fatalf("error must not auto-send: %v", sent)
	}
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeRecognition {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if h.controller.Recording() {
		t.Fatalf("expected recording to end after error")
	}
	if h.engine.count() != 1 {
		t.Fatalf("errors must not trigger a retry")
	}
}

func TestVoiceInputStartFailure(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{startErr: errors.New("not-allowed")})
	if err := h.controller.ToggleRecord(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if h.controller.Recording() {
		t.Fatalf("failed start must not record")
	}
	recordings := h.events.snapshotRecordings()
	if len(recordings) != 1 || recordings[0].recording || recordings[0].reason != domain.RecordingEndError {
		t.Fatalf("unexpected recording events: %+v", recordings)
	}

	h.controller.TextChanged("typed instead")
	h.scheduler.Advance(3 * time.Second)
	if sent := h.sent.snapshot(); len(sent) != 1 {
		t.Fatalf("typing must still auto-send after a failed start: %v", sent)
	}
}

func TestVoiceInputSupportGracePeriod(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, nil)
	if got := h.controller.SpeechSupport(); got != domain.SpeechSupportUnknown {
		t.Fatalf("expected unknown during grace, got %s", got)
	}
	if err := h.controller.ToggleRecord(context.Background()); !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}

	h.scheduler.Advance(DefaultSupportGrace)
	if got := h.controller.SpeechSupport(); got != domain.SpeechSupportUnsupported {
		t.Fatalf("expected unsupported after grace, got %s", got)
	}
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeCapabilityUnavailable {
		t.Fatalf("unexpected errors: %+v", errs)
	}

	h.controller.TextChanged("text only")
	h.scheduler.Advance(3 * time.Second)
	if sent := h.sent.snapshot(); len(sent) != 1 || sent[0] != "text only" {
		t.Fatalf("text-only input must still auto-send: %v", sent)
	}
}

func TestVoiceInputSupportedImmediately(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	if got := h.controller.SpeechSupport(); got != domain.SpeechSupportSupported {
		t.Fatalf("expected supported, got %s", got)
	}
	status := h.controller.Status()
	if status.Support != domain.SpeechSupportSupported || status.AutoSend != domain.AutoSendIdle {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestVoiceInputCloseCancelsPendingSend(t *testing.T) {
	t.Parallel()

	h := newVoiceInputHarness(t, &fakeRecognitionEngine{})
	h.controller.TextChanged("pending")
	if err := h.controller.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	h.scheduler.Advance(time.Minute)
	if sent := h.sent.snapshot(); len(sent) != 0 {
		t.Fatalf("closed controller must not send: %v", sent)
	}
}
