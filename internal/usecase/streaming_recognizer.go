package usecase

import (
	"errors"
	"log/slog"
	"time"

	"speakfluent/internal/ports"
)

var (
	ErrNoActiveSession     = errors.New("no active recording session")
	ErrRecognizerStarted   = errors.New("recognizer already started")
	defaultStreamWait      = 4 * time.Second
	minSilenceCheckPeriod  = 50 * time.Millisecond
	defaultChunkSize       = 4096
	defaultStreamingGrace  = 250 * time.Millisecond
	defaultSilenceDuration = 8 * time.Second
)

// StreamingRecognizerConfig controls microphone capture and streaming transcription.
type StreamingRecognizerConfig struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	ChunkSize int
	// StreamingGrace keeps the stream open after a stop so final results can land.
	StreamingGrace time.Duration
	// SilenceTimeout ends a session on its own once nothing was heard for this long.
	// Zero disables it.
	SilenceTimeout time.Duration
	// NewVoiceDetector builds a per-session voice activity detector. Without one, only
	// recognized text counts as activity.
	NewVoiceDetector func() (ports.VoiceActivityDetector, error)
	Logger           *slog.Logger
}

// StreamingRecognizer is a recognition engine backed by microphone capture and a
// streaming transcription provider.
type StreamingRecognizer struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      StreamingRecognizerConfig
	logger   *slog.Logger
}

func NewStreamingRecognizer(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	cfg StreamingRecognizerConfig,
) *StreamingRecognizer {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.StreamingGrace < 0 {
		cfg.StreamingGrace = defaultStreamingGrace
	}
	if cfg.SilenceTimeout < 0 {
		cfg.SilenceTimeout = defaultSilenceDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StreamingRecognizer{
		audio:    audio,
		provider: provider,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "streaming_recognizer"),
	}
}

// Available reports whether both capture and transcription are configured.
func (r *StreamingRecognizer) Available() bool {
	return r != nil && r.audio != nil && r.provider != nil
}

// NewRecognizer prepares one session. It does not touch the microphone until Start.
func (r *StreamingRecognizer) NewRecognizer(cfg ports.RecognitionConfig, listener ports.RecognitionListener) (ports.SpeechRecognizer, error) {
	if !r.Available() {
		return nil, ErrCapabilityUnavailable
	}
	if listener == nil {
		return nil, errors.New("recognition listener is required")
	}

	streaming := r.cfg.Streaming
	streaming.InterimResults = cfg.InterimResults
	if cfg.Language != "" {
		streaming.Language = cfg.Language
	}
	if streaming.SampleRate <= 0 {
		streaming.SampleRate = r.cfg.Audio.SampleRate
	}
	if streaming.Channels <= 0 {
		streaming.Channels = r.cfg.Audio.Channels
	}

	return newRecognizerSession(r, streaming, listener), nil
}

func silenceCheckPeriod(timeout time.Duration) time.Duration {
	period := timeout / 4
	if period < minSilenceCheckPeriod {
		period = minSilenceCheckPeriod
	}
	return period
}
