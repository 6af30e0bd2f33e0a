package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"speakfluent/internal/domain"
)

// Timer is a pending scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already ran or was stopped.
	Stop() bool
}

// Scheduler arms one-shot callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
	Language       string
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RecognitionConfig mirrors the knobs of a continuous speech recognizer.
type RecognitionConfig struct {
	Continuous      bool
	InterimResults  bool
	Language        string
	MaxAlternatives int
}

// RecognitionSegment is one recognized result; the last one may still be interim.
type RecognitionSegment struct {
	Transcript string
	Final      bool
}

// RecognitionListener receives recognizer callbacks. OnResult always carries every
// segment recognized since Start, in order.
type RecognitionListener interface {
	OnResult(segments []RecognitionSegment)
	OnError(err error)
	OnEnd()
}

// SpeechRecognizer is one recognizer instance.
type SpeechRecognizer interface {
	Start(ctx context.Context) error
	Stop() error
	Abort() error
}

// RecognitionEngine creates recognizers when the capability exists.
type RecognitionEngine interface {
	Available() bool
	NewRecognizer(cfg RecognitionConfig, listener RecognitionListener) (SpeechRecognizer, error)
}

// SynthesisErrorReason classifies utterance failures.
type SynthesisErrorReason string

const (
	SynthesisInterrupted SynthesisErrorReason = "interrupted"
	SynthesisCanceled    SynthesisErrorReason = "canceled"
	SynthesisFailed      SynthesisErrorReason = "synthesis-failed"
	SynthesisAudioBusy   SynthesisErrorReason = "audio-busy"
)

// Utterance is one unit of speech handed to a SynthesisEngine.
type Utterance struct {
	Text     string
	Language string

	OnStart func()
	OnEnd   func()
	OnError func(reason SynthesisErrorReason, err error)
}

// SynthesisEngine follows an enqueue-one/cancel-all model.
type SynthesisEngine interface {
	Available() bool
	Speak(u Utterance) error
	Cancel()
	Speaking() bool
	Paused() bool
	Resume()
}

// SpeechSynthesizer turns text into a stream of PCM16LE mono audio. Both channels are
// closed when synthesis ends; the error channel carries at most one error.
type SpeechSynthesizer interface {
	StreamPCM(ctx context.Context, text string) (<-chan []byte, <-chan error)
	SampleRate() int
}

// ErrOutputUnavailable marks a sink failure where the output device could not be opened,
// e.g. because another process holds it. Nothing was played.
var ErrOutputUnavailable = errors.New("audio output device is unavailable")

// AudioSink plays PCM16LE mono audio until the channel closes or ctx is done.
type AudioSink interface {
	Play(ctx context.Context, pcm <-chan []byte, sampleRate int) error
}

// VoiceActivityDetector classifies captured PCM16LE audio as speech or silence.
type VoiceActivityDetector interface {
	Speech(chunk []byte) (bool, error)
}

// ChatBackend is the external REST backend.
type ChatBackend interface {
	Register(ctx context.Context, username, password, email string) (string, error)
	Login(ctx context.Context, username, password string) (domain.User, error)
	CreateConversation(ctx context.Context, userID int64) (int64, error)
	UserConversations(ctx context.Context, userID int64) ([]domain.Conversation, error)
	ConversationInfo(ctx context.Context, conversationID int64) (domain.Conversation, error)
	ConversationMessages(ctx context.Context, conversationID int64) ([]domain.Message, error)
	CreateMessage(ctx context.Context, conversationID int64, sender domain.Sender, content string) (domain.Message, error)
	SendChat(ctx context.Context, text string, userID, conversationID int64) (string, error)
	WordInfo(ctx context.Context, word string) (domain.VocabularyData, error)
	DictionaryLookup(ctx context.Context, word string) (domain.VocabularyData, error)
}

// EventSink emits voice state and chat events to the UI.
type EventSink interface {
	RecordingStateChanged(recording bool, reason domain.RecordingEndReason)
	TranscriptChanged(text string)
	AutoSendStateChanged(state domain.AutoSendState)
	PlaybackStateChanged(state domain.PlaybackState)
	VoiceError(code domain.ErrorCode, detail string)
	MessageAdded(message domain.Message)
}
