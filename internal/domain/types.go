package domain

// AutoSendState models the auto-send timer lifecycle of one input field.
type AutoSendState string

const (
	AutoSendIdle  AutoSendState = "idle"
	AutoSendArmed AutoSendState = "armed"
	AutoSendFired AutoSendState = "fired"
)

// SpeechSupport reports whether speech recognition is usable in this environment.
type SpeechSupport string

const (
	SpeechSupportUnknown     SpeechSupport = "unknown"
	SpeechSupportSupported   SpeechSupport = "supported"
	SpeechSupportUnsupported SpeechSupport = "unsupported"
)

// RecordingEndReason tells why a recording session ended.
type RecordingEndReason string

const (
	RecordingEndStopped RecordingEndReason = "stopped"
	RecordingEndEnded   RecordingEndReason = "ended"
	RecordingEndError   RecordingEndReason = "error"
)

// ErrorCode identifies non-fatal voice and backend errors.
type ErrorCode string

const (
	ErrorCodeStartup               ErrorCode = "startup"
	ErrorCodeCapabilityUnavailable ErrorCode = "capability_unavailable"
	ErrorCodeRecognition           ErrorCode = "recognition"
	ErrorCodeSynthesis             ErrorCode = "synthesis"
	ErrorCodeBackend               ErrorCode = "backend"
	ErrorCodeAudioStream           ErrorCode = "audio_stream"
	ErrorCodeAudioStop             ErrorCode = "audio_stop"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// PlaybackState describes which utterance, if any, is being read aloud.
type PlaybackState struct {
	Playing   bool   `json:"playing"`
	CurrentID string `json:"currentId,omitempty"`
}

// VoiceStatus summarizes the voice input state for the UI.
type VoiceStatus struct {
	Recording bool          `json:"recording"`
	Support   SpeechSupport `json:"support"`
	AutoSend  AutoSendState `json:"autoSend"`
	Text      string        `json:"text"`
	Playback  PlaybackState `json:"playback"`
	Message   string        `json:"message,omitempty"`
}

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// User is an authenticated account.
type User struct {
	ID       int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Conversation is one practice session with the AI tutor.
type Conversation struct {
	ID        int64   `json:"conversation_id"`
	UserID    int64   `json:"user_id"`
	StartTime string  `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

// Message is one chat message in a conversation.
type Message struct {
	ID             int64  `json:"message_id"`
	ConversationID int64  `json:"conversation_id"`
	Sender         Sender `json:"sender"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
}

// ChatTurn is the result of sending one user message.
type ChatTurn struct {
	ConversationID int64   `json:"conversationId"`
	Created        bool    `json:"created"`
	User           Message `json:"user"`
	Reply          Message `json:"reply"`
}

// VocabularyData is the dictionary information shown in the word popup.
type VocabularyData struct {
	Meaning       []Meaning       `json:"meaning"`
	Pronunciation []Pronunciation `json:"pronunciation"`
	Translation   string          `json:"translation"`
}

type Meaning struct {
	PartOfSpeech string       `json:"partOfSpeech"`
	Definitions  []Definition `json:"definitions"`
}

type Definition struct {
	Definition string   `json:"definition"`
	Synonyms   []string `json:"synonyms"`
	Antonyms   []string `json:"antonyms"`
	Example    string   `json:"example"`
}

type Pronunciation struct {
	Text      string  `json:"text"`
	Audio     string  `json:"audio"`
	SourceURL string  `json:"sourceUrl"`
	License   License `json:"license"`
}

type License struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
