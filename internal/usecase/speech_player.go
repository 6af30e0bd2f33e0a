package usecase

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

// SpeechPlayer reads messages aloud and tracks which one is playing.
type SpeechPlayer struct {
	synthesis *SynthesisAdapter
	events    ports.EventSink
	logger    *slog.Logger

	mu       sync.Mutex
	state    domain.PlaybackState
	gen      uint64
	autoPlay bool
}

// NewSpeechPlayer returns a player with auto-play enabled. synthesis may be nil, in which
// case Speak reports ErrCapabilityUnavailable.
func NewSpeechPlayer(synthesis *SynthesisAdapter, events ports.EventSink, logger *slog.Logger) *SpeechPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeechPlayer{
		synthesis: synthesis,
		events:    events,
		logger:    logger.With("component", "speech_player"),
		autoPlay:  true,
	}
}

// Speak reads text aloud under id, replacing whatever is playing.
func (p *SpeechPlayer) Speak(text, id string) error {
	if p.synthesis == nil {
		return ErrCapabilityUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()
	p.setState(gen, domain.PlaybackState{Playing: true, CurrentID: id})

	return p.synthesis.Speak(text, UtteranceCallbacks{
		OnStart: func() {
			p.setState(gen, domain.PlaybackState{Playing: true, CurrentID: id})
		},
		OnEnd: func() {
			p.setState(gen, domain.PlaybackState{})
		},
		OnError: func(err error) {
			p.logger.Warn("speech failed", "id", id, "error", err)
			if p.setState(gen, domain.PlaybackState{}) && p.events != nil {
				p.events.VoiceError(domain.ErrorCodeSynthesis, err.Error())
			}
		},
		OnInterrupted: func() {
			p.setState(gen, domain.PlaybackState{})
		},
	})
}

// Stop silences playback and clears the playing id.
func (p *SpeechPlayer) Stop() {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()
	if p.synthesis != nil {
		p.synthesis.Cancel()
	}
	p.setState(gen, domain.PlaybackState{})
}

// State returns the current playback state.
func (p *SpeechPlayer) State() domain.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *SpeechPlayer) SetAutoPlay(enabled bool) {
	p.mu.Lock()
	p.autoPlay = enabled
	p.mu.Unlock()
}

func (p *SpeechPlayer) AutoPlay() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoPlay
}

// AutoPlayReply speaks a new AI message when auto-play is on and the message is not
// already playing.
func (p *SpeechPlayer) AutoPlayReply(message domain.Message) bool {
	if message.Sender != domain.SenderAI || message.Content == "" {
		return false
	}
	id := MessageSpeechID(message.ID)
	p.mu.Lock()
	enabled := p.autoPlay
	playing := p.state.Playing && p.state.CurrentID == id
	p.mu.Unlock()
	if !enabled || playing {
		return false
	}
	if err := p.Speak(message.Content, id); err != nil {
		p.logger.Debug("auto-play skipped", "id", id, "error", err)
		return false
	}
	return true
}

// MessageSpeechID is the playback id of a chat message.
func MessageSpeechID(messageID int64) string {
	return strconv.FormatInt(messageID, 10)
}

func (p *SpeechPlayer) setState(gen uint64, state domain.PlaybackState) bool {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return false
	}
	changed := p.state != state
	p.state = state
	p.mu.Unlock()
	if changed && p.events != nil {
		p.events.PlaybackStateChanged(state)
	}
	return true
}
