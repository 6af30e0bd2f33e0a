package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"speakfluent/internal/bootstrap"
	"speakfluent/internal/domain"
	"speakfluent/internal/usecase"
)

const (
	eventRecording    = "speakfluent:recording"
	eventTranscript   = "speakfluent:transcript"
	eventAutoSend     = "speakfluent:autosend"
	eventPlayback     = "speakfluent:playback"
	eventMessage      = "speakfluent:message"
	eventConversation = "speakfluent:conversation"
	eventError        = "speakfluent:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services bootstrap.Services
	ready    bool
	bootErr  error

	mu             sync.Mutex
	conversationID int64
	sends          sync.WaitGroup
}

// WordLookup is the vocabulary popup content for one clicked word.
type WordLookup struct {
	Word  string                `json:"word"`
	Data  domain.VocabularyData `json:"data"`
	Audio string                `json:"audio,omitempty"`
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.submit)
	if err != nil {
		a.bootErr = err
		a.VoiceError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services
	a.ready = true
}

func (a *App) shutdown(_ context.Context) {
	if !a.ready {
		return
	}
	a.sends.Wait()
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn("shutdown failed", "error", err)
	}
}

// ToggleRecord starts or stops voice input.
func (a *App) ToggleRecord() (domain.VoiceStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.VoiceStatus{}, err
	}
	if err := a.services.Voice.ToggleRecord(a.ctx); err != nil {
		code := domain.ErrorCodeRecognition
		if errors.Is(err, usecase.ErrCapabilityUnavailable) {
			code = domain.ErrorCodeCapabilityUnavailable
		}
		a.VoiceError(code, err.Error())
		return a.GetStatus(), err
	}
	return a.GetStatus(), nil
}

// InputFocus tells auto-send the user is editing the message field.
func (a *App) InputFocus() {
	if a.requireReady() == nil {
		a.services.Voice.Focus()
	}
}

// InputBlur tells auto-send the message field lost focus.
func (a *App) InputBlur() {
	if a.requireReady() == nil {
		a.services.Voice.Blur()
	}
}

// InputChanged reports a keystroke in the message field.
func (a *App) InputChanged(text string) {
	if a.requireReady() == nil {
		a.services.Voice.TextChanged(text)
	}
}

// SendInput sends text now. It reports false when there was nothing to send or a
// previous message is still in flight.
func (a *App) SendInput(text string) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.Voice.ManualSend(text), nil
}

// Speak reads text aloud under id, typically a message id.
func (a *App) Speak(text string, id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Player.Speak(text, id)
}

func (a *App) StopSpeech() {
	if a.requireReady() == nil {
		a.services.Player.Stop()
	}
}

func (a *App) SetAutoPlay(enabled bool) {
	if a.requireReady() == nil {
		a.services.Player.SetAutoPlay(enabled)
	}
}

func (a *App) Login(username string, password string) (domain.User, error) {
	if err := a.requireReady(); err != nil {
		return domain.User{}, err
	}
	user, err := a.services.Account.Login(a.ctx, username, password)
	if err != nil {
		return domain.User{}, err
	}
	a.setConversation(0)
	return user, nil
}

func (a *App) Register(username string, password string, email string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.services.Account.Register(a.ctx, username, password, email)
}

// Logout forgets the user, stops speech, and leaves the open conversation.
func (a *App) Logout() {
	if a.requireReady() != nil {
		return
	}
	a.services.Player.Stop()
	a.services.Account.Logout()
	a.setConversation(0)
}

// Conversations lists the signed-in user's conversations.
func (a *App) Conversations() ([]domain.Conversation, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Chat.Conversations(a.ctx, a.services.Account.UserID())
}

// OpenConversation makes id the current conversation and returns its history.
func (a *App) OpenConversation(id int64) ([]domain.Message, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	messages, err := a.services.Chat.Open(a.ctx, id)
	if err != nil {
		return nil, err
	}
	a.services.Player.Stop()
	a.setConversation(id)
	return messages, nil
}

// NewConversation starts an empty conversation and makes it current.
func (a *App) NewConversation() (int64, error) {
	if err := a.requireReady(); err != nil {
		return 0, err
	}
	id, err := a.services.Chat.Start(a.ctx, a.services.Account.UserID())
	if err != nil {
		return 0, err
	}
	a.setConversation(id)
	return id, nil
}

// LookupWord loads the vocabulary popup for a word clicked in a message.
func (a *App) LookupWord(word string) (WordLookup, error) {
	if err := a.requireReady(); err != nil {
		return WordLookup{}, err
	}
	data, err := a.services.Vocabulary.Lookup(a.ctx, word)
	if err != nil {
		return WordLookup{}, err
	}
	return WordLookup{
		Word:  usecase.CleanWord(word),
		Data:  data,
		Audio: a.services.Vocabulary.PronunciationAudio(a.ctx, word, data),
	}, nil
}

// GetStatus returns the current voice input status.
func (a *App) GetStatus() domain.VoiceStatus {
	if !a.ready {
		status := domain.VoiceStatus{Support: domain.SpeechSupportUnknown, AutoSend: domain.AutoSendIdle}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	status := a.services.Voice.Status()
	status.Playback = a.services.Player.State()
	return status
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if !a.ready {
		return map[string]string{}
	}

	cfg := a.services.Config
	return map[string]string{
		"recognition":      "Deepgram",
		"model":            cfg.Deepgram.Model,
		"language":         cfg.Recognition.Language,
		"synthesis":        cfg.Synthesis.Provider,
		"backend":          cfg.Backend.BaseURL,
		"configFile":       cfg.File,
		"logFile":          a.services.Logger.LogFile,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if !a.ready {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) currentConversation() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversationID
}

func (a *App) setConversation(id int64) {
	a.mu.Lock()
	changed := a.conversationID != id
	a.conversationID = id
	a.mu.Unlock()
	if changed {
		a.emit(eventConversation, map[string]int64{"conversationId": id})
	}
}

// submit delivers text from the voice input to the chat backend. Auto-send stays
// blocked until the reply has arrived.
func (a *App) submit(text string) {
	userID := a.services.Account.UserID()
	conversationID := a.currentConversation()

	a.services.Voice.SetSending(true)
	a.sends.Add(1)
	go func() {
		defer a.sends.Done()
		defer a.services.Voice.SetSending(false)

		ctx := a.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		turn, err := a.services.Chat.Send(ctx, userID, conversationID, text)
		if turn.Created {
			a.setConversation(turn.ConversationID)
		}
		if err != nil {
			a.VoiceError(domain.ErrorCodeBackend, err.Error())
			return
		}
		a.services.Player.AutoPlayReply(turn.Reply)
	}()
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

// RecordingStateChanged emits recording lifecycle updates to the frontend.
func (a *App) RecordingStateChanged(recording bool, reason domain.RecordingEndReason) {
	a.emit(eventRecording, map[string]any{
		"recording": recording,
		"reason":    string(reason),
		"message":   recordingMessage(recording, reason),
	})
}

// TranscriptChanged emits the text the message field should show.
func (a *App) TranscriptChanged(text string) {
	a.emit(eventTranscript, map[string]string{"text": text})
}

func (a *App) AutoSendStateChanged(state domain.AutoSendState) {
	a.emit(eventAutoSend, map[string]string{"state": string(state)})
}

func (a *App) PlaybackStateChanged(state domain.PlaybackState) {
	a.emit(eventPlayback, state)
}

func (a *App) MessageAdded(message domain.Message) {
	a.emit(eventMessage, message)
}

// VoiceError emits non-fatal errors to the UI.
func (a *App) VoiceError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func recordingMessage(recording bool, reason domain.RecordingEndReason) string {
	if recording {
		return "Listening..."
	}
	switch reason {
	case domain.RecordingEndStopped:
		return "Recording stopped"
	case domain.RecordingEndEnded:
		return "Recording ended"
	case domain.RecordingEndError:
		return "Recording failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapabilityUnavailable:
		return "Speech recognition is not available"
	case domain.ErrorCodeRecognition:
		return "Speech recognition error"
	case domain.ErrorCodeSynthesis:
		return "Speech playback failed"
	case domain.ErrorCodeBackend:
		return "Server request failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	default:
		if strings.TrimSpace(detail) == "" {
			return "Unknown error"
		}
		return detail
	}
}
