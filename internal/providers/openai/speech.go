// Package openai synthesizes speech through the OpenAI audio API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"speakfluent/internal/providers"
)

// OpenAI returns raw PCM16LE mono at this rate.
const pcmSampleRate = 24000

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Speed   float64
}

// Speaker implements ports.SpeechSynthesizer.
type Speaker struct {
	client *openai.Client
	cfg    Config
}

func NewSpeaker(cfg Config) *Speaker {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceNova)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Speaker{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

func (s *Speaker) SampleRate() int {
	return pcmSampleRate
}

func (s *Speaker) StreamPCM(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(pcmCh)
		defer close(errCh)

		if strings.TrimSpace(s.cfg.APIKey) == "" {
			errCh <- errors.New("OPENAI_API_KEY is not configured")
			return
		}
		if strings.TrimSpace(text) == "" {
			return
		}

		resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(s.cfg.Model),
			Input:          text,
			Voice:          openai.SpeechVoice(s.cfg.Voice),
			ResponseFormat: openai.SpeechResponseFormatPcm,
			Speed:          s.cfg.Speed,
		})
		if err != nil {
			errCh <- fmt.Errorf("openai speech: %w", err)
			return
		}
		defer resp.Close()

		if err := providers.CopyPCM(ctx, resp, pcmCh); err != nil {
			errCh <- fmt.Errorf("openai speech: %w", err)
		}
	}()

	return pcmCh, errCh
}
