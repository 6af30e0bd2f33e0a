// Package elevenlabs synthesizes speech through the ElevenLabs streaming endpoint.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"speakfluent/internal/providers"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"
)

type Config struct {
	APIKey     string
	VoiceID    string
	BaseURL    string
	Model      string
	SampleRate int
}

// Speaker implements ports.SpeechSynthesizer.
type Speaker struct {
	cfg    Config
	client *http.Client
}

func NewSpeaker(cfg Config) *Speaker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	switch cfg.SampleRate {
	case 16000, 22050, 24000, 44100, 48000:
	default:
		cfg.SampleRate = 24000
	}
	return &Speaker{cfg: cfg, client: &http.Client{}}
}

func (s *Speaker) SampleRate() int {
	return s.cfg.SampleRate
}

func (s *Speaker) StreamPCM(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(pcmCh)
		defer close(errCh)

		if strings.TrimSpace(s.cfg.APIKey) == "" || strings.TrimSpace(s.cfg.VoiceID) == "" {
			errCh <- errors.New("elevenlabs: api key or voice id missing")
			return
		}
		if strings.TrimSpace(text) == "" {
			return
		}
		if err := s.stream(ctx, text, pcmCh); err != nil {
			errCh <- err
		}
	}()

	return pcmCh, errCh
}

func (s *Speaker) stream(ctx context.Context, text string, pcmCh chan<- []byte) error {
	endpoint, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/"))
	if err != nil {
		return fmt.Errorf("elevenlabs: invalid base url: %w", err)
	}
	endpoint = endpoint.JoinPath("v1", "text-to-speech", s.cfg.VoiceID, "stream")
	query := endpoint.Query()
	query.Set("output_format", fmt.Sprintf("pcm_%d", s.cfg.SampleRate))
	query.Set("optimize_streaming_latency", "2")
	endpoint.RawQuery = query.Encode()

	body, err := json.Marshal(map[string]any{
		"model_id": s.cfg.Model,
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.5,
			"similarity_boost":  0.75,
			"use_speaker_boost": true,
		},
	})
	if err != nil {
		return fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: stream request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("elevenlabs: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := providers.CopyPCM(ctx, resp.Body, pcmCh); err != nil {
		return fmt.Errorf("elevenlabs: %w", err)
	}
	return nil
}
