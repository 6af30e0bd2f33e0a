package deepgram

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIBaseURL      = "https://api.deepgram.com/v1"
	defaultListenModel     = "nova-2"
	defaultLanguage        = "en-US"
	defaultSpeakModel      = "aura-2-thalia-en"
	defaultSpeakSampleRate = 24000
	defaultKeepAlive       = 8 * time.Second
)

// Config holds Deepgram credentials plus listen and speak settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	Punctuate   bool
	// Endpointing is the silence, in milliseconds, after which Deepgram marks speech
	// final. Zero leaves the server default.
	Endpointing int
	// KeepAlive is how often an idle listen socket is pinged. Negative disables it.
	KeepAlive time.Duration

	SpeakModel      string
	SpeakSampleRate int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.Model == "" {
		c.Model = defaultListenModel
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.SpeakModel == "" {
		c.SpeakModel = defaultSpeakModel
	}
	if c.SpeakSampleRate <= 0 {
		c.SpeakSampleRate = defaultSpeakSampleRate
	}
	return c
}

// websocketBase turns the REST base into its websocket form.
func websocketBase(base string) (*url.URL, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = defaultAPIBaseURL
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	return parsed, nil
}
