package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func drain(pcm <-chan []byte, errs <-chan error) (string, error) {
	var out strings.Builder
	for chunk := range pcm {
		out.Write(chunk)
	}
	return out.String(), <-errs
}

func TestSpeakerRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := drain(NewSpeaker(Config{APIKey: "k"}).StreamPCM(context.Background(), "hi"))
	if err == nil {
		t.Fatalf("expected missing voice id error")
	}
}

func TestSpeakerStreamsPCM(t *testing.T) {
	t.Parallel()

	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-1/stream" || r.Header.Get("xi-api-key") != "k" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("output_format") != "pcm_24000" {
			http.Error(w, "bad format", http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte("pcm"))
	}))
	defer server.Close()

	speaker := NewSpeaker(Config{APIKey: "k", VoiceID: "voice-1", BaseURL: server.URL, SampleRate: 12345})
	audio, err := drain(speaker.StreamPCM(context.Background(), "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio != "pcm" {
		t.Fatalf("unexpected audio: %q", audio)
	}
	if body["text"] != "hello" || body["model_id"] != "eleven_flash_v2_5" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestSpeakerReportsStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := drain(NewSpeaker(Config{APIKey: "k", VoiceID: "v", BaseURL: server.URL}).StreamPCM(context.Background(), "hello"))
	if err == nil || !strings.Contains(err.Error(), "status=404") || !strings.Contains(err.Error(), "voice not found") {
		t.Fatalf("expected status error, got %v", err)
	}
}
