package deepgram

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpeakerRequiresAPIKey(t *testing.T) {
	t.Parallel()

	speaker := NewSpeaker(Config{}, nil)
	if speaker.SampleRate() != 24000 {
		t.Fatalf("unexpected sample rate: %d", speaker.SampleRate())
	}

	pcm, errs := speaker.StreamPCM(context.Background(), "hello")
	for range pcm {
	}
	err := <-errs
	if err == nil || !strings.Contains(err.Error(), "DEEPGRAM_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestSpeakCallbackForwardsAudioAndFinishesOnFlush(t *testing.T) {
	t.Parallel()

	pcm := make(chan []byte, 2)
	cb := newSpeakCallback(context.Background(), pcm)

	frame := []byte{1, 2}
	_ = cb.Binary(frame)
	frame[0] = 9
	if got := <-pcm; got[0] != 1 {
		t.Fatalf("frames must be copied, got %v", got)
	}

	_ = cb.Flush(nil)
	_ = cb.Flush(nil)
	if err := cb.wait(context.Background(), time.Second, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSpeakCallbackReportsServerError(t *testing.T) {
	t.Parallel()

	cb := newSpeakCallback(context.Background(), make(chan []byte, 1))
	_ = cb.Error(nil)
	if err := cb.wait(context.Background(), time.Second, time.Second); err == nil {
		t.Fatalf("expected server error")
	}
}

func TestSpeakCallbackEndsWhenAudioGoesQuiet(t *testing.T) {
	t.Parallel()

	cb := newSpeakCallback(context.Background(), make(chan []byte, 1))
	_ = cb.Binary([]byte{1})

	start := time.Now()
	if err := cb.wait(context.Background(), 40*time.Millisecond, 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("idle window did not end the utterance")
	}
}

func TestSpeakCallbackDeadlineWithoutAudio(t *testing.T) {
	t.Parallel()

	cb := newSpeakCallback(context.Background(), make(chan []byte, 1))
	if err := cb.wait(context.Background(), 40*time.Millisecond, 60*time.Millisecond); err == nil {
		t.Fatalf("expected no-audio error")
	}
}

func TestSpeakCallbackDropsFramesAfterDetach(t *testing.T) {
	t.Parallel()

	pcm := make(chan []byte)
	cb := newSpeakCallback(context.Background(), pcm)

	blocked := make(chan struct{})
	go func() {
		defer close(blocked)
		_ = cb.Binary([]byte{1})
	}()

	cb.detach()
	<-blocked
	close(pcm)

	if err := cb.Binary([]byte{2}); err != nil {
		t.Fatalf("late frame must be dropped quietly, got %v", err)
	}
}
