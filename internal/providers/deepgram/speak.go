package deepgram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

const (
	speakIdleWindow = 600 * time.Millisecond
	speakDeadline   = 30 * time.Second
)

// Speaker streams Deepgram Aura speech as PCM16LE.
type Speaker struct {
	cfg    Config
	logger *slog.Logger
}

func NewSpeaker(cfg Config, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{cfg: cfg.withDefaults(), logger: logger.With("component", "deepgram_speak")}
}

func (s *Speaker) SampleRate() int {
	return s.cfg.SpeakSampleRate
}

func (s *Speaker) StreamPCM(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(pcmCh)
		defer close(errCh)

		if strings.TrimSpace(s.cfg.APIKey) == "" {
			errCh <- errors.New("DEEPGRAM_API_KEY is not configured")
			return
		}
		if strings.TrimSpace(text) == "" {
			return
		}

		cb := newSpeakCallback(ctx, pcmCh)
		defer cb.detach()
		options := &clientinterfaces.WSSpeakOptions{
			Model:      s.cfg.SpeakModel,
			Encoding:   "linear16",
			SampleRate: s.cfg.SpeakSampleRate,
		}
		dg, err := speak.NewWSUsingCallback(ctx, s.cfg.APIKey, &clientinterfaces.ClientOptions{}, options, cb)
		if err != nil {
			errCh <- fmt.Errorf("deepgram: create speak client: %w", err)
			return
		}
		if ok := dg.Connect(); !ok {
			errCh <- errors.New("deepgram: speak connect failed")
			return
		}
		defer dg.Stop()

		if err := dg.SpeakWithText(text); err != nil {
			errCh <- fmt.Errorf("deepgram: speak text: %w", err)
			return
		}
		if err := dg.Flush(); err != nil {
			s.logger.Warn("flush failed", "error", err)
		}

		if err := cb.wait(ctx, speakIdleWindow, speakDeadline); err != nil {
			errCh <- err
		}
	}()

	return pcmCh, errCh
}

// speakCallback forwards audio frames and tracks when the utterance is complete.
type speakCallback struct {
	ctx  context.Context
	pcm  chan<- []byte
	last atomic.Int64

	flushed   chan struct{}
	flushOnce sync.Once

	// sendMu keeps Binary from writing to pcm once the stream goroutine has let go of it.
	sendMu   sync.RWMutex
	detached bool
	done     chan struct{}

	errMu sync.Mutex
	err   error
}

func newSpeakCallback(ctx context.Context, pcm chan<- []byte) *speakCallback {
	return &speakCallback{ctx: ctx, pcm: pcm, flushed: make(chan struct{}), done: make(chan struct{})}
}

// detach stops forwarding audio. Late frames from the SDK are dropped.
func (c *speakCallback) detach() {
	close(c.done)
	c.sendMu.Lock()
	c.detached = true
	c.sendMu.Unlock()
}

func (c *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (c *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (c *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (c *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (c *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (c *speakCallback) UnhandledEvent([]byte) error                    { return nil }

func (c *speakCallback) Flush(*msginterfaces.FlushedResponse) error {
	c.flushOnce.Do(func() { close(c.flushed) })
	return nil
}

func (c *speakCallback) Error(resp *msginterfaces.ErrorResponse) error {
	err := errors.New("deepgram: speak failed")
	if resp != nil {
		err = fmt.Errorf("deepgram: speak failed: %+v", *resp)
	}
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.flushOnce.Do(func() { close(c.flushed) })
	return nil
}

func (c *speakCallback) Binary(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c.last.Store(time.Now().UnixNano())
	frame := append([]byte(nil), data...)

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.detached {
		return nil
	}
	select {
	case c.pcm <- frame:
	case <-c.ctx.Done():
	case <-c.done:
	}
	return nil
}

func (c *speakCallback) failure() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// wait returns once the server flushed, audio went quiet, or the deadline passed.
func (c *speakCallback) wait(ctx context.Context, idle time.Duration, deadline time.Duration) error {
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.flushed:
			return c.failure()
		case <-timeout.C:
			if c.last.Load() == 0 {
				return errors.New("deepgram: no audio received")
			}
			return nil
		case <-ticker.C:
			if last := c.last.Load(); last != 0 && time.Since(time.Unix(0, last)) > idle {
				return nil
			}
		}
	}
}
