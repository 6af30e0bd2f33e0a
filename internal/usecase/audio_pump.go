package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"speakfluent/internal/ports"
)

// pumpAudioChunks copies captured audio into the stream until either side ends. It
// delivers exactly one value on done: nil when the capture reached EOF.
func pumpAudioChunks(
	audio ports.AudioSession,
	stream ports.StreamingSession,
	chunkSize int,
	onChunk func(chunk []byte),
	done chan<- error,
) {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				done <- fmt.Errorf("failed to stream audio: %w", sendErr)
				return
			}
			if onChunk != nil {
				onChunk(buf[:n])
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				done <- nil
				return
			}
			done <- fmt.Errorf("audio capture error: %w", err)
			return
		}
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
