// Package providers holds the third-party speech services behind the ports.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const readChunkSize = 4096

// CopyPCM forwards a streamed audio body to pcm until EOF or cancellation.
func CopyPCM(ctx context.Context, body io.Reader, pcm chan<- []byte) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			out := append([]byte(nil), buf[:n]...)
			select {
			case pcm <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read audio stream: %w", err)
		}
	}
}
