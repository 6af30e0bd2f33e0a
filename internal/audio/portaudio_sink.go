package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"speakfluent/internal/ports"
)

const sinkFramesPerBuffer = 1024

// PortAudioSink plays mono PCM16LE through the default output device.
type PortAudioSink struct {
	mu sync.Mutex
}

func NewPortAudioSink() *PortAudioSink {
	return &PortAudioSink{}
}

// Play blocks until pcm is drained or ctx is cancelled. One utterance plays at a time.
func (s *PortAudioSink) Play(ctx context.Context, pcm <-chan []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize audio output: %w", outputError(err))
	}
	defer portaudio.Terminate()

	buffer := make([]int16, sinkFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(buffer), &buffer)
	if err != nil {
		return fmt.Errorf("open output stream: %w", outputError(err))
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", outputError(err))
	}
	defer stream.Stop()

	framer := &sampleFramer{size: len(buffer)}
	write := func(frame []int16) error {
		copy(buffer, frame)
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-pcm:
			if !ok {
				if tail := framer.flush(); tail != nil {
					return write(tail)
				}
				return nil
			}
			for _, frame := range framer.push(chunk) {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := write(frame); err != nil {
					return err
				}
			}
		}
	}
}

// outputError tags device errors that may clear up on their own.
func outputError(err error) error {
	if errors.Is(err, portaudio.DeviceUnavailable) || errors.Is(err, portaudio.TimedOut) {
		return fmt.Errorf("%w: %w", ports.ErrOutputUnavailable, err)
	}
	return err
}

// sampleFramer regroups arbitrary byte chunks into fixed-size int16 frames.
type sampleFramer struct {
	size    int
	odd     []byte
	pending []int16
}

func (f *sampleFramer) push(chunk []byte) [][]int16 {
	data := chunk
	if len(f.odd) > 0 {
		data = append(append([]byte{}, f.odd...), chunk...)
		f.odd = nil
	}
	if len(data)%2 == 1 {
		f.odd = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}
	for i := 0; i+1 < len(data); i += 2 {
		f.pending = append(f.pending, int16(binary.LittleEndian.Uint16(data[i:])))
	}

	var frames [][]int16
	for len(f.pending) >= f.size {
		frame := make([]int16, f.size)
		copy(frame, f.pending[:f.size])
		f.pending = f.pending[f.size:]
		frames = append(frames, frame)
	}
	return frames
}

// flush pads the remaining samples with silence.
func (f *sampleFramer) flush() []int16 {
	f.odd = nil
	if len(f.pending) == 0 {
		return nil
	}
	frame := make([]int16, f.size)
	copy(frame, f.pending)
	f.pending = nil
	return frame
}
