package audio

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTCDetector reports speech in PCM16LE mono audio using WebRTC's VAD. Input is
// split into 10ms frames; partial frames carry over to the next call.
type WebRTCDetector struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int
	rest       []byte
}

// NewWebRTCDetector builds a detector. Mode ranges from 0 (lenient) to 3 (aggressive).
func NewWebRTCDetector(sampleRate int, mode int) (*WebRTCDetector, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("unsupported VAD sample rate %d", sampleRate)
	}
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}

	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("create VAD: %w", err)
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("set VAD mode: %w", err)
	}

	return &WebRTCDetector{
		vad:        vad,
		sampleRate: sampleRate,
		frameBytes: sampleRate / 100 * 2,
	}, nil
}

// Speech reports whether any complete frame in the chunk contains voice.
func (d *WebRTCDetector) Speech(chunk []byte) (bool, error) {
	data := append(d.rest, chunk...)
	speech := false
	offset := 0
	for ; offset+d.frameBytes <= len(data); offset += d.frameBytes {
		if speech {
			continue
		}
		active, err := d.vad.Process(d.sampleRate, data[offset:offset+d.frameBytes])
		if err != nil {
			d.rest = nil
			return false, fmt.Errorf("VAD processing failed: %w", err)
		}
		speech = active
	}
	d.rest = append(d.rest[:0:0], data[offset:]...)
	return speech, nil
}
