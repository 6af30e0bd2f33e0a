package usecase

import (
	"strings"
	"sync"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

// transcriptAggregator turns provider events into the segment list a recognizer reports:
// every final result so far followed by the latest interim one.
type transcriptAggregator struct {
	mu      sync.Mutex
	finals  []string
	interim string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

// Add folds in one event and reports whether the segment list changed.
func (a *transcriptAggregator) Add(event domain.TranscriptEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return false
	}
	if event.Kind == domain.TranscriptKindFinal {
		a.finals = append(a.finals, text)
		a.interim = ""
		return true
	}
	if text == a.interim {
		return false
	}
	a.interim = text
	return true
}

func (a *transcriptAggregator) Segments() []ports.RecognitionSegment {
	a.mu.Lock()
	defer a.mu.Unlock()

	segments := make([]ports.RecognitionSegment, 0, len(a.finals)+1)
	for _, text := range a.finals {
		segments = append(segments, ports.RecognitionSegment{Transcript: text, Final: true})
	}
	if a.interim != "" {
		segments = append(segments, ports.RecognitionSegment{Transcript: a.interim})
	}
	return segments
}

// Raw is the transcript recognized so far.
func (a *transcriptAggregator) Raw() string {
	return joinSegments(a.Segments())
}

func consumeTranscriptionEvents(
	session ports.StreamingSession,
	aggregator *transcriptAggregator,
	onChange func(segments []ports.RecognitionSegment),
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		if !aggregator.Add(event) {
			continue
		}
		if onChange != nil {
			onChange(aggregator.Segments())
		}
	}
}
