package usecase

import (
	"context"
	"errors"
	"testing"

	"speakfluent/internal/domain"
)

func TestCleanWord(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Hello,":      "hello",
		"(world)":     "world",
		" don't ":     "don't",
		"well-known!": "wellknown",
		"...":         "",
	}
	for input, want := range tests {
		if got := CleanWord(input); got != want {
			t.Fatalf("CleanWord(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestVocabularyLookupCaches(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{wordData: domain.VocabularyData{Translation: "hola"}}
	service := NewVocabularyService(backend, VocabularyConfig{}, nil)

	for i := 0; i < 3; i++ {
		data, err := service.Lookup(context.Background(), "Hello!")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if data.Translation != "hola" {
			t.Fatalf("unexpected data: %+v", data)
		}
	}
	if backend.wordCalls != 1 {
		t.Fatalf("expected one backend call, got %d", backend.wordCalls)
	}
}

func TestVocabularyLookupErrors(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{wordErr: errors.New("not found")}
	service := NewVocabularyService(backend, VocabularyConfig{}, nil)

	if _, err := service.Lookup(context.Background(), " .,!! "); !errors.Is(err, ErrEmptyWord) {
		t.Fatalf("expected ErrEmptyWord, got %v", err)
	}
	if _, err := service.Lookup(context.Background(), "zzz"); err == nil {
		t.Fatalf("expected backend error")
	}
	if _, err := service.Lookup(context.Background(), "zzz"); err == nil {
		t.Fatalf("failures must not be cached")
	}
	if backend.wordCalls != 2 {
		t.Fatalf("expected two backend calls, got %d", backend.wordCalls)
	}
}

func TestPronunciationAudioPrefersLoadedData(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	service := NewVocabularyService(backend, VocabularyConfig{}, nil)
	data := domain.VocabularyData{Pronunciation: []domain.Pronunciation{{Text: "/a/"}, {Audio: "https://audio/a.mp3"}}}

	if got := service.PronunciationAudio(context.Background(), "a", data); got != "https://audio/a.mp3" {
		t.Fatalf("unexpected audio: %q", got)
	}
	if backend.dictCalls != 0 {
		t.Fatalf("dictionary must not be queried when audio is known")
	}
}

func TestPronunciationAudioFallsBackToDictionary(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{dictionaryData: domain.VocabularyData{Pronunciation: []domain.Pronunciation{{Audio: "https://dict/b.mp3"}}}}
	service := NewVocabularyService(backend, VocabularyConfig{}, nil)

	if got := service.PronunciationAudio(context.Background(), "B.", domain.VocabularyData{}); got != "https://dict/b.mp3" {
		t.Fatalf("unexpected audio: %q", got)
	}

	backend.dictionaryErr = errors.New("offline")
	backend.dictionaryData = domain.VocabularyData{}
	if got := service.PronunciationAudio(context.Background(), "c", domain.VocabularyData{}); got != "" {
		t.Fatalf("failed fallback must yield no audio, got %q", got)
	}
}
