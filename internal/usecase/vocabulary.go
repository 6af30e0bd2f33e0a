package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

var ErrEmptyWord = errors.New("word is empty")

const wordPunctuation = ".,/#!$%^&*;:{}=-_`~()"

// VocabularyConfig sizes the word lookup cache.
type VocabularyConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// VocabularyService looks up words clicked in chat messages.
type VocabularyService struct {
	backend ports.ChatBackend
	cache   *expirable.LRU[string, domain.VocabularyData]
	logger  *slog.Logger
}

func NewVocabularyService(backend ports.ChatBackend, cfg VocabularyConfig, logger *slog.Logger) *VocabularyService {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VocabularyService{
		backend: backend,
		cache:   expirable.NewLRU[string, domain.VocabularyData](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:  logger.With("component", "vocabulary"),
	}
}

// CleanWord strips punctuation and lowercases a word taken from message text.
func CleanWord(word string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(wordPunctuation, r) {
			return -1
		}
		return r
	}, word)
	return strings.TrimSpace(strings.ToLower(cleaned))
}

// Lookup returns the dictionary entry for word.
func (s *VocabularyService) Lookup(ctx context.Context, word string) (domain.VocabularyData, error) {
	word = CleanWord(word)
	if word == "" {
		return domain.VocabularyData{}, ErrEmptyWord
	}
	if data, ok := s.cache.Get(word); ok {
		return data, nil
	}

	data, err := s.backend.WordInfo(ctx, word)
	if err != nil {
		s.logger.Warn("word lookup failed", "word", word, "error", err)
		return domain.VocabularyData{}, err
	}
	s.cache.Add(word, data)
	return data, nil
}

// PronunciationAudio returns an audio URL for word. It prefers data already loaded and
// falls back to the public dictionary. A failed fallback yields an empty URL, since the
// word information is still worth showing without audio.
func (s *VocabularyService) PronunciationAudio(ctx context.Context, word string, data domain.VocabularyData) string {
	if audio := firstAudio(data.Pronunciation); audio != "" {
		return audio
	}

	word = CleanWord(word)
	if word == "" {
		return ""
	}
	detailed, err := s.backend.DictionaryLookup(ctx, word)
	if err != nil {
		s.logger.Debug("dictionary fallback failed", "word", word, "error", err)
		return ""
	}
	return firstAudio(detailed.Pronunciation)
}

func firstAudio(pronunciations []domain.Pronunciation) string {
	for _, p := range pronunciations {
		if p.Audio != "" {
			return p.Audio
		}
	}
	return ""
}
