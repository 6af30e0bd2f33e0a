package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Synthesis providers.
const (
	SynthesisDeepgram   = "deepgram"
	SynthesisOpenAI     = "openai"
	SynthesisElevenLabs = "elevenlabs"
	SynthesisNone       = "none"
)

// Config stores runtime configuration. Values come from defaults, then an optional
// TOML file, then environment variables (a .env file is loaded first).
type Config struct {
	Backend     BackendConfig     `toml:"backend"`
	Deepgram    DeepgramConfig    `toml:"deepgram"`
	OpenAI      OpenAIConfig      `toml:"openai"`
	ElevenLabs  ElevenLabsConfig  `toml:"elevenlabs"`
	Synthesis   SynthesisConfig   `toml:"synthesis"`
	Audio       AudioConfig       `toml:"audio"`
	Session     SessionConfig     `toml:"session"`
	Recognition RecognitionConfig `toml:"recognition"`
	AutoSend    AutoSendConfig    `toml:"autosend"`
	Vocabulary  VocabularyConfig  `toml:"vocabulary"`
	Log         LogConfig         `toml:"log"`

	// File is the TOML file that was applied, if any.
	File string `toml:"-"`
}

type BackendConfig struct {
	BaseURL       string        `toml:"base_url"`
	DictionaryURL string        `toml:"dictionary_url"`
	Timeout       time.Duration `toml:"timeout"`
}

type DeepgramConfig struct {
	APIKey          string        `toml:"api_key"`
	APIBaseURL      string        `toml:"api_base"`
	Model           string        `toml:"model"`
	Language        string        `toml:"language"`
	SmartFormat     bool          `toml:"smart_format"`
	Punctuate       bool          `toml:"punctuate"`
	Endpointing     int           `toml:"endpointing_ms"`
	KeepAlive       time.Duration `toml:"keepalive"`
	SpeakModel      string        `toml:"speak_model"`
	SpeakSampleRate int           `toml:"speak_sample_rate"`
}

type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	SpeechModel string  `toml:"speech_model"`
	Voice       string  `toml:"voice"`
	Speed       float64 `toml:"speed"`
}

type ElevenLabsConfig struct {
	APIKey     string `toml:"api_key"`
	VoiceID    string `toml:"voice_id"`
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	SampleRate int    `toml:"sample_rate"`
}

type SynthesisConfig struct {
	Provider    string        `toml:"provider"`
	Language    string        `toml:"language"`
	ResumeDelay time.Duration `toml:"resume_delay"`
	AutoPlay    bool          `toml:"autoplay"`
}

type AudioConfig struct {
	RecorderCommand string `toml:"recorder_command"`
	InputFormat     string `toml:"input_format"`
	InputDevice     string `toml:"input_device"`
	SampleRate      int    `toml:"sample_rate"`
	Channels        int    `toml:"channels"`
}

type SessionConfig struct {
	ChunkSize      int           `toml:"chunk_size"`
	StreamingGrace time.Duration `toml:"streaming_grace"`
	SilenceTimeout time.Duration `toml:"silence_timeout"`
}

type RecognitionConfig struct {
	Language       string        `toml:"language"`
	InterimResults bool          `toml:"interim_results"`
	SupportGrace   time.Duration `toml:"support_grace"`
	VAD            bool          `toml:"vad"`
	VADMode        int           `toml:"vad_mode"`
	// CorrectionsFile lists fixes for misrecognized words. A missing file is ignored.
	CorrectionsFile string `toml:"corrections_file"`
}

type AutoSendConfig struct {
	Delay       time.Duration `toml:"delay"`
	SettleDelay time.Duration `toml:"settle_delay"`
}

type VocabularyConfig struct {
	CacheSize int           `toml:"cache_size"`
	CacheTTL  time.Duration `toml:"cache_ttl"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
	Stderr bool   `toml:"stderr"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:       "http://localhost:3000/api",
			DictionaryURL: "https://api.dictionaryapi.dev/api/v2/entries/en",
			Timeout:       30 * time.Second,
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:      "https://api.deepgram.com/v1",
			Model:           "nova-2",
			SmartFormat:     true,
			Punctuate:       true,
			Endpointing:     300,
			KeepAlive:       8 * time.Second,
			SpeakModel:      "aura-2-thalia-en",
			SpeakSampleRate: 24000,
		},
		OpenAI: OpenAIConfig{
			SpeechModel: "tts-1",
			Voice:       "nova",
		},
		ElevenLabs: ElevenLabsConfig{
			Model:      "eleven_flash_v2_5",
			SampleRate: 24000,
		},
		Synthesis: SynthesisConfig{
			Provider:    SynthesisDeepgram,
			Language:    "en-US",
			ResumeDelay: 100 * time.Millisecond,
			AutoPlay:    true,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			SampleRate:      16000,
			Channels:        1,
		},
		Session: SessionConfig{
			ChunkSize:      4096,
			StreamingGrace: time.Second,
			SilenceTimeout: 8 * time.Second,
		},
		Recognition: RecognitionConfig{
			Language:       "en-US",
			InterimResults: true,
			SupportGrace:   time.Second,
			VAD:            true,
			VADMode:        2,
		},
		AutoSend: AutoSendConfig{
			Delay:       3 * time.Second,
			SettleDelay: 100 * time.Millisecond,
		},
		Vocabulary: VocabularyConfig{
			CacheSize: 256,
			CacheTTL:  time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load resolves configuration from .env, the optional TOML file, and the environment.
func Load() (Config, error) {
	envFile := envOrDefault("SPEAKFLUENT_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Defaults()

	path := strings.TrimSpace(os.Getenv("SPEAKFLUENT_CONFIG"))
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		} else {
			cfg.File = path
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "SpeakFluent", "config.toml")
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Backend.BaseURL = envOrDefault("SPEAKFLUENT_API_URL", cfg.Backend.BaseURL)
	cfg.Backend.DictionaryURL = envOrDefault("SPEAKFLUENT_DICTIONARY_URL", cfg.Backend.DictionaryURL)
	cfg.Backend.Timeout = envOrDefaultMillis("SPEAKFLUENT_API_TIMEOUT_MS", cfg.Backend.Timeout)

	cfg.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	cfg.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)
	cfg.Deepgram.Punctuate = envOrDefaultBool("DEEPGRAM_PUNCTUATE", cfg.Deepgram.Punctuate)
	cfg.Deepgram.Endpointing = envOrDefaultInt("DEEPGRAM_ENDPOINTING_MS", cfg.Deepgram.Endpointing)
	cfg.Deepgram.KeepAlive = envOrDefaultMillis("DEEPGRAM_KEEPALIVE_MS", cfg.Deepgram.KeepAlive)
	cfg.Deepgram.SpeakModel = envOrDefault("DEEPGRAM_SPEAK_MODEL", cfg.Deepgram.SpeakModel)
	cfg.Deepgram.SpeakSampleRate = envOrDefaultInt("DEEPGRAM_SPEAK_SAMPLE_RATE", cfg.Deepgram.SpeakSampleRate)

	cfg.OpenAI.APIKey = envOrDefault("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = envOrDefault("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.SpeechModel = envOrDefault("OPENAI_SPEECH_MODEL", cfg.OpenAI.SpeechModel)
	cfg.OpenAI.Voice = envOrDefault("OPENAI_SPEECH_VOICE", cfg.OpenAI.Voice)

	cfg.ElevenLabs.APIKey = envOrDefault("ELEVENLABS_API_KEY", cfg.ElevenLabs.APIKey)
	cfg.ElevenLabs.VoiceID = envOrDefault("ELEVENLABS_VOICE_ID", cfg.ElevenLabs.VoiceID)
	cfg.ElevenLabs.BaseURL = envOrDefault("ELEVENLABS_BASE_URL", cfg.ElevenLabs.BaseURL)
	cfg.ElevenLabs.Model = envOrDefault("ELEVENLABS_MODEL", cfg.ElevenLabs.Model)

	cfg.Synthesis.Provider = strings.ToLower(envOrDefault("SPEAKFLUENT_TTS_PROVIDER", cfg.Synthesis.Provider))
	cfg.Synthesis.Language = envOrDefault("SPEAKFLUENT_TTS_LANGUAGE", cfg.Synthesis.Language)
	cfg.Synthesis.ResumeDelay = envOrDefaultMillis("SPEAKFLUENT_TTS_RESUME_DELAY_MS", cfg.Synthesis.ResumeDelay)
	cfg.Synthesis.AutoPlay = envOrDefaultBool("SPEAKFLUENT_AUTOPLAY", cfg.Synthesis.AutoPlay)

	cfg.Audio.RecorderCommand = envOrDefault("SPEAKFLUENT_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("SPEAKFLUENT_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("SPEAKFLUENT_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.SampleRate = envOrDefaultInt("SPEAKFLUENT_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("SPEAKFLUENT_CHANNELS", cfg.Audio.Channels)

	cfg.Session.ChunkSize = envOrDefaultInt("SPEAKFLUENT_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)
	cfg.Session.StreamingGrace = time.Duration(firstNonNegativeInt(
		"SPEAKFLUENT_STREAMING_GRACE_MS", "DEEPGRAM_STREAMING_GRACE_MS", int(cfg.Session.StreamingGrace/time.Millisecond),
	)) * time.Millisecond
	cfg.Session.SilenceTimeout = envOrDefaultMillis("SPEAKFLUENT_SILENCE_TIMEOUT_MS", cfg.Session.SilenceTimeout)

	cfg.Recognition.Language = envOrDefault("SPEAKFLUENT_LANGUAGE", cfg.Recognition.Language)
	cfg.Recognition.InterimResults = envOrDefaultBool("SPEAKFLUENT_INTERIM_RESULTS", cfg.Recognition.InterimResults)
	cfg.Recognition.SupportGrace = envOrDefaultMillis("SPEAKFLUENT_SUPPORT_GRACE_MS", cfg.Recognition.SupportGrace)
	cfg.Recognition.VAD = envOrDefaultBool("SPEAKFLUENT_VAD", cfg.Recognition.VAD)
	cfg.Recognition.VADMode = envOrDefaultInt("SPEAKFLUENT_VAD_MODE", cfg.Recognition.VADMode)
	cfg.Recognition.CorrectionsFile = envOrDefault("SPEAKFLUENT_CORRECTIONS_FILE", cfg.Recognition.CorrectionsFile)

	cfg.AutoSend.Delay = envOrDefaultMillis("SPEAKFLUENT_AUTOSEND_DELAY_MS", cfg.AutoSend.Delay)
	cfg.AutoSend.SettleDelay = envOrDefaultMillis("SPEAKFLUENT_AUTOSEND_SETTLE_MS", cfg.AutoSend.SettleDelay)

	cfg.Vocabulary.CacheSize = envOrDefaultInt("SPEAKFLUENT_VOCABULARY_CACHE_SIZE", cfg.Vocabulary.CacheSize)
	cfg.Vocabulary.CacheTTL = envOrDefaultMillis("SPEAKFLUENT_VOCABULARY_CACHE_TTL_MS", cfg.Vocabulary.CacheTTL)

	cfg.Log.Level = envOrDefault("SPEAKFLUENT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Dir = envOrDefault("SPEAKFLUENT_LOG_DIR", cfg.Log.Dir)
	cfg.Log.Stderr = envOrDefaultBool("SPEAKFLUENT_LOG_STDERR", cfg.Log.Stderr)
}

// normalize clamps values that would break the pipeline back to defaults.
func normalize(cfg *Config) {
	defaults := Defaults()

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults.Session.ChunkSize
	}
	if cfg.Session.StreamingGrace < 0 {
		cfg.Session.StreamingGrace = defaults.Session.StreamingGrace
	}
	if cfg.Session.SilenceTimeout < 0 {
		cfg.Session.SilenceTimeout = 0
	}
	if cfg.AutoSend.Delay <= 0 {
		cfg.AutoSend.Delay = defaults.AutoSend.Delay
	}
	if cfg.AutoSend.SettleDelay < 0 {
		cfg.AutoSend.SettleDelay = defaults.AutoSend.SettleDelay
	}
	if cfg.Recognition.SupportGrace < 0 {
		cfg.Recognition.SupportGrace = defaults.Recognition.SupportGrace
	}
	if cfg.Recognition.VADMode < 0 || cfg.Recognition.VADMode > 3 {
		cfg.Recognition.VADMode = defaults.Recognition.VADMode
	}
	if cfg.Synthesis.ResumeDelay < 0 {
		cfg.Synthesis.ResumeDelay = defaults.Synthesis.ResumeDelay
	}
	switch cfg.Synthesis.Provider {
	case SynthesisDeepgram, SynthesisOpenAI, SynthesisElevenLabs, SynthesisNone:
	default:
		cfg.Synthesis.Provider = defaults.Synthesis.Provider
	}
	if cfg.Vocabulary.CacheSize <= 0 {
		cfg.Vocabulary.CacheSize = defaults.Vocabulary.CacheSize
	}
	if cfg.Vocabulary.CacheTTL <= 0 {
		cfg.Vocabulary.CacheTTL = defaults.Vocabulary.CacheTTL
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = defaults.Backend.Timeout
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func firstNonNegativeInt(primary string, secondary string, fallback int) int {
	for _, key := range []string{primary, secondary} {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}
