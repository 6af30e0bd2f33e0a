package bootstrap

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"speakfluent/internal/audio"
	"speakfluent/internal/backend"
	"speakfluent/internal/config"
	"speakfluent/internal/corrections"
	"speakfluent/internal/logging"
	"speakfluent/internal/ports"
	"speakfluent/internal/providers/deepgram"
	"speakfluent/internal/providers/elevenlabs"
	"speakfluent/internal/providers/openai"
	"speakfluent/internal/tts"
	"speakfluent/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     *logging.Logger
	Account    *usecase.Account
	Chat       *usecase.ChatService
	Vocabulary *usecase.VocabularyService
	Player     *usecase.SpeechPlayer
	Voice      *usecase.VoiceInputController

	speech *tts.Engine
}

// Build wires all backend dependencies for the current runtime. send receives text the
// voice input submits, either by auto-send or by an explicit send.
func Build(events ports.EventSink, send func(text string)) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Dir:    cfg.Log.Dir,
		Stderr: cfg.Log.Stderr,
	})
	if err != nil {
		return Services{}, err
	}
	log := logger.Logger
	log.Info("starting", "config_file", cfg.File, "log_file", logger.LogFile)

	fixes, err := corrections.Load(correctionsPath(cfg.Recognition.CorrectionsFile))
	if err != nil {
		_ = logger.Close()
		return Services{}, err
	}

	client := backend.NewClient(backend.Config{
		BaseURL:       cfg.Backend.BaseURL,
		DictionaryURL: cfg.Backend.DictionaryURL,
		Timeout:       cfg.Backend.Timeout,
	})

	speech := tts.NewEngine(newSynthesizer(cfg, log), audio.NewPortAudioSink(), log)
	synthesis, err := usecase.NewSynthesisAdapter(speech, usecase.SynthesisAdapterConfig{
		Language:    cfg.Synthesis.Language,
		ResumeDelay: cfg.Synthesis.ResumeDelay,
		Logger:      log,
	})
	if err != nil {
		log.Info("speech synthesis unavailable", "provider", cfg.Synthesis.Provider, "error", err)
	}
	player := usecase.NewSpeechPlayer(synthesis, events, log)
	player.SetAutoPlay(cfg.Synthesis.AutoPlay)

	voiceCfg := usecase.VoiceInputConfig{
		Recognition: usecase.RecognitionAdapterConfig{
			Recognition: ports.RecognitionConfig{
				Language:       cfg.Recognition.Language,
				InterimResults: cfg.Recognition.InterimResults,
			},
			Logger: log,
		},
		AutoSend: usecase.AutoSendConfig{
			Delay:       cfg.AutoSend.Delay,
			SettleDelay: cfg.AutoSend.SettleDelay,
		},
		SupportGrace: cfg.Recognition.SupportGrace,
		Logger:       log,
	}
	if fixes.Len() > 0 {
		voiceCfg.Correct = fixes.Apply
	}
	voice := usecase.NewVoiceInputController(newRecognitionEngine(cfg, log), player, events, send, voiceCfg)

	return Services{
		Config:  cfg,
		Logger:  logger,
		Account: usecase.NewAccount(client, log),
		Chat:    usecase.NewChatService(client, events, log),
		Vocabulary: usecase.NewVocabularyService(client, usecase.VocabularyConfig{
			CacheSize: cfg.Vocabulary.CacheSize,
			CacheTTL:  cfg.Vocabulary.CacheTTL,
		}, log),
		Player: player,
		Voice:  voice,
		speech: speech,
	}, nil
}

// Close stops recording and playback, then flushes the log.
func (s Services) Close() error {
	var errs []error
	if s.Voice != nil {
		errs = append(errs, s.Voice.Close())
	}
	if s.speech != nil {
		errs = append(errs, s.speech.Close())
	}
	if s.Logger != nil {
		errs = append(errs, s.Logger.Close())
	}
	return errors.Join(errs...)
}

func newRecognitionEngine(cfg config.Config, logger *slog.Logger) ports.RecognitionEngine {
	if strings.TrimSpace(cfg.Deepgram.APIKey) == "" {
		logger.Info("DEEPGRAM_API_KEY is not set, speech recognition disabled")
		return nil
	}

	recognizerCfg := usecase.StreamingRecognizerConfig{
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		Streaming: ports.StreamingConfig{
			SampleRate:     cfg.Audio.SampleRate,
			Channels:       cfg.Audio.Channels,
			Encoding:       "linear16",
			InterimResults: cfg.Recognition.InterimResults,
		},
		ChunkSize:      cfg.Session.ChunkSize,
		StreamingGrace: cfg.Session.StreamingGrace,
		SilenceTimeout: cfg.Session.SilenceTimeout,
		Logger:         logger,
	}
	if cfg.Recognition.VAD && cfg.Audio.Channels == 1 {
		sampleRate, mode := cfg.Audio.SampleRate, cfg.Recognition.VADMode
		recognizerCfg.NewVoiceDetector = func() (ports.VoiceActivityDetector, error) {
			return audio.NewWebRTCDetector(sampleRate, mode)
		}
	}

	return usecase.NewStreamingRecognizer(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		deepgram.NewProvider(deepgramConfig(cfg)),
		recognizerCfg,
	)
}

// newSynthesizer returns nil when the selected provider is off or has no key.
func newSynthesizer(cfg config.Config, logger *slog.Logger) ports.SpeechSynthesizer {
	switch cfg.Synthesis.Provider {
	case config.SynthesisDeepgram:
		if cfg.Deepgram.APIKey == "" {
			return nil
		}
		return deepgram.NewSpeaker(deepgramConfig(cfg), logger)
	case config.SynthesisOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil
		}
		return openai.NewSpeaker(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.SpeechModel,
			Voice:   cfg.OpenAI.Voice,
			Speed:   cfg.OpenAI.Speed,
		})
	case config.SynthesisElevenLabs:
		if cfg.ElevenLabs.APIKey == "" || cfg.ElevenLabs.VoiceID == "" {
			return nil
		}
		return elevenlabs.NewSpeaker(elevenlabs.Config{
			APIKey:     cfg.ElevenLabs.APIKey,
			VoiceID:    cfg.ElevenLabs.VoiceID,
			BaseURL:    cfg.ElevenLabs.BaseURL,
			Model:      cfg.ElevenLabs.Model,
			SampleRate: cfg.ElevenLabs.SampleRate,
		})
	default:
		return nil
	}
}

func deepgramConfig(cfg config.Config) deepgram.Config {
	return deepgram.Config{
		APIKey:          cfg.Deepgram.APIKey,
		APIBaseURL:      cfg.Deepgram.APIBaseURL,
		Model:           cfg.Deepgram.Model,
		Language:        cfg.Deepgram.Language,
		SmartFormat:     cfg.Deepgram.SmartFormat,
		Punctuate:       cfg.Deepgram.Punctuate,
		Endpointing:     cfg.Deepgram.Endpointing,
		KeepAlive:       cfg.Deepgram.KeepAlive,
		SpeakModel:      cfg.Deepgram.SpeakModel,
		SpeakSampleRate: cfg.Deepgram.SpeakSampleRate,
	}
}

// correctionsPath falls back to corrections.rules beside the config file.
func correctionsPath(configured string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "SpeakFluent", "corrections.rules")
}
