package models

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaani-labs/vaani-core/internal/config"
	"github.com/vaani-labs/vaani-core/internal/dialect"
	"github.com/vaani-labs/vaani-core/internal/emotion"
	"github.com/vaani-labs/vaani-core/internal/stt"
	"github.com/vaani-labs/vaani-core/internal/translate"
	"github.com/vaani-labs/vaani-core/internal/tts"
)

// Registry holds every inference adapter for the process lifetime. It is
// built once at startup and shared read-only across concurrent requests;
// each adapter serializes access to its own model state internally.
type Registry struct {
	Recognizer   stt.Recognizer
	AudioEmotion emotion.AudioPredictor
	TextEmotion  emotion.TextPredictor
	Dialect      dialect.Detector
	Translator   translate.Translator
	Synthesizer  tts.Synthesizer

	redis *redis.Client
	log   *slog.Logger
}

// Build constructs all adapters according to configuration.
func Build(cfg config.Config, log *slog.Logger) (*Registry, error) {
	r := &Registry{log: log.With(slog.String("component", "model-registry"))}

	recognizer, err := buildRecognizer(cfg.STT)
	if err != nil {
		return nil, err
	}
	r.Recognizer = stt.SilenceAware(recognizer)

	r.AudioEmotion, err = buildAudioEmotion(cfg.Emotion)
	if err != nil {
		return nil, err
	}

	if cfg.Emotion.TextEnabled {
		r.TextEmotion, err = buildTextEmotion(cfg.Emotion)
		if err != nil {
			return nil, err
		}
	}

	r.Dialect = dialect.NewClassifier(cfg.Dialect)

	r.Translator, err = buildTranslator(cfg.Translation)
	if err != nil {
		return nil, err
	}
	if cfg.Translation.Cache.Enabled {
		r.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Translation.Cache.RedisAddr,
			Password: cfg.Translation.Cache.Password,
			DB:       cfg.Translation.Cache.RedisDB,
		})
		ttl := time.Duration(cfg.Translation.Cache.TTLSeconds) * time.Second
		r.Translator = translate.NewCachedTranslator(r.Translator, r.redis, ttl, log)
		r.log.Info("translation cache enabled", slog.String("redis_addr", cfg.Translation.Cache.RedisAddr))
	}

	r.Synthesizer, err = buildSynthesizer(cfg.TTS)
	if err != nil {
		return nil, err
	}

	r.log.Info("model registry built",
		slog.String("stt_mode", cfg.STT.Mode),
		slog.String("audio_emotion_mode", cfg.Emotion.AudioMode),
		slog.Bool("text_emotion", cfg.Emotion.TextEnabled),
		slog.String("translation_mode", cfg.Translation.Mode),
		slog.Bool("tts_enabled", cfg.TTS.Enabled))

	return r, nil
}

// Close tears down resources owned by the registry.
func (r *Registry) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

func buildRecognizer(cfg config.STTConfig) (stt.Recognizer, error) {
	switch cfg.Mode {
	case "exec":
		return stt.NewExecRecognizer(cfg)
	case "mock":
		return stt.NewMockRecognizer(cfg.Language), nil
	default:
		return nil, fmt.Errorf("unsupported stt mode %q", cfg.Mode)
	}
}

func buildAudioEmotion(cfg config.EmotionConfig) (emotion.AudioPredictor, error) {
	switch cfg.AudioMode {
	case "exec":
		return emotion.NewExecAudioPredictor(cfg.AudioCommand, cfg.AudioModelPath)
	case "mock":
		return emotion.NewMockAudioPredictor(), nil
	default:
		return nil, fmt.Errorf("unsupported audio emotion mode %q", cfg.AudioMode)
	}
}

func buildTextEmotion(cfg config.EmotionConfig) (emotion.TextPredictor, error) {
	switch cfg.TextMode {
	case "exec":
		return emotion.NewExecTextPredictor(cfg.TextCommand)
	case "mock":
		return emotion.NewMockTextPredictor(), nil
	default:
		return nil, fmt.Errorf("unsupported text emotion mode %q", cfg.TextMode)
	}
}

func buildTranslator(cfg config.TranslationConfig) (translate.Translator, error) {
	switch cfg.Mode {
	case "exec":
		return translate.NewExecTranslator(cfg.Command)
	case "http":
		return translate.NewHTTPTranslator(cfg.Endpoint, cfg.Model), nil
	case "mock":
		return translate.NewMockTranslator(), nil
	default:
		return nil, fmt.Errorf("unsupported translation mode %q", cfg.Mode)
	}
}

func buildSynthesizer(cfg config.TTSConfig) (tts.Synthesizer, error) {
	if !cfg.Enabled {
		return tts.NewUnavailableSynth(), nil
	}
	switch cfg.Mode {
	case "exec":
		return tts.NewExecSynth(cfg.Command, cfg.Voice, cfg.SampleRate, cfg.Channels)
	case "mock":
		return tts.NewMockSynth(cfg.SampleRate, cfg.Channels), nil
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}
