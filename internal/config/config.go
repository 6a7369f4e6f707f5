package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	STT         STTConfig         `yaml:"stt"`
	Emotion     EmotionConfig     `yaml:"emotion"`
	Dialect     DialectConfig     `yaml:"dialect"`
	Translation TranslationConfig `yaml:"translation"`
	TTS         TTSConfig         `yaml:"tts"`
	Sessions    SessionConfig     `yaml:"sessions"`
	RequestLog  RequestLogConfig  `yaml:"request_log"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type PipelineConfig struct {
	TotalBudgetMS      int      `yaml:"total_budget_ms"`
	StageBudgetMS      int      `yaml:"stage_budget_ms"`
	SoftStageBudgetMS  int      `yaml:"soft_stage_budget_ms"`
	SupportedLanguages []string `yaml:"supported_languages"`
	FallbackLanguage   string   `yaml:"fallback_language"`
	SilenceRMS         float64  `yaml:"silence_rms"`
	AudioWeight        float64  `yaml:"audio_weight"`
	TextWeight         float64  `yaml:"text_weight"`
	TextMinConfidence  float64  `yaml:"text_min_confidence"`
}

type STTConfig struct {
	Mode      string `yaml:"mode"`
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type EmotionConfig struct {
	AudioMode      string   `yaml:"audio_mode"`
	AudioCommand   string   `yaml:"audio_command"`
	AudioModelPath string   `yaml:"audio_model_path"`
	TextEnabled    bool     `yaml:"text_enabled"`
	TextMode       string   `yaml:"text_mode"`
	TextCommand    string   `yaml:"text_command"`
	TextLanguages  []string `yaml:"text_languages"`
}

type DialectConfig struct {
	Language          string   `yaml:"language"`
	TelanganaKeywords []string `yaml:"telangana_keywords"`
	AndhraKeywords    []string `yaml:"andhra_keywords"`
}

type TranslationConfig struct {
	Mode     string      `yaml:"mode"` // mock, exec, http
	Command  string      `yaml:"command"`
	Endpoint string      `yaml:"endpoint"`
	Model    string      `yaml:"model"`
	Cache    CacheConfig `yaml:"cache"`
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	Password   string `yaml:"password"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type TTSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Mode       string `yaml:"mode"`
	Command    string `yaml:"command"`
	Voice      string `yaml:"voice"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type SessionConfig struct {
	Dir            string `yaml:"dir"`
	IndexPath      string `yaml:"index_path"`
	RetentionHours int    `yaml:"retention_hours"`
}

type RequestLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

func Default() Config {
	return Config{
		RuntimeName: "vaani-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Pipeline: PipelineConfig{
			TotalBudgetMS:      15000,
			StageBudgetMS:      10000,
			SoftStageBudgetMS:  2000,
			SupportedLanguages: []string{"en", "te", "hi"},
			FallbackLanguage:   "en",
			SilenceRMS:         1e-4,
			AudioWeight:        0.6,
			TextWeight:         0.4,
			TextMinConfidence:  0.40,
		},
		STT: STTConfig{
			Mode:     "mock",
			Language: "en",
		},
		Emotion: EmotionConfig{
			AudioMode:     "mock",
			TextEnabled:   true,
			TextMode:      "mock",
			TextLanguages: []string{"en"},
		},
		Dialect: DialectConfig{
			Language:          "te",
			TelanganaKeywords: []string{"ra", "emo", "inka enduku"},
			AndhraKeywords:    []string{"ayya", "andi", "kadha"},
		},
		Translation: TranslationConfig{
			Mode: "mock",
			Cache: CacheConfig{
				Enabled:    false,
				RedisAddr:  "localhost:6379",
				TTLSeconds: 3600,
			},
		},
		TTS: TTSConfig{
			Enabled:    true,
			Mode:       "mock",
			SampleRate: 22050,
			Channels:   1,
		},
		Sessions: SessionConfig{
			Dir:            "./data/sessions",
			IndexPath:      "./data/vaani-sessions.db",
			RetentionHours: 24,
		},
		RequestLog: RequestLogConfig{
			Enabled:       true,
			Path:          "./data/vaani-requests.db",
			RetentionDays: 30,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VAANI_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VAANI_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VAANI_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VAANI_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VAANI_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VAANI_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VAANI_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VAANI_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "VAANI_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VAANI_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VAANI_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VAANI_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VAANI_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VAANI_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VAANI_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VAANI_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.TotalBudgetMS, "VAANI_PIPELINE_TOTAL_BUDGET_MS")
	overrideInt(&cfg.Pipeline.StageBudgetMS, "VAANI_PIPELINE_STAGE_BUDGET_MS")
	overrideInt(&cfg.Pipeline.SoftStageBudgetMS, "VAANI_PIPELINE_SOFT_STAGE_BUDGET_MS")
	overrideStringSlice(&cfg.Pipeline.SupportedLanguages, "VAANI_PIPELINE_SUPPORTED_LANGUAGES")
	overrideString(&cfg.Pipeline.FallbackLanguage, "VAANI_PIPELINE_FALLBACK_LANGUAGE")
	overrideFloat(&cfg.Pipeline.SilenceRMS, "VAANI_PIPELINE_SILENCE_RMS")
	overrideFloat(&cfg.Pipeline.AudioWeight, "VAANI_PIPELINE_AUDIO_WEIGHT")
	overrideFloat(&cfg.Pipeline.TextWeight, "VAANI_PIPELINE_TEXT_WEIGHT")
	overrideFloat(&cfg.Pipeline.TextMinConfidence, "VAANI_PIPELINE_TEXT_MIN_CONFIDENCE")
	overrideString(&cfg.STT.Mode, "VAANI_STT_MODE")
	overrideString(&cfg.STT.Command, "VAANI_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "VAANI_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "VAANI_STT_LANGUAGE")
	overrideString(&cfg.Emotion.AudioMode, "VAANI_EMOTION_AUDIO_MODE")
	overrideString(&cfg.Emotion.AudioCommand, "VAANI_EMOTION_AUDIO_COMMAND")
	overrideString(&cfg.Emotion.AudioModelPath, "VAANI_EMOTION_AUDIO_MODEL_PATH")
	overrideBool(&cfg.Emotion.TextEnabled, "VAANI_EMOTION_TEXT_ENABLED")
	overrideString(&cfg.Emotion.TextMode, "VAANI_EMOTION_TEXT_MODE")
	overrideString(&cfg.Emotion.TextCommand, "VAANI_EMOTION_TEXT_COMMAND")
	overrideStringSlice(&cfg.Emotion.TextLanguages, "VAANI_EMOTION_TEXT_LANGUAGES")
	overrideString(&cfg.Dialect.Language, "VAANI_DIALECT_LANGUAGE")
	overrideStringSlice(&cfg.Dialect.TelanganaKeywords, "VAANI_DIALECT_TELANGANA_KEYWORDS")
	overrideStringSlice(&cfg.Dialect.AndhraKeywords, "VAANI_DIALECT_ANDHRA_KEYWORDS")
	overrideString(&cfg.Translation.Mode, "VAANI_TRANSLATION_MODE")
	overrideString(&cfg.Translation.Command, "VAANI_TRANSLATION_COMMAND")
	overrideString(&cfg.Translation.Endpoint, "VAANI_TRANSLATION_ENDPOINT")
	overrideString(&cfg.Translation.Model, "VAANI_TRANSLATION_MODEL")
	overrideBool(&cfg.Translation.Cache.Enabled, "VAANI_TRANSLATION_CACHE_ENABLED")
	overrideString(&cfg.Translation.Cache.RedisAddr, "VAANI_TRANSLATION_CACHE_REDIS_ADDR")
	overrideInt(&cfg.Translation.Cache.RedisDB, "VAANI_TRANSLATION_CACHE_REDIS_DB")
	overrideString(&cfg.Translation.Cache.Password, "VAANI_TRANSLATION_CACHE_PASSWORD")
	overrideInt(&cfg.Translation.Cache.TTLSeconds, "VAANI_TRANSLATION_CACHE_TTL_SECONDS")
	overrideBool(&cfg.TTS.Enabled, "VAANI_TTS_ENABLED")
	overrideString(&cfg.TTS.Mode, "VAANI_TTS_MODE")
	overrideString(&cfg.TTS.Command, "VAANI_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "VAANI_TTS_VOICE")
	overrideInt(&cfg.TTS.SampleRate, "VAANI_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "VAANI_TTS_CHANNELS")
	overrideString(&cfg.Sessions.Dir, "VAANI_SESSIONS_DIR")
	overrideString(&cfg.Sessions.IndexPath, "VAANI_SESSIONS_INDEX_PATH")
	overrideInt(&cfg.Sessions.RetentionHours, "VAANI_SESSIONS_RETENTION_HOURS")
	overrideBool(&cfg.RequestLog.Enabled, "VAANI_REQUEST_LOG_ENABLED")
	overrideString(&cfg.RequestLog.Path, "VAANI_REQUEST_LOG_PATH")
	overrideInt(&cfg.RequestLog.RetentionDays, "VAANI_REQUEST_LOG_RETENTION_DAYS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Pipeline.TotalBudgetMS <= 0 {
		return errors.New("pipeline.total_budget_ms must be positive")
	}
	if cfg.Pipeline.StageBudgetMS <= 0 || cfg.Pipeline.StageBudgetMS > cfg.Pipeline.TotalBudgetMS {
		return errors.New("pipeline.stage_budget_ms must be positive and no greater than the total budget")
	}
	if cfg.Pipeline.SoftStageBudgetMS <= 0 || cfg.Pipeline.SoftStageBudgetMS > cfg.Pipeline.StageBudgetMS {
		return errors.New("pipeline.soft_stage_budget_ms must be positive and no greater than the stage budget")
	}
	if len(cfg.Pipeline.SupportedLanguages) == 0 {
		return errors.New("pipeline.supported_languages must not be empty")
	}
	if cfg.Pipeline.FallbackLanguage == "" {
		return errors.New("pipeline.fallback_language must not be empty")
	}
	if !containsString(cfg.Pipeline.SupportedLanguages, cfg.Pipeline.FallbackLanguage) {
		return errors.New("pipeline.fallback_language must be one of pipeline.supported_languages")
	}
	if cfg.Pipeline.SilenceRMS <= 0 {
		return errors.New("pipeline.silence_rms must be positive")
	}
	if cfg.Pipeline.AudioWeight < 0 || cfg.Pipeline.TextWeight < 0 {
		return errors.New("pipeline fusion weights must not be negative")
	}
	if cfg.Pipeline.AudioWeight+cfg.Pipeline.TextWeight <= 0 {
		return errors.New("pipeline fusion weights must not both be zero")
	}
	if cfg.Pipeline.TextMinConfidence < 0 || cfg.Pipeline.TextMinConfidence > 1 {
		return errors.New("pipeline.text_min_confidence must be between 0 and 1")
	}
	switch cfg.STT.Mode {
	case "mock", "exec":
	default:
		return errors.New("stt.mode must be one of mock|exec")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	switch cfg.Emotion.AudioMode {
	case "mock", "exec":
	default:
		return errors.New("emotion.audio_mode must be one of mock|exec")
	}
	if cfg.Emotion.AudioMode == "exec" && cfg.Emotion.AudioCommand == "" {
		return errors.New("emotion.audio_command must be set when audio_mode=exec")
	}
	if cfg.Emotion.TextEnabled {
		switch cfg.Emotion.TextMode {
		case "mock", "exec":
		default:
			return errors.New("emotion.text_mode must be one of mock|exec")
		}
		if cfg.Emotion.TextMode == "exec" && cfg.Emotion.TextCommand == "" {
			return errors.New("emotion.text_command must be set when text_mode=exec")
		}
	}
	if cfg.Dialect.Language == "" {
		return errors.New("dialect.language must not be empty")
	}
	switch cfg.Translation.Mode {
	case "mock", "exec", "http":
	default:
		return errors.New("translation.mode must be one of mock|exec|http")
	}
	if cfg.Translation.Mode == "exec" && cfg.Translation.Command == "" {
		return errors.New("translation.command must be set when mode=exec")
	}
	if cfg.Translation.Mode == "http" && cfg.Translation.Endpoint == "" {
		return errors.New("translation.endpoint must be set when mode=http")
	}
	if cfg.Translation.Cache.Enabled {
		if cfg.Translation.Cache.RedisAddr == "" {
			return errors.New("translation.cache.redis_addr must be set when the cache is enabled")
		}
		if cfg.Translation.Cache.TTLSeconds <= 0 {
			return errors.New("translation.cache.ttl_seconds must be positive")
		}
	}
	if cfg.TTS.Enabled {
		switch cfg.TTS.Mode {
		case "mock", "exec":
		default:
			return errors.New("tts.mode must be one of mock|exec")
		}
		if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.Channels <= 0 {
			return errors.New("tts.channels must be positive")
		}
	}
	if cfg.Sessions.Dir == "" {
		return errors.New("sessions.dir must not be empty")
	}
	if cfg.Sessions.IndexPath == "" {
		return errors.New("sessions.index_path must not be empty")
	}
	if cfg.Sessions.RetentionHours < 0 {
		return errors.New("sessions.retention_hours must be >= 0")
	}
	if cfg.RequestLog.Enabled {
		if cfg.RequestLog.Path == "" {
			return errors.New("request_log.path must not be empty when enabled")
		}
		if cfg.RequestLog.RetentionDays < 0 {
			return errors.New("request_log.retention_days must be >= 0")
		}
	}
	return nil
}

func containsString(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
