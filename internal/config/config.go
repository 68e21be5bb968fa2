package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the WhatsApp health assistant.
type Config struct {
	BindAddr         string
	PublicBaseURL    string
	ShutdownTimeout  time.Duration
	EventTimeout     time.Duration
	ScratchDir       string
	PublicDir        string
	AssetTTL         time.Duration
	MetricsNamespace string
	DashboardURL     string
	AllowAnyOrigin   bool

	LogLevel  string
	LogFormat string

	// ProviderMode is auto, live or mock. Auto uses mock providers when
	// the inference or speech keys are missing.
	ProviderMode string

	TwilioSID               string
	TwilioAuthToken         string
	TwilioFrom              string
	TwilioValidateSignature bool

	GroqAPIKey     string
	GroqBaseURL    string
	LLMVisionModel string
	LLMTextModel   string
	LLMTimeout     time.Duration

	MedicalAPIURL        string
	TranslateFallbackURL string
	AnswerMinWords       int

	SarvamAPIKey     string
	SarvamBaseURL    string
	SarvamTTSModel   string
	SarvamTTSSpeaker string
	SarvamSTTModel   string
	SarvamRateLimit  float64

	TTSMaxChunkChars int
	TTSParallelism   int
	TTSSampleRate    int

	AudioBackend string
	FFmpegPath   string

	SessionStore string
	DatabaseURL  string
	RedisURL     string
	SessionTTL   time.Duration
	DedupeTTL    time.Duration
}

// LoadEnvFile merges a dotenv file into the process environment. Variables
// already set win. A missing file is not an error unless required.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		PublicBaseURL:        strings.TrimRight(envOrDefault("APP_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		ScratchDir:           envOrDefault("APP_SCRATCH_DIR", os.TempDir()),
		PublicDir:            envOrDefault("APP_PUBLIC_DIR", "public"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "saathi"),
		DashboardURL:         envOrDefault("APP_DASHBOARD_URL", "https://swaasthya-saathi.vercel.app/"),
		LogLevel:             envOrDefault("LOG_LEVEL", "info"),
		LogFormat:            envOrDefault("LOG_FORMAT", "text"),
		ProviderMode:         strings.ToLower(envOrDefault("PROVIDER_MODE", "auto")),
		TwilioSID:            stringsTrimSpace("TWILIO_SID"),
		TwilioAuthToken:      stringsTrimSpace("TWILIO_AUTH_TOKEN"),
		TwilioFrom:           envOrDefault("TWILIO_FROM", "whatsapp:+14155238886"),
		GroqAPIKey:           stringsTrimSpace("GROQ_API_KEY"),
		GroqBaseURL:          envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMVisionModel:       envOrDefault("LLM_VISION_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
		LLMTextModel:         envOrDefault("LLM_TEXT_MODEL", "llama-3.3-70b-versatile"),
		MedicalAPIURL:        stringsTrimSpace("MEDICAL_API_URL"),
		TranslateFallbackURL: envOrDefault("TRANSLATE_FALLBACK_URL", "https://translate.googleapis.com/translate_a/single"),
		SarvamAPIKey:         stringsTrimSpace("SARVAM_API_KEY"),
		SarvamBaseURL:        envOrDefault("SARVAM_BASE_URL", "https://api.sarvam.ai"),
		SarvamTTSModel:       envOrDefault("SARVAM_TTS_MODEL", "bulbul:v2"),
		SarvamTTSSpeaker:     envOrDefault("SARVAM_TTS_SPEAKER", "anushka"),
		SarvamSTTModel:       envOrDefault("SARVAM_STT_MODEL", "saarika:v2.5"),
		AudioBackend:         strings.ToLower(envOrDefault("AUDIO_BACKEND", "ffmpeg")),
		FFmpegPath:           envOrDefault("FFMPEG_PATH", "ffmpeg"),
		SessionStore:         strings.ToLower(envOrDefault("SESSION_STORE", "auto")),
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		RedisURL:             stringsTrimSpace("REDIS_URL"),
		ShutdownTimeout:      15 * time.Second,
		EventTimeout:         2 * time.Minute,
		AssetTTL:             24 * time.Hour,
		LLMTimeout:           60 * time.Second,
		SessionTTL:           24 * time.Hour,
		DedupeTTL:            time.Hour,
		SarvamRateLimit:      5,
		AnswerMinWords:       260,
		TTSMaxChunkChars:     500,
		TTSParallelism:       2,
		TTSSampleRate:        22050,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.EventTimeout, err = durationFromEnv("APP_EVENT_TIMEOUT", cfg.EventTimeout); err != nil {
		return Config{}, err
	}
	if cfg.AssetTTL, err = durationFromEnv("APP_ASSET_TTL", cfg.AssetTTL); err != nil {
		return Config{}, err
	}
	if cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationFromEnv("SESSION_TTL", cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.DedupeTTL, err = durationFromEnv("DEDUPE_TTL", cfg.DedupeTTL); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	// Signature checks default on whenever an auth token is configured.
	if cfg.TwilioValidateSignature, err = boolFromEnv("TWILIO_VALIDATE_SIGNATURE", cfg.TwilioAuthToken != ""); err != nil {
		return Config{}, err
	}
	if cfg.AnswerMinWords, err = intFromEnv("ANSWER_MIN_WORDS", cfg.AnswerMinWords); err != nil {
		return Config{}, err
	}
	if cfg.TTSMaxChunkChars, err = intFromEnv("TTS_MAX_CHUNK_CHARS", cfg.TTSMaxChunkChars); err != nil {
		return Config{}, err
	}
	if cfg.TTSParallelism, err = intFromEnv("TTS_PARALLELISM", cfg.TTSParallelism); err != nil {
		return Config{}, err
	}
	if cfg.TTSSampleRate, err = intFromEnv("TTS_SAMPLE_RATE", cfg.TTSSampleRate); err != nil {
		return Config{}, err
	}
	if cfg.SarvamRateLimit, err = floatFromEnv("SARVAM_RATE_LIMIT", cfg.SarvamRateLimit); err != nil {
		return Config{}, err
	}

	if cfg.TTSMaxChunkChars <= 0 {
		return Config{}, fmt.Errorf("TTS_MAX_CHUNK_CHARS must be positive")
	}
	if cfg.TTSParallelism < 1 {
		return Config{}, fmt.Errorf("TTS_PARALLELISM must be at least 1")
	}
	if cfg.TTSSampleRate <= 0 {
		return Config{}, fmt.Errorf("TTS_SAMPLE_RATE must be positive")
	}
	if cfg.EventTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_EVENT_TIMEOUT must be at least 5s")
	}
	if cfg.SarvamRateLimit <= 0 {
		return Config{}, fmt.Errorf("SARVAM_RATE_LIMIT must be positive")
	}
	if cfg.TwilioValidateSignature && cfg.TwilioAuthToken == "" {
		return Config{}, fmt.Errorf("TWILIO_VALIDATE_SIGNATURE requires TWILIO_AUTH_TOKEN")
	}
	switch cfg.ProviderMode {
	case "auto", "live", "mock":
	default:
		return Config{}, fmt.Errorf("PROVIDER_MODE must be auto, live or mock")
	}
	switch cfg.AudioBackend {
	case "ffmpeg", "wav":
	default:
		return Config{}, fmt.Errorf("AUDIO_BACKEND must be ffmpeg or wav")
	}
	switch cfg.SessionStore {
	case "auto", "memory", "postgres", "redis":
	default:
		return Config{}, fmt.Errorf("SESSION_STORE must be auto, memory, postgres or redis")
	}

	return cfg, nil
}

// UseMockProviders reports whether inference and speech run offline.
func (c Config) UseMockProviders() bool {
	switch c.ProviderMode {
	case "mock":
		return true
	case "live":
		return false
	default:
		return c.GroqAPIKey == "" || c.SarvamAPIKey == ""
	}
}

// SetupLogging installs the process-wide slog handler.
func SetupLogging(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
