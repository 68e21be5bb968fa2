package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.TTSMaxChunkChars != 500 || cfg.TTSParallelism != 2 {
		t.Fatalf("TTS chunking = %d/%d, want 500/2", cfg.TTSMaxChunkChars, cfg.TTSParallelism)
	}
	if cfg.EventTimeout != 2*time.Minute {
		t.Fatalf("EventTimeout = %v, want 2m", cfg.EventTimeout)
	}
	if cfg.TwilioValidateSignature {
		t.Fatal("TwilioValidateSignature = true without an auth token")
	}
	if !cfg.UseMockProviders() {
		t.Fatal("UseMockProviders() = false without provider keys")
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_PUBLIC_BASE_URL", "https://saathi.example/")
	t.Setenv("APP_EVENT_TIMEOUT", "45s")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TTS_PARALLELISM", "4")
	t.Setenv("SESSION_STORE", "REDIS")
	t.Setenv("GROQ_API_KEY", "g")
	t.Setenv("SARVAM_API_KEY", "s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PublicBaseURL != "https://saathi.example" {
		t.Fatalf("PublicBaseURL = %q, want trailing slash trimmed", cfg.PublicBaseURL)
	}
	if cfg.EventTimeout != 45*time.Second || cfg.TTSParallelism != 4 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.TwilioValidateSignature {
		t.Fatal("TwilioValidateSignature = false with an auth token")
	}
	if cfg.SessionStore != "redis" {
		t.Fatalf("SessionStore = %q, want redis", cfg.SessionStore)
	}
	if cfg.UseMockProviders() {
		t.Fatal("UseMockProviders() = true with both keys")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"TTS_MAX_CHUNK_CHARS":  "0",
		"TTS_PARALLELISM":      "0",
		"APP_EVENT_TIMEOUT":    "1s",
		"AUDIO_BACKEND":        "sox",
		"SESSION_STORE":        "mongo",
		"PROVIDER_MODE":        "maybe",
		"LLM_TIMEOUT":          "soon",
		"APP_ALLOW_ANY_ORIGIN": "perhaps",
	}
	for key, value := range cases {
		setCoreEnvEmpty(t)
		t.Setenv(key, value)
		if _, err := Load(); err == nil {
			t.Fatalf("Load() with %s=%q error = nil, want error", key, value)
		}
	}
}

func TestParseErrorNamesKey(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("SESSION_TTL", "forever")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SESSION_TTL parse error") {
		t.Fatalf("Load() error = %v, want SESSION_TTL parse error", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	setCoreEnvEmpty(t)
	os.Unsetenv("APP_BIND_ADDR")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("APP_BIND_ADDR=:7070\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("LOG_LEVEL", "warn")

	if err := LoadEnvFile(path, true); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":7070" {
		t.Fatalf("BindAddr = %q, want value from env file", cfg.BindAddr)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want existing environment to win", cfg.LogLevel)
	}

	missing := filepath.Join(t.TempDir(), "absent.env")
	if err := LoadEnvFile(missing, false); err != nil {
		t.Fatalf("LoadEnvFile(optional missing) error = %v", err)
	}
	if err := LoadEnvFile(missing, true); err == nil {
		t.Fatal("LoadEnvFile(required missing) error = nil")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_PUBLIC_BASE_URL",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_EVENT_TIMEOUT",
		"APP_SCRATCH_DIR",
		"APP_PUBLIC_DIR",
		"APP_ASSET_TTL",
		"APP_METRICS_NAMESPACE",
		"APP_DASHBOARD_URL",
		"APP_ALLOW_ANY_ORIGIN",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"PROVIDER_MODE",
		"TWILIO_SID",
		"TWILIO_AUTH_TOKEN",
		"TWILIO_FROM",
		"TWILIO_VALIDATE_SIGNATURE",
		"GROQ_API_KEY",
		"GROQ_BASE_URL",
		"LLM_VISION_MODEL",
		"LLM_TEXT_MODEL",
		"LLM_TIMEOUT",
		"MEDICAL_API_URL",
		"TRANSLATE_FALLBACK_URL",
		"ANSWER_MIN_WORDS",
		"SARVAM_API_KEY",
		"SARVAM_BASE_URL",
		"SARVAM_TTS_MODEL",
		"SARVAM_TTS_SPEAKER",
		"SARVAM_STT_MODEL",
		"SARVAM_RATE_LIMIT",
		"TTS_MAX_CHUNK_CHARS",
		"TTS_PARALLELISM",
		"TTS_SAMPLE_RATE",
		"AUDIO_BACKEND",
		"FFMPEG_PATH",
		"SESSION_STORE",
		"DATABASE_URL",
		"REDIS_URL",
		"SESSION_TTL",
		"DEDUPE_TTL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
