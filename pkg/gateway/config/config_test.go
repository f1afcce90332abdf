package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"SPYVOICE_ADDR",
	"SPYVOICE_LOG_LEVEL",
	"SPYVOICE_AUTH_MODE",
	"SPYVOICE_API_KEYS",
	"SPYVOICE_CORS_ORIGINS",
	"SPYVOICE_WS_PING_INTERVAL",
	"SPYVOICE_WS_WRITE_TIMEOUT",
	"SPYVOICE_STORE",
	"SPYVOICE_STORE_DSN",
	"SPYVOICE_SETTINGS_PATH",
	"SPYVOICE_POLL_INTERVAL",
	"SPYVOICE_STT_BASE_URL",
	"SPYVOICE_STT_API_KEY",
	"SPYVOICE_TTS_BASE_URL",
	"SPYVOICE_TTS_API_KEY",
	"SPYVOICE_TTS_MODEL",
	"SPYVOICE_VOICE_CACHE_TTL",
	"SPYVOICE_RECOGNIZER_URL",
	"SPYVOICE_ESPEAK_BINARY",
	"SPYVOICE_LLM_BACKEND",
	"SPYVOICE_LLM_BASE_URL",
	"SPYVOICE_LLM_API_KEY",
	"SPYVOICE_LLM_MODEL",
	"SPYVOICE_GEMINI_API_KEY",
	"SPYVOICE_GEMINI_MODEL",
	"GEMINI_API_KEY",
	"SPYVOICE_TRANSCRIBE_TIMEOUT",
	"SPYVOICE_SYNTHESIZE_TIMEOUT",
	"SPYVOICE_LLM_TIMEOUT",
	"SPYVOICE_VAD_THRESHOLD",
	"SPYVOICE_VAD_SPEECH_HOLD",
	"SPYVOICE_VAD_TRAILING_SILENCE",
	"SPYVOICE_VAD_MIN_CHUNK_BYTES",
	"SPYVOICE_METRICS_NAMESPACE",
	"SPYVOICE_READ_HEADER_TIMEOUT",
	"SPYVOICE_READ_TIMEOUT",
	"SPYVOICE_SHUTDOWN_GRACE_PERIOD",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeDisabled {
		t.Fatalf("AuthMode = %q, want %q", cfg.AuthMode, AuthModeDisabled)
	}
	if cfg.StoreBackend != "bolt" || cfg.StoreDSN != "spyvoice.db" {
		t.Fatalf("store = %q %q", cfg.StoreBackend, cfg.StoreDSN)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.TranscribeTimeout != 20*time.Second {
		t.Fatalf("TranscribeTimeout = %v, want 20s", cfg.TranscribeTimeout)
	}
	if cfg.SynthesizeTimeout != 28*time.Second {
		t.Fatalf("SynthesizeTimeout = %v, want 28s", cfg.SynthesizeTimeout)
	}
	if cfg.LLMTimeout != 15*time.Second {
		t.Fatalf("LLMTimeout = %v, want 15s", cfg.LLMTimeout)
	}
	if cfg.LLMBackend != LLMBackendChat {
		t.Fatalf("LLMBackend = %q", cfg.LLMBackend)
	}
	if cfg.EspeakBinary != "espeak-ng" {
		t.Fatalf("EspeakBinary = %q", cfg.EspeakBinary)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("CORSAllowedOrigins = %v, want empty", cfg.CORSAllowedOrigins)
	}

	mon := cfg.Monitor()
	if mon.SpeechHold != 150*time.Millisecond || mon.TrailingSilence != 620*time.Millisecond {
		t.Fatalf("monitor = %+v", mon)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("SPYVOICE_ADDR", ":9090")
	t.Setenv("SPYVOICE_AUTH_MODE", "required")
	t.Setenv("SPYVOICE_API_KEYS", "k1, k2")
	t.Setenv("SPYVOICE_CORS_ORIGINS", "http://localhost:5173")
	t.Setenv("SPYVOICE_STORE", "memory")
	t.Setenv("SPYVOICE_LLM_BACKEND", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("SPYVOICE_VAD_THRESHOLD", "0.05")
	t.Setenv("SPYVOICE_VAD_TRAILING_SILENCE", "800ms")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if _, ok := cfg.APIKeys["k2"]; !ok || len(cfg.APIKeys) != 2 {
		t.Fatalf("APIKeys = %v", cfg.APIKeys)
	}
	if _, ok := cfg.CORSAllowedOrigins["http://localhost:5173"]; !ok {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.GeminiAPIKey != "g-key" {
		t.Fatalf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}
	mon := cfg.Monitor()
	if mon.Threshold != 0.05 || mon.TrailingSilence != 800*time.Millisecond {
		t.Fatalf("monitor = %+v", mon)
	}
}

func TestLoadFromEnv_Rejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"auth mode", map[string]string{"SPYVOICE_AUTH_MODE": "sometimes"}, "SPYVOICE_AUTH_MODE"},
		{"required without keys", map[string]string{"SPYVOICE_AUTH_MODE": "required"}, "SPYVOICE_API_KEYS"},
		{"store backend", map[string]string{"SPYVOICE_STORE": "mongo"}, "SPYVOICE_STORE"},
		{"llm backend", map[string]string{"SPYVOICE_LLM_BACKEND": "local"}, "SPYVOICE_LLM_BACKEND"},
		{"gemini without key", map[string]string{"SPYVOICE_LLM_BACKEND": "gemini"}, "SPYVOICE_GEMINI_API_KEY"},
		{"vad threshold", map[string]string{"SPYVOICE_VAD_THRESHOLD": "1.5"}, "SPYVOICE_VAD_THRESHOLD"},
		{"poll interval", map[string]string{"SPYVOICE_POLL_INTERVAL": "-1s"}, "SPYVOICE_POLL_INTERVAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearGatewayEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %q, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoadFromEnv_InvalidNumbersFallBack(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("SPYVOICE_VAD_MIN_CHUNK_BYTES", "lots")
	t.Setenv("SPYVOICE_LLM_TIMEOUT", "soon")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.VADMinChunkBytes != 6000 {
		t.Fatalf("VADMinChunkBytes = %d, want 6000", cfg.VADMinChunkBytes)
	}
	if cfg.LLMTimeout != 15*time.Second {
		t.Fatalf("LLMTimeout = %v, want 15s", cfg.LLMTimeout)
	}
}
