package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vango-go/vai-spy/pkg/core/live"
	"github.com/vango-go/vai-spy/pkg/core/match"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

const (
	LLMBackendChat   = "chat"
	LLMBackendGemini = "gemini"
)

type Config struct {
	Addr     string
	LogLevel string

	// Bearer keys for the control routes. Reads are never authenticated.
	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// State stream websocket.
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration

	// Match store.
	StoreBackend string
	StoreDSN     string

	// Settings file and supervisor polling.
	SettingsPath string
	PollInterval time.Duration

	// Cloud speech provider.
	STTBaseURL    string
	STTAPIKey     string
	TTSBaseURL    string
	TTSAPIKey     string
	TTSModel      string
	VoiceCacheTTL time.Duration

	// Device speech fallbacks.
	RecognizerURL string
	EspeakBinary  string

	// Language-model agent.
	LLMBackend   string
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	GeminiAPIKey string
	GeminiModel  string

	// Provider deadlines.
	TranscribeTimeout time.Duration
	SynthesizeTimeout time.Duration
	LLMTimeout        time.Duration

	// Speech segmentation.
	VADThreshold       float64
	VADSpeechHold      time.Duration
	VADTrailingSilence time.Duration
	VADMinChunkBytes   int

	MetricsNamespace string

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	mon := live.DefaultMonitorConfig()
	cfg := Config{
		Addr:                envOr("SPYVOICE_ADDR", ":8080"),
		LogLevel:            strings.ToLower(envOr("SPYVOICE_LOG_LEVEL", "info")),
		AuthMode:            AuthMode(envOr("SPYVOICE_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:             make(map[string]struct{}),
		CORSAllowedOrigins:  make(map[string]struct{}),
		WSPingInterval:      envDurationOr("SPYVOICE_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:      envDurationOr("SPYVOICE_WS_WRITE_TIMEOUT", 5*time.Second),
		StoreBackend:        strings.ToLower(envOr("SPYVOICE_STORE", match.BackendBolt)),
		StoreDSN:            envOr("SPYVOICE_STORE_DSN", "spyvoice.db"),
		SettingsPath:        envOr("SPYVOICE_SETTINGS_PATH", "settings.toml"),
		PollInterval:        envDurationOr("SPYVOICE_POLL_INTERVAL", 2*time.Second),
		STTBaseURL:          envOr("SPYVOICE_STT_BASE_URL", ""),
		STTAPIKey:           envOr("SPYVOICE_STT_API_KEY", ""),
		TTSBaseURL:          envOr("SPYVOICE_TTS_BASE_URL", ""),
		TTSAPIKey:           envOr("SPYVOICE_TTS_API_KEY", ""),
		TTSModel:            envOr("SPYVOICE_TTS_MODEL", ""),
		VoiceCacheTTL:       envDurationOr("SPYVOICE_VOICE_CACHE_TTL", 10*time.Minute),
		RecognizerURL:       envOr("SPYVOICE_RECOGNIZER_URL", ""),
		EspeakBinary:        envOr("SPYVOICE_ESPEAK_BINARY", "espeak-ng"),
		LLMBackend:          strings.ToLower(envOr("SPYVOICE_LLM_BACKEND", LLMBackendChat)),
		LLMBaseURL:          envOr("SPYVOICE_LLM_BASE_URL", ""),
		LLMAPIKey:           envOr("SPYVOICE_LLM_API_KEY", ""),
		LLMModel:            envOr("SPYVOICE_LLM_MODEL", ""),
		GeminiAPIKey:        envOr("SPYVOICE_GEMINI_API_KEY", os.Getenv("GEMINI_API_KEY")),
		GeminiModel:         envOr("SPYVOICE_GEMINI_MODEL", "gemini-2.5-flash"),
		TranscribeTimeout:   envDurationOr("SPYVOICE_TRANSCRIBE_TIMEOUT", 20*time.Second),
		SynthesizeTimeout:   envDurationOr("SPYVOICE_SYNTHESIZE_TIMEOUT", 28*time.Second),
		LLMTimeout:          envDurationOr("SPYVOICE_LLM_TIMEOUT", 15*time.Second),
		VADThreshold:        envFloat64Or("SPYVOICE_VAD_THRESHOLD", mon.Threshold),
		VADSpeechHold:       envDurationOr("SPYVOICE_VAD_SPEECH_HOLD", mon.SpeechHold),
		VADTrailingSilence:  envDurationOr("SPYVOICE_VAD_TRAILING_SILENCE", mon.TrailingSilence),
		VADMinChunkBytes:    envIntOr("SPYVOICE_VAD_MIN_CHUNK_BYTES", mon.MinChunkBytes),
		MetricsNamespace:    envOr("SPYVOICE_METRICS_NAMESPACE", "spyvoice"),
		ReadHeaderTimeout:   envDurationOr("SPYVOICE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("SPYVOICE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("SPYVOICE_SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("SPYVOICE_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("SPYVOICE_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("SPYVOICE_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.StoreBackend {
	case match.BackendMemory, match.BackendBolt, match.BackendPostgres, match.BackendRedis:
	default:
		return Config{}, fmt.Errorf("SPYVOICE_STORE must be one of memory|bolt|postgres|redis")
	}
	if cfg.StoreBackend != match.BackendMemory && cfg.StoreDSN == "" {
		return Config{}, fmt.Errorf("SPYVOICE_STORE_DSN must be set for store %q", cfg.StoreBackend)
	}

	switch cfg.LLMBackend {
	case LLMBackendChat, LLMBackendGemini:
	default:
		return Config{}, fmt.Errorf("SPYVOICE_LLM_BACKEND must be one of chat|gemini")
	}
	if cfg.LLMBackend == LLMBackendGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("SPYVOICE_GEMINI_API_KEY must be set when SPYVOICE_LLM_BACKEND=gemini")
	}

	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_POLL_INTERVAL must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.TranscribeTimeout <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_TRANSCRIBE_TIMEOUT must be > 0")
	}
	if cfg.SynthesizeTimeout <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_SYNTHESIZE_TIMEOUT must be > 0")
	}
	if cfg.LLMTimeout <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_LLM_TIMEOUT must be > 0")
	}
	if cfg.VADThreshold <= 0 || cfg.VADThreshold >= 1 {
		return Config{}, fmt.Errorf("SPYVOICE_VAD_THRESHOLD must be in (0, 1)")
	}
	if cfg.VADMinChunkBytes < 0 {
		return Config{}, fmt.Errorf("SPYVOICE_VAD_MIN_CHUNK_BYTES must be >= 0")
	}
	if cfg.VoiceCacheTTL < 0 {
		return Config{}, fmt.Errorf("SPYVOICE_VOICE_CACHE_TTL must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("SPYVOICE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("SPYVOICE_API_KEYS must be set when SPYVOICE_AUTH_MODE=required")
	}

	return cfg, nil
}

// Monitor returns the speech segmentation settings.
func (c Config) Monitor() live.MonitorConfig {
	mon := live.DefaultMonitorConfig()
	mon.Threshold = c.VADThreshold
	mon.SpeechHold = c.VADSpeechHold
	mon.TrailingSilence = c.VADTrailingSilence
	mon.MinChunkBytes = c.VADMinChunkBytes
	return mon
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
