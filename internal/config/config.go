package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPersonaPrompt is the persona instruction prefixed to every model
// request. It is synthesized per request and never stored in a ledger.
const DefaultPersonaPrompt = "You are a calm, soothing assistant who speaks in a warm, empathetic, " +
	"and gentle manner. Your responses should make the user feel heard and understood, " +
	"similar to a therapist. Always provide thoughtful and reflective answers that help " +
	"the user feel comforted."

// Config contains all runtime settings for the voice mediator service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	PersonaPrompt     string
	CooldownPeriod    time.Duration
	UseStreamingTTS   bool
	VADAggressiveness int
	TTSFlushThreshold int
	// TurnTimeout bounds one model+synthesis turn. Zero disables the bound,
	// so a hung upstream call keeps the turn gate held.
	TurnTimeout time.Duration

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	SpeechifyAPIKey  string
	SpeechifyBaseURL string
	SpeechifyVoiceID string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("SOOTHE_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("SOOTHE_METRICS_NAMESPACE", "soothe"),
		AllowAnyOrigin:           false,
		PersonaPrompt:            envOrDefault("SOOTHE_PERSONA_PROMPT", DefaultPersonaPrompt),
		VADAggressiveness:        3,
		TTSFlushThreshold:        60,
		OpenAIAPIKey:             trimmedEnv("OPENAI_API_KEY"),
		OpenAIBaseURL:            envOrDefault("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:              envOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		SpeechifyAPIKey:          trimmedEnv("SP_API_KEY"),
		SpeechifyBaseURL:         envOrDefault("SPEECHIFY_BASE_URL", "https://api.sws.speechify.com"),
		SpeechifyVoiceID:         envOrDefault("SPEECHIFY_VOICE_ID", "28c4d41d-8811-4ca0-9515-377d6ca2c715"),
		DatabaseURL:              trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("SOOTHE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("SOOTHE_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnTimeout, err = durationFromEnv("SOOTHE_TURN_TIMEOUT", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("SOOTHE_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.UseStreamingTTS, err = boolFromEnv("USE_STREAMING_TTS", cfg.UseStreamingTTS)
	if err != nil {
		return Config{}, err
	}
	cfg.VADAggressiveness, err = intFromEnv("VAD_AGGRESSIVENESS", cfg.VADAggressiveness)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSFlushThreshold, err = intFromEnv("TTS_FLUSH_THRESHOLD", cfg.TTSFlushThreshold)
	if err != nil {
		return Config{}, err
	}

	// COOLDOWN_PERIOD is expressed in seconds, possibly fractional.
	cooldownSecs, err := floatFromEnv("COOLDOWN_PERIOD", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.CooldownPeriod = time.Duration(cooldownSecs * float64(time.Second))

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("SOOTHE_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.VADAggressiveness < 0 || cfg.VADAggressiveness > 3 {
		return Config{}, fmt.Errorf("VAD_AGGRESSIVENESS must be between 0 and 3")
	}
	if cfg.TTSFlushThreshold <= 0 {
		return Config{}, fmt.Errorf("TTS_FLUSH_THRESHOLD must be positive")
	}
	if cfg.CooldownPeriod < 0 {
		return Config{}, fmt.Errorf("COOLDOWN_PERIOD must be >= 0")
	}
	if cfg.TurnTimeout < 0 {
		return Config{}, fmt.Errorf("SOOTHE_TURN_TIMEOUT must be >= 0")
	}
	if strings.TrimSpace(cfg.PersonaPrompt) == "" {
		return Config{}, fmt.Errorf("SOOTHE_PERSONA_PROMPT must not be blank")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
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
	v := trimmedEnv(key)
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
	v := trimmedEnv(key)
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
	v := strings.ToLower(trimmedEnv(key))
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
