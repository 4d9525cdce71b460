package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("SOOTHE_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.CooldownPeriod != 0 {
		t.Fatalf("CooldownPeriod = %v, want 0", cfg.CooldownPeriod)
	}
	if cfg.UseStreamingTTS {
		t.Fatalf("UseStreamingTTS = true, want false default")
	}
	if cfg.VADAggressiveness != 3 {
		t.Fatalf("VADAggressiveness = %d, want 3", cfg.VADAggressiveness)
	}
	if cfg.TTSFlushThreshold != 60 {
		t.Fatalf("TTSFlushThreshold = %d, want 60", cfg.TTSFlushThreshold)
	}
	if cfg.PersonaPrompt != DefaultPersonaPrompt {
		t.Fatalf("PersonaPrompt = %q, want default persona", cfg.PersonaPrompt)
	}
	if cfg.TurnTimeout != 0 {
		t.Fatalf("TurnTimeout = %v, want 0 (disabled)", cfg.TurnTimeout)
	}
}

func TestLoadParsesFractionalCooldown(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("COOLDOWN_PERIOD", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CooldownPeriod != 2500*time.Millisecond {
		t.Fatalf("CooldownPeriod = %v, want 2.5s", cfg.CooldownPeriod)
	}
}

func TestLoadRejectsBadAggressiveness(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VAD_AGGRESSIVENESS", "7")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted VAD_AGGRESSIVENESS=7, want error")
	}
}

func TestLoadRejectsNonPositiveFlushThreshold(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("TTS_FLUSH_THRESHOLD", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted TTS_FLUSH_THRESHOLD=0, want error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"SOOTHE_BIND_ADDR",
		"SOOTHE_SHUTDOWN_TIMEOUT",
		"SOOTHE_SESSION_INACTIVITY_TIMEOUT",
		"SOOTHE_METRICS_NAMESPACE",
		"SOOTHE_ALLOW_ANY_ORIGIN",
		"SOOTHE_PERSONA_PROMPT",
		"SOOTHE_TURN_TIMEOUT",
		"COOLDOWN_PERIOD",
		"USE_STREAMING_TTS",
		"VAD_AGGRESSIVENESS",
		"TTS_FLUSH_THRESHOLD",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
		"SP_API_KEY",
		"SPEECHIFY_BASE_URL",
		"SPEECHIFY_VOICE_ID",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
