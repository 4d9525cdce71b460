package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soothelabs/soothe/internal/archive"
	"github.com/soothelabs/soothe/internal/brain"
	"github.com/soothelabs/soothe/internal/config"
	"github.com/soothelabs/soothe/internal/dialog"
	"github.com/soothelabs/soothe/internal/httpapi"
	"github.com/soothelabs/soothe/internal/observability"
	"github.com/soothelabs/soothe/internal/session"
	"github.com/soothelabs/soothe/internal/speech"
	"github.com/soothelabs/soothe/internal/vad"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("archive store init failed: %v", err)
	}
	defer store.Close()

	var completer brain.Completer
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		completer = brain.NewOpenAIClient(brain.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
		log.Printf("model provider: openai (%s)", cfg.OpenAIModel)
	} else {
		completer = brain.NewMockCompleter()
		log.Printf("model provider: mock (OPENAI_API_KEY not set)")
	}

	var (
		synthesizer speech.Synthesizer
		audioSource httpapi.AudioSource
	)
	if strings.TrimSpace(cfg.SpeechifyAPIKey) != "" {
		client := speech.NewSpeechifyClient(speech.SpeechifyConfig{
			BaseURL: cfg.SpeechifyBaseURL,
			APIKey:  cfg.SpeechifyAPIKey,
			VoiceID: cfg.SpeechifyVoiceID,
		})
		synthesizer = client
		audioSource = client
		log.Printf("synthesis provider: speechify (voice %s)", cfg.SpeechifyVoiceID)
	} else {
		mock := speech.NewMockSynthesizer()
		synthesizer = mock
		audioSource = mock
		log.Printf("synthesis provider: mock (SP_API_KEY not set)")
	}

	sessions := session.NewManager(cfg.CooldownPeriod, cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	assembler := dialog.NewAssembler(completer, synthesizer, metrics, dialog.AssemblerConfig{
		PersonaPrompt:  cfg.PersonaPrompt,
		Streaming:      cfg.UseStreamingTTS,
		FlushThreshold: cfg.TTSFlushThreshold,
	})
	detector := vad.NewDetector(vad.NewClassifier(cfg.VADAggressiveness))
	orchestrator := dialog.NewOrchestrator(assembler, detector, store, metrics, cfg.TurnTimeout)

	api := httpapi.New(cfg, sessions, orchestrator, audioSource, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
