package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"scbackend/internal/catalog"
	"scbackend/internal/config"
	"scbackend/internal/coreapi"
	"scbackend/internal/db"
	"scbackend/internal/geocode"
	"scbackend/internal/history"
	"scbackend/internal/httpapi"
	"scbackend/internal/intent"
	"scbackend/internal/llm"
	"scbackend/internal/metrics"
	"scbackend/internal/mqtt"
	"scbackend/internal/orchestrator"
	"scbackend/internal/presence"
	"scbackend/internal/resolver"
	"scbackend/internal/safety"
	"scbackend/internal/singlish"
	"scbackend/internal/transcribe"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("connect db failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate db failed", "error", err)
		os.Exit(1)
	}

	var cache redis.UniversalClient
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, geocode cache degraded", "addr", cfg.RedisAddr, "error", err)
		}
		pingCancel()
		cache = rdb
	}

	var geocoder safety.Geocoder
	if cfg.GeocodeBaseURL != "" {
		geocoder = geocode.NewClient(cfg.GeocodeBaseURL, cfg.GeocodeTimeout, cache, cfg.GeocodeCacheTTL, logger)
	}

	var sms safety.SMSSender
	if cfg.SOSEmergencyNumber != "" {
		sender, err := safety.NewSNSSender(ctx, cfg.AWSRegion, cfg.SOSSenderID)
		if err != nil {
			logger.Warn("sns sender unavailable, sos calls disabled", "error", err)
		} else {
			sms = sender
		}
	}

	registry := presence.NewRegistry(cfg.PresenceTTL)
	var hub *mqtt.Hub
	var broadcaster safety.Broadcaster
	if cfg.MQTTBrokerURL != "" {
		hub = mqtt.NewHub(mqtt.HubConfig{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, registry, nil, logger)
		broadcaster = hub
	}

	safetySvc := safety.NewService(safety.Config{
		EmergencyNumber: cfg.SOSEmergencyNumber,
		Timeout:         cfg.ActionTimeout,
	}, store, sms, broadcaster, geocoder, logger)

	if hub != nil {
		hub.SetLocationSink(safetySvc)
		if err := hub.Start(ctx); err != nil {
			logger.Error("start mqtt hub failed", "error", err)
			os.Exit(1)
		}
	}

	var provider llm.Provider
	if cfg.LLMConfigured() {
		p, err := llm.NewProvider(ctx, llm.Config{
			Provider:         cfg.LLMProvider,
			Model:            cfg.LLMModel,
			Timeout:          cfg.LLMTimeout,
			OpenAIBaseURL:    cfg.OpenAIBaseURL,
			OpenAIAPIKey:     cfg.OpenAIAPIKey,
			AnthropicBaseURL: cfg.AnthropicBaseURL,
			AnthropicAPIKey:  cfg.AnthropicAPIKey,
			GeminiAPIKey:     cfg.GeminiAPIKey,
		})
		if err != nil {
			logger.Warn("init llm provider failed, using keyword classification", "provider", cfg.LLMProvider, "error", err)
		} else {
			provider = p
		}
	} else {
		logger.Warn("llm not configured, using keyword classification", "provider", cfg.LLMProvider)
	}

	var transcriber orchestrator.Transcriber
	switch {
	case cfg.ASRBridgeURL != "":
		transcriber = transcribe.NewBridgeClient(cfg.ASRBridgeURL)
	case cfg.OpenAIAPIKey != "":
		transcriber = transcribe.NewWhisperClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.WhisperModel, cfg.ActionTimeout)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	historySvc := history.NewService(store)
	api := coreapi.NewClient(cfg.CoreAPIBaseURL, cfg.ActionTimeout)

	orch := orchestrator.New(orchestrator.Config{
		CatalogTimeout: cfg.CatalogTimeout,
		ActionTimeout:  cfg.ActionTimeout,
		Resolver:       resolver.New(cfg.ResolverThreshold, cfg.ResolverMinTokenLen),
	}, orchestrator.Deps{
		Classifier:  intent.New(provider, cfg.LLMTimeout, logger),
		Catalog:     catalog.NewClient(api),
		Alerts:      safety.NewClient(api),
		LLM:         provider,
		Transcriber: transcriber,
		History:     historySvc,
		Metrics:     m,
	}, logger)

	handler := httpapi.NewRouter(httpapi.Deps{
		Orchestrator:   orch,
		Translator:     singlish.NewTranslator(provider, cfg.LLMTimeout, logger),
		History:        historySvc,
		Events:         store,
		Safety:         safetySvc,
		DB:             store,
		Metrics:        promhttp.Handler(),
		AllowedOrigins: cfg.AllowedOrigins,
		Capabilities: map[string]bool{
			"llm":           provider != nil,
			"transcription": transcriber != nil,
			"telephony":     safetySvc.TelephonyConfigured(),
			"mqtt":          hub != nil,
			"geocoder":      geocoder != nil,
			"redis":         cache != nil,
		},
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("scbackend server started", "addr", cfg.HTTPAddr, "llm_provider", cfg.LLMProvider, "llm", provider != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	cancel()
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
