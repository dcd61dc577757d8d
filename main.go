package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/blkluv/dentist-ai/bridge"
	"github.com/blkluv/dentist-ai/config"
	"github.com/blkluv/dentist-ai/server"
	"github.com/blkluv/dentist-ai/services"
	"github.com/blkluv/dentist-ai/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier tools.Notifier
	if cfg.SMSEnabled() {
		notifier = services.NewSMSNotifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
	} else {
		logger.Warn("twilio credentials incomplete, send_sms and booking confirmations are disabled")
	}

	var sink bridge.RecordSink
	if cfg.Firebase.Enabled {
		store, err := services.NewCallRecordStore(ctx, services.FirestoreOptions{
			CredentialsJSON: cfg.Firebase.CredentialsJSON,
			CredentialsFile: cfg.Firebase.CredentialsFile,
			Collection:      cfg.Firebase.Collection,
		})
		if err != nil {
			logger.Warn("firestore unavailable, call records will not be saved", "error", err)
		} else {
			defer store.Close()
			sink = store
			logger.Info("firestore initialized", "collection", cfg.Firebase.Collection)
		}
	}

	dispatcher := tools.NewDispatcher(
		tools.NewReference(cfg.Tools.ClinicName),
		notifier,
		tools.WithTimeout(cfg.Tools.Timeout),
		tools.WithOptionFiltering(cfg.Tools.FilterOptions),
		tools.WithLogger(logger),
	)

	realtime := services.NewRealtimeClient(services.RealtimeConfig{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		RealtimeURL:  cfg.OpenAI.RealtimeURL,
		Model:        cfg.OpenAI.Model,
		Voice:        cfg.OpenAI.Voice,
		VADThreshold: cfg.OpenAI.VADThreshold,
		Instructions: services.Instructions(cfg.Tools.ClinicName),
		Tools:        dispatcher.FunctionDefinitions(),
	})
	if !cfg.BridgeEnabled() {
		logger.Warn("OPENAI_API_KEY not set, incoming calls go to the fallback number")
	}

	registry := bridge.NewRegistry()
	router := server.NewRouter(server.Options{
		MediaStreamPath: cfg.Service.MediaStreamPath,
		PublicHost:      cfg.Service.PublicHost,
		BridgeEnabled:   cfg.BridgeEnabled(),
		FallbackNumber:  cfg.Twilio.FallbackNumber,
		Registry:        registry,
		Session: bridge.Deps{
			Connector:  realtime,
			Dispatcher: dispatcher,
			Sink:       sink,
			Keepalive:  cfg.Service.KeepaliveInterval,
			Logger:     logger,
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Service.Port,
		Handler: router,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr, "media_stream_path", cfg.Service.MediaStreamPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Hijacked media streams are not covered by Shutdown.
	if n := registry.CancelAll(); n > 0 {
		logger.Info("ending live calls", "count", n)
	}
	if !registry.Wait(shutdownCtx) {
		logger.Warn("sessions still open at shutdown deadline", "count", registry.Count())
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Service.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Service.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
