package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagdeck/internal/api"
	"github.com/TimurManjosov/flagdeck/internal/config"
	"github.com/TimurManjosov/flagdeck/internal/source"
	"github.com/TimurManjosov/flagdeck/internal/state"
	"github.com/TimurManjosov/flagdeck/internal/storage"
	"github.com/TimurManjosov/flagdeck/internal/telemetry"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	location := cfg.StorePath
	if cfg.StoreType == "postgres" {
		location = cfg.DatabaseDSN
	}
	store, err := storage.NewStorage(ctx, cfg.StoreType, location)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}
	defer store.Close()

	container := state.New(
		state.WithLogger(log),
		state.WithStorage(store),
		state.WithSalt(cfg.EvalSalt),
	)
	if err := container.LoadPersisted(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore persisted overrides")
	}

	if cfg.FlagFile != "" {
		if err := source.Watch(ctx, cfg.FlagFile, container, log); err != nil {
			log.Fatal().Err(err).Str("path", cfg.FlagFile).Msg("flag file load failed")
		}
	}

	telemetry.Init()
	telemetry.RegisteredFlags.Set(float64(len(container.Flags())))

	srvAPI := api.NewServer(container, cfg.AdminAPIKey, cfg.RateLimitPerIP, log)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	log.Info().Msg("stopped")
}
