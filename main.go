package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gitea.kood.tech/petrkubec/genre-match/internal/config"
	"gitea.kood.tech/petrkubec/genre-match/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("loading config")
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			logger.Error().Err(e).Msg("invalid configuration")
		}
		os.Exit(1)
	}
	summary := zerolog.Dict()
	for k, v := range cfg.LogSummary() {
		summary = summary.Str(k, v)
	}
	logger.Info().Dict("config", summary).Msg("configuration loaded")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := newServer(cfg, st, logger)

	if cfg.RedisURL != "" {
		relay, err := newRedisRelay(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer relay.Close()
		srv.hub.useRelay(relay)
		logger.Info().Msg("feed relayed over redis")
	}
	go func() {
		if err := srv.hub.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("feed relay stopped")
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Port).Str("env", cfg.Env).Msg("starting genre-match backend")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
