package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TalkBot/internal/adapters/discord"
	"github.com/dkeye/TalkBot/internal/adapters/feed"
	router "github.com/dkeye/TalkBot/internal/adapters/http"
	"github.com/dkeye/TalkBot/internal/app/orch"
	"github.com/dkeye/TalkBot/internal/config"
	"github.com/dkeye/TalkBot/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(reg)
	hub := feed.NewHub()

	session, err := discord.NewSession(cfg.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create discord session")
	}
	o := orch.New(discord.NewGateway(session), orch.Options{
		GracePeriod:   cfg.GracePeriod,
		GateOpenTalks: cfg.GateOpenTalks,
		Events:        hub,
		Metrics:       metrics,
	})
	bot := discord.NewBot(session, o, discord.Options{
		StatusText:   cfg.StatusText,
		SyncCommands: cfg.SyncCommands,
	})
	if err := bot.Open(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to discord")
	}

	r := router.SetupRouter(ctx, cfg, o, hub, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("TalkBot status API started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	if err := bot.Close(); err != nil {
		log.Error().Err(err).Msg("discord session close")
	}
	o.Close()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("TalkBot exited gracefully")
}
