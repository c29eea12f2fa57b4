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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/cardlobby/internal/adapters/http"
	"github.com/dkeye/cardlobby/internal/app"
	"github.com/dkeye/cardlobby/internal/app/orch"
	"github.com/dkeye/cardlobby/internal/config"
	"github.com/dkeye/cardlobby/internal/wallet"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logger first so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	opening, _ := cfg.Balance()
	lobby := orch.New(orch.Options{
		Escrow:          wallet.NewLedger(opening),
		Policy:          app.SimplePolicy{KickSlow: cfg.KickSlow},
		Currency:        cfg.Currency,
		InviteTTL:       cfg.InviteTTL,
		InviteRetention: cfg.InviteRetention,
		InviteLimit:     cfg.InviteRate.Limit,
		InviteInterval:  cfg.InviteRate.Interval,
		ResumeGrace:     cfg.ResumeGrace,
		Reaper: app.ReaperConfig{
			Interval:          cfg.SweepInterval,
			FinishedRetention: cfg.FinishedRetention,
			EmptyTableTTL:     cfg.EmptyTableTTL,
		},
	})
	defer lobby.Close()

	r := router.SetupRouter(ctx, cfg, lobby)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("lobby server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return lobby.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}
