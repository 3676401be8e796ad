package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fissionlabs/fissionpay/internal/api"
	"github.com/fissionlabs/fissionpay/internal/billing"
	"github.com/fissionlabs/fissionpay/internal/chain"
	"github.com/fissionlabs/fissionpay/internal/config"
	"github.com/fissionlabs/fissionpay/internal/logger"
	"github.com/fissionlabs/fissionpay/internal/route"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store billing.Store
	if cfg.DatabaseURL != "" {
		pg, err := billing.NewPGStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		store = pg
		logg.Info("using postgres bill store")
	} else {
		store = billing.NewMemStore()
		logg.Info("using in-memory bill store")
	}

	registry := chain.NewRegistry()
	ledger := billing.NewLedger(store, registry, logg)
	router := route.NewClient(cfg.RouterAPIURL, cfg.RouterAPIKey, logg)

	srv := &http.Server{
		Addr:    cfg.Bind,
		Handler: api.New(ledger, router, cfg.DestDenom, logg).Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info("api server listening", "addr", cfg.Bind)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logg.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error("server exited", "err", err)
		os.Exit(1)
	}
}
