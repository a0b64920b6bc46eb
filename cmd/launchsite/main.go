// Package main serves the launch signup API.
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

	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/config"
	"github.com/arcadeearth/launchsite/internal/logger"
	"github.com/arcadeearth/launchsite/internal/signup"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg.Signup); err != nil {
		logger.Error("signup service failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("signup service stopped")
}

func run(cfg config.SignupConfig) error {
	log := logger.Named("signup")

	var store signup.Store
	if cfg.StoreDir != "" {
		fs, err := signup.NewFileStore(cfg.StoreDir)
		if err != nil {
			return err
		}
		store = fs
		log.Info("using file store", zap.String("dir", cfg.StoreDir))
	} else {
		store = signup.NewMemoryStore()
		log.Warn("no store_dir configured; signups are kept in memory")
	}

	welcome, err := signup.NewWelcome(signup.LogMailer{Log: log.Named("mail")}, cfg.From, cfg.SiteURL, "")
	if err != nil {
		return err
	}
	hooks := []signup.Hook{welcome}
	if cfg.SheetPath != "" {
		hooks = append(hooks, signup.NewSheetMirror(cfg.SheetPath))
	}

	svc := signup.NewService(store,
		signup.WithHooks(hooks...),
		signup.WithHookTimeout(cfg.HookTimeout),
		signup.WithLogger(log),
	)

	mux := http.NewServeMux()
	signup.Routes(mux, svc, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
