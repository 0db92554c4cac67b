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

	"golang.org/x/sync/errgroup"

	"jobportal/auth"
	"jobportal/config"
	"jobportal/db"
	"jobportal/logging"
	"jobportal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], logger); err != nil {
		logger.Error(ctx, "api exited", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, logger logging.Logger) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	if err := db.RunMigrations(ctx, cfg.DatabaseDSN); err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := storage.NewS3Store(ctx, storage.Config{
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		BaseEndpoint:  cfg.S3BaseEndpoint,
		PublicBaseURL: cfg.S3PublicBaseURL,
		Timeout:       cfg.StorageTimeout,
	})
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		return err
	}

	identity := auth.NewService(
		auth.NewRepository(pool, auth.WithQueryTimeout(cfg.QueryTimeout)),
		tokens,
		store,
		auth.WithLogger(logger.With("component", "auth")),
		auth.WithPhoneRegion(cfg.PhoneRegion),
	)

	server := NewServer(identity, auth.NewGate(tokens), logger.With("component", "http"), ServerOptions{
		TokenTTL:       cfg.TokenTTL,
		CookieSecure:   cfg.CookieSecure,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
