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

	"go.uber.org/zap"

	"followmate/internal/auth"
	"followmate/internal/config"
	"followmate/internal/database"
	"followmate/internal/email"
	"followmate/internal/google"
	"followmate/internal/logging"
	"followmate/internal/redisx"
	"followmate/internal/server"
	"followmate/internal/storage"
)

const (
	auditMaxLen     = 1000
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, closeLog, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("log setup error: %v", err)
	}
	defer closeLog()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := redisx.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	if !cfg.Email.Enabled() {
		logger.Warn("email transport is not configured; code emails will fail")
	}

	deps := auth.ServiceDeps{
		Users:           users,
		Hasher:          auth.NewBcryptHasher(cfg.BcryptCost),
		Tokens:          tokens,
		Codes:           auth.NewNumericCodes(cfg.CodeTTL),
		Mailer:          email.NewCodeMailer(email.NewSender(cfg.Email)),
		Logger:          logger.Named("auth"),
		ExternalTimeout: cfg.ExternalTimeout,
	}

	if cfg.GoogleClientID != "" {
		verifier, err := google.NewVerifier(ctx, cfg.GoogleClientID, &http.Client{Timeout: cfg.ExternalTimeout})
		if err != nil {
			return err
		}
		deps.Google = verifier
	} else {
		logger.Warn("GOOGLE_CLIENT_ID is not set; Google sign-in is disabled")
	}

	if cfg.Storage.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		deps.Photos = uploader
	} else {
		logger.Warn("S3 storage is not configured; photo uploads are disabled")
	}

	svc, err := auth.NewService(deps)
	if err != nil {
		return err
	}

	api := server.NewServer(cfg, svc, tokens,
		auth.NewRateLimiter(redisClient, cfg.RateLimit.Points, cfg.RateLimit.Window),
		auth.NewAuditLogger(redisClient, auditMaxLen),
		logger.Named("http"),
	)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (auth.UserStore, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory user store; accounts are lost on restart")
		return auth.NewMemoryUserStore(), func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		logger.Info("migrations applied")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewPostgresUserStore(pool), pool.Close, nil
}
