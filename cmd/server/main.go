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

	"github.com/joho/godotenv"

	"github.com/hongminglow/task-manager-be/internal/auth"
	"github.com/hongminglow/task-manager-be/internal/config"
	"github.com/hongminglow/task-manager-be/internal/credentials"
	"github.com/hongminglow/task-manager-be/internal/logging"
	"github.com/hongminglow/task-manager-be/internal/server"
	"github.com/hongminglow/task-manager-be/internal/storage"
	"github.com/hongminglow/task-manager-be/internal/storage/memory"
	"github.com/hongminglow/task-manager-be/internal/storage/postgres"
	"github.com/hongminglow/task-manager-be/internal/storage/s3store"
)

// userStore is what main needs from a storage driver.
type userStore interface {
	storage.UserStore
	storage.AvatarStore
	Ping(ctx context.Context) error
	Close()
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file found; relying on existing environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	users, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer users.Close()

	var avatars storage.AvatarStore = users
	if cfg.AvatarStore == config.AvatarStoreS3 {
		avatars, err = s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return err
		}
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	creds := credentials.NewService(users, avatars, tokens, log, cfg.BcryptCost)
	srv := server.New(cfg, creds, users, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("task manager backend listening",
			"addr", cfg.HTTPAddress(),
			"storage", cfg.StorageDriver,
			"avatars", cfg.AvatarStore,
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown error", "err", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (userStore, error) {
	if cfg.StorageDriver == config.StorageMemory {
		return memory.NewStore(), nil
	}
	return postgres.NewUserStore(ctx, cfg.DatabaseURL)
}
