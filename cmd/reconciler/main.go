// Command reconciler consumes snippet events from RabbitMQ and recounts the
// affected user's snippets, repairing the quota counter when it drifted.
//
// It shares the server's configuration and store. Run as many replicas as
// needed: a reconciliation is idempotent.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/events/rabbitmq"
	"github.com/sakif/snippet-vault/internal/logging"
	"github.com/sakif/snippet-vault/internal/quota"
	"github.com/sakif/snippet-vault/internal/service"
	"github.com/sakif/snippet-vault/internal/storage"
	"github.com/sakif/snippet-vault/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("reconciler exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.RabbitMQ.URL == "" {
		return errors.New("RABBITMQ_URL is required for the reconciler")
	}

	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	// Stop on Ctrl+C or SIGTERM. Run returns once the context is cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	conn, err := rabbitmq.Dial(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	policy := quota.NewAllowListPolicy(cfg.Quota.DefaultLimit, cfg.Quota.ElevatedLimit, cfg.Quota.PrivilegedUserIDs)
	quotaService := service.NewQuotaService(store, policy, logger)
	reconcile := worker.NewReconcile(quotaService, logger)

	logger.Info("reconciler starting",
		slog.String("queue", cfg.RabbitMQ.Queue),
		slog.String("driver", cfg.Storage.Driver),
	)
	if err := rabbitmq.NewConsumer(ch, cfg.RabbitMQ.Queue, logger).Run(ctx, reconcile.Handle); err != nil {
		return err
	}
	logger.Info("reconciler stopped")
	return nil
}
