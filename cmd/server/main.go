// Package main is the entry point for the snippet vault API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
//  1. Read configuration (.env, env vars, optional TOML file)
//  2. Create dependencies (logger, store, cache, broker, classifier)
//  3. Build the services and start the server
//
// All actual logic lives in imported packages (internal/server,
// internal/service, ...). main only decides which implementation of each
// interface to plug in.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/classifier"
	"github.com/sakif/snippet-vault/internal/classifier/llm"
	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/events"
	"github.com/sakif/snippet-vault/internal/events/rabbitmq"
	"github.com/sakif/snippet-vault/internal/logging"
	"github.com/sakif/snippet-vault/internal/quota"
	"github.com/sakif/snippet-vault/internal/server"
	"github.com/sakif/snippet-vault/internal/service"
	"github.com/sakif/snippet-vault/internal/storage"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION ===
	// A missing .env is normal in production, where the environment is set
	// by the deployment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx := context.Background()

	// === 3. STORE ===
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("store opened", slog.String("driver", cfg.Storage.Driver))

	// === 4. OPTIONAL INFRASTRUCTURE ===
	// Redis and RabbitMQ are optional. Without them the cache is a no-op and
	// events are dropped; the API behaves the same, only slower and without
	// background reconciliation.
	var lists cache.SnippetLists = cache.Nop{}
	var results classifier.ResultCache = cache.Nop{}
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", slog.String("error", err.Error()))
		} else {
			defer client.Close()
			redisCache := cache.NewRedis(client, cfg.Redis.ListTTL, cfg.Redis.ClassifyTTL, logger)
			lists, results = redisCache, redisCache
			logger.Info("redis cache enabled", slog.String("addr", cfg.Redis.Addr))
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Dial(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", slog.String("error", err.Error()))
		} else {
			defer conn.Close()
			ch, err := conn.Channel()
			if err != nil {
				return err
			}
			p, err := rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Queue, logger)
			if err != nil {
				return err
			}
			defer p.Close()
			publisher = p
			logger.Info("publishing events", slog.String("queue", cfg.RabbitMQ.Queue))
		}
	}

	cls := classifier.NewCached(llm.New(llm.Config{
		BaseURL: cfg.Classifier.BaseURL,
		APIKey:  cfg.Classifier.APIKey,
		Model:   cfg.Classifier.Model,
		Timeout: cfg.Classifier.Timeout,
	}, logger), results, logger)

	// === 5. AUTH ===
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Tokens:       tokens,
		Health:       store,
		CookieSecure: cfg.Auth.CookieSecure,
		Version:      version,
	}
	if cfg.Auth.GitHubEnabled() {
		deps.GitHub = auth.NewGitHubProvider(cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret, cfg.Auth.GitHubCallbackURL)
	} else {
		logger.Warn("GitHub OAuth not configured, only email/password sign-in is available")
	}

	// === 6. SERVICES ===
	policy := quota.NewAllowListPolicy(cfg.Quota.DefaultLimit, cfg.Quota.ElevatedLimit, cfg.Quota.PrivilegedUserIDs)

	deps.Snippets = service.NewSnippetService(store, store, policy, cls, lists, publisher, logger)
	deps.SubCategories = service.NewSubCategoryService(store, lists, publisher, logger)
	deps.Quota = service.NewQuotaService(store, policy, logger)
	deps.Changelogs = service.NewChangelogService(store.Changelogs(), policy, logger)
	deps.Auth = service.NewAuthService(store, tokens, auth.NewPasswordService(), logger)

	// === 7. SERVE ===
	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM).
	// The deferred closes above then run in reverse order.
	return server.New(cfg.Server, deps, logger).Start()
}
