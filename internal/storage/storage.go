// Package storage opens the configured repository backend.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/repository"
	"github.com/sakif/snippet-vault/internal/repository/mongo"
	"github.com/sakif/snippet-vault/internal/repository/sqlite"
)

// Store is everything the services need from a backend. Both *sqlite.DB and
// *mongo.Store satisfy it.
type Store interface {
	repository.SnippetRepository
	repository.QuotaRepository
	repository.SubCategoryRepository
	repository.UserRepository
	Changelogs() repository.ChangelogRepository
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*sqlite.DB)(nil)
	_ Store = (*mongo.Store)(nil)
)

// Open connects to the backend named by cfg.Driver. For sqlite the parent
// directory of the database file is created if needed.
func Open(ctx context.Context, cfg config.Storage) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverMongo:
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
