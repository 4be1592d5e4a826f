// Package mongo implements the repository interfaces on MongoDB.
//
// Quota enforcement and the sub-category cascade use multi-document
// transactions, so the server must run as a replica set (a single-node
// replica set is enough for development).
//
// TRANSACTION RETRIES:
// session.WithTransaction re-runs the callback when the server reports a
// TransientTransactionError. Two concurrent inserts for the same user both
// write the counter document; the loser gets a write conflict, is retried,
// and re-reads the counter the winner committed.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/snippet-vault/internal/apperror"
)

const (
	collSnippets      = "snippets"
	collCounters      = "quota_counters"
	collSubCategories = "sub_categories"
	collUsers         = "users"
	collChangelogs    = "changelogs"
)

// Store holds one handle per collection and implements every repository
// interface.
type Store struct {
	client        *mongodriver.Client
	snippets      *mongodriver.Collection
	counters      *mongodriver.Collection
	subCategories *mongodriver.Collection
	users         *mongodriver.Collection
	changelogs    *mongodriver.Collection
	now           func() time.Time
}

// Connect dials uri, pings the primary and ensures every index exists.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s := newStore(client, client.Database(dbName))
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func newStore(client *mongodriver.Client, db *mongodriver.Database) *Store {
	return &Store{
		client:        client,
		snippets:      db.Collection(collSnippets),
		counters:      db.Collection(collCounters),
		subCategories: db.Collection(collSubCategories),
		users:         db.Collection(collUsers),
		changelogs:    db.Collection(collChangelogs),
		// BSON dates carry millisecond precision; truncating here keeps the
		// values handed back to callers equal to what a later read returns.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the indexes the repositories rely on. Creating an
// index that already exists with the same spec is a no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	plan := map[*mongodriver.Collection][]mongodriver.IndexModel{
		s.snippets: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "category", Value: 1}, {Key: "sub_category_name", Value: 1}}},
		},
		s.subCategories: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "parent_category", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		s.users: {
			{
				Keys: bson.D{{Key: "github_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"github_id": bson.M{"$exists": true}}),
			},
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"password_hash": bson.M{"$exists": true}}),
			},
		},
		s.changelogs: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}

	for coll, indexes := range plan {
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return wrapErr("creating indexes on "+coll.Name(), err)
		}
	}
	return nil
}

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return wrapErr("pinging", err)
	}
	return nil
}

// Close disconnects the client, waiting at most five seconds for in-flight
// operations.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// withTx runs fn inside a session transaction, retried by the driver on
// transient errors. fn's error is returned untouched.
func (s *Store) withTx(ctx context.Context, op string, fn func(sc mongodriver.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return wrapErr(op+": starting session", err)
	}
	defer session.EndSession(ctx)

	var fnErr error
	_, err = session.WithTransaction(ctx, func(sc mongodriver.SessionContext) (interface{}, error) {
		fnErr = fn(sc)
		return nil, fnErr
	})
	if err != nil {
		if fnErr != nil {
			return fnErr
		}
		return wrapErr(op+": committing", err)
	}
	return nil
}

// wrapErr maps transport failures to apperror.Unavailable and prefixes
// everything else with the operation.
func wrapErr(op string, err error) error {
	if mongodriver.IsNetworkError(err) || mongodriver.IsTimeout(err) {
		return apperror.Unavailable(op, err)
	}
	return fmt.Errorf("mongo: %s: %w", op, err)
}
