package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

type changelogRepo struct {
	coll *mongodriver.Collection
	now  func() time.Time
}

var _ repository.ChangelogRepository = (*changelogRepo)(nil)

// Changelogs returns the changelog repository backed by this store.
func (s *Store) Changelogs() repository.ChangelogRepository {
	return &changelogRepo{coll: s.changelogs, now: s.now}
}

func (r *changelogRepo) Create(ctx context.Context, entry *model.ChangelogEntry) error {
	now := r.now()
	entry.ID = xid.New().String()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return wrapErr("inserting changelog", err)
	}
	return nil
}

func (r *changelogRepo) Update(ctx context.Context, entry *model.ChangelogEntry) error {
	var stored model.ChangelogEntry
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": entry.ID},
		bson.M{"$set": bson.M{
			"version":    entry.Version,
			"date":       entry.Date,
			"changes":    entry.Changes,
			"updated_at": r.now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&stored)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return apperror.NotFound("changelog", entry.ID)
	}
	if err != nil {
		return wrapErr("updating changelog "+entry.ID, err)
	}
	*entry = stored
	return nil
}

func (r *changelogRepo) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr("deleting changelog "+id, err)
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound("changelog", id)
	}
	return nil
}

func (r *changelogRepo) GetByID(ctx context.Context, id string) (*model.ChangelogEntry, error) {
	var e model.ChangelogEntry
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, apperror.NotFound("changelog", id)
	}
	if err != nil {
		return nil, wrapErr("finding changelog "+id, err)
	}
	return &e, nil
}

func (r *changelogRepo) List(ctx context.Context) ([]model.ChangelogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, wrapErr("listing changelogs", err)
	}
	defer cursor.Close(ctx)

	entries := make([]model.ChangelogEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, wrapErr("decoding changelogs", err)
	}
	return entries, nil
}
