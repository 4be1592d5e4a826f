package mongo

import (
	"context"
	"errors"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

var (
	_ repository.SnippetRepository = (*Store)(nil)
	_ repository.QuotaRepository   = (*Store)(nil)
)

// counterDoc is one user's entry in quota_counters, keyed by user id.
type counterDoc struct {
	UserID       string `bson:"_id"`
	SnippetCount int    `bson:"snippet_count"`
}

// CreateWithinQuota mirrors the sqlite transaction: read counter, reject at
// the limit, insert, then increment (upserting the counter on first use).
func (s *Store) CreateWithinQuota(ctx context.Context, snippet *model.Snippet, limit int) error {
	return s.withTx(ctx, "creating snippet", func(sc mongodriver.SessionContext) error {
		count, _, err := s.readCounter(sc, snippet.UserID)
		if err != nil {
			return err
		}
		if count >= limit {
			return apperror.QuotaExceeded(limit)
		}

		now := s.now()
		snippet.ID = xid.New().String()
		snippet.CreatedAt = now
		snippet.UpdatedAt = now

		if _, err := s.snippets.InsertOne(sc, snippet); err != nil {
			return wrapErr("inserting snippet", err)
		}

		if _, err := s.counters.UpdateOne(sc,
			bson.M{"_id": snippet.UserID},
			bson.M{
				"$inc": bson.M{"snippet_count": 1},
				"$set": bson.M{"updated_at": now},
			},
			options.Update().SetUpsert(true),
		); err != nil {
			return wrapErr("incrementing snippet counter", err)
		}
		return nil
	})
}

func (s *Store) GetByID(ctx context.Context, userID, id string) (*model.Snippet, error) {
	var snippet model.Snippet
	err := s.snippets.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&snippet)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, apperror.NotFound("snippet", id)
	}
	if err != nil {
		return nil, wrapErr("finding snippet "+id, err)
	}
	return &snippet, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]model.Snippet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := s.snippets.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, wrapErr("listing snippets", err)
	}
	defer cursor.Close(ctx)

	snippets := make([]model.Snippet, 0)
	if err := cursor.All(ctx, &snippets); err != nil {
		return nil, wrapErr("decoding snippets", err)
	}
	return snippets, nil
}

// Update replaces the mutable fields. A nil SubCategoryName removes the
// field from the document.
func (s *Store) Update(ctx context.Context, snippet *model.Snippet) error {
	now := s.now()

	set := bson.M{
		"title":       snippet.Title,
		"description": snippet.Description,
		"code":        snippet.Code,
		"category":    snippet.Category,
		"updated_at":  now,
	}
	update := bson.M{"$set": set}
	if snippet.SubCategoryName != nil {
		set["sub_category_name"] = *snippet.SubCategoryName
	} else {
		update["$unset"] = bson.M{"sub_category_name": ""}
	}

	var stored model.Snippet
	err := s.snippets.FindOneAndUpdate(ctx,
		bson.M{"_id": snippet.ID, "user_id": snippet.UserID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&stored)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return apperror.NotFound("snippet", snippet.ID)
	}
	if err != nil {
		return wrapErr("updating snippet "+snippet.ID, err)
	}

	snippet.CreatedAt = stored.CreatedAt
	snippet.UpdatedAt = stored.UpdatedAt
	return nil
}

// Delete removes the snippet and decrements the counter in one transaction,
// clamping at zero and never creating a missing counter.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	return s.withTx(ctx, "deleting snippet", func(sc mongodriver.SessionContext) error {
		result, err := s.snippets.DeleteOne(sc, bson.M{"_id": id, "user_id": userID})
		if err != nil {
			return wrapErr("deleting snippet "+id, err)
		}
		if result.DeletedCount == 0 {
			return apperror.NotFound("snippet", id)
		}

		count, exists, err := s.readCounter(sc, userID)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		next := count - 1
		if next < 0 {
			next = 0
		}
		if _, err := s.counters.UpdateOne(sc,
			bson.M{"_id": userID},
			bson.M{"$set": bson.M{"snippet_count": next, "updated_at": s.now()}},
		); err != nil {
			return wrapErr("decrementing snippet counter", err)
		}
		return nil
	})
}

func (s *Store) readCounter(ctx context.Context, userID string) (count int, exists bool, err error) {
	var doc counterDoc
	err = s.counters.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapErr("reading snippet counter", err)
	}
	return doc.SnippetCount, true, nil
}

func (s *Store) SnippetCount(ctx context.Context, userID string) (int, error) {
	count, _, err := s.readCounter(ctx, userID)
	return count, err
}

// RecountSnippets overwrites the counter with CountDocuments, inside a
// transaction so a concurrent insert cannot slip between count and write.
func (s *Store) RecountSnippets(ctx context.Context, userID string) (*model.Reconciliation, error) {
	rec := &model.Reconciliation{UserID: userID}

	err := s.withTx(ctx, "recounting snippets", func(sc mongodriver.SessionContext) error {
		recorded, _, err := s.readCounter(sc, userID)
		if err != nil {
			return err
		}

		actual, err := s.snippets.CountDocuments(sc, bson.M{"user_id": userID})
		if err != nil {
			return wrapErr("counting snippets", err)
		}

		if _, err := s.counters.UpdateOne(sc,
			bson.M{"_id": userID},
			bson.M{"$set": bson.M{"snippet_count": int(actual), "updated_at": s.now()}},
			options.Update().SetUpsert(true),
		); err != nil {
			return wrapErr("writing snippet counter", err)
		}

		rec.Recorded = recorded
		rec.Actual = int(actual)
		rec.Corrected = recorded != int(actual)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
