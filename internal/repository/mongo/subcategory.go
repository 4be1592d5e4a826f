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

var _ repository.SubCategoryRepository = (*Store)(nil)

// CreateIfAbsent relies on the unique (user_id, parent_category, name) index:
// a duplicate-key error means another call already created the record, which
// is then read back.
func (s *Store) CreateIfAbsent(ctx context.Context, sub *model.SubCategory) (bool, error) {
	candidate := *sub
	candidate.ID = xid.New().String()
	candidate.CreatedAt = s.now()

	_, err := s.subCategories.InsertOne(ctx, candidate)
	if err == nil {
		*sub = candidate
		return true, nil
	}
	if !mongodriver.IsDuplicateKeyError(err) {
		return false, wrapErr("inserting sub-category", err)
	}

	var existing model.SubCategory
	if err := s.subCategories.FindOne(ctx, bson.M{
		"user_id":         sub.UserID,
		"parent_category": sub.ParentCategory,
		"name":            sub.Name,
	}).Decode(&existing); err != nil {
		return false, wrapErr("reading existing sub-category", err)
	}
	*sub = existing
	return false, nil
}

func (s *Store) List(ctx context.Context, userID string, parent model.Category) ([]model.SubCategory, error) {
	filter := bson.M{"user_id": userID}
	sort := bson.D{{Key: "parent_category", Value: 1}, {Key: "name", Value: 1}}
	if parent != "" {
		filter["parent_category"] = parent
		sort = bson.D{{Key: "name", Value: 1}}
	}

	cursor, err := s.subCategories.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, wrapErr("listing sub-categories", err)
	}
	defer cursor.Close(ctx)

	subs := make([]model.SubCategory, 0)
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, wrapErr("decoding sub-categories", err)
	}
	return subs, nil
}

// DeleteCascade deletes the record and unsets sub_category_name on every
// matching snippet inside one transaction.
func (s *Store) DeleteCascade(ctx context.Context, userID, id string) (*model.SubCategory, int, error) {
	var (
		deleted model.SubCategory
		cleared int
	)

	err := s.withTx(ctx, "deleting sub-category", func(sc mongodriver.SessionContext) error {
		err := s.subCategories.FindOneAndDelete(sc, bson.M{"_id": id, "user_id": userID}).Decode(&deleted)
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return apperror.NotFound("sub-category", id)
		}
		if err != nil {
			return wrapErr("deleting sub-category "+id, err)
		}

		result, err := s.snippets.UpdateMany(sc,
			bson.M{
				"user_id":           userID,
				"category":          deleted.ParentCategory,
				"sub_category_name": deleted.Name,
			},
			bson.M{
				"$unset": bson.M{"sub_category_name": ""},
				"$set":   bson.M{"updated_at": s.now()},
			},
		)
		if err != nil {
			return wrapErr("clearing sub-category from snippets", err)
		}
		cleared = int(result.ModifiedCount)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &deleted, cleared, nil
}
