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

var _ repository.UserRepository = (*Store)(nil)

func (s *Store) Create(ctx context.Context, user *model.User) error {
	now := s.now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", user.Email)
		}
		return wrapErr("inserting user", err)
	}
	return nil
}

// Upsert is a single FindOneAndUpdate keyed by github_id: $setOnInsert fixes
// the internal id and creation time on the first sign-in only.
func (s *Store) Upsert(ctx context.Context, user *model.User) error {
	now := s.now()

	var stored model.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"github_id": user.GitHubID},
		bson.M{
			"$set": bson.M{
				"login":      user.Login,
				"email":      user.Email,
				"avatar_url": user.AvatarURL,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"_id":        xid.New().String(),
				"created_at": now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&stored)
	if err != nil {
		return wrapErr("upserting user", err)
	}

	*user = stored
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, wrapErr("finding user "+id, err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.users.FindOne(ctx, bson.M{
		"email":         email,
		"password_hash": bson.M{"$exists": true},
	}).Decode(&u)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, wrapErr("finding user by email", err)
	}
	return &u, nil
}
