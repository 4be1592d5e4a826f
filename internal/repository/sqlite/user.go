package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/xid"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, login, email, password_hash, github_id, avatar_url, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	if err := row.Scan(
		&u.ID, &u.Login, &u.Email, &u.PasswordHash, &githubID,
		&u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	return &u, nil
}

func nullGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Create inserts a password account. The partial unique index on email
// turns a duplicate registration into apperror.Conflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := db.now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Login,
		user.Email,
		user.PasswordHash,
		nullGitHubID(user.GitHubID),
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return wrapErr("inserting user", err)
	}
	return nil
}

// Upsert creates the account bound to user.GitHubID on first sign-in and
// refreshes login, email and avatar on later ones. The existing internal ID
// is always kept.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	return db.withTx(ctx, "upserting user", func(tx *sql.Tx) error {
		existing, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE github_id = ?`, user.GitHubID,
		))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return wrapErr("looking up user by github_id", err)
		}

		now := db.now()
		if existing != nil {
			user.ID = existing.ID
			user.PasswordHash = existing.PasswordHash
			user.CreatedAt = existing.CreatedAt
			user.UpdatedAt = now
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET login = ?, email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
				user.Login, user.Email, user.AvatarURL, user.UpdatedAt, user.ID,
			); err != nil {
				return wrapErr("updating user "+user.ID, err)
			}
			return nil
		}

		user.ID = xid.New().String()
		user.CreatedAt = now
		user.UpdatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID,
			user.Login,
			user.Email,
			user.PasswordHash,
			nullGitHubID(user.GitHubID),
			user.AvatarURL,
			user.CreatedAt,
			user.UpdatedAt,
		); err != nil {
			return wrapErr("inserting user", err)
		}
		return nil
	})
}

// GetUserByID returns apperror.NotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, wrapErr("getting user "+id, err)
	}
	return u, nil
}

// GetUserByEmail only considers password accounts.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND password_hash <> ''`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, wrapErr("getting user by email", err)
	}
	return u, nil
}
