package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rs/xid"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

// changelogRepo lives on its own type because ChangelogRepository's method
// names (Create, Update, Delete, List, GetByID) collide with the per-user
// repositories already implemented by *DB.
type changelogRepo struct {
	db *DB
}

var _ repository.ChangelogRepository = (*changelogRepo)(nil)

// Changelogs returns the changelog repository backed by this database.
func (db *DB) Changelogs() repository.ChangelogRepository {
	return &changelogRepo{db: db}
}

func scanChangelog(row rowScanner) (*model.ChangelogEntry, error) {
	var (
		e       model.ChangelogEntry
		changes string
	)
	if err := row.Scan(&e.ID, &e.Version, &e.Date, &changes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(changes), &e.Changes); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *changelogRepo) Create(ctx context.Context, entry *model.ChangelogEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return wrapErr("encoding changelog changes", err)
	}

	now := r.db.now()
	entry.ID = xid.New().String()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if _, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO changelogs (id, version, date, changes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Version, entry.Date, string(changes), entry.CreatedAt, entry.UpdatedAt,
	); err != nil {
		return wrapErr("inserting changelog", err)
	}
	return nil
}

func (r *changelogRepo) Update(ctx context.Context, entry *model.ChangelogEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return wrapErr("encoding changelog changes", err)
	}

	return r.db.withTx(ctx, "updating changelog", func(tx *sql.Tx) error {
		now := r.db.now()
		result, err := tx.ExecContext(ctx,
			`UPDATE changelogs SET version = ?, date = ?, changes = ?, updated_at = ? WHERE id = ?`,
			entry.Version, entry.Date, string(changes), now, entry.ID,
		)
		if err != nil {
			return wrapErr("updating changelog "+entry.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return wrapErr("checking rows affected", err)
		}
		if affected == 0 {
			return apperror.NotFound("changelog", entry.ID)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT created_at FROM changelogs WHERE id = ?`, entry.ID,
		).Scan(&entry.CreatedAt); err != nil {
			return wrapErr("reading changelog "+entry.ID, err)
		}
		entry.UpdatedAt = now
		return nil
	})
}

func (r *changelogRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM changelogs WHERE id = ?`, id)
	if err != nil {
		return wrapErr("deleting changelog "+id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("checking rows affected", err)
	}
	if affected == 0 {
		return apperror.NotFound("changelog", id)
	}
	return nil
}

func (r *changelogRepo) GetByID(ctx context.Context, id string) (*model.ChangelogEntry, error) {
	e, err := scanChangelog(r.db.conn.QueryRowContext(ctx,
		`SELECT id, version, date, changes, created_at, updated_at FROM changelogs WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("changelog", id)
		}
		return nil, wrapErr("getting changelog "+id, err)
	}
	return e, nil
}

func (r *changelogRepo) List(ctx context.Context) ([]model.ChangelogEntry, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT id, version, date, changes, created_at, updated_at FROM changelogs
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, wrapErr("listing changelogs", err)
	}
	defer rows.Close()

	entries := make([]model.ChangelogEntry, 0)
	for rows.Next() {
		e, err := scanChangelog(rows)
		if err != nil {
			return nil, wrapErr("scanning changelog row", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating changelogs", err)
	}
	return entries, nil
}
