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

// COMPILE-TIME INTERFACE CHECKS:
// `var _ X = (*Y)(nil)` fails to compile if *DB stops implementing X.
var (
	_ repository.SnippetRepository = (*DB)(nil)
	_ repository.QuotaRepository   = (*DB)(nil)
)

const snippetColumns = `id, user_id, title, description, code, category, sub_category_name, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (*model.Snippet, error) {
	var (
		s        model.Snippet
		category string
		subName  sql.NullString
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &s.Title, &s.Description, &s.Code,
		&category, &subName, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Category = model.Category(category)
	if subName.Valid {
		s.SubCategoryName = &subName.String
	}
	return &s, nil
}

// CreateWithinQuota inserts a snippet if the owner is below limit.
//
// THE QUOTA TRANSACTION:
//  1. read the counter row (missing row = 0)
//  2. count >= limit → QuotaExceeded, rollback, nothing written
//  3. INSERT the snippet
//  4. bump the counter, or create it at 1 on the user's first snippet
//
// Steps 1-4 share one transaction, so the counter and the snippet set can
// never disagree after a commit.
func (db *DB) CreateWithinQuota(ctx context.Context, snippet *model.Snippet, limit int) error {
	return db.withTx(ctx, "creating snippet", func(tx *sql.Tx) error {
		count, exists, err := readCounter(ctx, tx, snippet.UserID)
		if err != nil {
			return err
		}
		if count >= limit {
			return apperror.QuotaExceeded(limit)
		}

		now := db.now()
		snippet.ID = xid.New().String()
		snippet.CreatedAt = now
		snippet.UpdatedAt = now

		_, err = tx.ExecContext(ctx,
			`INSERT INTO snippets (`+snippetColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snippet.ID,
			snippet.UserID,
			snippet.Title,
			snippet.Description,
			snippet.Code,
			string(snippet.Category),
			nullString(snippet.SubCategoryName),
			snippet.CreatedAt,
			snippet.UpdatedAt,
		)
		if err != nil {
			return wrapErr("inserting snippet", err)
		}

		if exists {
			_, err = tx.ExecContext(ctx,
				`UPDATE quota_counters SET snippet_count = snippet_count + 1, updated_at = ?
				 WHERE user_id = ?`,
				now, snippet.UserID,
			)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO quota_counters (user_id, snippet_count, updated_at) VALUES (?, 1, ?)`,
				snippet.UserID, now,
			)
		}
		if err != nil {
			return wrapErr("incrementing snippet counter", err)
		}
		return nil
	})
}

// GetByID returns the user's snippet or apperror.NotFound.
func (db *DB) GetByID(ctx context.Context, userID, id string) (*model.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	snippet, err := scanSnippet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, wrapErr("getting snippet "+id, err)
	}
	return snippet, nil
}

// ListByUser returns all of the user's snippets, most recently updated first.
// There is no pagination: the quota bounds the result size.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.Snippet, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets
		 WHERE user_id = ?
		 ORDER BY updated_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapErr("listing snippets", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, wrapErr("scanning snippet row", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating snippets", err)
	}

	return snippets, nil
}

// Update overwrites every mutable field. It does not pre-check existence:
// zero affected rows means the (user, id) pair does not exist.
// CreatedAt is read back so callers get the complete record.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	return db.withTx(ctx, "updating snippet", func(tx *sql.Tx) error {
		now := db.now()

		result, err := tx.ExecContext(ctx,
			`UPDATE snippets
			 SET title = ?, description = ?, code = ?, category = ?, sub_category_name = ?, updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			snippet.Title,
			snippet.Description,
			snippet.Code,
			string(snippet.Category),
			nullString(snippet.SubCategoryName),
			now,
			snippet.ID,
			snippet.UserID,
		)
		if err != nil {
			return wrapErr("updating snippet "+snippet.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return wrapErr("checking rows affected", err)
		}
		if affected == 0 {
			return apperror.NotFound("snippet", snippet.ID)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT created_at FROM snippets WHERE id = ?`, snippet.ID,
		).Scan(&snippet.CreatedAt); err != nil {
			return wrapErr("reading snippet "+snippet.ID, err)
		}
		snippet.UpdatedAt = now
		return nil
	})
}

// Delete removes the snippet and decrements the owner's counter.
//
// Counter rules: > 0 → decrement, <= 0 → set to exactly 0, missing → no write.
// A snippet that does not exist yields NotFound and leaves the counter alone.
func (db *DB) Delete(ctx context.Context, userID, id string) error {
	return db.withTx(ctx, "deleting snippet", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM snippets WHERE id = ? AND user_id = ?`,
			id, userID,
		)
		if err != nil {
			return wrapErr("deleting snippet "+id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return wrapErr("checking rows affected", err)
		}
		if affected == 0 {
			return apperror.NotFound("snippet", id)
		}

		count, exists, err := readCounter(ctx, tx, userID)
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
		if _, err := tx.ExecContext(ctx,
			`UPDATE quota_counters SET snippet_count = ?, updated_at = ? WHERE user_id = ?`,
			next, db.now(), userID,
		); err != nil {
			return wrapErr("decrementing snippet counter", err)
		}
		return nil
	})
}

// readCounter reads the user's counter inside tx. exists is false when the
// user has never inserted a snippet.
func readCounter(ctx context.Context, tx *sql.Tx, userID string) (count int, exists bool, err error) {
	err = tx.QueryRowContext(ctx,
		`SELECT snippet_count FROM quota_counters WHERE user_id = ?`, userID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapErr("reading snippet counter", err)
	}
	return count, true, nil
}

// SnippetCount returns the counter without touching the snippets table.
func (db *DB) SnippetCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT snippet_count FROM quota_counters WHERE user_id = ?`, userID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapErr("reading snippet counter", err)
	}
	return count, nil
}

// RecountSnippets is the drift-recovery path: it counts the user's snippets
// and overwrites the counter with the result, all in one transaction.
// Never called while serving an insert or delete.
func (db *DB) RecountSnippets(ctx context.Context, userID string) (*model.Reconciliation, error) {
	rec := &model.Reconciliation{UserID: userID}

	err := db.withTx(ctx, "recounting snippets", func(tx *sql.Tx) error {
		recorded, _, err := readCounter(ctx, tx, userID)
		if err != nil {
			return err
		}

		var actual int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM snippets WHERE user_id = ?`, userID,
		).Scan(&actual); err != nil {
			return wrapErr("counting snippets", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quota_counters (user_id, snippet_count, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
			   snippet_count = excluded.snippet_count,
			   updated_at = excluded.updated_at`,
			userID, actual, db.now(),
		); err != nil {
			return wrapErr("writing snippet counter", err)
		}

		rec.Recorded = recorded
		rec.Actual = actual
		rec.Corrected = recorded != actual
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
