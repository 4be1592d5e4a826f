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

var _ repository.SubCategoryRepository = (*DB)(nil)

func scanSubCategory(row rowScanner) (*model.SubCategory, error) {
	var (
		sub    model.SubCategory
		parent string
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Name, &parent, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.ParentCategory = model.Category(parent)
	return &sub, nil
}

// CreateIfAbsent inserts the sub-category unless the user already has one
// with the same parent and name (exact, case-sensitive match).
//
// The unique index on (user_id, parent_category, name) makes the insert a
// no-op for duplicates; the follow-up SELECT in the same transaction returns
// the record that won.
func (db *DB) CreateIfAbsent(ctx context.Context, sub *model.SubCategory) (bool, error) {
	created := false

	err := db.withTx(ctx, "creating sub-category", func(tx *sql.Tx) error {
		id := xid.New().String()
		now := db.now()

		result, err := tx.ExecContext(ctx,
			`INSERT INTO sub_categories (id, user_id, name, parent_category, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, parent_category, name) DO NOTHING`,
			id, sub.UserID, sub.Name, string(sub.ParentCategory), now,
		)
		if err != nil {
			return wrapErr("inserting sub-category", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return wrapErr("checking rows affected", err)
		}
		if affected == 1 {
			sub.ID = id
			sub.CreatedAt = now
			created = true
			return nil
		}

		existing, err := scanSubCategory(tx.QueryRowContext(ctx,
			`SELECT id, user_id, name, parent_category, created_at FROM sub_categories
			 WHERE user_id = ? AND parent_category = ? AND name = ?`,
			sub.UserID, string(sub.ParentCategory), sub.Name,
		))
		if err != nil {
			return wrapErr("reading existing sub-category", err)
		}
		*sub = *existing
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// List returns the user's sub-categories. With a parent filter they are
// ordered by name; without one, by parent category and then name.
func (db *DB) List(ctx context.Context, userID string, parent model.Category) ([]model.SubCategory, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parent != "" {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT id, user_id, name, parent_category, created_at FROM sub_categories
			 WHERE user_id = ? AND parent_category = ?
			 ORDER BY name ASC`,
			userID, string(parent),
		)
	} else {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT id, user_id, name, parent_category, created_at FROM sub_categories
			 WHERE user_id = ?
			 ORDER BY parent_category ASC, name ASC`,
			userID,
		)
	}
	if err != nil {
		return nil, wrapErr("listing sub-categories", err)
	}
	defer rows.Close()

	subs := make([]model.SubCategory, 0)
	for rows.Next() {
		sub, err := scanSubCategory(rows)
		if err != nil {
			return nil, wrapErr("scanning sub-category row", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating sub-categories", err)
	}
	return subs, nil
}

// DeleteCascade removes a sub-category and clears it from every snippet that
// references it, all in one transaction.
//
// The (parent, name) pair comes from the row being deleted, read inside the
// transaction. Because transactions in this package run one at a time, no
// snippet can be assigned the label between the read and the cascade.
func (db *DB) DeleteCascade(ctx context.Context, userID, id string) (*model.SubCategory, int, error) {
	var (
		deleted *model.SubCategory
		cleared int
	)

	err := db.withTx(ctx, "deleting sub-category", func(tx *sql.Tx) error {
		sub, err := scanSubCategory(tx.QueryRowContext(ctx,
			`SELECT id, user_id, name, parent_category, created_at FROM sub_categories
			 WHERE id = ? AND user_id = ?`,
			id, userID,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("sub-category", id)
		}
		if err != nil {
			return wrapErr("reading sub-category "+id, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sub_categories WHERE id = ?`, id,
		); err != nil {
			return wrapErr("deleting sub-category "+id, err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE snippets SET sub_category_name = NULL, updated_at = ?
			 WHERE user_id = ? AND category = ? AND sub_category_name = ?`,
			db.now(), userID, string(sub.ParentCategory), sub.Name,
		)
		if err != nil {
			return wrapErr("clearing sub-category from snippets", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return wrapErr("checking rows affected", err)
		}

		deleted = sub
		cleared = int(affected)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return deleted, cleared, nil
}
