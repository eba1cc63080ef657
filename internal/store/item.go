package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/todolist-app/server/types"
)

// ItemRepository handles persistence for list items.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) ListByOwner(ctx context.Context, owner string) ([]types.Item, error) {
	return listByOwner(ctx, r.db, owner)
}

func (r *ItemRepository) Get(ctx context.Context, id string) (types.Item, error) {
	const query = `
		SELECT id, name, owner, created_at
		FROM items
		WHERE id = $1`
	var item types.Item
	err := r.db.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Name, &item.Owner, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Item{}, ErrNotFound
		}
		return types.Item{}, err
	}
	return item, nil
}

func (r *ItemRepository) Create(ctx context.Context, item types.Item) (types.Item, error) {
	item.ID = uuid.NewString()
	item.CreatedAt = time.Now()

	const query = `
		INSERT INTO items (id, name, owner, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, item.ID, item.Name, item.Owner, item.CreatedAt); err != nil {
		return types.Item{}, err
	}
	return item, nil
}

// SeedIfEmpty inserts one item per name for owner, but only when owner has no
// items. The check and the batch insert run in one transaction holding an
// advisory lock on the owner, so concurrent callers seed at most once.
// It returns the owner's items and whether this call inserted them.
func (r *ItemRepository) SeedIfEmpty(ctx context.Context, owner string, names []string) ([]types.Item, bool, error) {
	var (
		items  []types.Item
		seeded bool
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, owner); err != nil {
			return err
		}

		existing, err := listByOwner(ctx, tx, owner)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			items = existing
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO items (id, name, owner, created_at) VALUES ($1, $2, $3, $4)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now()
		items = make([]types.Item, 0, len(names))
		for i, name := range names {
			item := types.Item{
				ID:    uuid.NewString(),
				Name:  name,
				Owner: owner,
				// Keep the seed order stable when sorting by created_at.
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			}
			if _, err := stmt.ExecContext(ctx, item.ID, item.Name, item.Owner, item.CreatedAt); err != nil {
				return err
			}
			items = append(items, item)
		}
		seeded = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return items, seeded, nil
}

// DeleteOwned removes the item only if it belongs to owner.
func (r *ItemRepository) DeleteOwned(ctx context.Context, id, owner string) error {
	const query = `DELETE FROM items WHERE id = $1 AND owner = $2`
	result, err := r.db.ExecContext(ctx, query, id, owner)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listByOwner(ctx context.Context, q queryer, owner string) ([]types.Item, error) {
	const query = `
		SELECT id, name, owner, created_at
		FROM items
		WHERE owner = $1
		ORDER BY created_at, id`
	rows, err := q.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Item, 0)
	for rows.Next() {
		var item types.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Owner, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
