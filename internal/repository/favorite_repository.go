package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type FavoriteRepository struct {
	db *sql.DB
}

func NewFavoriteRepository(db *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

func (r *FavoriteRepository) Exists(ctx context.Context, userID, logoID string) (bool, error) {
	const query = `SELECT 1 FROM favorites WHERE user_id = ? AND logo_id = ? LIMIT 1`
	var dummy int
	if err := r.db.QueryRowContext(ctx, query, userID, logoID).Scan(&dummy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return true, nil
}

func (r *FavoriteRepository) Add(ctx context.Context, userID, logoID string) error {
	const query = `INSERT IGNORE INTO favorites (user_id, logo_id) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, userID, logoID); err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID, logoID string) error {
	const query = `DELETE FROM favorites WHERE user_id = ? AND logo_id = ?`
	if _, err := r.db.ExecContext(ctx, query, userID, logoID); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}
