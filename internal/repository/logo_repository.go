package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/LogoForge/internal/models"
)

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type LogoRepository struct {
	db *sql.DB
}

func NewLogoRepository(db *sql.DB) *LogoRepository {
	return &LogoRepository{db: db}
}

const logoColumns = `id, user_id, prompt, urls, public, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLogo(row rowScanner) (*models.Logo, error) {
	var l models.Logo
	var urls []byte
	if err := row.Scan(&l.ID, &l.UserID, &l.Prompt, &urls, &l.Public, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	decoded, err := models.DecodeURLs(urls)
	if err != nil {
		return nil, fmt.Errorf("decode logo urls: %w", err)
	}
	l.URLs = decoded
	return &l, nil
}

// Create inserts the logo using exec, which may be a transaction shared with a credit deduction.
func (r *LogoRepository) Create(ctx context.Context, exec Execer, logo *models.Logo) error {
	if exec == nil {
		exec = r.db
	}
	urls, err := models.EncodeURLs(logo.URLs)
	if err != nil {
		return fmt.Errorf("encode logo urls: %w", err)
	}
	const query = `INSERT INTO logos (id, user_id, prompt, urls, public) VALUES (?, ?, ?, ?, ?)`
	if _, err := exec.ExecContext(ctx, query, logo.ID, logo.UserID, logo.Prompt, urls, logo.Public); err != nil {
		return fmt.Errorf("insert logo: %w", err)
	}
	return nil
}

func (r *LogoRepository) GetByID(ctx context.Context, id string) (*models.Logo, error) {
	query := `SELECT ` + logoColumns + ` FROM logos WHERE id = ?`
	logo, err := scanLogo(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get logo: %w", err)
	}
	return logo, nil
}

func (r *LogoRepository) ListByUser(ctx context.Context, userID string) ([]models.Logo, error) {
	query := `SELECT ` + logoColumns + ` FROM logos WHERE user_id = ? ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *LogoRepository) ListPublic(ctx context.Context, skip, take int) ([]models.Logo, error) {
	query := `SELECT ` + logoColumns + ` FROM logos WHERE public = 1 ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.list(ctx, query, take, skip)
}

func (r *LogoRepository) CountPublic(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logos WHERE public = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count public logos: %w", err)
	}
	return count, nil
}

// ListFavorites returns the logos the user has favorited, most recently favorited first.
func (r *LogoRepository) ListFavorites(ctx context.Context, userID string) ([]models.Logo, error) {
	const query = `
SELECT l.id, l.user_id, l.prompt, l.urls, l.public, l.created_at, l.updated_at
FROM favorites f JOIN logos l ON l.id = f.logo_id
WHERE f.user_id = ?
ORDER BY f.created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *LogoRepository) SetPublic(ctx context.Context, id string, public bool) error {
	const query = `UPDATE logos SET public = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, public, id); err != nil {
		return fmt.Errorf("set logo public: %w", err)
	}
	return nil
}

func (r *LogoRepository) list(ctx context.Context, query string, args ...any) ([]models.Logo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list logos: %w", err)
	}
	defer rows.Close()

	logos := make([]models.Logo, 0)
	for rows.Next() {
		logo, err := scanLogo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan logo: %w", err)
		}
		// Logos without images are never shown in list views.
		if len(logo.URLs) == 0 {
			continue
		}
		logos = append(logos, *logo)
	}
	return logos, rows.Err()
}
