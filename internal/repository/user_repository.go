package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/digkill/LogoForge/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, username, free_credit, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FreeCredit, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? ORDER BY created_at, id LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Ensure returns the user with the given id, inserting it first when absent. Emails are not
// unique: several auth identities may share one, or have none. A duplicate key on insert can only
// be the id, written by a concurrent first request; the flag reports whether this call created
// the row.
func (r *UserRepository) Ensure(ctx context.Context, user *models.User) (*models.User, bool, error) {
	existing, err := r.FindByID(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	const query = `INSERT INTO users (id, email, username, free_credit) VALUES (?, ?, ?, ?)`
	created := true
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.Username, user.FreeCredit); err != nil {
		if !isDuplicateKey(err) {
			return nil, false, fmt.Errorf("insert user: %w", err)
		}
		created = false
	}

	stored, err := r.FindByID(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("user %s missing after insert", user.ID)
	}
	return stored, created, nil
}

const errDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}
