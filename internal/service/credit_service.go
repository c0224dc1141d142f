package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/digkill/LogoForge/internal/metrics"
	"github.com/digkill/LogoForge/internal/models"
)

// CreditService owns both credit balances of a user: the free allowance on the user row and the
// subscription balance.
type CreditService struct {
	db      *sql.DB
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewCreditService(db *sql.DB, m *metrics.Metrics, log *slog.Logger) *CreditService {
	if log == nil {
		log = slog.Default()
	}
	return &CreditService{db: db, metrics: m, log: log}
}

func (s *CreditService) Available(ctx context.Context, userID string) (models.Balance, error) {
	var b models.Balance
	err := s.db.QueryRowContext(ctx, `SELECT free_credit FROM users WHERE id = ?`, userID).Scan(&b.Free)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, notFound("user")
		}
		return b, fmt.Errorf("load free credits: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT credits FROM subscriptions WHERE user_id = ?`, userID).Scan(&b.Subscription)
	switch {
	case err == nil:
		b.HasPlan = true
	case errors.Is(err, sql.ErrNoRows):
	default:
		return b, fmt.Errorf("load subscription credits: %w", err)
	}
	return b, nil
}

// Deduct charges amount credits and returns the remaining balance.
func (s *CreditService) Deduct(ctx context.Context, userID string, amount int) (models.Balance, error) {
	return s.DeductWith(ctx, userID, amount, nil)
}

// DeductWith charges amount credits, free credits first, and runs fn in the same transaction.
// Both rows are locked for the duration, so concurrent deductions serialise and neither balance
// can go negative. If fn fails nothing is charged.
func (s *CreditService) DeductWith(ctx context.Context, userID string, amount int, fn func(tx *sql.Tx) error) (models.Balance, error) {
	if amount <= 0 {
		amount = 1
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return models.Balance{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var b models.Balance
	row := tx.QueryRowContext(ctx, `SELECT free_credit FROM users WHERE id = ? FOR UPDATE`, userID)
	if err := row.Scan(&b.Free); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Balance{}, notFound("user")
		}
		return models.Balance{}, fmt.Errorf("lock user: %w", err)
	}

	row = tx.QueryRowContext(ctx, `SELECT credits FROM subscriptions WHERE user_id = ? FOR UPDATE`, userID)
	switch err := row.Scan(&b.Subscription); {
	case err == nil:
		b.HasPlan = true
	case errors.Is(err, sql.ErrNoRows):
	default:
		return models.Balance{}, fmt.Errorf("lock subscription: %w", err)
	}

	if b.Total() < amount {
		return b, &InsufficientCreditsError{Required: amount, Available: b.Total()}
	}

	freeDebit, subDebit := split(b.Free, amount)
	if freeDebit > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET free_credit = free_credit - ?, updated_at = NOW() WHERE id = ?`, freeDebit, userID); err != nil {
			return models.Balance{}, fmt.Errorf("deduct free credits: %w", err)
		}
	}
	if subDebit > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE subscriptions SET credits = credits - ?, updated_at = NOW() WHERE user_id = ?`, subDebit, userID); err != nil {
			return models.Balance{}, fmt.Errorf("deduct subscription credits: %w", err)
		}
	}

	if fn != nil {
		if err := fn(tx); err != nil {
			return models.Balance{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Balance{}, fmt.Errorf("commit deduction: %w", err)
	}

	s.metrics.CreditsDeducted(freeDebit, subDebit)
	s.log.Info("credits deducted", "user_id", userID, "free", freeDebit, "subscription", subDebit)

	b.Free -= freeDebit
	b.Subscription -= subDebit
	return b, nil
}

// split divides amount between the free balance and the subscription balance.
func split(free, amount int) (freeDebit, subDebit int) {
	freeDebit = min(free, amount)
	if freeDebit < 0 {
		freeDebit = 0
	}
	return freeDebit, amount - freeDebit
}
