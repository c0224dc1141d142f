package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/LogoForge/internal/models"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	const query = `
SELECT id, user_id, paddle_subscription_id, plan, status, credits, created_at, updated_at
FROM subscriptions WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var s models.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.PaddleSubscriptionID, &s.Plan, &s.Status, &s.Credits, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &s, nil
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	const query = `
INSERT INTO subscriptions (user_id, paddle_subscription_id, plan, status, credits)
VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, sub.UserID, sub.PaddleSubscriptionID, sub.Plan, sub.Status, sub.Credits)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	return nil
}

// ApplyPlanChange moves the row to a new plan and provider subscription and adds topUp credits
// in a single statement.
func (r *SubscriptionRepository) ApplyPlanChange(ctx context.Context, id int64, plan models.PlanName, status, paddleSubscriptionID string, topUp int) error {
	const query = `
UPDATE subscriptions
SET plan = ?, status = ?, paddle_subscription_id = ?, credits = credits + ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, plan, status, paddleSubscriptionID, topUp, id); err != nil {
		return fmt.Errorf("apply plan change: %w", err)
	}
	return nil
}

// ReplacePlan sets plan, status and the credit balance outright.
func (r *SubscriptionRepository) ReplacePlan(ctx context.Context, userID string, plan models.PlanName, status string, credits int) error {
	const query = `
UPDATE subscriptions SET plan = ?, status = ?, credits = ?, updated_at = NOW()
WHERE user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, plan, status, credits, userID); err != nil {
		return fmt.Errorf("replace plan: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, userID, status string) error {
	const query = `UPDATE subscriptions SET status = ?, updated_at = NOW() WHERE user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, userID); err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}
