package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/LogoForge/internal/idempotency"
	"github.com/digkill/LogoForge/internal/metrics"
	"github.com/digkill/LogoForge/internal/models"
	"github.com/digkill/LogoForge/internal/paddle"
	"github.com/digkill/LogoForge/internal/repository"
)

// PaddleAPI is the part of the Paddle REST API the reconciler calls.
type PaddleAPI interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
	Subscription(ctx context.Context, id string) (*paddle.Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, id string) error
	UpdateItems(ctx context.Context, id string, items []paddle.Item) (*paddle.Subscription, error)
}

type SubscriptionService struct {
	subs     *repository.SubscriptionRepository
	users    *repository.UserRepository
	paddle   PaddleAPI
	verifier *paddle.Verifier
	plans    PlanCatalog
	claimer  idempotency.Claimer
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewSubscriptionService(
	subs *repository.SubscriptionRepository,
	users *repository.UserRepository,
	api PaddleAPI,
	verifier *paddle.Verifier,
	plans PlanCatalog,
	claimer idempotency.Claimer,
	m *metrics.Metrics,
	log *slog.Logger,
) *SubscriptionService {
	if claimer == nil {
		claimer = idempotency.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &SubscriptionService{
		subs:     subs,
		users:    users,
		paddle:   api,
		verifier: verifier,
		plans:    plans,
		claimer:  claimer,
		metrics:  m,
		log:      log,
	}
}

// HandleWebhook verifies and applies one Paddle notification. Only a bad signature or an
// undecodable body is reported back; failures while applying the event are logged so the
// provider always gets an acknowledgement.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if err := s.verifier.Verify(signature, body); err != nil {
		s.metrics.WebhookEvent("unknown", "rejected")
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	ev, err := paddle.ParseEvent(body)
	if err != nil {
		s.metrics.WebhookEvent("unknown", "rejected")
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	log := s.log.With("event_id", ev.EventID, "event_type", ev.EventType, "paddle_subscription_id", ev.Data.ID)

	if ev.EventID != "" {
		claimed, err := s.claimer.Claim(ctx, ev.EventID)
		if err != nil {
			log.Warn("idempotency check failed, processing anyway", "err", err)
		} else if !claimed {
			log.Info("duplicate webhook event ignored")
			s.metrics.WebhookEvent(ev.EventType, "duplicate")
			return nil
		}
	}

	switch ev.EventType {
	case paddle.EventSubscriptionCreated:
		err = s.subscriptionCreated(ctx, log, ev.Data)
	case paddle.EventSubscriptionCanceled:
		err = s.subscriptionCanceled(ctx, log, ev.Data)
	case paddle.EventSubscriptionUpdated:
		log.Info("subscription updated", "status", ev.Data.Status, "customer_id", ev.Data.CustomerID)
	default:
		log.Info("unhandled webhook event")
		s.metrics.WebhookEvent(ev.EventType, "ignored")
		return nil
	}

	if err != nil {
		log.Error("webhook event failed", "err", err)
		s.metrics.WebhookEvent(ev.EventType, "error")
		if ev.EventID != "" {
			if rerr := s.claimer.Release(ctx, ev.EventID); rerr != nil {
				log.Warn("release idempotency key", "err", rerr)
			}
		}
		return nil
	}
	s.metrics.WebhookEvent(ev.EventType, "processed")
	return nil
}

func (s *SubscriptionService) userForCustomer(ctx context.Context, customerID string) (*models.User, error) {
	email, err := s.paddle.CustomerEmail(ctx, customerID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *SubscriptionService) subscriptionCreated(ctx context.Context, log *slog.Logger, data paddle.SubscriptionData) error {
	if data.CustomerID == "" {
		log.Warn("missing customer id")
		return nil
	}
	user, err := s.userForCustomer(ctx, data.CustomerID)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warn("no user for customer", "customer_id", data.CustomerID)
		return nil
	}

	plan := s.plans.Plan(data.ProductID())
	if plan == models.PlanUnknown {
		log.Warn("unable to determine plan", "product_id", data.ProductID())
		return nil
	}

	existing, err := s.subs.FindByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		sub := &models.Subscription{
			UserID:               user.ID,
			PaddleSubscriptionID: data.ID,
			Plan:                 plan,
			Status:               data.Status,
			Credits:              InitialCredits(plan),
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return err
		}
		log.Info("subscription created", "user_id", user.ID, "plan", plan, "credits", sub.Credits)
		return nil
	}

	if existing.PaddleSubscriptionID == data.ID {
		log.Info("subscription already recorded", "user_id", user.ID)
		return nil
	}

	// The row keeps the previous id until that subscription is cancelled; a replay after a
	// failed cancel retries it.
	previous := existing.PaddleSubscriptionID
	if previous != "" {
		if err := s.cancelPrevious(ctx, previous); err != nil {
			return fmt.Errorf("cancel previous subscription: %w", err)
		}
	}

	topUp := TopUpCredits(plan)
	if err := s.subs.ApplyPlanChange(ctx, existing.ID, plan, data.Status, data.ID, topUp); err != nil {
		return err
	}
	log.Info("subscription replaced", "user_id", user.ID, "plan", plan, "top_up", topUp, "previous", previous)
	return nil
}

// cancelPrevious schedules id for cancellation. A subscription that is already cancelled or
// already scheduled to cancel counts as done.
func (s *SubscriptionService) cancelPrevious(ctx context.Context, id string) error {
	err := s.paddle.CancelAtPeriodEnd(ctx, id)
	if err == nil {
		return nil
	}
	remote, lookupErr := s.paddle.Subscription(ctx, id)
	if lookupErr != nil {
		return err
	}
	if remote.Status == paddle.StatusCanceled ||
		(remote.ScheduledChange != nil && remote.ScheduledChange.Action == paddle.ActionCancel) {
		return nil
	}
	return err
}

func (s *SubscriptionService) subscriptionCanceled(ctx context.Context, log *slog.Logger, data paddle.SubscriptionData) error {
	if data.CustomerID == "" {
		log.Warn("missing customer id")
		return nil
	}
	user, err := s.userForCustomer(ctx, data.CustomerID)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warn("no user for customer", "customer_id", data.CustomerID)
		return nil
	}

	sub, err := s.subs.FindByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	if sub == nil {
		log.Warn("cancel for user without subscription", "user_id", user.ID)
		return nil
	}
	// A superseded subscription reaching its period end must not touch the current one.
	if data.ID != "" && sub.PaddleSubscriptionID != data.ID {
		log.Info("stale cancellation ignored", "user_id", user.ID, "current", sub.PaddleSubscriptionID)
		return nil
	}

	if err := s.subs.UpdateStatus(ctx, user.ID, data.Status); err != nil {
		return err
	}
	log.Info("subscription status updated", "user_id", user.ID, "status", data.Status)
	return nil
}

func (s *SubscriptionService) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.subs.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return nil, notFound("subscription")
	}
	return sub, nil
}

type ManagementLinks struct {
	ID        string `json:"id"`
	UpdateURL string `json:"update_url"`
	CancelURL string `json:"cancel_url"`
}

// ManagementURLs returns the provider-hosted pages for updating payment details and cancelling.
func (s *SubscriptionService) ManagementURLs(ctx context.Context, userID, subscriptionID string) (*ManagementLinks, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, invalid("subscriptionId is required")
	}
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.PaddleSubscriptionID != subscriptionID {
		return nil, notFound("subscription")
	}

	remote, err := s.paddle.Subscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, paddle.ErrNotFound) {
			return nil, notFound("subscription")
		}
		return nil, err
	}
	return &ManagementLinks{
		ID:        remote.ID,
		UpdateURL: remote.ManagementURLs.UpdatePaymentMethod,
		CancelURL: remote.ManagementURLs.Cancel,
	}, nil
}

// Upgrade moves the caller's subscription to priceID, billing the difference immediately, and
// resets the local balance to the new plan's allowance.
func (s *SubscriptionService) Upgrade(ctx context.Context, userID, priceID string) (*models.Subscription, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return nil, invalid("priceId is required")
	}
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	current, err := s.paddle.Subscription(ctx, sub.PaddleSubscriptionID)
	if err != nil {
		if errors.Is(err, paddle.ErrNotFound) {
			return nil, notFound("subscription")
		}
		return nil, err
	}
	for _, it := range current.Items {
		if it.Price.ID == priceID {
			return nil, invalid("subscription is already on price %s", priceID)
		}
	}

	updated, err := s.paddle.UpdateItems(ctx, sub.PaddleSubscriptionID, []paddle.Item{{Quantity: 1, Price: paddle.Price{ID: priceID}}})
	if err != nil {
		return nil, err
	}

	var productID string
	for _, it := range updated.Items {
		if it.Price.ID == priceID {
			productID = it.Price.ProductID
			break
		}
	}
	plan := s.plans.Plan(productID)
	if plan == models.PlanUnknown {
		return nil, fmt.Errorf("no known product for price %s", priceID)
	}

	credits := InitialCredits(plan)
	if err := s.subs.ReplacePlan(ctx, userID, plan, updated.Status, credits); err != nil {
		return nil, err
	}
	s.log.Info("subscription upgraded", "user_id", userID, "plan", plan, "credits", credits)

	sub.Plan = plan
	sub.Status = updated.Status
	sub.Credits = credits
	return sub, nil
}
