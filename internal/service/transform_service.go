package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/LogoForge/internal/metrics"
	"github.com/digkill/LogoForge/internal/replicate"
)

// Predictor runs a hosted model to completion.
type Predictor interface {
	Run(ctx context.Context, ref string, input map[string]any) (json.RawMessage, error)
}

type TransformService struct {
	predictor Predictor
	credits   *CreditService
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewTransformService(predictor Predictor, credits *CreditService, m *metrics.Metrics, log *slog.Logger) *TransformService {
	if log == nil {
		log = slog.Default()
	}
	return &TransformService{predictor: predictor, credits: credits, metrics: m, log: log}
}

// Run executes model for the user. Credit-gated models check the balance before touching the
// provider and charge only after the provider succeeded.
func (s *TransformService) Run(ctx context.Context, userID string, model replicate.Model, input any) (json.RawMessage, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if model.Credits > 0 {
		balance, err := s.credits.Available(ctx, userID)
		if err != nil {
			return nil, err
		}
		if balance.Total() < model.Credits {
			return nil, &InsufficientCreditsError{Required: model.Credits, Available: balance.Total()}
		}
	}

	if err := model.Validate(input); err != nil {
		return nil, invalid("%v", err)
	}

	start := time.Now()
	output, err := s.predictor.Run(ctx, model.Ref, input.(map[string]any))
	s.metrics.Generation(model.Slug, start, err)
	if err != nil {
		return nil, fmt.Errorf("%s prediction: %w", model.Slug, err)
	}

	if model.Credits > 0 {
		if _, err := s.credits.Deduct(ctx, userID, model.Credits); err != nil {
			s.log.Error("charge after prediction failed", "user_id", userID, "model", model.Slug, "err", err)
			return nil, err
		}
	}
	s.log.Info("transform completed", "user_id", userID, "model", model.Slug, "duration", time.Since(start))
	return output, nil
}
