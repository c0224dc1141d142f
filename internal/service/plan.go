package service

import "github.com/digkill/LogoForge/internal/models"

// PlanCatalog maps Paddle product ids to plans and their credit allowances.
type PlanCatalog struct {
	BasicProductID    string
	StandardProductID string
	PremiumProductID  string
}

func (c PlanCatalog) Plan(productID string) models.PlanName {
	switch {
	case productID == "":
		return models.PlanUnknown
	case productID == c.BasicProductID:
		return models.PlanBasic
	case productID == c.StandardProductID:
		return models.PlanStandard
	case productID == c.PremiumProductID:
		return models.PlanPremium
	default:
		return models.PlanUnknown
	}
}

// InitialCredits is the balance granted when a user first subscribes to plan.
func InitialCredits(plan models.PlanName) int {
	switch plan {
	case models.PlanBasic:
		return 60
	case models.PlanStandard:
		return 180
	case models.PlanPremium:
		return 300
	default:
		return 0
	}
}

// TopUpCredits is added to the existing balance when a subscriber moves to plan.
func TopUpCredits(plan models.PlanName) int {
	switch plan {
	case models.PlanBasic:
		return 25
	case models.PlanStandard:
		return 80
	case models.PlanPremium:
		return 125
	default:
		return 0
	}
}
