package models

import (
	"encoding/json"
	"time"
)

type PlanName string

const (
	PlanBasic    PlanName = "Basic"
	PlanStandard PlanName = "Standard"
	PlanPremium  PlanName = "Premium"
	PlanUnknown  PlanName = "Unknown"
)

type LogoMode string

const (
	LogoModeCreate       LogoMode = "create-logo"
	LogoModeSketchToLogo LogoMode = "sketch-to-logo"
	LogoModeLogoToLogo   LogoMode = "logo-to-logo"
)

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FreeCredit int       `json:"freeCredit"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Subscription struct {
	ID                   int64     `json:"id"`
	UserID               string    `json:"userId"`
	PaddleSubscriptionID string    `json:"paddleSubscriptionId"`
	Plan                 PlanName  `json:"plan"`
	Status               string    `json:"status"`
	Credits              int       `json:"credits"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

type Logo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Prompt    string    `json:"prompt"`
	URLs      []string  `json:"urls"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	LogoID    string    `json:"logoId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Balance is a snapshot of both credit counters of a user.
type Balance struct {
	Free         int  `json:"freeCredit"`
	Subscription int  `json:"subscriptionCredits"`
	HasPlan      bool `json:"hasSubscription"`
}

func (b Balance) Total() int {
	return b.Free + b.Subscription
}

// EncodeURLs and DecodeURLs convert the logo url list to and from its JSON column.
func EncodeURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeURLs(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, err
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}
