package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrNotFound = errors.New("paddle resource not found")

const customerCacheSize = 1024

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
	customers  *lru.Cache[string, string]
}

func NewClient(apiKey, baseURL string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cache, err := lru.New[string, string](customerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("customer cache: %w", err)
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		customers:  cache,
	}, nil
}

type Price struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
}

type Item struct {
	Status   string `json:"status,omitempty"`
	Quantity int    `json:"quantity"`
	Price    Price  `json:"price"`
}

type ManagementURLs struct {
	UpdatePaymentMethod string `json:"update_payment_method"`
	Cancel              string `json:"cancel"`
}

const (
	StatusCanceled = "canceled"
	ActionCancel   = "cancel"
)

type ScheduledChange struct {
	Action      string `json:"action"`
	EffectiveAt string `json:"effective_at"`
}

type Subscription struct {
	ID              string           `json:"id"`
	Status          string           `json:"status"`
	CustomerID      string           `json:"customer_id"`
	Items           []Item           `json:"items"`
	ScheduledChange *ScheduledChange `json:"scheduled_change"`
	ManagementURLs  ManagementURLs   `json:"management_urls"`
}

type customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CustomerEmail resolves a customer id to its email. Emails are cached; they do not change for
// the lifetime of a customer in our flows.
func (c *Client) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	if email, ok := c.customers.Get(customerID); ok {
		return email, nil
	}
	var out customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+customerID, nil, &out); err != nil {
		return "", fmt.Errorf("get customer %s: %w", customerID, err)
	}
	if out.Email == "" {
		return "", fmt.Errorf("customer %s has no email", customerID)
	}
	c.customers.Add(customerID, out.Email)
	return out.Email, nil
}

func (c *Client) Subscription(ctx context.Context, id string) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return &out, nil
}

// CancelAtPeriodEnd schedules cancellation for the end of the current billing period.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, id string) error {
	body := map[string]string{"effective_from": "next_billing_period"}
	if err := c.do(ctx, http.MethodPost, "/subscriptions/"+id+"/cancel", body, nil); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", id, err)
	}
	return nil
}

type itemUpdate struct {
	PriceID  string `json:"price_id"`
	Quantity int    `json:"quantity"`
}

// UpdateItems replaces the subscription items and bills the difference immediately.
func (c *Client) UpdateItems(ctx context.Context, id string, items []Item) (*Subscription, error) {
	updates := make([]itemUpdate, 0, len(items))
	for _, it := range items {
		updates = append(updates, itemUpdate{PriceID: it.Price.ID, Quantity: it.Quantity})
	}
	body := map[string]any{
		"items":                  updates,
		"proration_billing_mode": "full_immediately",
	}
	var out Subscription
	if err := c.do(ctx, http.MethodPatch, "/subscriptions/"+id, body, &out); err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paddle request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("paddle request failed", "method", method, "path", path, "status", resp.StatusCode)
		}
		return fmt.Errorf("paddle error: status=%d body=%s", resp.StatusCode, truncate(raw))
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("paddle response without data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		return s[:512] + "…"
	}
	return s
}
