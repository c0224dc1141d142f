package replicate

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
)

var ErrPredictionFailed = errors.New("replicate prediction failed")

type Client struct {
	token        string
	baseURL      string
	httpClient   *http.Client
	log          *slog.Logger
	pollInterval time.Duration
	maxAttempts  int
}

type Option func(*Client)

// WithPolling overrides how often and how many times a pending prediction is polled.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxAttempts = attempts
	}
}

func NewClient(token, baseURL string, timeout time.Duration, log *slog.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:          log,
		pollInterval: 2 * time.Second,
		maxAttempts:  150,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// Run starts a prediction for the given "owner/name:version" reference and blocks until it
// reaches a terminal state. The provider output is returned untouched.
func (c *Client) Run(ctx context.Context, ref string, input map[string]any) (json.RawMessage, error) {
	version := ref
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		version = ref[i+1:]
	}
	if version == "" {
		return nil, fmt.Errorf("empty model version in %q", ref)
	}

	pred, err := c.create(ctx, version, input)
	if err != nil {
		return nil, fmt.Errorf("create prediction: %w", err)
	}
	if c.log != nil {
		c.log.Info("replicate prediction created", "prediction_id", pred.ID, "model", ref, "status", pred.Status)
	}

	for attempt := 0; ; attempt++ {
		switch pred.Status {
		case "succeeded":
			if c.log != nil {
				c.log.Info("replicate prediction completed", "prediction_id", pred.ID, "polls", attempt)
			}
			return pred.Output, nil
		case "failed", "canceled":
			msg := "unknown error"
			if pred.Error != nil {
				msg = fmt.Sprint(pred.Error)
			}
			if c.log != nil {
				c.log.Error("replicate prediction failed", "prediction_id", pred.ID, "status", pred.Status, "error", msg)
			}
			return nil, fmt.Errorf("%w: %s (%s)", ErrPredictionFailed, msg, pred.Status)
		case "starting", "processing", "":
		default:
			return nil, fmt.Errorf("unknown prediction status: %s", pred.Status)
		}

		if attempt >= c.maxAttempts {
			return nil, fmt.Errorf("prediction %s timeout after %d polls", pred.ID, c.maxAttempts)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		pred, err = c.get(ctx, pred.ID)
		if err != nil {
			return nil, fmt.Errorf("poll prediction: %w", err)
		}
	}
}

func (c *Client) create(ctx context.Context, version string, input map[string]any) (*prediction, error) {
	body, err := json.Marshal(map[string]any{
		"version": version,
		"input":   input,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, id string) (*prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("replicate request failed", "status", resp.StatusCode, "url", req.URL.String(), "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("replicate error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var pred prediction
	if err := json.Unmarshal(rawBody, &pred); err != nil {
		return nil, fmt.Errorf("decode prediction: %w (body=%s)", err, truncateBody(rawBody))
	}
	if pred.ID == "" {
		return nil, fmt.Errorf("prediction without id")
	}
	return &pred, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
