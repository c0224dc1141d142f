package openai

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

var ErrEmptyResponse = errors.New("openai returned no content")

type Client struct {
	apiKey     string
	baseURL    string
	chatModel  string
	imageModel string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(apiKey, baseURL, chatModel, imageModel string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if chatModel == "" {
		chatModel = "gpt-4o"
	}
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		imageModel: imageModel,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// CompletionRequest is one system + user exchange. Images, when present, are attached to the
// user turn as image_url parts.
type CompletionRequest struct {
	System      string
	User        string
	Images      []string
	MaxTokens   int
	Temperature float64
}

// Complete runs a chat completion and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	var userContent any = in.User
	if len(in.Images) > 0 {
		parts := make([]contentPart, 0, len(in.Images)+1)
		parts = append(parts, contentPart{Type: "text", Text: in.User})
		for _, u := range in.Images {
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: u}})
		}
		userContent = parts
	}

	payload := map[string]any{
		"model": c.chatModel,
		"messages": []message{
			{Role: "system", Content: in.System},
			{Role: "user", Content: userContent},
		},
		"max_tokens":  in.MaxTokens,
		"temperature": in.Temperature,
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/v1/chat/completions", payload, &parsed); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// GenerateImage renders one HD image for prompt and returns its temporary URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":           c.imageModel,
		"prompt":          prompt,
		"n":               1,
		"quality":         "hd",
		"response_format": "url",
	}

	var parsed struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/images/generations", payload, &parsed); err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	for _, d := range parsed.Data {
		if d.URL != "" {
			return d.URL, nil
		}
	}
	return "", ErrEmptyResponse
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("openai request failed", "path", path, "status", resp.StatusCode, "body", truncate(raw))
		}
		return fmt.Errorf("openai error %d: %s", resp.StatusCode, truncate(raw))
	}
	if c.log != nil {
		c.log.Debug("openai request done", "path", path, "duration", time.Since(start))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
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
