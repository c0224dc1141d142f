package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const SignatureHeader = "Paddle-Signature"

const (
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
)

var (
	ErrMissingSignature = errors.New("missing signature or request body")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verifier checks the Paddle-Signature header: "ts=<unix>;h1=<hex hmac>" where the HMAC-SHA256
// is computed over "<ts>:<raw body>" with the notification secret.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

func (v *Verifier) Verify(header string, body []byte) error {
	if strings.TrimSpace(header) == "" || len(body) == 0 {
		return ErrMissingSignature
	}

	var ts string
	var hashes []string
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "h1":
			hashes = append(hashes, value)
		}
	}
	if ts == "" || len(hashes) == 0 {
		return ErrInvalidSignature
	}

	if v.tolerance > 0 {
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return ErrInvalidSignature
		}
		if v.now().Sub(time.Unix(unix, 0)) > v.tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	expected := Sign(v.secret, ts, body)
	for _, h := range hashes {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(h))) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign returns the hex HMAC for ts and body.
func Sign(secret []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is the subset of a Paddle notification the reconciler reads.
type Event struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Data      SubscriptionData `json:"data"`
}

type SubscriptionData struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
	Items      []Item `json:"items"`
}

// ProductID is the product of the first item, which is how plans are identified.
func (d SubscriptionData) ProductID() string {
	if len(d.Items) == 0 {
		return ""
	}
	return d.Items[0].Price.ProductID
}

func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.EventType == "" {
		return nil, fmt.Errorf("event without type")
	}
	return &ev, nil
}
