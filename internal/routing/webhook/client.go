// Package webhook posts routed signals to crisis partner endpoints.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"beacon/pkg/platform/middleware/request"
)

const (
	HeaderSignalID     = "X-Beacon-Signal-Id"
	HeaderDeliveryID   = "X-Beacon-Delivery-Id"
	defaultTimeout     = 10 * time.Second
	maxErrorBodyLength = 256
)

// Ack is the partner's synchronous response. Partners that open a case
// immediately return Acknowledged with their reference id; others confirm
// later through the acknowledgement callback.
type Ack struct {
	Acknowledged       bool    `json:"acknowledged"`
	PartnerReferenceID *string `json:"partnerReferenceId"`
}

// StatusError is returned for non-2xx partner responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned %d: %s", e.StatusCode, e.Body)
}

// Client is safe for concurrent use. Retries are owned by the routing
// engine, so resty's own retry is disabled.
type Client struct {
	http *resty.Client
}

type Option func(*resty.Client)

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

// WithTransport swaps the round tripper; tests use httptest TLS servers.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *resty.Client) {
		c.SetTransport(rt)
	}
}

func New(opts ...Option) *Client {
	c := resty.New().
		SetTimeout(defaultTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "beacon-router/1")
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

// Delivery is one POST to a partner.
type Delivery struct {
	URL        string
	Credential string
	SignalID   string
	DeliveryID string
	Body       any
}

// Deliver posts the body with the partner credential as a bearer token.
// The credential is never included in returned errors.
func (c *Client) Deliver(ctx context.Context, d Delivery) (*Ack, error) {
	var ack Ack
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(d.Credential).
		SetHeader(HeaderSignalID, d.SignalID).
		SetHeader(HeaderDeliveryID, d.DeliveryID).
		SetBody(d.Body).
		SetResult(&ack)
	if reqID := request.GetRequestID(ctx); reqID != "" {
		req.SetHeader(request.HeaderRequestID, reqID)
	}

	resp, err := req.Post(d.URL)
	if err != nil {
		return nil, fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: truncateBody(resp.String())}
	}
	return &ack, nil
}

// truncateBody caps a partner error body at maxErrorBodyLength bytes without
// splitting a rune, so lastError stays valid UTF-8.
func truncateBody(body string) string {
	if len(body) <= maxErrorBodyLength {
		return body
	}
	cut := maxErrorBodyLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
