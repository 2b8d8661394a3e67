// Package notify sends push notifications through the external gateway.
// Delivery is best effort: callers log failures and never let them block
// the write that triggered the notification.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Gateway delivers one notification to one device token.
type Gateway interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
	// SendSilent delivers data without alerting the user, for recipients in
	// silent mode.
	SendSilent(ctx context.Context, token string, data map[string]string) error
}

// NopGateway drops every notification. Used in tests and local development.
type NopGateway struct{}

func (NopGateway) Send(context.Context, string, string, string, map[string]string) error {
	return nil
}

func (NopGateway) SendSilent(context.Context, string, map[string]string) error {
	return nil
}

// Client is the HTTP gateway implementation.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	return &Client{http: c}
}

type pushRequest struct {
	Token  string            `json:"token"`
	Title  string            `json:"title,omitempty"`
	Body   string            `json:"body,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
	Silent bool              `json:"silent,omitempty"`
}

func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	return c.post(ctx, pushRequest{Token: token, Title: title, Body: body, Data: data})
}

func (c *Client) SendSilent(ctx context.Context, token string, data map[string]string) error {
	return c.post(ctx, pushRequest{Token: token, Data: data, Silent: true})
}

func (c *Client) post(ctx context.Context, req pushRequest) error {
	resp, err := c.http.R().SetContext(ctx).SetBody(&req).Post("/v1/push")
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("push status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
