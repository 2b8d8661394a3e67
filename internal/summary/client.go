package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// Client calls the summarization service over HTTP. It satisfies Summarizer.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &Client{http: c}
}

func (c *Client) FoldRelationship(ctx context.Context, req FoldRequest) (FoldResult, error) {
	var res FoldResult
	err := c.post(ctx, "/v1/fold", &req, &res)
	return res, err
}

func (c *Client) FoldSelf(ctx context.Context, req SelfFoldRequest) (SelfFoldResult, error) {
	var res SelfFoldResult
	err := c.post(ctx, "/v1/fold/self", &req, &res)
	return res, err
}

// Ping reports whether the service answers at all; used by health checks.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/v1/health")
	if err != nil {
		return fmt.Errorf("summarizer ping: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("summarizer ping status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("summarizer request: %w", err)
	}
	if code := resp.StatusCode(); code != http.StatusOK {
		err := fmt.Errorf("summarizer status %d: %s", code, resp.String())
		// Client-side rejections never heal on retry; 429 still may.
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode summarizer response: %w", err)
	}
	return nil
}
