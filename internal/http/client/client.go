// Package client provides the HTTP client shared by the page fetcher and the downloader.
// Every request carries the same user agent and is bound to the caller's context.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client is the classic http client with a given user agent string.
type Client struct {
	hc        *http.Client
	userAgent string
}

type Option func(c *Client)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout bounds a whole request, body read included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

// WithTransport replaces the round tripper, typically with an instrumented one.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// WithHTTPClient uses hc as the underlying client. Options applied after it modify hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		hc: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get issues a GET request. The response is returned whatever its status;
// the caller owns the body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// Do sends an arbitrary request with the client's user agent.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	return c.hc.Do(req)
}
