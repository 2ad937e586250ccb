package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 64 << 10

// Client talks to the tracking service over HTTP.
//
//	GET  {base}/orders          -> plain-text active order id, possibly empty
//	POST {base}/tracks?{query}  -> JSON response, unused
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL, optionally routed through proxy.
func NewClient(baseURL, proxy string) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: transport},
	}, nil
}

// CurrentOrder fetches the active order identifier.
// An empty body yields an empty identifier and no error.
func (c *Client) CurrentOrder(ctx context.Context) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, "orders")
	if err != nil {
		return "", fmt.Errorf("build orders url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// ReportTrack posts a tracking record with the given query parameters.
func (c *Client) ReportTrack(ctx context.Context, query url.Values) error {
	endpoint, err := url.JoinPath(c.baseURL, "tracks")
	if err != nil {
		return fmt.Errorf("build tracks url: %w", err)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse tracks url: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: unexpected status %s", req.Method, req.URL.Path, resp.Status)
	}
	return body, nil
}
