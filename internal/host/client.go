// Package host implements the page surfaces over HTTP. Pages are fetched and
// parsed as HTML, composite inputs are added to the parsed tree, and forms are
// submitted the way a browser would submit them.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marcogenualdo/discord-join/internal/config"
	"golang.org/x/net/html"
)

const maxPageBytes = 4 << 20

// StatusError is returned when the host answers with a 4xx or 5xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("host returned status %d for %s %s", e.StatusCode, e.Method, e.URL)
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(hostCfg config.HostConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	baseURL, err := url.Parse(hostCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid host url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("host url must be absolute: %s", hostCfg.URL)
	}

	if httpClient == nil {
		timeout := hostCfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Resolve returns the absolute URL of a host path.
func (c *Client) Resolve(path string) *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: path})
}

// fetch loads and parses a page. The returned URL is the final one after
// redirects and serves as the base for relative form actions.
func (c *Client) fetch(ctx context.Context, path string) (*html.Node, *url.URL, error) {
	target := c.Resolve(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		return nil, nil, &StatusError{Method: http.MethodGet, URL: target.String(), StatusCode: resp.StatusCode}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", target, err)
	}

	return doc, resp.Request.URL, nil
}

// submit sends form values to the form's action using the form's method.
func (c *Client) submit(ctx context.Context, pageURL *url.URL, form *html.Node, values url.Values) error {
	target := pageURL
	if action := attr(form, "action"); action != "" {
		ref, err := url.Parse(action)
		if err != nil {
			return fmt.Errorf("invalid form action %q: %w", action, err)
		}
		target = pageURL.ResolveReference(ref)
	}

	method := strings.ToUpper(attr(form, "method"))
	if method == "" {
		method = http.MethodGet
	}

	var req *http.Request
	var err error
	switch method {
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, method, target.String(), strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		u := *target
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		method = http.MethodGet
	}
	if err != nil {
		return fmt.Errorf("failed to build form request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error repeats the request URL, which carries the form values on GET.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("failed to submit form to %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))

	if resp.StatusCode >= 400 {
		return &StatusError{Method: method, URL: target.String(), StatusCode: resp.StatusCode}
	}

	c.logger.Debug("form submitted", "method", method, "url", target.String(), "status", resp.StatusCode)
	return nil
}
