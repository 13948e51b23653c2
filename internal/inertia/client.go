// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inertia fetches page props from an Inertia.js application. Every
// data request carries the application's asset version token; the server
// answers 409 when the token is stale, and the client refreshes it once.
package inertia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pdiddy/pyq-harvester/internal/httputil"
	"github.com/pdiddy/pyq-harvester/internal/logger"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// Protocol header names.
const (
	HeaderInertia     = "X-Inertia"
	HeaderVersion     = "X-Inertia-Version"
	HeaderRequestWith = "X-Requested-With"
)

// maxBodyBytes bounds a single page response.
const maxBodyBytes = 32 << 20

var (
	// ErrVersionConflict reports a 409 that persisted after one refresh.
	ErrVersionConflict = errors.New("inertia version conflict")

	// ErrNoProps reports a 200 response without a props object.
	ErrNoProps = errors.New("response has no props object")
)

// StatusError is returned for a non-200 page response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Is lets errors.Is match a 409 StatusError against ErrVersionConflict.
func (e *StatusError) Is(target error) bool {
	return target == ErrVersionConflict && e.Code == http.StatusConflict
}

// Props is the opaque keyed map of one page's props.
type Props map[string]any

// Client owns an HTTP session and the cached version token for one crawl.
//
// The token starts unset. The first FetchPage calls Refresh, which reads it
// from the entry page. A 409 response calls Invalidate then Refresh and
// retries the request once. A Client is safe for concurrent use; the token
// is guarded by mu.
type Client struct {
	http    *http.Client
	baseURL string
	cfg     types.HTTPConfig
	log     *logger.Logger

	mu      sync.Mutex
	version string
	known   bool
}

// NewClient returns a client for the platform at cfg.BaseURL. httpClient
// should carry a cookie jar (see httputil.NewSession); nil builds one.
func NewClient(httpClient *http.Client, cfg types.ProtocolConfig, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if httpClient == nil {
		var err error
		if httpClient, err = httputil.NewSession(cfg.HTTPConfig); err != nil {
			return nil, err
		}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg.HTTPConfig,
		log:     logger.OrNop(log),
	}, nil
}

// BaseURL returns the platform origin without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying session, for sharing cookies with
// asset downloads.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Version returns the cached token and whether it has been obtained.
func (c *Client) Version() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, c.known
}

// Invalidate drops the cached token so the next request refreshes it.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.version, c.known = "", false
	c.mu.Unlock()
}

// Refresh fetches the entry page and caches its version token. An entry
// page without a token caches the empty token; requests then go out
// without the version header. Fetch errors leave the token unknown.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	v, err := c.discoverVersion(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.version, c.known = v, true
	c.mu.Unlock()
	if v == "" {
		c.log.Warn("no inertia version token found on entry page", "url", c.baseURL)
	} else {
		c.log.Debug("inertia version token", "version", v)
	}
	return v, nil
}

// FetchPage GETs pageURL with the protocol headers and returns its props.
// Relative pageURL values are resolved against the base URL. params are
// added to the query string.
func (c *Client) FetchPage(ctx context.Context, pageURL string, params url.Values) (Props, error) {
	target, err := c.resolve(pageURL, params)
	if err != nil {
		return nil, err
	}

	version, known := c.Version()
	if !known {
		if version, err = c.Refresh(ctx); err != nil {
			c.log.Warn("version discovery failed, continuing without token", "error", err)
		}
	}

	resp, err := c.get(ctx, target, version)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusConflict {
		drain(resp)
		c.log.Info("version mismatch, refreshing token", "url", target)
		c.Invalidate()
		if version, err = c.Refresh(ctx); err != nil {
			c.log.Warn("version refresh failed", "error", err)
		}
		if resp, err = c.get(ctx, target, version); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: target, Code: resp.StatusCode}
	}

	var page struct {
		Props Props `json:"props"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding page %s: %w", target, err)
	}
	if page.Props == nil {
		return nil, fmt.Errorf("%s: %w", target, ErrNoProps)
	}
	return page.Props, nil
}

func (c *Client) get(ctx context.Context, target, version string) (*http.Response, error) {
	req, err := httputil.NewGet(ctx, target, c.cfg)
	if err != nil {
		return nil, err
	}
	req.Header.Set(HeaderInertia, "true")
	if version != "" {
		req.Header.Set(HeaderVersion, version)
	}
	req.Header.Set(HeaderRequestWith, "XMLHttpRequest")
	req.Header.Set("Accept", "text/html, application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}
	return resp, nil
}

func (c *Client) resolve(pageURL string, params url.Values) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page URL %q: %w", pageURL, err)
	}
	if !u.IsAbs() {
		base, err := url.Parse(c.baseURL + "/")
		if err != nil {
			return "", fmt.Errorf("parsing base URL: %w", err)
		}
		u = base.ResolveReference(u)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
