// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"

	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// NewSession returns an HTTP client with its own cookie jar, so cookies set
// by the platform (session, XSRF) persist across the requests of one crawl.
func NewSession(cfg types.HTTPConfig) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &http.Client{
		Timeout: cfg.Timeout,
		Jar:     jar,
	}, nil
}

// NewGet builds a GET request carrying the configured User-Agent.
func NewGet(ctx context.Context, url string, cfg types.HTTPConfig) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	return req, nil
}
