// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assets resolves image references found in raw paper documents and
// downloads them into a paper's working directory.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/pyq-harvester/internal/httputil"
	"github.com/pdiddy/pyq-harvester/internal/logger"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// ImagesDir is the subdirectory of a paper directory that holds its images.
const ImagesDir = "images"

const defaultWorkers = 4

// Fetcher downloads images. A file that already exists under
// {destDir}/images is never fetched again; concurrent requests for the same
// file share one download.
type Fetcher struct {
	client  *http.Client
	baseURL string
	cfg     types.AssetConfig
	log     *logger.Logger
	flight  singleflight.Group
}

// NewFetcher returns a Fetcher that resolves relative references against
// cfg.BaseURL. A nil client uses a plain client with cfg.Timeout.
func NewFetcher(client *http.Client, cfg types.AssetConfig, log *logger.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Fetcher{
		client:  client,
		baseURL: cfg.BaseURL,
		cfg:     cfg,
		log:     logger.OrNop(log),
	}
}

// Fetch resolves rawRef and downloads it into {destDir}/images. It returns
// the bare filename and true on success or when the file already exists,
// and false when the reference cannot be resolved or downloaded. Failures
// are logged and never returned; one bad image does not affect its siblings.
func (f *Fetcher) Fetch(ctx context.Context, rawRef, destDir string) (string, bool) {
	src := ResolveURL(f.baseURL, rawRef)
	name := Filename(src)
	if name == "" {
		return "", false
	}
	imgDir := filepath.Join(destDir, ImagesDir)
	dest := filepath.Join(imgDir, name)

	_, err, _ := f.flight.Do(dest, func() (any, error) {
		if _, err := os.Stat(dest); err == nil {
			return nil, nil
		}
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", imgDir, err)
		}
		f.log.Debug("downloading image", "url", src, "file", name)
		return nil, f.download(ctx, src, dest)
	})
	if err != nil {
		f.log.Warn("image download failed", "ref", rawRef, "url", src, "error", err)
		return "", false
	}
	return name, true
}

// FetchAll downloads every reference with bounded parallelism and returns
// the references that resolved to local files.
func (f *Fetcher) FetchAll(ctx context.Context, refs []Ref, destDir string) Resolved {
	resolved := make(Resolved, len(refs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if name, ok := f.Fetch(gctx, ref.Path, destDir); ok {
				mu.Lock()
				resolved[ref.Path] = name
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return resolved
}

// download fetches src to dest using a temporary file in the same
// directory, renamed on success, so an interrupted download never leaves a
// file that looks complete.
func (f *Fetcher) download(ctx context.Context, src, dest string) error {
	req, err := httputil.NewGet(ctx, src, f.cfg.HTTPConfig)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := httputil.DoWithRetry(ctx, f.client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".image-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }
