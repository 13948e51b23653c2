// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pyq-harvester/internal/httputil"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

const fakePNG = "\x89PNG fake"

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// imageServer serves fakePNG for any .png path except those containing
// "missing", and counts requests per path.
type imageServer struct {
	mu    sync.Mutex
	hits  map[string]int
	delay time.Duration
}

func (s *imageServer) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func newImageServer(t *testing.T, s *imageServer) *httptest.Server {
	t.Helper()
	s.hits = make(map[string]int)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, fakePNG)
	}))
}

func newTestFetcher(ts *httptest.Server) *Fetcher {
	return NewFetcher(ts.Client(), types.AssetConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second},
		BaseURL:    ts.URL,
		Workers:    4,
	}, nil)
}

func TestResolveURL(t *testing.T) {
	const base = "https://quizpractice.space"
	tests := []struct {
		ref  string
		want string
	}{
		{"https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"http://cdn.example.com/a.png", "http://cdn.example.com/a.png"},
		{"/question_images/q1.png", base + "/question_images/q1.png"},
		{"app/option_images/o1.png", base + "/app/option_images/o1.png"},
		{"bare.png", base + "/bare.png"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(base+"/", tt.ref))
		})
	}
}

func TestBucketRefs(t *testing.T) {
	assert.Equal(t, "/question_images/q1.png", QuestionFieldRef("q1.png"))
	assert.Equal(t, "/custom/q1.png", QuestionFieldRef("/custom/q1.png"))
	assert.Equal(t, "https://x/q1.png", QuestionFieldRef("https://x/q1.png"))
	assert.Equal(t, "app/option_images/o1.png", OptionFallbackRef("o1.png"))
	assert.Equal(t, "/o/o1.png", OptionFallbackRef("/o/o1.png"))
	assert.Equal(t, "", OptionFallbackRef(""))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "a.png", Filename("https://cdn.example.com/x/a.png?v=3"))
	assert.Equal(t, "b.jpg", Filename("/question_images/b.jpg"))
	assert.Equal(t, "c.png", Filename("c.png"))
	assert.Equal(t, "", Filename("https://cdn.example.com/"))
}

func TestCDNURL(t *testing.T) {
	const cdn = "https://cdn.example.com"
	tests := []struct {
		name   string
		ref    string
		option bool
		want   string
	}{
		{"absolute", "https://other/x.png", false, "https://other/x.png"},
		{"question bucket", "/question_images/q.png", false, cdn + "/question_images/q.png"},
		{"option bucket", "option_images/o.png", true, cdn + "/option_images/o.png"},
		{"bare question", "q.png", false, cdn + "/question_images/q.png"},
		{"bare option", "o.png", true, cdn + "/option_images/o.png"},
		{"app prefix", "app/option_images/o.png", true, cdn + "/option_images/o.png"},
		{"other path", "/static/x.png", false, cdn + "/static/x.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CDNURL(cdn+"/", tt.ref, tt.option))
		})
	}
}

func TestFetch_DownloadsIntoImagesDir(t *testing.T) {
	srv := &imageServer{}
	ts := newImageServer(t, srv)
	defer ts.Close()

	dir := t.TempDir()
	f := newTestFetcher(ts)

	name, ok := f.Fetch(context.Background(), "/question_images/q1.png", dir)
	require.True(t, ok)
	assert.Equal(t, "q1.png", name)

	data, err := os.ReadFile(filepath.Join(dir, ImagesDir, "q1.png"))
	require.NoError(t, err)
	assert.Equal(t, fakePNG, string(data))

	leftovers, err := filepath.Glob(filepath.Join(dir, ImagesDir, ".image-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFetch_Idempotent(t *testing.T) {
	srv := &imageServer{}
	ts := newImageServer(t, srv)
	defer ts.Close()

	dir := t.TempDir()
	f := newTestFetcher(ts)

	for i := 0; i < 2; i++ {
		name, ok := f.Fetch(context.Background(), "/question_images/q1.png", dir)
		require.True(t, ok)
		assert.Equal(t, "q1.png", name)
	}

	entries, err := os.ReadDir(filepath.Join(dir, ImagesDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, srv.count("/question_images/q1.png"), "second call must not hit the network")
}

func TestFetch_ExistingFileSkipped(t *testing.T) {
	srv := &imageServer{}
	ts := newImageServer(t, srv)
	defer ts.Close()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ImagesDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ImagesDir, "pre.png"), []byte("local"), 0o644))

	name, ok := newTestFetcher(ts).Fetch(context.Background(), "pre.png", dir)
	require.True(t, ok)
	assert.Equal(t, "pre.png", name)
	assert.Equal(t, 0, srv.count("/pre.png"))
}

func TestFetch_FailureIsolated(t *testing.T) {
	srv := &imageServer{}
	ts := newImageServer(t, srv)
	defer ts.Close()

	dir := t.TempDir()
	f := newTestFetcher(ts)

	_, ok := f.Fetch(context.Background(), "/question_images/missing.png", dir)
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(dir, ImagesDir, "missing.png"))
	assert.True(t, os.IsNotExist(err))

	_, ok = f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable.png", dir)
	assert.False(t, ok)

	name, ok := f.Fetch(context.Background(), "/question_images/fine.png", dir)
	assert.True(t, ok)
	assert.Equal(t, "fine.png", name)
}

func TestFetch_ConcurrentSameFileDownloadsOnce(t *testing.T) {
	srv := &imageServer{delay: 50 * time.Millisecond}
	ts := newImageServer(t, srv)
	defer ts.Close()

	dir := t.TempDir()
	f := newTestFetcher(ts)

	var wg sync.WaitGroup
	var okCount int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := f.Fetch(context.Background(), "/question_images/shared.png", dir); ok {
				atomic.AddInt32(&okCount, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), okCount)
	assert.Equal(t, 1, srv.count("/question_images/shared.png"))
}

func TestFetchAll(t *testing.T) {
	srv := &imageServer{}
	ts := newImageServer(t, srv)
	defer ts.Close()

	dir := t.TempDir()
	refs := []Ref{
		{Path: "/question_images/q1.png", Kind: KindQuestion},
		{Path: "/question_images/missing.png", Kind: KindQuestion},
		{Path: "app/option_images/o1.png", Kind: KindOption},
	}
	resolved := newTestFetcher(ts).FetchAll(context.Background(), refs, dir)

	assert.Equal(t, Resolved{
		"/question_images/q1.png":  "q1.png",
		"app/option_images/o1.png": "o1.png",
	}, resolved)
	assert.Equal(t, []string{"o1.png", "q1.png"}, resolved.Filenames())
}

func TestResolvedLookup(t *testing.T) {
	r := Resolved{
		"/question_images/q1.png":  "q1.png",
		"app/option_images/o1.png": "o1.png",
		"https://cdn/x/list.png":   "list.png",
	}
	name, ok := r.Lookup("q1.png", KindQuestion)
	assert.True(t, ok)
	assert.Equal(t, "q1.png", name)

	name, ok = r.Lookup("o1.png", KindOption)
	assert.True(t, ok)
	assert.Equal(t, "o1.png", name)

	name, ok = r.Lookup("https://cdn/x/list.png", KindQuestion)
	assert.True(t, ok)
	assert.Equal(t, "list.png", name)

	_, ok = r.Lookup("nope.png", KindQuestion)
	assert.False(t, ok)
	_, ok = Resolved(nil).Lookup("q1.png", KindQuestion)
	assert.False(t, ok)
}

func TestOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ImagesDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ImagesDir, "here.png"), []byte(fakePNG), 0o644))

	resolved := OnDisk([]Ref{
		{Path: "/question_images/here.png", Kind: KindQuestion},
		{Path: "app/option_images/gone.png", Kind: KindOption},
		{Path: "", Kind: KindQuestion},
	}, dir)

	assert.Equal(t, Resolved{"/question_images/here.png": "here.png"}, resolved)
}
