// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inertia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// platform is a fake Inertia server. The entry page advertises the current
// version; data pages answer 409 while the request's version differs.
type platform struct {
	version      atomic.Value // string
	entryHits    int32
	pageHits     int32
	headerToken  bool
	alwaysStale  bool
	lastHeaders  atomic.Value // http.Header
	pageResponse string
}

func newPlatform(t *testing.T, p *platform) *httptest.Server {
	t.Helper()
	if p.pageResponse == "" {
		p.pageResponse = `{"component":"Paper","props":{"question_paper":{"questions":[{"id":1}]}},"version":"v2"}`
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := p.version.Load().(string)
		if r.URL.Path == "/" && r.Header.Get(HeaderInertia) == "" {
			atomic.AddInt32(&p.entryHits, 1)
			if p.headerToken {
				w.Header().Set(HeaderVersion, current)
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<!DOCTYPE html><html><body><div id="app" data-page='{"component":"Home","version":%q}'></div></body></html>`, current)
			return
		}

		atomic.AddInt32(&p.pageHits, 1)
		p.lastHeaders.Store(r.Header.Clone())
		if p.alwaysStale || r.Header.Get(HeaderVersion) != current {
			w.Header().Set("X-Inertia-Location", r.URL.String())
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, p.pageResponse)
	}))
}

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(nil, types.ProtocolConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "pyq-harvester/test"},
		BaseURL:    ts.URL,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestFetchPage_SendsProtocolHeaders(t *testing.T) {
	p := &platform{}
	p.version.Store("v1")
	ts := newPlatform(t, p)
	defer ts.Close()

	c := newTestClient(t, ts)
	props, err := c.FetchPage(context.Background(), "/question-paper/practise/1/abc", nil)
	require.NoError(t, err)
	assert.Contains(t, props, "question_paper")

	h := p.lastHeaders.Load().(http.Header)
	assert.Equal(t, "true", h.Get(HeaderInertia))
	assert.Equal(t, "v1", h.Get(HeaderVersion))
	assert.Equal(t, "XMLHttpRequest", h.Get(HeaderRequestWith))
	assert.Equal(t, "pyq-harvester/test", h.Get("User-Agent"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.entryHits), "token fetched lazily once")
}

func TestFetchPage_TokenCachedAcrossRequests(t *testing.T) {
	p := &platform{headerToken: true}
	p.version.Store("v1")
	ts := newPlatform(t, p)
	defer ts.Close()

	c := newTestClient(t, ts)
	for i := 0; i < 3; i++ {
		_, err := c.FetchPage(context.Background(), "/page", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.entryHits))
	assert.Equal(t, int32(3), atomic.LoadInt32(&p.pageHits))
}

func TestFetchPage_RefreshesOnceOnConflict(t *testing.T) {
	p := &platform{}
	p.version.Store("v1")
	ts := newPlatform(t, p)
	defer ts.Close()

	c := newTestClient(t, ts)
	_, err := c.FetchPage(context.Background(), "/page", nil)
	require.NoError(t, err)

	// The platform deploys a new build; the cached token is now stale.
	p.version.Store("v2")
	_, err = c.FetchPage(context.Background(), "/page", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&p.entryHits), "one refresh after the conflict")
	assert.Equal(t, int32(3), atomic.LoadInt32(&p.pageHits), "one retried request")
	v, known := c.Version()
	assert.True(t, known)
	assert.Equal(t, "v2", v)
}

func TestFetchPage_SecondConflictFails(t *testing.T) {
	p := &platform{alwaysStale: true}
	p.version.Store("v1")
	ts := newPlatform(t, p)
	defer ts.Close()

	c := newTestClient(t, ts)
	_, err := c.FetchPage(context.Background(), "/page", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.Code)

	// Initial lazy discovery + exactly one refresh; first try + exactly one retry.
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.entryHits))
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.pageHits))
}

func TestFetchPage_NonOKIsFailureValue(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderInertia) == "" {
			return
		}
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	_, err := c.FetchPage(context.Background(), "/missing", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.NotErrorIs(t, err, ErrVersionConflict)
}

func TestFetchPage_NoTokenStillRequests(t *testing.T) {
	var sentVersion atomic.Bool
	var pageHits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderInertia) == "" {
			fmt.Fprint(w, `<html><body><p>maintenance</p></body></html>`)
			return
		}
		atomic.AddInt32(&pageHits, 1)
		if _, ok := r.Header[http.CanonicalHeaderKey(HeaderVersion)]; ok {
			sentVersion.Store(true)
		}
		fmt.Fprint(w, `{"props":{"exams":[]}}`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	props, err := c.FetchPage(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Contains(t, props, "exams")
	assert.Equal(t, int32(1), atomic.LoadInt32(&pageHits))
	assert.False(t, sentVersion.Load(), "no version header without a token")
}

func TestFetchPage_MissingProps(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderVersion, "v1")
		fmt.Fprint(w, `{"component":"Home"}`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	_, err := c.FetchPage(context.Background(), "/", nil)
	assert.ErrorIs(t, err, ErrNoProps)
}

func TestFetchPage_Params(t *testing.T) {
	var gotQuery atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderVersion, "v1")
		gotQuery.Store(r.URL.RawQuery)
		fmt.Fprint(w, `{"props":{}}`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	_, err := c.FetchPage(context.Background(), "/course/7?tab=papers", url.Values{"course_id": {"7"}})
	require.NoError(t, err)
	q := gotQuery.Load().(string)
	assert.Contains(t, q, "tab=papers")
	assert.Contains(t, q, "course_id=7")
}

func TestVersionFromHTML(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"root element", `<div id="app" data-page='{"version":"abc123"}'></div>`, "abc123"},
		{"entity encoded", `<div id="app" data-page="{&quot;version&quot;:&quot;e1&quot;}"></div>`, "e1"},
		{"numeric version", `<div id="app" data-page='{"version":42}'></div>`, "42"},
		{"other element", `<main data-page='{"version":"m1"}'></main>`, "m1"},
		{"root preferred", `<main data-page='{"version":"m1"}'></main><div id="app" data-page='{"version":"a1"}'></div>`, "a1"},
		{"absent", `<div id="app"></div>`, ""},
		{"null version", `<div id="app" data-page='{"version":null}'></div>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VersionFromHTML(strings.NewReader("<html><body>" + tt.doc + "</body></html>"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionFromHTML_BadJSON(t *testing.T) {
	_, err := VersionFromHTML(strings.NewReader(`<div id="app" data-page='{oops'></div>`))
	assert.Error(t, err)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(nil, types.ProtocolConfig{}, nil)
	assert.Error(t, err)
}
