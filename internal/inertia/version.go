// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inertia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/html"
)

// rootElementID is the id of the element Inertia mounts on.
const rootElementID = "app"

// discoverVersion requests the entry page without protocol headers and
// returns the version from the X-Inertia-Version header, falling back to
// the data-page JSON of the root element. An empty string means the page
// carries neither.
func (c *Client) discoverVersion(ctx context.Context) (string, error) {
	req, err := newEntryRequest(ctx, c)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching entry page: %w", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get(HeaderVersion); v != "" {
		return v, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("entry page returned HTTP %d", resp.StatusCode)
	}
	return VersionFromHTML(io.LimitReader(resp.Body, maxBodyBytes))
}

func newEntryRequest(ctx context.Context, c *Client) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating entry request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	return req, nil
}

// VersionFromHTML parses an HTML document and returns the "version" field
// of the JSON held in the root element's data-page attribute. A document
// without that attribute yields "" and no error.
func VersionFromHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing entry page: %w", err)
	}

	raw, ok := findDataPage(doc)
	if !ok {
		return "", nil
	}

	var page struct {
		Version json.RawMessage `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		return "", fmt.Errorf("decoding data-page: %w", err)
	}
	return versionString(page.Version), nil
}

// findDataPage walks the tree for the root element, preferring id="app"
// and accepting any element with a data-page attribute otherwise.
func findDataPage(n *html.Node) (string, bool) {
	var fallback string
	var found, haveFallback bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode {
			var id, page string
			var hasPage bool
			for _, a := range n.Attr {
				switch a.Key {
				case "id":
					id = a.Val
				case "data-page":
					page, hasPage = a.Val, true
				}
			}
			if hasPage {
				if id == rootElementID {
					fallback, found = page, true
					return
				}
				if !haveFallback {
					fallback, haveFallback = page, true
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return fallback, found || haveFallback
}

// versionString accepts the version as a JSON string or number.
func versionString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
