// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"os"
	"path/filepath"
	"sort"
)

// RefKind tells which bucket convention applies to a reference.
type RefKind int

const (
	KindQuestion RefKind = iota
	KindOption
)

// Ref is one image reference found in a raw document, already carrying its
// bucket prefix where the field convention requires one.
type Ref struct {
	Path string
	Kind RefKind
}

// Resolved maps raw references to the local filenames they were saved under.
type Resolved map[string]string

// Lookup returns the local filename for ref. References are matched as
// given, then with their bucket prefix, then by filename, so a lookup with
// the raw field value finds a download made from its prefixed form.
func (r Resolved) Lookup(ref string, kind RefKind) (string, bool) {
	if ref == "" || len(r) == 0 {
		return "", false
	}
	if name, ok := r[ref]; ok {
		return name, true
	}
	prefixed := QuestionFieldRef(ref)
	if kind == KindOption {
		prefixed = OptionFallbackRef(ref)
	}
	if name, ok := r[prefixed]; ok {
		return name, true
	}
	want := Filename(ref)
	for _, name := range r {
		if name == want {
			return name, true
		}
	}
	return "", false
}

// Filenames returns the distinct local filenames in r, sorted.
func (r Resolved) Filenames() []string {
	seen := make(map[string]bool, len(r))
	var out []string
	for _, name := range r {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// OnDisk resolves refs against images already saved under
// {destDir}/images, without any network access.
func OnDisk(refs []Ref, destDir string) Resolved {
	resolved := make(Resolved, len(refs))
	for _, ref := range refs {
		name := Filename(ref.Path)
		if name == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(destDir, ImagesDir, name)); err == nil {
			resolved[ref.Path] = name
		}
	}
	return resolved
}
