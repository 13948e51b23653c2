// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// Summary describes one subject document.
type Summary struct {
	File      string            `json:"file" yaml:"file"`
	Meta      types.SubjectMeta `json:"meta" yaml:"meta"`
	Exams     int               `json:"exams" yaml:"exams"`
	Questions int               `json:"questions" yaml:"questions"`
}

// List summarizes every readable subject document, ordered by subject name.
// Malformed documents are logged and left out.
func (s *Store) List() ([]Summary, error) {
	docs, err := s.documents()
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, path := range docs {
		lib, err := readLibrary(path)
		if err != nil {
			s.log.Warn("skipping unreadable subject document", "path", path, "error", err)
			continue
		}
		sum := Summary{File: filepath.Base(path), Meta: lib.Meta, Exams: len(lib.Exams)}
		for _, e := range lib.Exams {
			sum.Questions += len(e.Questions)
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Meta.Name != out[j].Meta.Name {
			return out[i].Meta.Name < out[j].Meta.Name
		}
		return out[i].File < out[j].File
	})
	return out, nil
}

// WriteIndex writes the List summaries to index.json in the library
// directory and returns its path.
func (s *Store) WriteIndex() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries, err := s.List()
	if err != nil {
		return "", err
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	path := filepath.Join(s.dir, IndexFile)
	if err := writeJSON(path, summaries); err != nil {
		return "", fmt.Errorf("writing index: %w", err)
	}
	return path, nil
}
