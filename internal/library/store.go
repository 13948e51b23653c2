// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library persists normalized exams into per-subject JSON documents
// and keeps the images directory beside them, one subdirectory per exam.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/pdiddy/pyq-harvester/internal/logger"
	"github.com/pdiddy/pyq-harvester/internal/normalize"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

const (
	// IndexFile is the subject summary written by WriteIndex. It is never
	// treated as a subject document.
	IndexFile = "index.json"

	// ImagesDir holds the images of every stored exam, under
	// images/{examID}/.
	ImagesDir = "images"

	defaultLevel = "Unknown"
	defaultColor = "text-gray-400"
	unknownSlug  = "unknown"
)

// Store writes subject library documents under one directory. Upserts are
// serialized; a Store is safe for concurrent use within one process.
type Store struct {
	dir string
	cfg types.LibraryConfig
	log *logger.Logger
	mu  sync.Mutex
}

// NewStore returns a Store rooted at cfg.Dir, creating the directory and its
// images/ subdirectory.
func NewStore(cfg types.LibraryConfig, log *logger.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("library directory is required")
	}
	if err := os.MkdirAll(filepath.Join(cfg.Dir, ImagesDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating library directory %s: %w", cfg.Dir, err)
	}
	return &Store{dir: cfg.Dir, cfg: cfg, log: logger.OrNop(log)}, nil
}

// Dir returns the library directory.
func (s *Store) Dir() string { return s.dir }

// Upsert stores exam in the document of its subject. An existing document
// whose meta.name matches the subject is reused; otherwise a new {slug}.json
// is created. It returns the document path.
func (s *Store) Upsert(exam *types.Exam) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.resolve(exam.Subject)
	if err != nil {
		return "", err
	}
	return path, s.merge(path, exam, exam.Subject)
}

// UpsertInto stores exam in the document named by subjectKey: a file name
// ("maths.json"), a slug ("maths") or a subject name ("Maths I"). A new
// document created for a slug or subject name takes subjectKey as its
// meta.name; a new file name takes the exam's subject.
func (s *Store) UpsertInto(subjectKey string, exam *types.Exam) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, filepath.Base(subjectKey))
	if strings.HasSuffix(path, ".json") {
		return path, s.merge(path, exam, exam.Subject)
	}
	path, err := s.resolve(subjectKey)
	if err != nil {
		return "", err
	}
	return path, s.merge(path, exam, subjectKey)
}

// resolve returns the document for subject: the first document whose
// meta.name matches, or {slug}.json.
func (s *Store) resolve(subject string) (string, error) {
	docs, err := s.documents()
	if err != nil {
		return "", err
	}
	for _, path := range docs {
		lib, err := readLibrary(path)
		if err != nil {
			continue
		}
		if s.matches(lib.Meta.Name, subject) {
			return path, nil
		}
	}
	return filepath.Join(s.dir, Slug(subject)+".json"), nil
}

func (s *Store) matches(name, subject string) bool {
	if name == "" {
		return false
	}
	if s.cfg.SubjectMatch == types.MatchFold {
		return strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(subject))
	}
	return name == subject
}

// documents lists subject documents in name order.
func (s *Store) documents() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading library directory %s: %w", s.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == IndexFile || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(s.dir, e.Name()))
	}
	return out, nil
}

// merge loads the document at path, replaces or appends exam by id, and
// writes the document back atomically. A new document is named subject.
// Local image references of the stored copy point into the exam's image
// directory.
func (s *Store) merge(path string, exam *types.Exam, subject string) error {
	stored := *exam
	stored.Questions = append([]types.Question(nil), exam.Questions...)
	for i := range stored.Questions {
		stored.Questions[i].Options = append([]string{}, exam.Questions[i].Options...)
	}
	normalize.RewriteImages(&stored, normalize.LocalImagePrefixer(s.imageRefPrefix(stored.ID)))

	lib, err := readLibrary(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		lib = newLibrary(path, subject)
	case err != nil:
		s.log.Warn("malformed subject document, starting fresh", "path", path, "error", err)
		lib = newLibrary(path, subject)
	}

	if i := lib.FindExam(stored.ID); i >= 0 {
		lib.Exams[i] = stored
		s.log.Debug("replaced exam", "path", path, "exam", stored.ID)
	} else {
		lib.Exams = append(lib.Exams, stored)
		s.log.Debug("appended exam", "path", path, "exam", stored.ID)
	}

	if err := writeJSON(path, lib); err != nil {
		return fmt.Errorf("writing subject document %s: %w", path, err)
	}
	return nil
}

// imageRefPrefix is the reference prefix of an exam's images in a stored
// document: {image_prefix or "images"}/{exam dir}.
func (s *Store) imageRefPrefix(examID string) string {
	base := ImagesDir
	if s.cfg.ImagePrefix != "" {
		base = strings.TrimRight(s.cfg.ImagePrefix, "/")
	}
	return base + "/" + ExamImageDir(examID)
}

// ExamImageDir returns the images/ subdirectory name for an exam id.
// Characters other than letters, digits, "-", "_" and "." become "_".
func ExamImageDir(examID string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, examID)
	switch name {
	case "", ".", "..":
		return "exam"
	}
	return name
}

// Load reads the subject document at path.
func (s *Store) Load(path string) (*types.SubjectLibrary, error) {
	return readLibrary(path)
}

func readLibrary(path string) (*types.SubjectLibrary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lib types.SubjectLibrary
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if lib.Exams == nil {
		lib.Exams = []types.Exam{}
	}
	return &lib, nil
}

// newLibrary returns the default document for a new subject file.
func newLibrary(path, subject string) *types.SubjectLibrary {
	slug := strings.TrimSuffix(filepath.Base(path), ".json")
	name := strings.TrimSpace(subject)
	if name == "" {
		name = slug
	}
	return &types.SubjectLibrary{
		Meta: types.SubjectMeta{
			ID:    slug,
			Name:  name,
			Code:  strings.ToUpper(slug),
			Level: defaultLevel,
			Color: defaultColor,
		},
		Exams: []types.Exam{},
	}
}

// Slug keeps the letters and digits of subject, lower-cased. A subject
// with none yields "unknown".
func Slug(subject string) string {
	var b strings.Builder
	for _, r := range subject {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	if b.Len() == 0 {
		return unknownSlug
	}
	return b.String()
}

// writeJSON writes v as indented JSON through a temp file and rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	data = append(data, '\n')

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".library-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
