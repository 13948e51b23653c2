// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest runs one paper through fetch, raw save, image download,
// normalization and library storage.
package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/pyq-harvester/internal/assets"
	"github.com/pdiddy/pyq-harvester/internal/inertia"
	"github.com/pdiddy/pyq-harvester/internal/ledger"
	"github.com/pdiddy/pyq-harvester/internal/library"
	"github.com/pdiddy/pyq-harvester/internal/logger"
	"github.com/pdiddy/pyq-harvester/internal/normalize"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

const defaultRawFile = "paper"

// PageFetcher fetches the props of one platform page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string, params url.Values) (inertia.Props, error)
}

// Result describes one processed paper.
type Result struct {
	PaperURL    string
	ExamID      string
	Subject     string
	Questions   int
	ImageRefs   int
	Images      int
	RawPath     string
	LibraryPath string

	// ReusedID is true when the exam id came from the ledger.
	ReusedID bool
}

// Pipeline processes papers. The ledger is optional.
type Pipeline struct {
	pages   PageFetcher
	fetcher *assets.Fetcher
	norm    *normalize.Normalizer
	store   *library.Store
	ledger  *ledger.Ledger
	workDir string
	cfg     types.AssetConfig
	log     *logger.Logger

	// Now supplies the clock for temp directory names.
	Now func() time.Time
}

// Deps holds the collaborators of a Pipeline.
type Deps struct {
	Pages      PageFetcher
	Fetcher    *assets.Fetcher
	Normalizer *normalize.Normalizer
	Store      *library.Store
	Ledger     *ledger.Ledger
	Logger     *logger.Logger
}

// NewPipeline returns a Pipeline writing raw documents under cfg.WorkDir.
func NewPipeline(cfg types.HarvestConfig, deps Deps) (*Pipeline, error) {
	if deps.Pages == nil || deps.Fetcher == nil || deps.Normalizer == nil || deps.Store == nil {
		return nil, errors.New("pipeline needs a page fetcher, asset fetcher, normalizer and store")
	}
	if cfg.WorkDir == "" {
		return nil, errors.New("work directory is required")
	}
	return &Pipeline{
		pages:   deps.Pages,
		fetcher: deps.Fetcher,
		norm:    deps.Normalizer,
		store:   deps.Store,
		ledger:  deps.Ledger,
		workDir: cfg.WorkDir,
		cfg:     cfg.Assets,
		log:     logger.OrNop(deps.Logger),
		Now:     time.Now,
	}, nil
}

// Process fetches paperURL and stores its exam in the subject library
// document chosen by the exam's subject. pathParts name the raw document:
// all but the last are directories under the work directory and the last
// is the file name.
func (p *Pipeline) Process(ctx context.Context, paperURL string, pathParts []string) (Result, error) {
	return p.ProcessInto(ctx, paperURL, pathParts, "")
}

// ProcessInto is Process with an explicit subject document; an empty
// subjectKey routes by the exam's subject.
func (p *Pipeline) ProcessInto(ctx context.Context, paperURL string, pathParts []string, subjectKey string) (Result, error) {
	res := Result{PaperURL: paperURL}
	log := p.log.With("url", paperURL)

	props, err := p.pages.FetchPage(ctx, paperURL, nil)
	if err != nil {
		return res, fmt.Errorf("fetching paper: %w", err)
	}
	doc := normalize.RawDocument(props, paperURL)
	if len(doc.Questions) == 0 {
		return res, normalize.ErrNoQuestions
	}

	saveDir, rawPath := p.rawLocation(pathParts)
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return res, fmt.Errorf("creating directory %s: %w", saveDir, err)
	}
	doc.LocalSaveDir = saveDir
	doc.LocalFilePath = rawPath

	refs := normalize.CollectImages(doc.Questions)
	res.ImageRefs = len(refs)
	var resolved assets.Resolved
	if p.cfg.Download && len(refs) > 0 {
		resolved = p.fetcher.FetchAll(ctx, refs, saveDir)
		res.Images = len(resolved)
		log.Debug("images resolved", "refs", len(refs), "downloaded", len(resolved))
	}

	if err := writeRaw(rawPath, doc); err != nil {
		return res, err
	}
	res.RawPath = rawPath

	examID := ""
	if p.ledger != nil {
		entry, ok, err := p.ledger.Lookup(ctx, paperURL)
		if err != nil {
			log.Warn("ledger lookup failed", "error", err)
		} else if ok {
			examID = entry.ExamID
			res.ReusedID = true
		}
	}

	exam, err := p.norm.Build(normalize.DocumentTree(doc), resolved, examID)
	if err != nil {
		return res, fmt.Errorf("normalizing paper: %w", err)
	}
	res.ExamID = exam.ID
	res.Subject = exam.Subject
	res.Questions = len(exam.Questions)

	if len(resolved) > 0 {
		if _, err := p.store.ImportImages(exam.ID, filepath.Join(saveDir, assets.ImagesDir), resolved.Filenames()); err != nil {
			log.Warn("importing images", "error", err)
		}
	}

	if subjectKey != "" {
		res.LibraryPath, err = p.store.UpsertInto(subjectKey, exam)
	} else {
		res.LibraryPath, err = p.store.Upsert(exam)
	}
	if err != nil {
		return res, fmt.Errorf("storing exam: %w", err)
	}

	if p.ledger != nil {
		err := p.ledger.Record(ctx, ledger.Entry{
			PaperURL:    paperURL,
			ExamID:      exam.ID,
			Subject:     exam.Subject,
			LibraryPath: res.LibraryPath,
			RawPath:     rawPath,
			Questions:   res.Questions,
			Images:      res.Images,
		})
		if err != nil {
			log.Warn("ledger record failed", "error", err)
		}
	}

	log.Info("paper stored", "exam", exam.ID, "subject", exam.Subject,
		"questions", res.Questions, "library", res.LibraryPath)
	return res, nil
}

// Harvested reports whether paperURL is in the ledger. Without a ledger
// nothing is harvested.
func (p *Pipeline) Harvested(ctx context.Context, paperURL string) bool {
	if p.ledger == nil {
		return false
	}
	_, ok, err := p.ledger.Lookup(ctx, paperURL)
	if err != nil {
		p.log.Warn("ledger lookup failed", "url", paperURL, "error", err)
		return false
	}
	return ok
}

// rawLocation returns the directory and file of the raw document for
// pathParts, or a temp_{unix} directory when there are none.
func (p *Pipeline) rawLocation(pathParts []string) (dir, file string) {
	if len(pathParts) == 0 {
		dir = filepath.Join(p.workDir, "temp_"+strconv.FormatInt(p.Now().Unix(), 10))
		return dir, filepath.Join(dir, defaultRawFile+".json")
	}
	segs := []string{p.workDir}
	for _, part := range pathParts[:len(pathParts)-1] {
		segs = append(segs, Sanitize(part))
	}
	dir = filepath.Join(segs...)
	return dir, filepath.Join(dir, Sanitize(pathParts[len(pathParts)-1])+".json")
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.\- ]`)

// Sanitize makes a platform-supplied name safe as one path segment:
// characters outside [A-Za-z0-9_.- ] become "_", and the dot names "."
// and ".." become underscores.
func Sanitize(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	switch s {
	case "":
		return "_"
	case ".", "..":
		return strings.Repeat("_", len(s))
	}
	return s
}

func writeRaw(path string, doc types.RawPaperDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding raw document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing raw document %s: %w", path, err)
	}
	return nil
}
