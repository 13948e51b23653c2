// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl walks the platform hierarchy (exam, course, bundle, paper)
// and hands every paper to the harvest pipeline.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/pyq-harvester/internal/harvest"
	"github.com/pdiddy/pyq-harvester/internal/logger"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// Processor stores one paper.
type Processor interface {
	Process(ctx context.Context, paperURL string, pathParts []string) (harvest.Result, error)
	Harvested(ctx context.Context, paperURL string) bool
}

// Crawler discovers papers. Work is strictly sequential, depth-first and
// in list order at every level.
type Crawler struct {
	pages   harvest.PageFetcher
	proc    Processor
	cfg     types.CrawlConfig
	routes  types.Routes
	every   rate.Limit
	log     *logger.Logger
	out     io.Writer
	base    string

	// OnPaper receives every stored paper as it is persisted.
	OnPaper func(harvest.Result)
}

// New returns a Crawler. Progress lines go to out; nil discards them.
// When pages exposes BaseURL, paper routes are made absolute against it.
func New(pages harvest.PageFetcher, proc Processor, cfg types.CrawlConfig, log *logger.Logger, out io.Writer) *Crawler {
	if out == nil {
		out = io.Discard
	}
	every := rate.Inf
	if cfg.PaperDelay > 0 {
		every = rate.Every(cfg.PaperDelay)
	}
	var base string
	if b, ok := pages.(interface{ BaseURL() string }); ok {
		base = strings.TrimRight(b.BaseURL(), "/")
	}
	return &Crawler{
		base:    base,
		pages:   pages,
		proc:    proc,
		cfg:     cfg,
		routes:  withDefaults(cfg.Routes),
		every:   every,
		log:     logger.OrNop(log),
		out:     out,
	}
}

// run is the state of one Discover call.
type run struct {
	limit   int
	filter  string
	summary *Summary

	// gap spaces paper fetches: it is armed when a paper finishes, so the
	// next fetch starts no sooner than the delay after that. Nil until the
	// first paper of the run has been processed.
	gap *rate.Limiter
}

// waitGap blocks until the delay since the previous paper has passed.
func (r *run) waitGap(ctx context.Context) error {
	if r.gap == nil {
		return nil
	}
	d := r.gap.Reserve().Delay()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// paperDone arms the gap at t, the moment a paper finished.
func (r *run) paperDone(every rate.Limit, t time.Time) {
	r.gap = rate.NewLimiter(every, 1)
	r.gap.AllowN(t, 1)
}

func (r *run) done() bool {
	return r.limit > 0 && r.summary.Stored >= r.limit
}

// Discover crawls until limit papers are stored (0 means all). A non-empty
// nameFilter visits only exams whose name contains it, case-insensitively;
// other exams are neither fetched nor counted. Failures at any level are
// recorded and skipped. Discover returns the context error when cancelled,
// with the summary of the work done so far.
func (c *Crawler) Discover(ctx context.Context, limit int, nameFilter string) (summary Summary, err error) {
	summary = Summary{StartedAt: time.Now(), Limit: limit, Filter: nameFilter}
	r := &run{limit: limit, filter: strings.ToLower(strings.TrimSpace(nameFilter)), summary: &summary}
	defer func() { summary.FinishedAt = time.Now() }()

	props, err := c.pages.FetchPage(ctx, c.routes.Entry, nil)
	if err != nil {
		summary.fail(LevelEntry, c.routes.Entry, err)
		return summary, fmt.Errorf("fetching exam list: %w", err)
	}
	exams := examsFrom(props)
	if len(exams) == 0 {
		c.log.Warn("no exams found on entry page", "route", c.routes.Entry)
	}

	for _, exam := range exams {
		if r.done() {
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if r.filter != "" && !strings.Contains(strings.ToLower(exam.Name), r.filter) {
			summary.ExamsFiltered++
			continue
		}
		if err := c.crawlExam(ctx, r, exam); err != nil {
			return summary, err
		}
	}

	summary.LimitReached = r.done()
	fmt.Fprintf(c.out, "\nCrawl summary: %d stored, %d skipped, %d failed (exams: %d, courses: %d, bundles: %d)\n",
		summary.Stored, summary.Skipped, summary.Failed, summary.Exams, summary.Courses, summary.Bundles)
	return summary, nil
}

func (c *Crawler) crawlExam(ctx context.Context, r *run, exam Exam) error {
	r.summary.Exams++
	route := expand(c.routes.Exam, exam.ID, "", "")
	log := c.log.With("exam", exam.Name)

	props, err := c.pages.FetchPage(ctx, route, nil)
	if err != nil {
		log.Warn("fetching course list failed", "route", route, "error", err)
		r.summary.fail(LevelExam, route, err)
		return ctx.Err()
	}
	courses := coursesFrom(props)
	if len(courses) == 0 {
		log.Info("exam has no courses")
		return nil
	}

	for _, course := range courses {
		if r.done() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.crawlCourse(ctx, r, exam, course); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crawler) crawlCourse(ctx context.Context, r *run, exam Exam, course Course) error {
	r.summary.Courses++
	route := expand(c.routes.Course, exam.ID, course.ID, "")
	log := c.log.With("exam", exam.Name, "course", course.Name)

	props, err := c.pages.FetchPage(ctx, route, nil)
	if err != nil {
		log.Warn("fetching bundle list failed", "route", route, "error", err)
		r.summary.fail(LevelCourse, route, err)
		return ctx.Err()
	}
	bundles := bundlesFrom(props, course.ID)
	if len(bundles) == 0 {
		log.Info("course has no papers")
		return nil
	}

	for _, bundle := range bundles {
		if r.done() {
			return nil
		}
		r.summary.Bundles++
		for _, paper := range bundle.Papers {
			if r.done() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.crawlPaper(ctx, r, exam, course, bundle, paper); err != nil {
				return err
			}
		}
	}
	return nil
}

// crawlPaper stores one paper. Only context cancellation is returned;
// every other failure is recorded and the crawl continues.
func (c *Crawler) crawlPaper(ctx context.Context, r *run, exam Exam, course Course, bundle Bundle, paper Paper) error {
	paperURL := expand(c.routes.Paper, exam.ID, course.ID, paper.UUID)
	if c.base != "" && strings.HasPrefix(paperURL, "/") {
		paperURL = c.base + paperURL
	}

	if c.cfg.SkipHarvested && c.proc.Harvested(ctx, paperURL) {
		fmt.Fprintf(c.out, "skipped %s (already harvested)\n", paper.Name)
		r.summary.Skipped++
		return nil
	}

	if err := r.waitGap(ctx); err != nil {
		return err
	}

	parts := []string{exam.Name, course.Name, bundle.Name, paper.Name}
	res, err := c.process(ctx, paperURL, parts)
	r.paperDone(c.every, time.Now())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		fmt.Fprintf(c.out, "failed  %s: %v\n", paper.Name, err)
		c.log.Warn("paper failed", "url", paperURL, "error", err)
		r.summary.fail(LevelPaper, paperURL, err)
		return nil
	}

	fmt.Fprintf(c.out, "stored  %s (%d questions) -> %s\n", paper.Name, res.Questions, res.LibraryPath)
	r.summary.stored(res)
	if c.OnPaper != nil {
		c.OnPaper(res)
	}
	return nil
}

// process runs the pipeline for one paper, turning a panic into an error.
func (c *Crawler) process(ctx context.Context, paperURL string, parts []string) (res harvest.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic processing paper: %v", p)
		}
	}()
	return c.proc.Process(ctx, paperURL, parts)
}
