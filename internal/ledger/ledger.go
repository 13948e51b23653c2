// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records harvested papers in a SQLite database so repeated
// runs reuse exam ids and can skip papers already stored.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBFile is the ledger file name inside the work directory.
const DBFile = "harvest.db"

// Entry is one harvested paper.
type Entry struct {
	PaperURL    string    `json:"paper_url" yaml:"paper_url"`
	ExamID      string    `json:"exam_id" yaml:"exam_id"`
	Subject     string    `json:"subject" yaml:"subject"`
	LibraryPath string    `json:"library_path" yaml:"library_path"`
	RawPath     string    `json:"raw_path" yaml:"raw_path"`
	Questions   int       `json:"questions" yaml:"questions"`
	Images      int       `json:"images" yaml:"images"`
	HarvestedAt time.Time `json:"harvested_at" yaml:"harvested_at"`
}

// Ledger is the harvest database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path, creating its schema.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// OpenInDir opens the ledger at {dir}/harvest.db.
func OpenInDir(dir string) (*Ledger, error) {
	return Open(filepath.Join(dir, DBFile))
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			paper_url TEXT PRIMARY KEY,
			exam_id TEXT NOT NULL,
			subject TEXT,
			library_path TEXT,
			raw_path TEXT,
			questions INTEGER,
			images INTEGER,
			harvested_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_subject ON papers(subject)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Lookup returns the entry for paperURL. The boolean is false when the
// paper has not been harvested.
func (l *Ledger) Lookup(ctx context.Context, paperURL string) (Entry, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT paper_url, exam_id, subject, library_path, raw_path, questions, images, harvested_at
		 FROM papers WHERE paper_url = ?`, paperURL)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("looking up %s: %w", paperURL, err)
	}
	return e, true, nil
}

// Record inserts or replaces the entry for e.PaperURL. A zero HarvestedAt
// is set to the current time.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.PaperURL == "" || e.ExamID == "" {
		return errors.New("ledger entry needs a paper URL and exam id")
	}
	if e.HarvestedAt.IsZero() {
		e.HarvestedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO papers (paper_url, exam_id, subject, library_path, raw_path, questions, images, harvested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(paper_url) DO UPDATE SET
			exam_id=excluded.exam_id, subject=excluded.subject,
			library_path=excluded.library_path, raw_path=excluded.raw_path,
			questions=excluded.questions, images=excluded.images,
			harvested_at=excluded.harvested_at`,
		e.PaperURL, e.ExamID, e.Subject, e.LibraryPath, e.RawPath,
		e.Questions, e.Images, e.HarvestedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.PaperURL, err)
	}
	return nil
}

// List returns every entry, most recently harvested first.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT paper_url, exam_id, subject, library_path, raw_path, questions, images, harvested_at
		 FROM papers ORDER BY harvested_at DESC, paper_url`)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                                  Entry
		subject, libPath, rawPath, harvest sql.NullString
		questions, images                  sql.NullInt64
	)
	if err := s.Scan(&e.PaperURL, &e.ExamID, &subject, &libPath, &rawPath, &questions, &images, &harvest); err != nil {
		return Entry{}, err
	}
	e.Subject = subject.String
	e.LibraryPath = libPath.String
	e.RawPath = rawPath.String
	e.Questions = int(questions.Int64)
	e.Images = int(images.Int64)
	if harvest.Valid {
		if t, err := time.Parse(time.RFC3339Nano, harvest.String); err == nil {
			e.HarvestedAt = t
		}
	}
	return e, nil
}
