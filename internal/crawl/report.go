// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pyq-harvester/internal/harvest"
)

// Level names the hierarchy level where a failure happened.
type Level string

const (
	LevelEntry  Level = "entry"
	LevelExam   Level = "exam"
	LevelCourse Level = "course"
	LevelPaper  Level = "paper"
)

// Failure is one skipped unit of work.
type Failure struct {
	Level Level  `yaml:"level"`
	URL   string `yaml:"url"`
	Error string `yaml:"error"`
}

// StoredPaper is one persisted paper in the crawl report.
type StoredPaper struct {
	URL       string `yaml:"url"`
	ExamID    string `yaml:"exam_id"`
	Subject   string `yaml:"subject"`
	Questions int    `yaml:"questions"`
	Images    int    `yaml:"images"`
	Library   string `yaml:"library"`
}

// Summary holds the counts of one crawl.
type Summary struct {
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Limit      int       `yaml:"limit"`
	Filter     string    `yaml:"filter,omitempty"`

	Exams         int `yaml:"exams"`
	ExamsFiltered int `yaml:"exams_filtered"`
	Courses       int `yaml:"courses"`
	Bundles       int `yaml:"bundles"`

	Stored       int  `yaml:"stored"`
	Skipped      int  `yaml:"skipped"`
	Failed       int  `yaml:"failed"`
	LimitReached bool `yaml:"limit_reached"`

	Papers   []StoredPaper `yaml:"papers"`
	Failures []Failure     `yaml:"failures,omitempty"`
}

// HasFailures reports whether any unit of work failed.
func (s Summary) HasFailures() bool {
	return len(s.Failures) > 0
}

func (s *Summary) fail(level Level, url string, err error) {
	if level == LevelPaper {
		s.Failed++
	}
	s.Failures = append(s.Failures, Failure{Level: level, URL: url, Error: err.Error()})
}

func (s *Summary) stored(res harvest.Result) {
	s.Stored++
	s.Papers = append(s.Papers, StoredPaper{
		URL:       res.PaperURL,
		ExamID:    res.ExamID,
		Subject:   res.Subject,
		Questions: res.Questions,
		Images:    res.Images,
		Library:   res.LibraryPath,
	})
}

// WriteReport writes s as YAML to path.
func WriteReport(path string, s Summary) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshaling crawl report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing crawl report %s: %w", path, err)
	}
	return nil
}
