//go:build mage

// Package main contains Mage build targets for pyq-harvester developer tooling.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the pipeline expects.
var projectDirs = []string{
	"scraped_data",
	"subjects",
	"subjects/images",
}

// Init creates the project directory structure for the pipeline.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "pyq-harvester"
	cmdPkg  = "./cmd/pyq-harvester"
)

func binPath() string { return filepath.Join(binDir, binName) }

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath(), cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", binPath())
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet over every package.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes the binary directory.
func Clean() error {
	return sh.Rm(binDir)
}

// Stats prints project metrics: Go production/test LOC and library contents.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	subjects, exams, questions, err := countLibrary("subjects")
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Library: %d subjects, %d exams, %d questions\n", subjects, exams, questions)
	return nil
}

// countGoLines walks the directory tree and counts non-blank lines in Go
// files, skipping underscore-prefixed directories. If testOnly is true,
// count only _test.go files; otherwise count non-test .go files.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				total++
			}
		}
		return nil
	})
	return total, err
}

// countLibrary counts the subject documents under dir and their exams and
// questions. A missing directory counts as empty.
func countLibrary(dir string) (subjects, exams, questions int, err error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, 0, 0, err
	}
	for _, path := range paths {
		if filepath.Base(path) == "index.json" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("reading %s: %w", path, err)
		}
		var doc struct {
			Exams []struct {
				Questions []json.RawMessage `json:"questions"`
			} `json:"exams"`
		}
		if json.Unmarshal(data, &doc) != nil {
			continue
		}
		subjects++
		exams += len(doc.Exams)
		for _, e := range doc.Exams {
			questions += len(e.Questions)
		}
	}
	return subjects, exams, questions, nil
}

// Harvest groups targets that drive the built CLI.
type Harvest mg.Namespace

// Crawl runs a crawl; LIMIT and FILTER environment variables are passed through.
func (Harvest) Crawl() error {
	mg.Deps(Build, Init)
	args := []string{"crawl", "--report", filepath.Join("scraped_data", "crawl-report.yaml")}
	if limit := os.Getenv("LIMIT"); limit != "" {
		args = append(args, "--limit", limit)
	}
	if filter := os.Getenv("FILTER"); filter != "" {
		args = append(args, "--filter", filter)
	}
	return sh.RunV(binPath(), args...)
}

// Index rewrites subjects/index.json.
func (Harvest) Index() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "library", "index")
}

// List prints the subject library summary.
func (Harvest) List() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "library", "list")
}
