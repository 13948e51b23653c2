// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ImportImages copies the named files from srcDir into images/{examID}/ of
// the library, so papers whose images share a name keep their own copies.
// Files already present for the exam are left alone, and missing sources
// are skipped. It returns the number of files copied.
func (s *Store) ImportImages(examID, srcDir string, filenames []string) (int, error) {
	destDir := filepath.Join(s.dir, ImagesDir, ExamImageDir(examID))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating images directory: %w", err)
	}

	copied := 0
	var errs []error
	for _, name := range filenames {
		name = filepath.Base(name)
		dest := filepath.Join(destDir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		src := filepath.Join(srcDir, name)
		if err := copyFile(src, dest); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.log.Debug("image not downloaded, skipping import", "exam", examID, "file", name)
				continue
			}
			errs = append(errs, fmt.Errorf("importing %s: %w", name, err))
			continue
		}
		copied++
	}
	return copied, errors.Join(errs...)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".image-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, in)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("copying: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	return os.Rename(tmpPath, dest)
}
