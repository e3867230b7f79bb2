package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// CursorFile keeps the marker as the only line of a text file.
type CursorFile struct {
	path string
}

// NewCursorFile returns a store backed by path. The file need not exist.
func NewCursorFile(path string) (*CursorFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cursor path is required")
	}
	return &CursorFile{path: path}, nil
}

// Load reads the marker. A missing or blank file means no marker; content
// that is not a single UTF-8 line is reported as crawler.ErrCorruptMarker.
func (c *CursorFile) Load(_ context.Context) (string, bool, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read cursor file: %w", err)
	}
	marker := strings.TrimSpace(string(data))
	if marker == "" {
		return "", false, nil
	}
	if !utf8.ValidString(marker) || strings.ContainsAny(marker, "\r\n") {
		return "", false, fmt.Errorf("cursor file %s: %w", c.path, crawler.ErrCorruptMarker)
	}
	return marker, true, nil
}

// Save replaces the marker atomically.
func (c *CursorFile) Save(_ context.Context, marker string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return fmt.Errorf("create cursor directory: %w", err)
	}
	return writeFileAtomic(c.path, []byte(marker+"\n"))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
