// Package memory serves a fixed listing from memory or a JSON fixture file.
// It backs offline runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// Source implements crawler.PageSource over a slice of pages.
type Source struct {
	pages [][]crawler.RawPosting
	pos   int
}

// New returns a Source over pages, newest first.
func New(pages [][]crawler.RawPosting) *Source {
	return &Source{pages: pages}
}

// Load reads pages from a JSON file holding an array of posting arrays.
func Load(path string) ([][]crawler.RawPosting, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied fixture
	if err != nil {
		return nil, fmt.Errorf("read listing fixture: %w", err)
	}
	var pages [][]crawler.RawPosting
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("decode listing fixture: %w", err)
	}
	return pages, nil
}

// NextPage returns the next page.
func (s *Source) NextPage(ctx context.Context) ([]crawler.RawPosting, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("next page: %w", err)
	}
	if s.pos >= len(s.pages) {
		return nil, false, nil
	}
	page := s.pages[s.pos]
	s.pos++
	return page, s.pos < len(s.pages), nil
}
