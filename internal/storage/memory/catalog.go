package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// Catalog records snapshot metadata in-memory.
type Catalog struct {
	mu    sync.RWMutex
	items []crawler.SnapshotMeta
}

// NewCatalog constructs a Catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// RecordSnapshot appends meta. Run ids are unique.
func (c *Catalog) RecordSnapshot(_ context.Context, meta crawler.SnapshotMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.items {
		if existing.RunID == meta.RunID {
			return errors.New("snapshot already recorded")
		}
	}
	c.items = append(c.items, meta)
	return nil
}

// ListSnapshots returns matching rows, newest first.
func (c *Catalog) ListSnapshots(_ context.Context, filter crawler.SnapshotFilter) ([]crawler.SnapshotMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]crawler.SnapshotMeta, 0, len(c.items))
	for _, item := range c.items {
		if filter.Match(item) {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
