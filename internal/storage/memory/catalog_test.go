package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

func TestCatalogListFiltersAndOrders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCatalog()
	day := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.json", "b.json", "c.json"} {
		require.NoError(t, c.RecordSnapshot(ctx, crawler.SnapshotMeta{
			RunID:     name,
			FileName:  name,
			CreatedAt: day.AddDate(0, 0, i),
		}))
	}
	require.Error(t, c.RecordSnapshot(ctx, crawler.SnapshotMeta{RunID: "a.json"}))

	all, err := c.ListSnapshots(ctx, crawler.SnapshotFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.json", all[0].FileName)

	ranged, err := c.ListSnapshots(ctx, crawler.SnapshotFilter{From: day.AddDate(0, 0, 1), Limit: 1})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "c.json", ranged[0].FileName)

	named, err := c.ListSnapshots(ctx, crawler.SnapshotFilter{FileNames: []string{"a.json"}})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "a.json", named[0].FileName)
}

func TestCursorStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewCursorStore()
	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "p-42"))
	marker, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p-42", marker)
}
