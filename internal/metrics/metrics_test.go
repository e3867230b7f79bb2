package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := runsTotal
	Init()
	assert.Same(t, first, runsTotal)
}

func TestObserveRun(t *testing.T) {
	Init()

	before := testutil.ToFloat64(postingsTotal)
	ObserveRun(Run{
		Outcome:    "marker_reached",
		Duration:   2 * time.Second,
		Pages:      3,
		Postings:   7,
		Skipped:    1,
		Candidates: map[string]int{"required": 12},
		Skills:     map[string]int{"all": 5},
	})
	assert.InDelta(t, before+7, testutil.ToFloat64(postingsTotal), 0.001)
	assert.InDelta(t, 5, testutil.ToFloat64(canonicalSkills.WithLabelValues("all")), 0.001)
	assert.GreaterOrEqual(t, testutil.ToFloat64(runsTotal.WithLabelValues("marker_reached")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(candidatesTotal.WithLabelValues("required")), 12.0)

	ObserveFailedRun(time.Second)
	assert.GreaterOrEqual(t, testutil.ToFloat64(runsTotal.WithLabelValues("failed")), 1.0)
}

func TestObserveCursorCommitAndDelay(t *testing.T) {
	Init()

	before := testutil.ToFloat64(cursorCommitsTotal.WithLabelValues("committed"))
	ObserveCursorCommit("committed")
	assert.InDelta(t, before+1, testutil.ToFloat64(cursorCommitsTotal.WithLabelValues("committed")), 0.001)

	ObserveRateLimitDelay("jobs.example", 300*time.Millisecond)
	assert.Positive(t, testutil.CollectAndCount(rateLimitDelaySeconds))
}
