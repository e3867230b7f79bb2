package cursor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

type fakeStore struct {
	marker  string
	ok      bool
	loadErr error
	saveErr error
	saves   []string
}

func (f *fakeStore) Load(context.Context) (string, bool, error) {
	return f.marker, f.ok, f.loadErr
}

func (f *fakeStore) Save(_ context.Context, marker string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, marker)
	f.marker, f.ok = marker, true
	return nil
}

type fakeSource struct {
	pages [][]crawler.RawPosting
	calls int
	err   error
}

func (f *fakeSource) NextPage(context.Context) ([]crawler.RawPosting, bool, error) {
	if f.err != nil && f.calls == 1 {
		return nil, false, f.err
	}
	if f.calls >= len(f.pages) {
		return nil, false, nil
	}
	page := f.pages[f.calls]
	f.calls++
	return page, f.calls < len(f.pages), nil
}

func postings(ids ...string) []crawler.RawPosting {
	out := make([]crawler.RawPosting, len(ids))
	for i, id := range ids {
		out[i] = crawler.RawPosting{ID: id, SourceURL: "https://jobs.example/" + id}
	}
	return out
}

func ids(ps []crawler.RawPosting) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func listing() [][]crawler.RawPosting {
	return [][]crawler.RawPosting{postings("p5", "p4"), postings("p3", "p2"), postings("p1")}
}

func TestStepTransitions(t *testing.T) {
	t.Parallel()

	s, action := Step(State{}, "p1")
	assert.Equal(t, Stop, action)
	assert.Equal(t, PhaseUninitialized, s.Phase)

	s = Arm(State{}, "p3", true)
	require.Equal(t, PhaseArmed, s.Phase)
	assert.Equal(t, s, Arm(s, "other", true))

	s, action = Step(s, "p5")
	assert.Equal(t, Continue, action)
	assert.Equal(t, "p5", s.Pending)

	s, action = Step(s, "p4")
	assert.Equal(t, Continue, action)
	assert.Equal(t, "p5", s.Pending)

	s, action = Step(s, "p3")
	assert.Equal(t, Stop, action)
	assert.Equal(t, PhaseClosed, s.Phase)

	again, action := Step(s, "p2")
	assert.Equal(t, Stop, action)
	assert.Equal(t, s, again)
}

func TestArmWithoutMarker(t *testing.T) {
	t.Parallel()

	s := Arm(State{}, "", true)
	assert.False(t, s.HasMarker)
	s, action := Step(s, "p1")
	assert.Equal(t, Continue, action)
	assert.True(t, s.HasPending)
}

func TestWalkStopsAtMarker(t *testing.T) {
	t.Parallel()

	store := &fakeStore{marker: "p3", ok: true}
	src := &fakeSource{pages: listing()}
	w, err := NewWalker(store)
	require.NoError(t, err)

	res, err := w.Walk(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p4"}, ids(res.Postings))
	assert.Equal(t, OutcomeMarkerReached, res.Outcome)
	assert.Equal(t, 2, src.calls)
	assert.Empty(t, store.saves)

	marker, ok, err := w.Commit(context.Background(), res)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p5", marker)
	assert.Equal(t, []string{"p5"}, store.saves)
}

func TestWalkAdvancesAcrossRuns(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	w, err := NewWalker(store)
	require.NoError(t, err)

	first, err := w.Walk(context.Background(), &fakeSource{pages: listing()})
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p4", "p3", "p2", "p1"}, ids(first.Postings))
	assert.Equal(t, OutcomeExhausted, first.Outcome)
	_, _, err = w.Commit(context.Background(), first)
	require.NoError(t, err)

	next := [][]crawler.RawPosting{postings("p7", "p6"), postings("p5", "p4")}
	second, err := w.Walk(context.Background(), &fakeSource{pages: next})
	require.NoError(t, err)
	assert.Equal(t, []string{"p7", "p6"}, ids(second.Postings))
	_, _, err = w.Commit(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p7"}, store.saves)
}

func TestWalkUnreadableMarkerWalksEverything(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	store := &fakeStore{loadErr: crawler.ErrCorruptMarker}
	w, err := NewWalker(store, WithLogger(zap.New(core)))
	require.NoError(t, err)

	res, err := w.Walk(context.Background(), &fakeSource{pages: listing()})
	require.NoError(t, err)
	assert.Len(t, res.Postings, 5)
	assert.Equal(t, 1, logs.FilterMessage("cursor marker unreadable, walking full listing").Len())
}

func TestWalkSourceErrorAbortsWithoutCommit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{marker: "p1", ok: true}
	w, err := NewWalker(store)
	require.NoError(t, err)

	_, err = w.Walk(context.Background(), &fakeSource{pages: listing(), err: errors.New("boom")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch page 2")
	assert.Empty(t, store.saves)
	assert.Equal(t, "p1", store.marker)
}

func TestWalkSkipsEmptyAndDuplicateIDs(t *testing.T) {
	t.Parallel()

	w, err := NewWalker(&fakeStore{})
	require.NoError(t, err)

	pages := [][]crawler.RawPosting{postings(" ", "p2"), postings("p2", " p1 ")}
	res, err := w.Walk(context.Background(), &fakeSource{pages: pages})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(res.Postings))
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, "p2", res.State.Pending)
}

func TestWalkPageLimit(t *testing.T) {
	t.Parallel()

	w, err := NewWalker(&fakeStore{}, WithMaxPages(1))
	require.NoError(t, err)

	res, err := w.Walk(context.Background(), &fakeSource{pages: listing()})
	require.NoError(t, err)
	assert.Equal(t, OutcomePageLimit, res.Outcome)
	assert.Equal(t, []string{"p5", "p4"}, ids(res.Postings))
	assert.False(t, res.Complete())
}

func TestPageLimitedWalkDoesNotAdvanceMarker(t *testing.T) {
	t.Parallel()

	store := &fakeStore{marker: "p1", ok: true}
	limited, err := NewWalker(store, WithMaxPages(1))
	require.NoError(t, err)

	res, err := limited.Walk(context.Background(), &fakeSource{pages: listing()})
	require.NoError(t, err)
	require.Equal(t, OutcomePageLimit, res.Outcome)
	assert.Equal(t, "p5", res.State.Pending)

	_, ok, err := limited.Commit(context.Background(), res)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, store.saves)

	full, err := NewWalker(store)
	require.NoError(t, err)
	next, err := full.Walk(context.Background(), &fakeSource{pages: listing()})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMarkerReached, next.Outcome)
	assert.Equal(t, []string{"p5", "p4", "p3", "p2"}, ids(next.Postings))
}

func TestWalkCanceled(t *testing.T) {
	t.Parallel()

	w, err := NewWalker(&fakeStore{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = w.Walk(ctx, &fakeSource{pages: listing()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCommitWithoutPendingLeavesStore(t *testing.T) {
	t.Parallel()

	store := &fakeStore{marker: "p9", ok: true}
	w, err := NewWalker(store)
	require.NoError(t, err)

	res, err := w.Walk(context.Background(), &fakeSource{})
	require.NoError(t, err)
	assert.Empty(t, res.Postings)

	_, ok, err := w.Commit(context.Background(), res)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, store.saves)
}

func TestCommitSaveFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{saveErr: errors.New("disk full")}
	w, err := NewWalker(store)
	require.NoError(t, err)

	_, _, err = w.Commit(context.Background(), Result{
		State:   State{Phase: PhaseArmed, Pending: "p1", HasPending: true},
		Outcome: OutcomeExhausted,
	})
	require.ErrorIs(t, err, ErrCursorCommit)
	assert.Contains(t, err.Error(), "disk full")
}

func TestNewWalkerRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := NewWalker(nil)
	require.Error(t, err)
}
