package cursor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// ErrCursorCommit wraps marker persistence failures.
var ErrCursorCommit = errors.New("commit cursor marker")

// Outcome explains why a walk ended.
type Outcome string

// Walk outcomes.
const (
	OutcomeMarkerReached Outcome = "marker_reached"
	OutcomeExhausted     Outcome = "exhausted"
	OutcomePageLimit     Outcome = "page_limit"
)

// Result is the output of one walk.
type Result struct {
	Postings []crawler.RawPosting
	State    State
	Outcome  Outcome
	Pages    int
	Skipped  int
}

// Complete reports whether the walk covered the whole window since the
// previous marker. Only a complete walk may advance the marker.
func (r Result) Complete() bool {
	return r.Outcome == OutcomeMarkerReached || r.Outcome == OutcomeExhausted
}

// Option customises a Walker.
type Option func(*Walker)

// WithMaxPages ends the walk after n pages. n <= 0 means no limit.
func WithMaxPages(n int) Option {
	return func(w *Walker) {
		w.maxPages = n
	}
}

// WithLogger sets the walker logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Walker loads the marker, walks pages until the marker or the end of the
// listing, and commits the new marker on request.
type Walker struct {
	store    crawler.CursorStore
	maxPages int
	logger   *zap.Logger
}

// NewWalker builds a Walker over store.
func NewWalker(store crawler.CursorStore, opts ...Option) (*Walker, error) {
	if store == nil {
		return nil, errors.New("cursor store is required")
	}
	w := &Walker{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Arm loads the persisted marker. A missing marker starts a first run; an
// unreadable one does too, with a warning.
func (w *Walker) Arm(ctx context.Context) State {
	marker, ok, err := w.store.Load(ctx)
	switch {
	case err != nil:
		w.logger.Warn("cursor marker unreadable, walking full listing", zap.Error(err))
		return Arm(State{}, "", false)
	case ok && strings.TrimSpace(marker) == "":
		w.logger.Warn("cursor marker empty, walking full listing")
		return Arm(State{}, "", false)
	}
	return Arm(State{}, strings.TrimSpace(marker), ok)
}

// Walk emits postings in fetch order until the cursor stops, the source is
// exhausted, or the page limit is hit. A source error aborts the walk; the
// caller must not commit in that case.
func (w *Walker) Walk(ctx context.Context, src crawler.PageSource) (Result, error) {
	res := Result{State: w.Arm(ctx)}
	if res.State.HasMarker {
		w.logger.Info("cursor armed", zap.String("marker", res.State.Marker))
	} else {
		w.logger.Info("cursor armed without marker")
	}

	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("walk canceled: %w", err)
		}
		if w.maxPages > 0 && res.Pages >= w.maxPages {
			res.Outcome = OutcomePageLimit
			return res, nil
		}
		postings, more, err := src.NextPage(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("fetch page %d: %w", res.Pages+1, err)
		}
		res.Pages++
		for _, p := range postings {
			id := strings.TrimSpace(p.ID)
			if id == "" {
				res.Skipped++
				w.logger.Warn("posting without id skipped", zap.String("url", p.SourceURL))
				continue
			}
			if _, dup := seen[id]; dup {
				res.Skipped++
				w.logger.Debug("duplicate posting skipped", zap.String("posting_id", id))
				continue
			}
			seen[id] = struct{}{}

			var action Action
			res.State, action = Step(res.State, id)
			if action == Stop {
				res.Outcome = OutcomeMarkerReached
				w.logger.Info("cursor reached previous marker",
					zap.String("marker", id),
					zap.Int("page", res.Pages),
				)
				return res, nil
			}
			p.ID = id
			res.Postings = append(res.Postings, p)
		}
		if !more {
			res.Outcome = OutcomeExhausted
			return res, nil
		}
	}
}

// Commit persists the pending marker of a complete walk. An incomplete walk
// (page limit) or one without a pending marker leaves the store untouched and
// ok is false.
func (w *Walker) Commit(ctx context.Context, res Result) (marker string, ok bool, err error) {
	s := res.State
	if !s.HasPending {
		return "", false, nil
	}
	if !res.Complete() {
		w.logger.Warn("walk incomplete, cursor left unchanged",
			zap.String("outcome", string(res.Outcome)),
			zap.String("pending", s.Pending),
		)
		return "", false, nil
	}
	if err := w.store.Save(ctx, s.Pending); err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrCursorCommit, err)
	}
	w.logger.Info("cursor committed", zap.String("marker", s.Pending))
	return s.Pending, true, nil
}
