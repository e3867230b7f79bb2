// Package pipeline runs one crawl end to end: walk the listing up to the
// cursor marker, extract and canonicalize skills, write the snapshot, commit
// the marker and announce the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/job-skills-crawler/internal/canonical"
	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
	"github.com/JakeFAU/job-skills-crawler/internal/cursor"
	"github.com/JakeFAU/job-skills-crawler/internal/extract"
	"github.com/JakeFAU/job-skills-crawler/internal/metrics"
	"github.com/JakeFAU/job-skills-crawler/internal/snapshot"
	"github.com/JakeFAU/job-skills-crawler/internal/telemetry"
	"github.com/JakeFAU/job-skills-crawler/internal/vacancy"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("crawl run already in progress")

const (
	defaultWorkers = 4
	defaultTopN    = 30
)

// SourceFactory opens a fresh PageSource positioned at the first listing page.
type SourceFactory func(ctx context.Context) (crawler.PageSource, error)

// Deps are the collaborators of a Runner. Publisher and Topic are optional.
type Deps struct {
	Walker        *cursor.Walker
	NewSource     SourceFactory
	Extractor     *extract.Extractor
	Canonicalizer *canonical.Canonicalizer
	Fields        vacancy.Table
	Snapshots     *snapshot.Writer
	Publisher     crawler.Publisher
	Topic         string
	Clock         crawler.Clock
	IDs           crawler.IDGenerator
	Workers       int
	TopN          int
	Logger        *zap.Logger
}

// Report summarises one run.
type Report struct {
	RunID          string                `json:"run_id"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
	Outcome        string                `json:"outcome"`
	Pages          int                   `json:"pages"`
	Postings       int                   `json:"postings"`
	Skipped        int                   `json:"skipped"`
	PreviousMarker string                `json:"previous_marker,omitempty"`
	NewMarker      string                `json:"new_marker,omitempty"`
	Committed      bool                  `json:"committed"`
	Snapshot       *crawler.SnapshotMeta `json:"snapshot,omitempty"`
	Top            snapshot.Skills       `json:"top"`
	Error          string                `json:"error,omitempty"`
}

// Event is published after a run completes.
type Event struct {
	RunID       string    `json:"run_id"`
	FinishedAt  time.Time `json:"finished_at"`
	SnapshotURI string    `json:"snapshot_uri"`
	Postings    int       `json:"postings"`
	NewMarker   string    `json:"new_marker,omitempty"`
	TopSkills   []string  `json:"top_skills"`
}

// Runner executes crawl runs, one at a time.
type Runner struct {
	deps    Deps
	logger  *zap.Logger
	running atomic.Bool

	mu     sync.RWMutex
	latest *Report
}

// New validates deps and builds a Runner.
func New(deps Deps) (*Runner, error) {
	switch {
	case deps.Walker == nil:
		return nil, errors.New("walker is required")
	case deps.NewSource == nil:
		return nil, errors.New("source factory is required")
	case deps.Extractor == nil || deps.Canonicalizer == nil:
		return nil, errors.New("extractor and canonicalizer are required")
	case deps.Snapshots == nil:
		return nil, errors.New("snapshot writer is required")
	case deps.Clock == nil || deps.IDs == nil:
		return nil, errors.New("clock and id generator are required")
	}
	if deps.Workers <= 0 {
		deps.Workers = defaultWorkers
	}
	if deps.TopN <= 0 {
		deps.TopN = defaultTopN
	}
	if deps.Fields == nil {
		deps.Fields = vacancy.DefaultTable()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Runner{deps: deps, logger: logger}, nil
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Latest returns the report of the last finished run.
func (r *Runner) Latest() (Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return Report{}, false
	}
	return *r.latest, true
}

// Run performs one crawl run. A cursor commit failure still returns the
// report alongside an error wrapping cursor.ErrCursorCommit.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	report := Report{RunID: runID, StartedAt: r.deps.Clock.Now()}
	logger := r.logger.With(zap.String("run_id", runID))

	ctx, span := telemetry.Tracer().Start(ctx, "crawl.run")
	span.SetAttributes(attribute.String("run_id", runID))
	defer span.End()

	err = r.run(ctx, logger, &report)
	report.FinishedAt = r.deps.Clock.Now()
	duration := report.FinishedAt.Sub(report.StartedAt)
	switch {
	case err == nil:
	case errors.Is(err, cursor.ErrCursorCommit):
		report.Error = err.Error()
		span.RecordError(err)
		logger.Error("cursor commit failed, next run will reprocess this window", zap.Error(err))
	default:
		report.Error = err.Error()
		report.Outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		metrics.ObserveFailedRun(duration)
		logger.Error("crawl run failed", zap.Error(err))
		r.store(report)
		return report, err
	}

	logger.Info("crawl run finished",
		zap.String("outcome", report.Outcome),
		zap.Int("pages", report.Pages),
		zap.Int("postings", report.Postings),
		zap.Bool("committed", report.Committed),
		zap.Duration("duration", duration),
	)
	r.store(report)
	return report, err
}

func (r *Runner) run(ctx context.Context, logger *zap.Logger, report *Report) error {
	src, err := r.deps.NewSource(ctx)
	if err != nil {
		return fmt.Errorf("open page source: %w", err)
	}
	walk, err := r.deps.Walker.Walk(ctx, src)
	if err != nil {
		return err
	}
	report.Outcome = string(walk.Outcome)
	report.Pages = walk.Pages
	report.Postings = len(walk.Postings)
	report.Skipped = walk.Skipped
	if walk.State.HasMarker {
		report.PreviousMarker = walk.State.Marker
	}

	details, _ := src.(crawler.DetailFetcher)
	postings, terms, err := r.extract(ctx, details, walk.Postings)
	if err != nil {
		return err
	}
	agg := r.aggregate(postings, terms)

	window := snapshot.Window{PreviousMarker: report.PreviousMarker, Outcome: report.Outcome}
	if walk.State.HasPending && walk.Complete() {
		window.NewMarker = walk.State.Pending
	}
	report.Top = snapshot.Skills{
		Required: canonical.TopN(agg.skills.Required, r.deps.TopN),
		Optional: canonical.TopN(agg.skills.Optional, r.deps.TopN),
		Other:    canonical.TopN(agg.skills.Other, r.deps.TopN),
		All:      canonical.TopN(agg.skills.All, r.deps.TopN),
	}
	meta, err := r.deps.Snapshots.Write(ctx, snapshot.Document{
		RunID:     report.RunID,
		CreatedAt: report.StartedAt,
		Window:    window,
		Vacancies: agg.records,
		Skills:    agg.skills,
		Top:       report.Top,
	})
	if err != nil {
		return err
	}
	report.Snapshot = &meta

	marker, committed, commitErr := r.deps.Walker.Commit(ctx, walk)
	switch {
	case commitErr != nil:
		metrics.ObserveCursorCommit("failed")
	case committed:
		metrics.ObserveCursorCommit("committed")
		report.NewMarker = marker
		report.Committed = true
	default:
		metrics.ObserveCursorCommit("skipped")
	}

	metrics.ObserveRun(metrics.Run{
		Outcome:    report.Outcome,
		Duration:   r.deps.Clock.Now().Sub(report.StartedAt),
		Pages:      report.Pages,
		Postings:   report.Postings,
		Skipped:    report.Skipped,
		Candidates: agg.candidates,
		Skills: map[string]int{
			string(crawler.SectionRequired): len(agg.skills.Required),
			string(crawler.SectionOptional): len(agg.skills.Optional),
			string(crawler.SectionOther):    len(agg.skills.Other),
			"all":                           len(agg.skills.All),
		},
	})
	r.publish(ctx, logger, report)
	return commitErr
}

// extract completes and extracts postings in parallel. Results keep fetch
// order.
func (r *Runner) extract(
	ctx context.Context,
	details crawler.DetailFetcher,
	postings []crawler.RawPosting,
) ([]crawler.RawPosting, []extract.PostingTerms, error) {
	completed := make([]crawler.RawPosting, len(postings))
	terms := make([]extract.PostingTerms, len(postings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.deps.Workers)
	for i, p := range postings {
		g.Go(func() error {
			if details != nil {
				full, err := details.Detail(gctx, p)
				if err != nil {
					return fmt.Errorf("complete posting %s: %w", p.ID, err)
				}
				p = full
			}
			completed[i] = p
			terms[i] = r.deps.Extractor.Extract(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return completed, terms, nil
}

type aggregate struct {
	records    []vacancy.Record
	skills     snapshot.Skills
	candidates map[string]int
}

// aggregate builds per-posting records and the run-wide canonical skills.
// Run-wide counts are the number of postings mentioning a term.
func (r *Runner) aggregate(postings []crawler.RawPosting, terms []extract.PostingTerms) aggregate {
	byKind := map[crawler.SectionKind]*tally{}
	for _, kind := range crawler.SectionKinds {
		byKind[kind] = newTally()
	}
	all := newTally()
	out := aggregate{
		records:    make([]vacancy.Record, 0, len(postings)),
		candidates: map[string]int{},
	}

	for i, p := range postings {
		labels := make(map[crawler.SectionKind][]string, len(crawler.SectionKinds))
		var everything []string
		seen := map[string]struct{}{}
		for _, kind := range crawler.SectionKinds {
			texts := terms[i].ByKind[kind]
			out.candidates[string(kind)] += len(texts)
			byKind[kind].add(texts)
			labels[kind] = r.deps.Canonicalizer.Labels(texts)
			for _, t := range texts {
				if _, dup := seen[t]; !dup {
					seen[t] = struct{}{}
					everything = append(everything, t)
				}
			}
		}
		all.add(everything)
		out.records = append(out.records, vacancy.NewRecord(p, r.deps.Fields, labels, r.deps.Canonicalizer.Labels(everything)))
	}

	c := r.deps.Canonicalizer
	out.skills = snapshot.Skills{
		Required: c.Canonicalize(byKind[crawler.SectionRequired].terms),
		Optional: c.Canonicalize(byKind[crawler.SectionOptional].terms),
		Other:    c.Canonicalize(byKind[crawler.SectionOther].terms),
		All:      c.Canonicalize(all.terms),
	}
	return out
}

type tally struct {
	index map[string]int
	terms []canonical.Term
}

func newTally() *tally {
	return &tally{index: map[string]int{}}
}

// add counts one posting's distinct texts.
func (t *tally) add(texts []string) {
	for _, text := range texts {
		if i, ok := t.index[text]; ok {
			t.terms[i].Count++
			continue
		}
		t.index[text] = len(t.terms)
		t.terms = append(t.terms, canonical.Term{Text: text, Count: 1})
	}
}

func (r *Runner) publish(ctx context.Context, logger *zap.Logger, report *Report) {
	if r.deps.Publisher == nil || r.deps.Topic == "" || report.Snapshot == nil {
		return
	}
	top := make([]string, 0, len(report.Top.All))
	for _, s := range report.Top.All {
		top = append(top, s.Label)
	}
	id, err := r.deps.Publisher.Publish(ctx, r.deps.Topic, Event{
		RunID:       report.RunID,
		FinishedAt:  r.deps.Clock.Now(),
		SnapshotURI: report.Snapshot.URI,
		Postings:    report.Postings,
		NewMarker:   report.NewMarker,
		TopSkills:   top,
	})
	if err != nil {
		logger.Warn("run event not published", zap.String("topic", r.deps.Topic), zap.Error(err))
		return
	}
	logger.Debug("run event published", zap.String("message_id", id))
}

func (r *Runner) store(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = &report
}
