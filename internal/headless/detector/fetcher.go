package detector

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// Fetcher fetches with a cheap probe and re-fetches headless when the
// heuristic says the probe saw an unrendered page.
type Fetcher struct {
	probe     crawler.Fetcher
	headless  crawler.Fetcher
	heuristic *Heuristic
	logger    *zap.Logger
}

// NewFetcher wraps probe. A nil headless fetcher disables promotion.
func NewFetcher(probe, headless crawler.Fetcher, heuristic *Heuristic, logger *zap.Logger) (*Fetcher, error) {
	if probe == nil || heuristic == nil {
		return nil, errors.New("probe fetcher and heuristic are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{probe: probe, headless: headless, heuristic: heuristic, logger: logger}, nil
}

// Fetch implements crawler.Fetcher. A failed headless render falls back to the
// probe response.
func (f *Fetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	resp, err := f.probe.Fetch(ctx, req)
	if err != nil || f.headless == nil || !f.heuristic.ShouldPromote(resp) {
		return resp, err
	}
	f.logger.Debug("promoting page to headless render", zap.String("url", req.URL))
	rendered, err := f.headless.Fetch(ctx, req)
	if err != nil {
		f.logger.Warn("headless render failed, using probe body", zap.String("url", req.URL), zap.Error(err))
		return resp, nil
	}
	rendered.UsedHeadless = true
	return rendered, nil
}
