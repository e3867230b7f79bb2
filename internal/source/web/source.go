// Package web walks a job board listing page by page over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
	"github.com/JakeFAU/job-skills-crawler/internal/listing"
	"github.com/JakeFAU/job-skills-crawler/internal/policy/ratelimit"
)

// Config describes where the listing starts.
type Config struct {
	StartURL      string
	RespectRobots bool
	Headers       http.Header
}

// Source implements crawler.PageSource and crawler.DetailFetcher. A Source
// holds the walk position and serves a single run.
type Source struct {
	cfg     Config
	fetcher crawler.Fetcher
	parser  *listing.Parser
	limiter *ratelimit.Limiter
	logger  *zap.Logger

	next    *url.URL
	visited map[string]struct{}
}

// New builds a Source positioned at the first listing page.
func New(
	cfg Config,
	fetcher crawler.Fetcher,
	parser *listing.Parser,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
) (*Source, error) {
	if fetcher == nil || parser == nil {
		return nil, errors.New("fetcher and parser are required")
	}
	start, err := url.Parse(cfg.StartURL)
	if err != nil || !start.IsAbs() {
		return nil, fmt.Errorf("invalid start url %q", cfg.StartURL)
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{}, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  parser,
		limiter: limiter,
		logger:  logger,
		next:    start,
		visited: make(map[string]struct{}),
	}, nil
}

// NextPage fetches and parses the next listing page.
func (s *Source) NextPage(ctx context.Context) ([]crawler.RawPosting, bool, error) {
	if s.next == nil {
		return nil, false, nil
	}
	pageURL := s.next.String()
	if _, seen := s.visited[pageURL]; seen {
		s.logger.Warn("listing pagination loops, stopping", zap.String("url", pageURL))
		s.next = nil
		return nil, false, nil
	}
	s.visited[pageURL] = struct{}{}

	resp, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, false, err
	}
	base, err := url.Parse(resp.URL)
	if err != nil || resp.URL == "" {
		base = s.next
	}
	page, err := s.parser.Parse(base, resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	s.logger.Debug("listing page fetched",
		zap.String("url", pageURL),
		zap.Int("postings", len(page.Postings)),
	)
	s.next = page.Next
	return page.Postings, s.next != nil, nil
}

// Detail fetches the posting's own page when detail selectors are set.
// Safe for concurrent use.
func (s *Source) Detail(ctx context.Context, p crawler.RawPosting) (crawler.RawPosting, error) {
	if !s.parser.HasDetail() || p.SourceURL == "" {
		return p, nil
	}
	resp, err := s.fetch(ctx, p.SourceURL)
	if err != nil {
		return p, err
	}
	out, err := s.parser.ParseDetail(p, resp.Body)
	if err != nil {
		return p, fmt.Errorf("parse detail %s: %w", p.SourceURL, err)
	}
	return out, nil
}

func (s *Source) fetch(ctx context.Context, target string) (crawler.FetchResponse, error) {
	if err := s.limiter.Wait(ctx, target); err != nil {
		return crawler.FetchResponse{}, err
	}
	resp, err := s.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:           target,
		Headers:       s.cfg.Headers,
		RespectRobots: s.cfg.RespectRobots,
	})
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}
	return resp, nil
}
