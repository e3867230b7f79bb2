// Package extract turns raw posting text into filtered candidate skill terms:
// segmentation, capitalized-run extraction, and stopword removal. Every step
// is pure, so postings can be processed concurrently.
package extract

import (
	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// PostingTerms holds the filtered candidates of one posting grouped by section kind.
type PostingTerms struct {
	PostingID string
	Segments  int
	ByKind    map[crawler.SectionKind][]string
}

// Total returns the number of candidates across all kinds.
func (p PostingTerms) Total() int {
	n := 0
	for _, terms := range p.ByKind {
		n += len(terms)
	}
	return n
}

// Extractor chains the segmenter, candidate extractor, and stopword filter.
type Extractor struct {
	segmenter  *Segmenter
	candidates CandidateExtractor
	stopwords  *StopwordFilter
}

// New builds an Extractor. A nil filter keeps every candidate.
func New(segmenter *Segmenter, stopwords *StopwordFilter) *Extractor {
	if stopwords == nil {
		stopwords = NewStopwordFilterFromWords()
	}
	return &Extractor{
		segmenter:  segmenter,
		candidates: NewCandidateExtractor(),
		stopwords:  stopwords,
	}
}

// Extract returns the posting's candidates. Within a kind, candidates are the
// union over its segments in order of first appearance.
func (e *Extractor) Extract(posting crawler.RawPosting) PostingTerms {
	segments := e.segmenter.Segment(posting.RawText)
	out := PostingTerms{
		PostingID: posting.ID,
		Segments:  len(segments),
		ByKind:    make(map[crawler.SectionKind][]string, len(crawler.SectionKinds)),
	}
	seen := make(map[crawler.SectionKind]map[string]struct{}, len(crawler.SectionKinds))
	for _, seg := range segments {
		terms := e.stopwords.Filter(e.candidates.Extract(seg.Text))
		if len(terms) == 0 {
			continue
		}
		if seen[seg.Kind] == nil {
			seen[seg.Kind] = make(map[string]struct{})
		}
		for _, t := range terms {
			if _, ok := seen[seg.Kind][t]; ok {
				continue
			}
			seen[seg.Kind][t] = struct{}{}
			out.ByKind[seg.Kind] = append(out.ByKind[seg.Kind], t)
		}
	}
	return out
}

// Candidates flattens the posting's terms into tagged candidates.
func (p PostingTerms) Candidates() []crawler.CandidateTerm {
	var out []crawler.CandidateTerm
	for _, kind := range crawler.SectionKinds {
		for _, t := range p.ByKind[kind] {
			out = append(out, crawler.CandidateTerm{Text: t, Kind: kind})
		}
	}
	return out
}
