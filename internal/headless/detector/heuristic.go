// Package detector decides when a listing page needs a headless render and
// wraps a probe fetcher with that promotion.
package detector

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

const defaultMinBodyBytes = 2048

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// Heuristic promotes pages whose postings are evidently rendered client-side.
type Heuristic struct {
	minBodyBytes int
	posting      cascadia.Sel
}

// NewHeuristic builds a Heuristic. postingSelector is the listing's posting
// selector; a page that already matches it is never promoted.
func NewHeuristic(minBodyBytes int, postingSelector string) (*Heuristic, error) {
	if minBodyBytes <= 0 {
		minBodyBytes = defaultMinBodyBytes
	}
	h := &Heuristic{minBodyBytes: minBodyBytes}
	if strings.TrimSpace(postingSelector) != "" {
		sel, err := cascadia.Parse(postingSelector)
		if err != nil {
			return nil, fmt.Errorf("parse posting selector: %w", err)
		}
		h.posting = sel
	}
	return h, nil
}

// ShouldPromote reports whether resp should be fetched again headless.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK || resp.UsedHeadless {
		return false
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if h.posting != nil && h.hasPostings(body) {
		return false
	}
	if len(body) < h.minBodyBytes && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func (h *Heuristic) hasPostings(body []byte) bool {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return cascadia.Query(doc, h.posting) != nil
}

// scriptDensityHigh reports whether script elements cover a quarter of body.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1
		next := total
		if end := strings.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		covered += next - start
		pos = next
	}
	return covered*100/total >= 25
}
