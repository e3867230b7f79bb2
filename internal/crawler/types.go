package crawler

import (
	"net/http"
	"time"
)

// SectionKind tags a segment of posting text by the kind of requirement it lists.
type SectionKind string

// Section kinds assigned by the segmenter.
const (
	SectionRequired SectionKind = "required"
	SectionOptional SectionKind = "optional"
	SectionOther    SectionKind = "other"
)

// SectionKinds lists every kind in reporting order.
var SectionKinds = []SectionKind{SectionRequired, SectionOptional, SectionOther}

// Valid reports whether k is one of the known section kinds.
func (k SectionKind) Valid() bool {
	switch k {
	case SectionRequired, SectionOptional, SectionOther:
		return true
	default:
		return false
	}
}

// RawPosting is a single job posting as produced by a PageSource.
type RawPosting struct {
	ID        string            `json:"posting_id"`
	SourceURL string            `json:"source_url"`
	RawText   string            `json:"raw_text"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Segment is a role-relevant slice of plain posting text.
type Segment struct {
	Text string
	Kind SectionKind
}

// CandidateTerm is a possible skill label found in a segment.
type CandidateTerm struct {
	Text string
	Kind SectionKind
}

// CanonicalSkill is a cluster of near-duplicate candidate terms.
type CanonicalSkill struct {
	Label    string   `json:"label"`
	Variants []string `json:"variants,omitempty"`
	Count    int      `json:"count"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL           string
	Headers       http.Header
	RespectRobots bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// SnapshotMeta is the catalog row describing one persisted run snapshot.
type SnapshotMeta struct {
	RunID     string    `json:"run_id"`
	FileName  string    `json:"file_name"`
	URI       string    `json:"uri"`
	Digest    string    `json:"digest"`
	Postings  int       `json:"postings"`
	Skills    int       `json:"skills"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotFilter narrows a catalog listing. Zero values match everything.
type SnapshotFilter struct {
	From      time.Time
	To        time.Time
	FileNames []string
	Limit     int
}

// Match reports whether meta satisfies the filter. Catalogs that cannot push
// the filter down to their backend use it directly.
func (f SnapshotFilter) Match(meta SnapshotMeta) bool {
	if !f.From.IsZero() && meta.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && meta.CreatedAt.After(f.To) {
		return false
	}
	if len(f.FileNames) == 0 {
		return true
	}
	for _, name := range f.FileNames {
		if name == meta.FileName {
			return true
		}
	}
	return false
}
