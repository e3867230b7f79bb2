package vacancy

import (
	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// Record is one posting in a run snapshot.
type Record struct {
	PostingID string         `json:"posting_id"`
	SourceURL string         `json:"source_url,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Required  []string       `json:"required_skills"`
	Optional  []string       `json:"optional_skills"`
	Other     []string       `json:"other_skills"`
	Skills    []string       `json:"skills"`
}

// NewRecord builds a record from a posting and its canonical labels per
// section kind. all is the posting's own label set across every kind.
func NewRecord(p crawler.RawPosting, table Table, byKind map[crawler.SectionKind][]string, all []string) Record {
	rec := Record{
		PostingID: p.ID,
		SourceURL: p.SourceURL,
		Required:  nonNil(byKind[crawler.SectionRequired]),
		Optional:  nonNil(byKind[crawler.SectionOptional]),
		Other:     nonNil(byKind[crawler.SectionOther]),
		Skills:    nonNil(all),
	}
	if len(p.Fields) > 0 {
		rec.Fields = table.Normalize(p.Fields)
	}
	return rec
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
