package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

func TestExtractorGroupsBySectionKind(t *testing.T) {
	t.Parallel()

	ex := New(
		NewSegmenter(SegmenterConfig{RoleKeyword: "analyst"}),
		NewStopwordFilterFromWords("the"),
	)
	posting := crawler.RawPosting{
		ID: "p-1",
		RawText: "- Competitive salary. Requires Python, Power BI, AWS." +
			"<br><br>Analyst must have<br>Skills: Python, Power BI" +
			"<br><br>Analyst nice to have: Tableau and The" +
			"<br><br>Analyst joins our Python guild",
	}

	got := ex.Extract(posting)
	assert.Equal(t, "p-1", got.PostingID)
	assert.Equal(t, 3, got.Segments)
	assert.Equal(t, []string{"Python", "Power BI"}, got.ByKind[crawler.SectionRequired])
	assert.Equal(t, []string{"Tableau"}, got.ByKind[crawler.SectionOptional])
	assert.Equal(t, []string{"Python"}, got.ByKind[crawler.SectionOther])
	assert.Equal(t, 4, got.Total())
	assert.Len(t, got.Candidates(), 4)
}

func TestExtractorEmptyPosting(t *testing.T) {
	t.Parallel()

	got := New(NewSegmenter(SegmenterConfig{}), nil).Extract(crawler.RawPosting{ID: "p-2"})
	assert.Zero(t, got.Segments)
	assert.Zero(t, got.Total())
}
