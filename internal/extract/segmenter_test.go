package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

func TestSegmenterEmptyInput(t *testing.T) {
	t.Parallel()

	s := NewSegmenter(SegmenterConfig{RoleKeyword: "analyst"})
	assert.Empty(t, s.Segment(""))
	assert.Empty(t, s.Segment("  <br><br>  "))
}

func TestSegmenterWithoutSeparatorsIsOneSegment(t *testing.T) {
	t.Parallel()

	s := NewSegmenter(SegmenterConfig{})
	got := s.Segment("Data Analyst with Python")
	require.Len(t, got, 1)
	assert.Equal(t, crawler.Segment{Text: "Data Analyst with Python", Kind: crawler.SectionOther}, got[0])
}

func TestSegmenterDropsBoilerplateWithoutKeyword(t *testing.T) {
	t.Parallel()

	s := NewSegmenter(SegmenterConfig{RoleKeyword: "Analyst"})
	raw := "- Competitive salary. Requires Python, Power BI, AWS.<br><br>Analyst must have<br>Skills: Python, Power BI"
	got := s.Segment(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "Analyst must have. Skills: Python, Power BI", got[0].Text)
	assert.Equal(t, crawler.SectionRequired, got[0].Kind)
}

func TestSegmenterClassification(t *testing.T) {
	t.Parallel()

	s := NewSegmenter(SegmenterConfig{RoleKeyword: "analyst"})
	tests := []struct {
		name string
		raw  string
		want crawler.SectionKind
	}{
		{name: "optional wins", raw: "Nice to have for the analyst: required Kafka", want: crawler.SectionOptional},
		{name: "required", raw: "Requirements for the analyst", want: crawler.SectionRequired},
		{name: "other", raw: "The analyst joins a small team", want: crawler.SectionOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.Segment(tt.raw)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Kind)
		})
	}
}

func TestSegmenterStripsMarkup(t *testing.T) {
	t.Parallel()

	s := NewSegmenter(SegmenterConfig{})
	got := s.Segment("<ul><li>Analyst with Python</li><li>Go</li></ul>")
	require.Len(t, got, 1)
	assert.Equal(t, "Analyst with Python\nGo", got[0].Text)

	got = s.Segment("R&amp;D analyst<br/>uses   Spark")
	require.Len(t, got, 1)
	assert.Equal(t, "R&D analyst. uses Spark", got[0].Text)
}

func TestSegmenterCustomSeparators(t *testing.T) {
	t.Parallel()

	s := NewSegmenter(SegmenterConfig{Separators: []string{"||"}})
	got := s.Segment("first part||second part")
	require.Len(t, got, 2)
	assert.Equal(t, "first part", got[0].Text)
	assert.Equal(t, "second part", got[1].Text)
}
