package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// Default segmenter vocabulary.
var (
	DefaultSeparators      = []string{"<br><br>", "\n\n"}
	DefaultOptionalMarkers = []string{"nice to have", "optional", "would be a plus", "bonus", "preferred"}
	DefaultRequiredMarkers = []string{"requirement", "required", "must have", "you have", "we expect"}
)

const lineBreak = "<br>"

var brVariants = strings.NewReplacer(
	"<br/>", lineBreak,
	"<br />", lineBreak,
	"<BR>", lineBreak,
	"<BR/>", lineBreak,
	"<BR />", lineBreak,
)

const blockElements = "p, div, li, ul, ol, h1, h2, h3, h4, h5, h6, tr, section, article"

// SegmenterConfig controls paragraph splitting and section classification.
type SegmenterConfig struct {
	RoleKeyword     string
	Separators      []string
	OptionalMarkers []string
	RequiredMarkers []string
}

// Segmenter splits marked-up posting text into role-relevant plain-text segments.
type Segmenter struct {
	keyword    string
	separators []string
	optional   []string
	required   []string
}

// NewSegmenter builds a Segmenter, filling unset vocabularies with defaults.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	lower := cases.Lower(language.Und)
	s := &Segmenter{
		keyword:    lower.String(strings.TrimSpace(cfg.RoleKeyword)),
		separators: cfg.Separators,
		optional:   lowerAll(cfg.OptionalMarkers),
		required:   lowerAll(cfg.RequiredMarkers),
	}
	if len(s.separators) == 0 {
		s.separators = DefaultSeparators
	}
	if len(cfg.OptionalMarkers) == 0 {
		s.optional = lowerAll(DefaultOptionalMarkers)
	}
	if len(cfg.RequiredMarkers) == 0 {
		s.required = lowerAll(DefaultRequiredMarkers)
	}
	return s
}

// Segment returns the retained segments of raw in source order. It never fails:
// text without separators is one paragraph and empty text has no segments.
func (s *Segmenter) Segment(raw string) []crawler.Segment {
	raw = brVariants.Replace(raw)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	lower := cases.Lower(language.Und)
	var out []crawler.Segment
	for _, paragraph := range s.split(raw) {
		text := plainText(strings.ReplaceAll(paragraph, lineBreak, ". "))
		if text == "" {
			continue
		}
		folded := lower.String(text)
		if s.keyword != "" && !strings.Contains(folded, s.keyword) {
			continue
		}
		out = append(out, crawler.Segment{Text: text, Kind: s.classify(folded)})
	}
	return out
}

func (s *Segmenter) split(raw string) []string {
	parts := []string{raw}
	for _, sep := range s.separators {
		if sep == "" {
			continue
		}
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	return parts
}

func (s *Segmenter) classify(folded string) crawler.SectionKind {
	for _, m := range s.optional {
		if strings.Contains(folded, m) {
			return crawler.SectionOptional
		}
	}
	for _, m := range s.required {
		if strings.Contains(folded, m) {
			return crawler.SectionRequired
		}
	}
	return crawler.SectionOther
}

// plainText strips markup, decodes entities, and normalises whitespace so
// every block element ends its own line.
func plainText(fragment string) string {
	text := fragment
	if strings.ContainsAny(fragment, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err == nil {
			doc.Find(blockElements).Each(func(_ int, sel *goquery.Selection) {
				sel.AfterNodes(&html.Node{Type: html.TextNode, Data: "\n"})
			})
			text = doc.Text()
		}
	}
	text = norm.NFC.String(text)

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func lowerAll(in []string) []string {
	lower := cases.Lower(language.Und)
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, lower.String(v))
		}
	}
	return out
}
