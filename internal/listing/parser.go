// Package listing selects postings, their attributes and the next-page link
// out of listing and detail HTML with CSS selectors.
//
// Field selectors may end in "@attr" to read an attribute instead of the
// element text, e.g. "span.nobr span:nth-child(1)@title".
package listing

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// Selectors configures the parser. Only Posting is required.
type Selectors struct {
	Posting      string            `mapstructure:"posting"`
	ID           string            `mapstructure:"id"`
	Link         string            `mapstructure:"link"`
	Text         string            `mapstructure:"text"`
	NextPage     string            `mapstructure:"next_page"`
	Fields       map[string]string `mapstructure:"fields"`
	DetailText   string            `mapstructure:"detail_text"`
	DetailFields map[string]string `mapstructure:"detail_fields"`
}

// Page is one parsed listing page.
type Page struct {
	Postings []crawler.RawPosting
	// Next is the absolute next-page URL, nil on the last page.
	Next *url.URL
}

type fieldSelector struct {
	name string
	sel  string
	attr string
}

// Parser extracts postings from HTML.
type Parser struct {
	sel          Selectors
	idSel        string
	idAttr       string
	fields       []fieldSelector
	detailFields []fieldSelector
}

// NewParser validates every selector.
func NewParser(sel Selectors) (*Parser, error) {
	if strings.TrimSpace(sel.Posting) == "" {
		return nil, errors.New("posting selector is required")
	}
	for _, s := range []string{sel.Posting, sel.Link, sel.Text, sel.NextPage, sel.DetailText} {
		if err := compile(s); err != nil {
			return nil, err
		}
	}
	p := &Parser{sel: sel}
	p.idSel, p.idAttr = splitAttr(sel.ID)
	if err := compile(p.idSel); err != nil {
		return nil, err
	}
	var err error
	if p.fields, err = compileFields(sel.Fields); err != nil {
		return nil, err
	}
	if p.detailFields, err = compileFields(sel.DetailFields); err != nil {
		return nil, err
	}
	return p, nil
}

// HasDetail reports whether detail pages contribute anything.
func (p *Parser) HasDetail() bool {
	return p.sel.DetailText != "" || len(p.detailFields) > 0
}

// Parse reads one listing page fetched from base.
func (p *Parser) Parse(base *url.URL, body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse listing html: %w", err)
	}
	var page Page
	doc.Find(p.sel.Posting).Each(func(_ int, item *goquery.Selection) {
		page.Postings = append(page.Postings, p.posting(base, item))
	})
	if p.sel.NextPage != "" {
		if href, ok := doc.Find(p.sel.NextPage).First().Attr("href"); ok {
			page.Next = resolve(base, href)
		}
	}
	return page, nil
}

// ParseDetail merges a posting's detail page into it. Listing values win
// over detail values for the same field; a non-empty detail text replaces
// the listing text.
func (p *Parser) ParseDetail(posting crawler.RawPosting, body []byte) (crawler.RawPosting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return posting, fmt.Errorf("parse detail html: %w", err)
	}
	if p.sel.DetailText != "" {
		if text := innerHTML(doc.Find(p.sel.DetailText)); strings.TrimSpace(text) != "" {
			posting.RawText = text
		}
	}
	if len(p.detailFields) == 0 {
		return posting, nil
	}
	merged := make(map[string]string, len(posting.Fields)+len(p.detailFields))
	for _, f := range p.detailFields {
		if v, ok := f.value(doc.Selection); ok {
			merged[f.name] = v
		}
	}
	for k, v := range posting.Fields {
		merged[k] = v
	}
	posting.Fields = merged
	return posting, nil
}

func (p *Parser) posting(base *url.URL, item *goquery.Selection) crawler.RawPosting {
	var posting crawler.RawPosting

	if p.sel.Link != "" {
		if href, ok := item.Find(p.sel.Link).First().Attr("href"); ok {
			if u := resolve(base, href); u != nil {
				posting.SourceURL = u.String()
			}
		}
	}

	idNode := item
	if p.idSel != "" {
		idNode = item.Find(p.idSel).First()
	}
	switch {
	case p.idAttr != "":
		posting.ID, _ = idNode.Attr(p.idAttr)
	case p.sel.ID != "":
		posting.ID = idNode.Text()
	default:
		// Without an id selector the detail URL identifies the posting.
		posting.ID = posting.SourceURL
	}
	posting.ID = strings.TrimSpace(posting.ID)

	if p.sel.Text != "" {
		posting.RawText = innerHTML(item.Find(p.sel.Text))
	} else {
		posting.RawText = innerHTML(item)
	}

	for _, f := range p.fields {
		if v, ok := f.value(item); ok {
			if posting.Fields == nil {
				posting.Fields = make(map[string]string, len(p.fields))
			}
			posting.Fields[f.name] = v
		}
	}
	return posting
}

func (f fieldSelector) value(scope *goquery.Selection) (string, bool) {
	node := scope
	if f.sel != "" {
		node = scope.Find(f.sel).First()
	}
	if node.Length() == 0 {
		return "", false
	}
	if f.attr != "" {
		v, ok := node.Attr(f.attr)
		return strings.TrimSpace(v), ok
	}
	return strings.TrimSpace(node.Text()), true
}

func innerHTML(s *goquery.Selection) string {
	var parts []string
	s.Each(func(_ int, el *goquery.Selection) {
		if h, err := el.Html(); err == nil {
			parts = append(parts, h)
		}
	})
	return strings.Join(parts, "<br><br>")
}

func resolve(base *url.URL, href string) *url.URL {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || href == "" {
		return nil
	}
	if base == nil {
		return ref
	}
	return base.ResolveReference(ref)
}

func splitAttr(s string) (sel, attr string) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "@")
	if i < 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
}

func compile(sel string) error {
	if sel == "" {
		return nil
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return nil
}

func compileFields(in map[string]string) ([]fieldSelector, error) {
	out := make([]fieldSelector, 0, len(in))
	for name, raw := range in {
		sel, attr := splitAttr(raw)
		if err := compile(sel); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out = append(out, fieldSelector{name: name, sel: sel, attr: attr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}
