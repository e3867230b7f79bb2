// Package canonical clusters near-duplicate skill terms under canonical labels.
package canonical

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// Default similarity thresholds.
const (
	DefaultLooseThreshold = 70
	DefaultMergeThreshold = 90
)

// Alias folds every term containing Marker (case-insensitively) into Label.
type Alias struct {
	Marker string `mapstructure:"marker" json:"marker"`
	Label  string `mapstructure:"label" json:"label"`
}

// DefaultAliases covers spellings that similarity scoring cannot join.
func DefaultAliases() []Alias {
	return []Alias{
		{Marker: "python", Label: "Python"},
		{Marker: "golang", Label: "Go"},
		{Marker: "k8s", Label: "Kubernetes"},
		{Marker: "postgres", Label: "PostgreSQL"},
		{Marker: "nodejs", Label: "Node.js"},
		{Marker: "node.js", Label: "Node.js"},
	}
}

// Config controls clustering.
type Config struct {
	// LooseThreshold is the candidate-pair cutoff for similarity-only matches.
	LooseThreshold int
	// MergeThreshold is the score at which a pair is merged.
	MergeThreshold int
	Aliases        []Alias
}

// Term is a candidate with its occurrence count.
type Term struct {
	Text  string
	Count int
}

// Canonicalizer merges candidates into CanonicalSkills. It holds only
// configuration; every call builds and discards its own partition.
type Canonicalizer struct {
	loose   int
	merge   int
	aliases []Alias
	logger  *zap.Logger
}

// New validates cfg and returns a Canonicalizer.
func New(cfg Config, logger *zap.Logger) (*Canonicalizer, error) {
	if cfg.LooseThreshold < 0 || cfg.LooseThreshold > 100 {
		return nil, fmt.Errorf("loose threshold must be within 0..100, got %d", cfg.LooseThreshold)
	}
	if cfg.MergeThreshold < 0 || cfg.MergeThreshold > 100 {
		return nil, fmt.Errorf("merge threshold must be within 0..100, got %d", cfg.MergeThreshold)
	}
	if cfg.LooseThreshold > cfg.MergeThreshold {
		return nil, fmt.Errorf("loose threshold %d exceeds merge threshold %d", cfg.LooseThreshold, cfg.MergeThreshold)
	}
	fold := cases.Fold()
	aliases := make([]Alias, 0, len(cfg.Aliases))
	for i, a := range cfg.Aliases {
		marker := strings.TrimSpace(a.Marker)
		label := strings.TrimSpace(a.Label)
		if marker == "" || label == "" {
			return nil, fmt.Errorf("alias %d needs both marker and label", i)
		}
		aliases = append(aliases, Alias{Marker: fold.String(marker), Label: label})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Canonicalizer{
		loose:   cfg.LooseThreshold,
		merge:   cfg.MergeThreshold,
		aliases: aliases,
		logger:  logger,
	}, nil
}

type entry struct {
	text   string
	folded []rune
	count  int
	alias  string
	// rewritten is set when a marker hit replaces the text with the alias
	// label. Such anchors do not score.
	rewritten bool
}

type cluster struct {
	label    string
	variants map[string]struct{}
	count    int
}

// Canonicalize clusters terms. Identical texts are folded first; the rest are
// visited shortest first, and each unclaimed anchor absorbs every unclaimed
// term that extends it or scores at least the merge threshold. Output is in
// cluster creation order and every input term lands in exactly one cluster.
func (c *Canonicalizer) Canonicalize(terms []Term) []crawler.CanonicalSkill {
	entries := c.prepare(terms)
	if len(entries) == 0 {
		return []crawler.CanonicalSkill{}
	}

	var (
		clusters []*cluster
		aliased  = make(map[string]*cluster)
		claimed  = make([]bool, len(entries))
	)
	for i := range entries {
		if claimed[i] {
			continue
		}
		anchor := entries[i]
		claimed[i] = true

		var cl *cluster
		if anchor.alias != "" {
			var ok bool
			cl, ok = aliased[anchor.alias]
			if !ok {
				cl = &cluster{label: anchor.alias, variants: map[string]struct{}{}}
				aliased[anchor.alias] = cl
				clusters = append(clusters, cl)
			}
			cl.absorb(anchor)
			if anchor.rewritten {
				continue
			}
		} else {
			cl = &cluster{label: anchor.text, variants: map[string]struct{}{}, count: anchor.count}
			clusters = append(clusters, cl)
		}

		for j := i + 1; j < len(entries); j++ {
			other := entries[j]
			if claimed[j] {
				continue
			}
			prefix := hasRunePrefix(other.folded, anchor.folded)
			score := ratioRunes(anchor.folded, other.folded)
			if !prefix && score < c.loose {
				continue
			}
			if prefix || score >= c.merge {
				claimed[j] = true
				cl.absorb(other)
				continue
			}
			c.logger.Debug("near duplicate kept apart",
				zap.String("anchor", anchor.text),
				zap.String("candidate", other.text),
				zap.Int("score", score),
			)
		}
	}

	out := make([]crawler.CanonicalSkill, 0, len(clusters))
	for _, cl := range clusters {
		out = append(out, cl.skill())
	}
	return out
}

// Labels canonicalizes texts with unit counts and returns the labels.
func (c *Canonicalizer) Labels(texts []string) []string {
	terms := make([]Term, len(texts))
	for i, t := range texts {
		terms[i] = Term{Text: t, Count: 1}
	}
	skills := c.Canonicalize(terms)
	labels := make([]string, len(skills))
	for i, s := range skills {
		labels[i] = s.Label
	}
	return labels
}

func (c *Canonicalizer) prepare(terms []Term) []entry {
	fold := cases.Fold()
	index := make(map[string]int, len(terms))
	entries := make([]entry, 0, len(terms))
	for _, t := range terms {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		count := t.Count
		if count <= 0 {
			count = 1
		}
		if i, ok := index[text]; ok {
			entries[i].count += count
			continue
		}
		folded := fold.String(text)
		alias, rewritten := c.aliasFor(folded, fold)
		index[text] = len(entries)
		entries = append(entries, entry{
			text:      text,
			folded:    []rune(folded),
			count:     count,
			alias:     alias,
			rewritten: rewritten,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return utf8.RuneCountInString(entries[i].text) < utf8.RuneCountInString(entries[j].text)
	})
	return entries
}

// aliasFor returns the alias label for a folded term: an alias whose label it
// equals, else the first alias whose marker it contains. rewritten reports a
// marker hit on a term that is not already the label.
func (c *Canonicalizer) aliasFor(folded string, fold cases.Caser) (label string, rewritten bool) {
	for _, a := range c.aliases {
		if fold.String(a.Label) == folded {
			return a.Label, false
		}
	}
	for _, a := range c.aliases {
		if strings.Contains(folded, a.Marker) {
			return a.Label, true
		}
	}
	return "", false
}

func (cl *cluster) absorb(e entry) {
	cl.count += e.count
	if e.text != cl.label {
		cl.variants[e.text] = struct{}{}
	}
}

func (cl *cluster) skill() crawler.CanonicalSkill {
	variants := make([]string, 0, len(cl.variants))
	for v := range cl.variants {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	return crawler.CanonicalSkill{Label: cl.label, Variants: variants, Count: cl.count}
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

// TopN orders skills by count descending, then label, and keeps the first n.
// n <= 0 keeps all.
func TopN(skills []crawler.CanonicalSkill, n int) []crawler.CanonicalSkill {
	out := make([]crawler.CanonicalSkill, len(skills))
	copy(out, skills)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
