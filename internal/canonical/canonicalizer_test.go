package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

func newTestCanonicalizer(t *testing.T, aliases ...Alias) *Canonicalizer {
	t.Helper()
	c, err := New(Config{
		LooseThreshold: DefaultLooseThreshold,
		MergeThreshold: DefaultMergeThreshold,
		Aliases:        aliases,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func units(texts ...string) []Term {
	out := make([]Term, len(texts))
	for i, t := range texts {
		out[i] = Term{Text: t, Count: 1}
	}
	return out
}

func TestCanonicalizeAliasAndPrefixFolding(t *testing.T) {
	t.Parallel()

	c := newTestCanonicalizer(t, Alias{Marker: "python", Label: "Python"})
	got := c.Canonicalize(units("AI", "AI Services", "Python", "Python3", "REST", "RESTful API"))

	assert.Equal(t, []crawler.CanonicalSkill{
		{Label: "AI", Variants: []string{"AI Services"}, Count: 2},
		{Label: "REST", Variants: []string{"RESTful API"}, Count: 2},
		{Label: "Python", Variants: []string{"Python3"}, Count: 2},
	}, got)
}

func TestCanonicalizeAliasCreatesLabelNotInInput(t *testing.T) {
	t.Parallel()

	c := newTestCanonicalizer(t, DefaultAliases()...)
	got := c.Canonicalize(units("Golang", "nodejs"))
	require.Len(t, got, 2)
	assert.Equal(t, "Go", got[0].Label)
	assert.Equal(t, []string{"Golang"}, got[0].Variants)
	assert.Equal(t, "Node.js", got[1].Label)
}

func TestCanonicalizeFoldsIdenticalTermsAndSumsCounts(t *testing.T) {
	t.Parallel()

	c := newTestCanonicalizer(t)
	got := c.Canonicalize([]Term{{Text: "Go", Count: 3}, {Text: "Go", Count: 2}, {Text: "Gopher"}, {Text: "  "}})
	assert.Equal(t, []crawler.CanonicalSkill{{Label: "Go", Variants: []string{"Gopher"}, Count: 6}}, got)
}

func TestCanonicalizeMergeThreshold(t *testing.T) {
	t.Parallel()

	c := newTestCanonicalizer(t)
	got := c.Canonicalize(units("Kubernetes", "Kubernets"))
	require.Len(t, got, 1)
	assert.Equal(t, "Kubernets", got[0].Label)
	assert.Equal(t, []string{"Kubernetes"}, got[0].Variants)

	strict, err := New(Config{LooseThreshold: 70, MergeThreshold: 96}, nil)
	require.NoError(t, err)
	assert.Len(t, strict.Canonicalize(units("Kubernetes", "Kubernets")), 2)
}

func TestCanonicalizeEmpty(t *testing.T) {
	t.Parallel()

	got := newTestCanonicalizer(t).Canonicalize(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	c := newTestCanonicalizer(t, DefaultAliases()...)
	inputs := []string{
		"Go", "Golang", "GoLand", "Google Cloud", "Java", "JavaScript", "Javascript",
		"Kafka", "Kafka Streams", "Postgres", "PostgreSQL", "React", "Reactjs", "Spark", "Sparc",
	}
	labels := c.Labels(inputs)
	assert.Equal(t, labels, c.Labels(labels))
}

func TestCanonicalizeNeverAbsorbsTwice(t *testing.T) {
	t.Parallel()

	c := newTestCanonicalizer(t, DefaultAliases()...)
	inputs := []string{
		"Go", "Golang", "GoLand", "Google Cloud", "Java", "JavaScript", "Javascript",
		"Kafka", "Kafka Streams", "Postgres", "PostgreSQL", "React", "Reactjs", "Spark", "Sparc",
	}
	skills := c.Canonicalize(units(inputs...))

	total := 0
	owner := map[string]string{}
	for _, s := range skills {
		total += s.Count
		for _, v := range s.Variants {
			prev, dup := owner[v]
			assert.False(t, dup, "variant %q absorbed by %q and %q", v, prev, s.Label)
			owner[v] = s.Label
		}
	}
	assert.Equal(t, len(inputs), total)
	for _, s := range skills {
		_, absorbed := owner[s.Label]
		assert.False(t, absorbed, "label %q is also a variant", s.Label)
	}
}

func TestCanonicalizePrefixMonotonicity(t *testing.T) {
	t.Parallel()

	plain := newTestCanonicalizer(t)
	withAliases := newTestCanonicalizer(t, DefaultAliases()...)
	pairs := [][2]string{
		{"Go", "Gopher"},
		{"AI", "AI Services"},
		{"Spark", "Spark Streaming"},
		{"aws", "AWS Lambda"},
		{"Node", "Node.js"},
		{"Py", "Python3"},
		{"Go", "Golang"},
		{"Python", "Python Django"},
	}
	for _, c := range []*Canonicalizer{plain, withAliases} {
		for _, p := range pairs {
			got := c.Canonicalize(units(p[1], p[0]))
			require.Len(t, got, 1, "pair %v", p)
			assert.Equal(t, p[0], got[0].Label, "pair %v", p)
			assert.Equal(t, []string{p[1]}, got[0].Variants, "pair %v", p)
		}
	}
}

func TestCanonicalizeAliasAnchorsScoreUnlessRewritten(t *testing.T) {
	t.Parallel()

	c := newTestCanonicalizer(t, DefaultAliases()...)
	got := c.Canonicalize(units("K8s", "Kubernetes", "Kubernetes Operators", "Postgres", "Postgres Admin"))
	assert.Equal(t, []crawler.CanonicalSkill{
		{Label: "Kubernetes", Variants: []string{"K8s", "Kubernetes Operators"}, Count: 3},
		{Label: "PostgreSQL", Variants: []string{"Postgres", "Postgres Admin"}, Count: 2},
	}, got)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "loose above merge", cfg: Config{LooseThreshold: 95, MergeThreshold: 90}},
		{name: "merge out of range", cfg: Config{LooseThreshold: 70, MergeThreshold: 101}},
		{name: "negative loose", cfg: Config{LooseThreshold: -1, MergeThreshold: 90}},
		{name: "alias without label", cfg: Config{LooseThreshold: 70, MergeThreshold: 90, Aliases: []Alias{{Marker: "py"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.cfg, nil)
			require.Error(t, err)
		})
	}
}

func TestTopN(t *testing.T) {
	t.Parallel()

	skills := []crawler.CanonicalSkill{
		{Label: "SQL", Count: 2},
		{Label: "Python", Count: 5},
		{Label: "Excel", Count: 2},
		{Label: "Go", Count: 1},
	}
	got := TopN(skills, 3)
	assert.Equal(t, []string{"Python", "Excel", "SQL"}, []string{got[0].Label, got[1].Label, got[2].Label})
	assert.Equal(t, "SQL", skills[0].Label)
	assert.Len(t, TopN(skills, 0), 4)
}
