package extract

import (
	"time"

	"github.com/dlclark/regexp2"
)

// word is one capitalized token run: an upper-case letter followed by
// lower-case letters, repeated, so "Power", "BI", "JavaScript" and "Łódź"
// match while "Python3" and "iOS" do not.
const word = `(?:[\p{Lu}\p{Lt}]\p{Ll}*)+`

// joiner is any single separator between words of one term except line
// breaks, tabs and list punctuation (":" "," ";").
const joiner = `[^\w\r\n\t:,;]`

var candidatePattern = regexp2.MustCompile(
	// not at a line start, after a list or punctuation marker, or after a
	// non-ASCII bullet, each with or without one following space
	`(?<!(?:^|\r|[.*+)>-]|[^\x00-\x7F\w\s])[ \t]?)\b`+
		word+`(?:`+joiner+word+`)*`+
		// "Skills:" and "Required Skills:" are section labels
		`\b(?!(?: `+word+`)*:)`,
	regexp2.Multiline,
)

func init() {
	candidatePattern.MatchTimeout = time.Second
}

// CandidateExtractor finds runs of capitalized words that may name a skill or
// tool. When the longest run is a label, the pattern backtracks to shorter
// runs ending at earlier words before giving up on the start.
type CandidateExtractor struct {
	re *regexp2.Regexp
}

// NewCandidateExtractor returns the extractor.
func NewCandidateExtractor() CandidateExtractor {
	return CandidateExtractor{re: candidatePattern}
}

// Extract returns the distinct candidates in order of first appearance. A
// match timeout ends the scan with what was found so far.
func (c CandidateExtractor) Extract(text string) []string {
	re := c.re
	if re == nil {
		re = candidatePattern
	}
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		candidate := m.String()
		if _, ok := seen[candidate]; !ok {
			seen[candidate] = struct{}{}
			out = append(out, candidate)
		}
		m, err = re.FindNextMatch(m)
	}
	return out
}
