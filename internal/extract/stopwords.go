package extract

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed lexicon/*.txt
var lexicons embed.FS

// Lexicons lists the built-in stopword languages.
var Lexicons = []string{"english", "polish"}

// StopwordFilter drops candidates that are exactly a generic language word.
// Matching is on the whole lower-cased candidate, never on its parts.
type StopwordFilter struct {
	words map[string]struct{}
}

// NewStopwordFilter builds a filter from the named built-in lexicons plus an
// optional user file with one token per line.
func NewStopwordFilter(languages []string, extraFile string) (*StopwordFilter, error) {
	f := &StopwordFilter{words: make(map[string]struct{})}
	for _, lang := range languages {
		data, err := lexicons.Open("lexicon/" + strings.ToLower(lang) + ".txt")
		if err != nil {
			return nil, fmt.Errorf("open %s lexicon: %w", lang, err)
		}
		err = f.read(data)
		if closeErr := data.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, fmt.Errorf("read %s lexicon: %w", lang, err)
		}
	}
	if extraFile != "" {
		// #nosec G304 -- path comes from operator configuration.
		file, err := os.Open(extraFile)
		if err != nil {
			return nil, fmt.Errorf("open stopword file: %w", err)
		}
		defer file.Close() //nolint:errcheck // read-only
		if err := f.read(file); err != nil {
			return nil, fmt.Errorf("read stopword file: %w", err)
		}
	}
	return f, nil
}

// NewStopwordFilterFromWords builds a filter over an explicit word list.
func NewStopwordFilterFromWords(words ...string) *StopwordFilter {
	f := &StopwordFilter{words: make(map[string]struct{}, len(words))}
	lower := cases.Lower(language.Und)
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		f.words[lower.String(w)] = struct{}{}
	}
	return f
}

func (f *StopwordFilter) read(r io.Reader) error {
	lower := cases.Lower(language.Und)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.words[lower.String(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan lexicon: %w", err)
	}
	return nil
}

// Len returns the lexicon size.
func (f *StopwordFilter) Len() int {
	return len(f.words)
}

// IsStopword reports whether the whole candidate is a lexicon entry.
func (f *StopwordFilter) IsStopword(candidate string) bool {
	_, ok := f.words[cases.Lower(language.Und).String(strings.TrimSpace(candidate))]
	return ok
}

// Filter returns candidates that are not stopwords, preserving order.
func (f *StopwordFilter) Filter(candidates []string) []string {
	if len(f.words) == 0 {
		return candidates
	}
	lower := cases.Lower(language.Und)
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := f.words[lower.String(strings.TrimSpace(c))]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}
