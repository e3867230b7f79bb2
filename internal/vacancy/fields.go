// Package vacancy turns the raw listing attributes of a posting into typed
// fields and assembles the per-posting snapshot record.
package vacancy

import (
	"strconv"
	"strings"
	"unicode"
)

// Field names recognised by the transform table.
const (
	FieldPostedAt       = "posted_at"
	FieldViews          = "views"
	FieldApplications   = "applications"
	FieldExperience     = "experience"
	FieldEmploymentType = "employment_type"
	FieldLocation       = "location"
)

// Transform converts one raw attribute value.
type Transform func(raw string) any

// Table maps field names to transforms. Fields without an entry are trimmed
// and kept as strings.
type Table map[string]Transform

// DefaultTable is the transform table for the fields listing pages expose.
func DefaultTable() Table {
	return Table{
		FieldPostedAt:       func(raw string) any { return strings.TrimSpace(raw) },
		FieldViews:          func(raw string) any { return FirstInteger(raw) },
		FieldApplications:   func(raw string) any { return FirstInteger(raw) },
		FieldExperience:     func(raw string) any { return FirstInteger(raw) },
		FieldEmploymentType: func(raw string) any { return EmploymentType(raw) },
		FieldLocation:       func(raw string) any { return SplitList(raw) },
	}
}

// Normalize applies the table to every raw field.
func (t Table) Normalize(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for name, value := range raw {
		if fn, ok := t[name]; ok {
			out[name] = fn(value)
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// FirstInteger returns the leading integer of the first token that starts
// with a digit ("123 views" → 123, "5 years of experience" → 5). Values
// without one yield 0.
func FirstInteger(raw string) int {
	for _, tok := range strings.Fields(raw) {
		end := strings.IndexFunc(tok, func(r rune) bool { return !unicode.IsDigit(r) })
		if end == -1 {
			end = len(tok)
		}
		if end == 0 {
			continue
		}
		n, err := strconv.Atoi(tok[:end])
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

var employmentReplacer = strings.NewReplacer(
	"Full Remote", "Remote",
	"Hybrid Remote", "Hybrid",
	"Office Work", "Office",
)

// EmploymentType collapses the listing's wording to Remote, Hybrid or
// Office, one entry per alternative ("Office or Hybrid Remote").
func EmploymentType(raw string) []string {
	value := employmentReplacer.Replace(strings.TrimSpace(raw))
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, " or ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitList splits a comma separated attribute such as a location list.
func SplitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}
