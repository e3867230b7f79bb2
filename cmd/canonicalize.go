package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/job-skills-crawler/internal/app"
	"github.com/JakeFAU/job-skills-crawler/internal/canonical"
)

func newCanonicalizeCmd() *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "canonicalize [file]",
		Short: "Fold a list of skill terms into canonical skills",
		Long: `Reads one term per line, optionally followed by a tab and a count, from
file or standard input, and prints label, count and variants tab separated,
most frequent first.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotationPartialConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open terms: %w", err)
				}
				defer f.Close() //nolint:errcheck // read-only
				in = f
			}
			terms, err := parseTerms(in)
			if err != nil {
				return err
			}
			c, err := app.NewCanonicalizer(rt.cfg.Canonical, rt.logger.Named("canonical"))
			if err != nil {
				return err
			}
			skills := canonical.TopN(c.Canonicalize(terms), topN)
			out := cmd.OutOrStdout()
			for _, s := range skills {
				if _, err := fmt.Fprintf(out, "%s\t%d\t%s\n", s.Label, s.Count, strings.Join(s.Variants, ", ")); err != nil {
					return fmt.Errorf("write skills: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topN, "top", 0, "print only the n most frequent skills (0 prints all)")
	return cmd
}

// parseTerms reads "term" or "term<TAB>count" lines. Blank lines are skipped.
func parseTerms(r io.Reader) ([]canonical.Term, error) {
	var terms []canonical.Term
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text, countText, hasCount := strings.Cut(scanner.Text(), "\t")
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		count := 1
		if hasCount {
			n, err := strconv.Atoi(strings.TrimSpace(countText))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("line %d: invalid count %q", line, countText)
			}
			count = n
		}
		terms = append(terms, canonical.Term{Text: text, Count: count})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read terms: %w", err)
	}
	return terms, nil
}
