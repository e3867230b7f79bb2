package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-skills-crawler/internal/app"
	"github.com/JakeFAU/job-skills-crawler/internal/cursor"
)

func newRunCmd() *cobra.Command {
	var maxPages int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one incremental crawl and print the run report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			cfg := rt.cfg
			if cmd.Flags().Changed("max-pages") {
				cfg.Crawl.MaxPages = maxPages
			}

			ctx := cmd.Context()
			a, err := app.Build(ctx, cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			defer a.Close(ctx)

			report, runErr := a.Runner.Run(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if errors.Is(runErr, cursor.ErrCursorCommit) {
				rt.logger.Warn("snapshot written but cursor not advanced", zap.Error(runErr))
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many listing pages without advancing the cursor (0 means no limit)")
	return cmd
}
