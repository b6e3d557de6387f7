package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/landscape/internal/pipeline"
	"github.com/FranksOps/landscape/internal/report"
)

const analyzeExample = `  landscape analyze "Tracking household chores"
  landscape analyze --niche "chore chart" --opportunity 70 --format text "Tracking household chores"
  landscape analyze --problem-id p-123 --store sqlite://landscape.db --format csv "Tracking household chores"`

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		problemID   string
		niche       string
		opportunity float64
		format      string
	)

	cmd := &cobra.Command{
		Use:     "analyze [flags] <problem title>",
		Short:   "Run one analysis and print a report",
		Example: analyzeExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					a.logger.Warn("close failed", "error", err)
				}
			}()

			in := pipeline.Input{
				ProblemID:    problemID,
				ProblemTitle: strings.Join(args, " "),
				Niche:        niche,
			}
			if cmd.Flags().Changed("opportunity") {
				in.OpportunityScore = &opportunity
			}

			res, err := c.analyzer.Run(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			return report.Write(cmd.OutOrStdout(), format, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&problemID, "problem-id", "", "problem id; enables persistence and rating deltas")
	f.StringVar(&niche, "niche", "", "narrower subject to search for instead of the title")
	f.Float64Var(&opportunity, "opportunity", 0, "opportunity score 0-100; higher dampens the threat score")
	f.StringVar(&format, "format", "json", "output format: "+strings.Join(report.Formats, ", "))
	return cmd
}
