package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRulesCmd(a *app) *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the active rule tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loadRules(a.cfg.Rules)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dump {
				data, err := r.Dump()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			source := a.cfg.Rules.Path
			if source == "" {
				source = "embedded defaults"
			}
			fmt.Fprintf(out, "rules version %s (%s)\n", r.Version, source)
			fmt.Fprintf(out, "  query template:     %s\n", r.Query.Template)
			fmt.Fprintf(out, "  deny patterns:      %d\n", len(r.Filter.DenyContains)+len(r.Filter.DenySuffixes))
			fmt.Fprintf(out, "  product signals:    %d\n", len(r.Filter.Signals))
			fmt.Fprintf(out, "  rating categories:  %d\n", len(r.Rating.Categories))
			fmt.Fprintf(out, "  threat levels:      %d\n", len(r.Threat.Levels))
			fmt.Fprintf(out, "  keywords (total):   %d\n", r.KeywordCount())
			return nil
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "print the effective rules as YAML")
	return cmd
}
