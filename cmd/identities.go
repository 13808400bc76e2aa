package cmd

import (
	"context"
	"fmt"

	"cda/internal/identity"
	"cda/internal/staging"
	"cda/internal/ui"
	"github.com/spf13/cobra"
)

func newIdentitiesCmd(root *rootOptions) *cobra.Command {
	var (
		sourcePath    string
		seedPath      string
		conflictsOnly bool
		showStaging   bool
	)

	cmd := &cobra.Command{
		Use:   "identities",
		Short: "Resolve canonical customers and list conflicts for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(true)
			if err != nil {
				return err
			}
			if sourcePath != "" {
				cfg.Source.Type, cfg.Source.Path = "local", sourcePath
			}
			if seedPath != "" {
				cfg.Seed.Path = seedPath
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			conns := &connections{}
			defer conns.Close()

			src, err := conns.source(ctx, cfg, root.logger)
			if err != nil {
				return err
			}
			seeds, err := conns.seeds(ctx, cfg, root.logger)
			if err != nil {
				return err
			}
			snap, report, err := staging.Load(ctx, src, root.logger)
			if err != nil {
				return err
			}
			res := identity.NewResolver().Resolve(snap, seeds)

			out := cmd.OutOrStdout()
			if showStaging {
				ui.RenderStagingReport(out, report)
			}
			if !conflictsOnly {
				ui.RenderIdentities(out, res.Identities)
				fmt.Fprintf(out, "%d canonical customers, %d unresolved source records\n", len(res.Identities), len(res.Unresolved))
			}
			ui.RenderConflicts(out, res.Conflicts)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcePath, "source-path", "", "local landing directory")
	cmd.Flags().StringVar(&seedPath, "seed", "", "ground-truth seed CSV")
	cmd.Flags().BoolVar(&conflictsOnly, "conflicts-only", false, "only list identity conflicts")
	cmd.Flags().BoolVar(&showStaging, "staging", false, "also print per-table staging counts")
	return cmd
}
