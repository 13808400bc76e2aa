package cmd

import (
	"context"
	"fmt"

	"cda/internal/landing"
	"cda/internal/ui"
	"cda/pkg/errors"
	"github.com/spf13/cobra"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	var sourcePath, bucket, prefix string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the latest landing partitions before a run",
		Long: `Validate inspects the newest run_date partition of every landing table: it must
carry a _SUCCESS marker and hold non-empty JSONL files that parse line by line.
Exits non-zero when any table fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(false)
			if err != nil {
				return err
			}
			switch {
			case sourcePath != "":
				cfg.Source.Type, cfg.Source.Path = "local", sourcePath
			case bucket != "":
				cfg.Source.Type, cfg.Source.Bucket = "s3", bucket
			}
			if prefix != "" {
				cfg.Source.Prefix = prefix
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			src, err := fileSource(ctx, cfg)
			if err != nil {
				return err
			}

			report, err := landing.Validate(ctx, src, landing.Tables)
			if err != nil {
				return err
			}
			ui.RenderValidation(cmd.OutOrStdout(), report)

			if failed := report.Failed(); failed > 0 {
				return errors.New(errors.ErrCodeValidationFailed, fmt.Sprintf("%d landing tables failed validation", failed))
			}
			ui.ShowSuccess("Landing data is ready")
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcePath, "source-path", "", "local landing directory")
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 landing bucket")
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix inside the landing root")
	return cmd
}
