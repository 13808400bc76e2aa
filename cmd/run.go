package cmd

import (
	"context"

	"cda/internal/config"
	"cda/internal/pipeline"
	"cda/internal/tables"
	"cda/internal/ui"
	"github.com/spf13/cobra"
)

type runOptions struct {
	source     string
	sourcePath string
	output     string
	outputPath string
	seed       string
	asOf       string
	manifest   string
	projectDir string
	dryRun     bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recompute every derived table from the latest landing snapshot",
		Long: `Run stages the landing records, resolves customer identities, unifies cost and
revenue events and recomputes every metric table. All tables are computed before
any is written; a failure leaves the previous outputs in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.source, "source", "", "landing source: snowflake, s3 or local")
	f.StringVar(&opts.sourcePath, "source-path", "", "landing directory for a local source")
	f.StringVar(&opts.output, "output", "", "output: snowflake or local")
	f.StringVar(&opts.outputPath, "output-path", "", "output directory for local output")
	f.StringVar(&opts.seed, "seed", "", "ground-truth seed CSV")
	f.StringVar(&opts.asOf, "as-of", "", "as-of date YYYY-MM-DD (default: latest activity)")
	f.StringVar(&opts.manifest, "manifest", "", "write the run manifest to this file")
	f.StringVar(&opts.projectDir, "project-dir", ".", "directory whose git revision is recorded in the manifest")
	f.BoolVar(&opts.dryRun, "dry-run", false, "compute and print the summary without writing tables")
	return cmd
}

func runPipeline(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, err := root.loadConfig(true)
	if err != nil {
		return err
	}
	if opts.source != "" {
		cfg.Source.Type = opts.source
	}
	if opts.sourcePath != "" {
		cfg.Source.Path = opts.sourcePath
		if opts.source == "" {
			cfg.Source.Type = "local"
		}
	}
	if opts.output != "" {
		cfg.Output.Type = opts.output
	}
	if opts.outputPath != "" {
		cfg.Output.Path = opts.outputPath
		if opts.output == "" {
			cfg.Output.Type = "local"
		}
	}
	if opts.seed != "" {
		cfg.Seed.Path = opts.seed
	}
	if opts.asOf != "" {
		cfg.Parameters.AsOfDate = opts.asOf
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := root.logger

	conns := &connections{}
	defer conns.Close()

	src, err := conns.source(ctx, cfg, logger)
	if err != nil {
		return err
	}
	seeds, err := conns.seeds(ctx, cfg, logger)
	if err != nil {
		return err
	}

	spinner := ui.NewSpinner("Computing derived tables")
	spinner.Start()
	res, err := pipeline.Run(ctx, pipeline.Input{
		Client:     cfg.ClientName,
		Source:     src,
		Seeds:      seeds,
		Params:     cfg.Parameters,
		ProjectDir: opts.projectDir,
		Logger:     logger,
	})
	if err != nil {
		spinner.Stop(false, "Computation failed")
		return err
	}
	spinner.Stop(true, "Computed derived tables")

	out := cmd.OutOrStdout()
	ui.RenderRunSummary(out, res)

	if opts.dryRun {
		ui.ShowInfo("Dry run: nothing was written")
	} else {
		sink, err := conns.sink(ctx, cfg, logger)
		if err != nil {
			return err
		}
		bar := ui.NewProgressBar(len(res.Tables))
		if err := pipeline.Publish(ctx, &progressSink{Sink: sink, bar: bar}, res, logger); err != nil {
			return err
		}
		bar.Finish()
	}

	if opts.manifest != "" {
		if err := res.Manifest.WriteFile(opts.manifest); err != nil {
			return err
		}
		ui.ShowSuccess("Manifest written to " + opts.manifest)
	}
	return nil
}

// progressSink advances the progress bar after each table
type progressSink struct {
	pipeline.Sink
	bar  *ui.ProgressBar
	done int
}

func (p *progressSink) ReplaceTable(ctx context.Context, t *tables.Table) error {
	err := p.Sink.ReplaceTable(ctx, t)
	p.done++
	p.bar.Update(p.done, t.Name, err == nil)
	return err
}
