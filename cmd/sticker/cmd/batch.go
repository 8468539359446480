package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sticker/internal/batch"
	"github.com/MeKo-Tech/sticker/internal/config"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [dirs|files...]",
		Short: "Make stickers from many images in parallel",
		Long: `Make stickers from every image found in the given files and directories
using a pool of parallel workers. Results keep the discovery order.

Examples:
  sticker batch photos/ --output-dir stickers
  sticker batch photos/ --include "*.jpg" --exclude "draft_*" --workers 8
  sticker batch a.png b.png --format csv --output results.csv --stats`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, a, args)
		},
	}
	addStickerFlags(cmd)
	addOutputFlags(cmd)

	f := cmd.Flags()
	f.IntP("workers", "w", 4, "number of parallel workers")
	f.BoolP("recursive", "r", true, "search directories recursively")
	f.StringSlice("include", nil, "only process files matching these glob patterns")
	f.StringSlice("exclude", nil, "skip files matching these glob patterns")
	f.Bool("continue-on-error", false, "keep going when an image fails")
	f.Bool("progress", false, "show a progress bar on stderr")
	f.BoolP("quiet", "q", false, "suppress progress and status messages")
	f.Bool("stats", false, "print processing statistics")
	return cmd
}

// applyBatchFlags copies changed batch flags over cfg.
func applyBatchFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("workers") {
		cfg.Batch.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("recursive") {
		cfg.Batch.Recursive, _ = f.GetBool("recursive")
	}
	if f.Changed("include") {
		cfg.Batch.Include, _ = f.GetStringSlice("include")
	}
	if f.Changed("exclude") {
		cfg.Batch.Exclude, _ = f.GetStringSlice("exclude")
	}
	if f.Changed("continue-on-error") {
		cfg.Batch.ContinueOnError, _ = f.GetBool("continue-on-error")
	}
	if f.Changed("progress") {
		cfg.Batch.Progress, _ = f.GetBool("progress")
	}
}

// configToBatchConfig maps the resolved configuration to batch.Config.
func configToBatchConfig(cmd *cobra.Command, cfg *config.Config) (*batch.Config, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	bc := batch.DefaultConfig()
	bc.Params = params
	bc.Pipeline = cfg.ToPipelineConfig()
	bc.OutputDir = cfg.Output.Dir
	bc.Outputs = outputOptions(cfg)
	bc.Format = cfg.Output.Format
	bc.OutputFile = cfg.Output.File
	bc.Workers = cfg.Batch.Workers
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	bc.Recursive = cfg.Batch.Recursive
	bc.IncludePatterns = cfg.Batch.Include
	bc.ExcludePatterns = cfg.Batch.Exclude
	bc.ShowProgress = cfg.Batch.Progress
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	bc.Progress = cmd.ErrOrStderr()
	return bc, nil
}

func runBatch(cmd *cobra.Command, a *app, args []string) error {
	cfg, err := resolveConfig(cmd, a, applyStickerFlags, applyOutputFlags, applyBatchFlags)
	if err != nil {
		return err
	}
	bc, err := configToBatchConfig(cmd, cfg)
	if err != nil {
		return err
	}

	result, err := batch.ProcessBatch(cmd.Context(), args, bc)
	if err != nil {
		return err
	}

	if err := result.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if bc.ShowStats {
		result.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	return nil
}
