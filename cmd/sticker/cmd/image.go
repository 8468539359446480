package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sticker/internal/batch"
	"github.com/MeKo-Tech/sticker/internal/config"
	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

func newImageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image [files...]",
		Short: "Make stickers from image files",
		Long: `Make a sticker from each image file and print a summary per image.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

With --output-dir the sticker is written as <name>_sticker.png, together
with <name>_transparent.png and <name>_mask.png unless disabled, and
<name>_steps.png when --steps is set.

Examples:
  sticker image portrait.jpg
  sticker image cat.png --style bw --border 20 --output-dir out
  sticker image *.jpg --format json --output results.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImage(cmd, a, args)
		},
	}
	addStickerFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

func runImage(cmd *cobra.Command, a *app, paths []string) error {
	cfg, err := resolveConfig(cmd, a, applyStickerFlags, applyOutputFlags)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	p, err := pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build sticker pipeline: %w", err)
	}

	slog.Debug("Processing images", "count", len(paths), "style", string(params.Style))

	summaries := make([]pipeline.Summary, 0, len(paths))
	for _, path := range paths {
		res, err := p.ProcessFile(cmd.Context(), path, params)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", path, err)
		}
		if err := writeImages(res, cfg, path); err != nil {
			return err
		}
		summaries = append(summaries, pipeline.Summarize(filepath.Base(path), res))
	}

	content, err := formatSummaries(cfg.Output.Format, summaries)
	if err != nil {
		return err
	}
	return writeOutput(cmd, cfg.Output.File, content)
}

// writeImages saves the images of res for src when an output directory is
// configured.
func writeImages(res *pipeline.Result, cfg *config.Config, src string) error {
	if cfg.Output.Dir == "" {
		return nil
	}
	out, err := batch.WriteOutputs(res, cfg.Output.Dir, src, outputOptions(cfg))
	if err != nil {
		return err
	}
	slog.Info("Wrote sticker", "source", src, "sticker", out.Sticker)
	return nil
}

func outputOptions(cfg *config.Config) batch.OutputOptions {
	return batch.OutputOptions{
		Transparent: cfg.Output.Transparent,
		Mask:        cfg.Output.Mask,
		Steps:       cfg.Output.Steps,
	}
}
