package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sticker/internal/config"
	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
	outputFormatCSV  = "csv"
)

// addStickerFlags registers the per-sticker knobs.
func addStickerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("style", "s", "normal", `sticker style: "normal" or "black and white" (alias bw)`)
	f.IntP("border", "b", 15, fmt.Sprintf("white border thickness in pixels (%d-%d)", config.MinBorder, config.MaxBorder))
	f.Bool("refine", true, "refine the mask with GrabCut")
	f.Int("sensitivity", 0, "edge sensitivity preset 1-10 (thresholds 100+20s / 200+20s)")
	f.Int("low", 0, "low Canny threshold (overrides --sensitivity)")
	f.Int("high", 0, "high Canny threshold (overrides --sensitivity)")
	f.Int("padding", 0, "mask padding around the subject in pixels (0 uses pipeline.mask.padding)")
	f.String("backend", "", "image processing backend: native or opencv (opencv needs a -tags=gocv build)")
}

// applyStickerFlags copies changed sticker flags over cfg.
func applyStickerFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("style") {
		cfg.Sticker.Style, _ = f.GetString("style")
	}
	if f.Changed("border") {
		cfg.Sticker.Border, _ = f.GetInt("border")
	}
	if f.Changed("refine") {
		cfg.Sticker.Refine, _ = f.GetBool("refine")
	}
	if f.Changed("sensitivity") {
		cfg.Sticker.Sensitivity, _ = f.GetInt("sensitivity")
		// a preset on the command line beats thresholds from the config file
		cfg.Sticker.LowThreshold, cfg.Sticker.HighThreshold = 0, 0
	}
	if f.Changed("low") || f.Changed("high") {
		defaults := pipeline.DefaultParams()
		low, high := defaults.LowThreshold, defaults.HighThreshold
		if cfg.Sticker.Sensitivity != 0 {
			low, high = pipeline.ThresholdsForSensitivity(cfg.Sticker.Sensitivity)
		}
		if cfg.Sticker.LowThreshold != 0 || cfg.Sticker.HighThreshold != 0 {
			low, high = cfg.Sticker.LowThreshold, cfg.Sticker.HighThreshold
		}
		if f.Changed("low") {
			low, _ = f.GetInt("low")
		}
		if f.Changed("high") {
			high, _ = f.GetInt("high")
		}
		cfg.Sticker.LowThreshold, cfg.Sticker.HighThreshold = low, high
	}
	if f.Changed("padding") {
		cfg.Sticker.Padding, _ = f.GetInt("padding")
	}
	if f.Changed("backend") {
		backend, _ := f.GetString("backend")
		cfg.Pipeline.Backend = backend
		cfg.Pipeline.Mask.Refine.Backend = backend
	}
}

// addOutputFlags registers result formatting and image output flags.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("format", "f", outputFormatText, "summary format (text, json, yaml, csv)")
	f.StringP("output", "o", "", "summary output file (default: stdout)")
	f.StringP("output-dir", "d", "", "directory for sticker images (none are written when empty)")
	f.Bool("transparent", true, "also write <name>_transparent.png")
	f.Bool("mask", true, "also write <name>_mask.png")
	f.Bool("steps", false, "also write <name>_steps.png with the processing steps")
}

// applyOutputFlags copies changed output flags over cfg.
func applyOutputFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("format") {
		cfg.Output.Format, _ = f.GetString("format")
		cfg.Output.Format = strings.ToLower(cfg.Output.Format)
	}
	if f.Changed("output") {
		cfg.Output.File, _ = f.GetString("output")
	}
	if f.Changed("output-dir") {
		cfg.Output.Dir, _ = f.GetString("output-dir")
	}
	if f.Changed("transparent") {
		cfg.Output.Transparent, _ = f.GetBool("transparent")
	}
	if f.Changed("mask") {
		cfg.Output.Mask, _ = f.GetBool("mask")
	}
	if f.Changed("steps") {
		cfg.Output.Steps, _ = f.GetBool("steps")
	}
}

// resolveConfig returns the loaded configuration with the changed flags of
// cmd applied, validated.
func resolveConfig(cmd *cobra.Command, a *app, apply ...func(*cobra.Command, *config.Config)) (*config.Config, error) {
	cfg, err := a.current()
	if err != nil {
		return nil, err
	}
	for _, fn := range apply {
		fn(cmd, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// formatSummaries renders summaries in format.
func formatSummaries(format string, summaries []pipeline.Summary) (string, error) {
	switch format {
	case outputFormatJSON:
		s, err := pipeline.ToJSON(summaries...)
		return s + "\n", err
	case outputFormatYAML:
		return pipeline.ToYAML(summaries...)
	case outputFormatCSV:
		return pipeline.ToCSV(summaries...)
	case outputFormatText, "":
		return pipeline.ToText(summaries...), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// writeOutput writes content to file, or to the command's stdout when file
// is empty.
func writeOutput(cmd *cobra.Command, file, content string) error {
	if file == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, err := fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", file)
	return err
}
