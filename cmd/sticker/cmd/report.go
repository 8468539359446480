package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sticker/internal/compose"
	"github.com/MeKo-Tech/sticker/internal/config"
	"github.com/MeKo-Tech/sticker/internal/pdf"
	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [files...]",
		Short: "Write a PDF report of the processing steps",
		Long: `Process each image in the normal and the black and white style and write
a PDF with one captioned figure per page:

  Figure 1: Original Input Image
  Figure 2: Edge Detection Output (Canny Edge Detector)
  Figure 3: Closed Edges after Morphological Operations
  Figure 4: Final Normal Sticker Output
  Figure 5: Final Black and White Sticker Output

Figures of further images continue the numbering.

Examples:
  sticker report portrait.jpg
  sticker report cat.png dog.png --border 20 --output pets.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, a, args)
		},
	}
	addStickerFlags(cmd)
	cmd.Flags().StringP("output", "o", "report.pdf", "report PDF file")
	return cmd
}

// applyReportFlags copies changed report flags over cfg.
func applyReportFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("output") {
		cfg.Report.File, _ = cmd.Flags().GetString("output")
	}
}

func runReport(cmd *cobra.Command, a *app, paths []string) error {
	cfg, err := resolveConfig(cmd, a, applyStickerFlags, applyReportFlags)
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

	var figures []pdf.Figure
	for _, path := range paths {
		fs, err := reportFigures(cmd, p, path, params)
		if err != nil {
			return err
		}
		figures = append(figures, fs...)
	}

	if err := pdf.WriteReportFile(cfg.Report.File, figures); err != nil {
		return err
	}
	slog.Info("Wrote report", "file", cfg.Report.File, "figures", len(figures))
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", cfg.Report.File)
	return err
}

// reportFigures processes path once per style and returns its figures.
func reportFigures(cmd *cobra.Command, p *pipeline.Pipeline, path string, params pipeline.Params) ([]pdf.Figure, error) {
	normalParams, bwParams := params, params
	normalParams.Style = compose.StyleNormal
	bwParams.Style = compose.StyleBlackAndWhite

	normal, err := p.ProcessFile(cmd.Context(), path, normalParams)
	if err != nil {
		return nil, fmt.Errorf("failed to process %s: %w", path, err)
	}
	bw, err := p.ProcessFile(cmd.Context(), path, bwParams)
	if err != nil {
		return nil, fmt.Errorf("failed to process %s: %w", path, err)
	}
	figures, err := pdf.ReportFigures(normal, bw)
	if err != nil {
		return nil, fmt.Errorf("failed to build report for %s: %w", path, err)
	}
	return figures, nil
}
