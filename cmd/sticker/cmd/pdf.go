package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/sticker/internal/config"
	"github.com/MeKo-Tech/sticker/internal/pdf"
	"github.com/MeKo-Tech/sticker/internal/pipeline"
)

func newPDFCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf [files...]",
		Short: "Make stickers from the images embedded in PDF files",
		Long: `Extract the images embedded in PDF files and make a sticker from each.

Encrypted PDFs are decrypted with --password (and --owner-password when
the owner password differs). Extracted stickers are written as
<pdf>_p<page>_<index>_sticker.png when --output-dir is set.

Examples:
  sticker pdf album.pdf
  sticker pdf album.pdf --pages 1-3,5 --output-dir out
  sticker pdf secret.pdf --password hunter2 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPDF(cmd, a, args)
		},
	}
	addStickerFlags(cmd)
	addOutputFlags(cmd)

	f := cmd.Flags()
	f.String("pages", "", "page range to process, e.g. 1-3,5 (default: all pages)")
	f.String("password", "", "user password for encrypted PDFs")
	f.String("owner-password", "", "owner password for encrypted PDFs")
	f.IntP("workers", "w", 4, "number of parallel workers")
	f.Bool("continue-on-error", false, "keep going when an image fails")
	return cmd
}

// applyPDFFlags copies changed PDF flags over cfg.
func applyPDFFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("pages") {
		cfg.Report.PageRange, _ = f.GetString("pages")
	}
	if f.Changed("workers") {
		cfg.Batch.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("continue-on-error") {
		cfg.Batch.ContinueOnError, _ = f.GetBool("continue-on-error")
	}
}

func runPDF(cmd *cobra.Command, a *app, files []string) error {
	cfg, err := resolveConfig(cmd, a, applyStickerFlags, applyOutputFlags, applyPDFFlags)
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

	pc := pdf.DefaultProcessorConfig()
	pc.Workers = cfg.Batch.Workers
	pc.ContinueOnError = cfg.Batch.ContinueOnError
	pc.Credentials.UserPassword, _ = cmd.Flags().GetString("password")
	pc.Credentials.OwnerPassword, _ = cmd.Flags().GetString("owner-password")
	proc := pdf.NewProcessor(p, pc)

	docs := make([]*pdf.DocumentResult, 0, len(files))
	for _, file := range files {
		doc, err := proc.ProcessFile(cmd.Context(), file, cfg.Report.PageRange, params)
		if err != nil {
			return fmt.Errorf("failed to process PDF %s: %w", file, err)
		}
		if err := writeDocumentImages(doc, cfg); err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	content, err := formatDocuments(cfg.Output.Format, docs)
	if err != nil {
		return err
	}
	return writeOutput(cmd, cfg.Output.File, content)
}

// writeDocumentImages saves the stickers of doc under
// <pdf>_p<page>_<index> names.
func writeDocumentImages(doc *pdf.DocumentResult, cfg *config.Config) error {
	stem := strings.TrimSuffix(filepath.Base(doc.Filename), filepath.Ext(doc.Filename))
	for _, page := range doc.Pages {
		for _, img := range page.Images {
			if img.Result == nil {
				continue
			}
			src := fmt.Sprintf("%s_p%d_%d.png", stem, page.PageNumber, img.ImageIndex)
			if err := writeImages(img.Result, cfg, src); err != nil {
				return err
			}
		}
	}
	return nil
}

// formatDocuments renders whole documents for json and yaml and falls back
// to flat per-image summaries for text and csv.
func formatDocuments(format string, docs []*pdf.DocumentResult) (string, error) {
	switch format {
	case outputFormatJSON:
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(data) + "\n", nil
	case outputFormatYAML:
		data, err := yaml.Marshal(docs)
		if err != nil {
			return "", fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return string(data), nil
	}
	var summaries []pipeline.Summary
	for _, doc := range docs {
		summaries = append(summaries, doc.Summaries()...)
	}
	return formatSummaries(format, summaries)
}
