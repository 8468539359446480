package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/sticker/internal/compose"
	"github.com/MeKo-Tech/sticker/internal/mask"
	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/vision"
)

// Border thickness range accepted from users.
const (
	MinBorder = 5
	MaxBorder = 30
)

// Supported output formats.
var validFormats = []string{"text", "json", "yaml", "csv"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	params := pipeline.DefaultParams()
	pc := pipeline.DefaultConfig()
	return Config{
		LogLevel: "info",
		Sticker: StickerConfig{
			Style:       string(params.Style),
			Border:      params.BorderThickness,
			Refine:      params.UseRefinement,
			Sensitivity: pipeline.MinSensitivity,
		},
		Pipeline: PipelineConfig{
			Backend:    pc.Backend,
			Preprocess: pc.Preprocess,
			Edges:      pc.Edges,
			Mask:       pc.Mask,
			MaxWorkers: pc.Parallel.MaxWorkers,
		},
		Output: OutputConfig{
			Format:       "text",
			Transparent:  true,
			Mask:         true,
			OverlayColor: pipeline.DefaultOverlayColor,
		},
		Batch: BatchConfig{
			Workers:   4,
			Recursive: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 30,
				RequestsPerHour:   600,
				MaxRequestsPerDay: 5000,
				MaxDataPerDay:     1 << 30,
			},
		},
		Report: ReportConfig{
			File: "report.pdf",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.OverlayColor != "" {
		if _, err := colorful.Hex(c.Output.OverlayColor); err != nil {
			return fmt.Errorf("invalid overlay color: %s", c.Output.OverlayColor)
		}
	}

	if _, err := compose.ParseStyle(c.Sticker.Style); err != nil {
		return fmt.Errorf("invalid sticker style: %w", err)
	}
	if c.Sticker.Border < MinBorder || c.Sticker.Border > MaxBorder {
		return fmt.Errorf("invalid border thickness: %d (must be between %d and %d)", c.Sticker.Border, MinBorder, MaxBorder)
	}
	if c.Sticker.Sensitivity != 0 &&
		(c.Sticker.Sensitivity < pipeline.MinSensitivity || c.Sticker.Sensitivity > pipeline.MaxSensitivity) {
		return fmt.Errorf("invalid edge sensitivity: %d (must be between %d and %d)",
			c.Sticker.Sensitivity, pipeline.MinSensitivity, pipeline.MaxSensitivity)
	}
	if _, err := c.Params(); err != nil {
		return err
	}

	if err := vision.ValidateBackend(c.Pipeline.Backend); err != nil {
		return err
	}
	if err := mask.ValidateBackend(c.Pipeline.Mask.Refine.Backend); err != nil {
		return err
	}
	if c.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("invalid pipeline max workers: %d (must be positive)", c.Pipeline.MaxWorkers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	if c.Report.File == "" {
		return errors.New("report file must not be empty")
	}
	return nil
}

// Params converts the sticker section to pipeline parameters. Explicit
// thresholds win over the sensitivity preset.
func (c *Config) Params() (pipeline.Params, error) {
	style, err := compose.ParseStyle(c.Sticker.Style)
	if err != nil {
		return pipeline.Params{}, err
	}
	p := pipeline.DefaultParams()
	p.Style = style
	p.BorderThickness = c.Sticker.Border
	p.UseRefinement = c.Sticker.Refine
	p.Padding = c.Sticker.Padding
	if c.Sticker.Sensitivity != 0 {
		p.LowThreshold, p.HighThreshold = pipeline.ThresholdsForSensitivity(c.Sticker.Sensitivity)
	}
	if c.Sticker.LowThreshold != 0 || c.Sticker.HighThreshold != 0 {
		p.LowThreshold, p.HighThreshold = c.Sticker.LowThreshold, c.Sticker.HighThreshold
	}
	if err := p.Validate(); err != nil {
		return pipeline.Params{}, err
	}
	return p, nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if c.Pipeline.Backend != "" {
		cfg.Backend = c.Pipeline.Backend
	}
	cfg.Preprocess = c.Pipeline.Preprocess
	cfg.Edges = c.Pipeline.Edges
	cfg.Mask = c.Pipeline.Mask
	if p, err := c.Params(); err == nil {
		cfg.Defaults = p
	}
	if c.Pipeline.MaxWorkers > 0 {
		cfg.Parallel.MaxWorkers = c.Pipeline.MaxWorkers
	}
	return cfg
}
