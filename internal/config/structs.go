//nolint:lll
package config

import (
	"github.com/MeKo-Tech/sticker/internal/edges"
	"github.com/MeKo-Tech/sticker/internal/mask"
	"github.com/MeKo-Tech/sticker/internal/preprocess"
)

// Config represents the complete configuration for the sticker application.
// It includes settings for all commands (image, batch, pdf, report, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Per-image sticker parameters
	Sticker StickerConfig `mapstructure:"sticker" yaml:"sticker" json:"sticker"`

	// Pipeline stage configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// PDF report configuration
	Report ReportConfig `mapstructure:"report" yaml:"report" json:"report"`
}

// StickerConfig holds the user-facing knobs of a single sticker.
type StickerConfig struct {
	Style       string `mapstructure:"style" yaml:"style" json:"style"`
	Border      int    `mapstructure:"border" yaml:"border" json:"border"`
	Refine      bool   `mapstructure:"refine" yaml:"refine" json:"refine"`
	Sensitivity int    `mapstructure:"sensitivity" yaml:"sensitivity" json:"sensitivity"`
	// Explicit thresholds override Sensitivity when both are set.
	LowThreshold  int `mapstructure:"low_threshold" yaml:"low_threshold" json:"low_threshold"`
	HighThreshold int `mapstructure:"high_threshold" yaml:"high_threshold" json:"high_threshold"`
	// Zero falls back to pipeline.mask.padding.
	Padding int `mapstructure:"padding" yaml:"padding" json:"padding"`
}

// PipelineConfig contains the stage settings.
type PipelineConfig struct {
	Backend    string            `mapstructure:"backend" yaml:"backend" json:"backend"`
	Preprocess preprocess.Config `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Edges      edges.Config      `mapstructure:"edges" yaml:"edges" json:"edges"`
	Mask       mask.Config       `mapstructure:"mask" yaml:"mask" json:"mask"`
	MaxWorkers int               `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// OutputConfig contains output settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	Dir          string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Transparent  bool   `mapstructure:"transparent" yaml:"transparent" json:"transparent"`
	Mask         bool   `mapstructure:"mask" yaml:"mask" json:"mask"`
	Steps        bool   `mapstructure:"steps" yaml:"steps" json:"steps"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Progress        bool     `mapstructure:"progress" yaml:"progress" json:"progress"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// ReportConfig contains PDF input and report settings.
type ReportConfig struct {
	// File is where the report command writes the figures PDF.
	File string `mapstructure:"file" yaml:"file" json:"file"`
	// PageRange limits the pages read by the pdf command.
	PageRange string `mapstructure:"page_range" yaml:"page_range" json:"page_range"`
}
