package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "sticker"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "STICKER"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the CLI take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on v.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load loads configuration from the search paths, environment variables and
// defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from configFile, or from the search paths
// when configFile is empty, and validates it.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration without validating it.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file is fine when searching; defaults and env still apply.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps keys like server.port to STICKER_SERVER_PORT.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every option so that env overrides and config dumps
// see the full key set.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("sticker.style", d.Sticker.Style)
	l.v.SetDefault("sticker.border", d.Sticker.Border)
	l.v.SetDefault("sticker.refine", d.Sticker.Refine)
	l.v.SetDefault("sticker.sensitivity", d.Sticker.Sensitivity)
	l.v.SetDefault("sticker.low_threshold", d.Sticker.LowThreshold)
	l.v.SetDefault("sticker.high_threshold", d.Sticker.HighThreshold)
	l.v.SetDefault("sticker.padding", d.Sticker.Padding)

	l.v.SetDefault("pipeline.backend", d.Pipeline.Backend)

	pp := d.Pipeline.Preprocess
	l.v.SetDefault("pipeline.preprocess.max_width", pp.MaxWidth)
	l.v.SetDefault("pipeline.preprocess.max_height", pp.MaxHeight)
	l.v.SetDefault("pipeline.preprocess.bilateral_diameter", pp.BilateralDiameter)
	l.v.SetDefault("pipeline.preprocess.sigma_color", pp.SigmaColor)
	l.v.SetDefault("pipeline.preprocess.sigma_space", pp.SigmaSpace)
	l.v.SetDefault("pipeline.preprocess.clip_limit", pp.ClipLimit)
	l.v.SetDefault("pipeline.preprocess.tile_grid", pp.TileGrid)

	l.v.SetDefault("pipeline.edges.kernel_size", d.Pipeline.Edges.KernelSize)
	l.v.SetDefault("pipeline.edges.close_iterations", d.Pipeline.Edges.CloseIterations)
	l.v.SetDefault("pipeline.edges.dilate_iterations", d.Pipeline.Edges.DilateIterations)

	mc := d.Pipeline.Mask
	l.v.SetDefault("pipeline.mask.padding", mc.Padding)
	l.v.SetDefault("pipeline.mask.blur_radius", mc.BlurRadius)
	l.v.SetDefault("pipeline.mask.threshold", mc.Threshold)
	l.v.SetDefault("pipeline.mask.refine.backend", mc.Refine.Backend)
	l.v.SetDefault("pipeline.mask.refine.iterations", mc.Refine.Iterations)
	l.v.SetDefault("pipeline.mask.refine.components", mc.Refine.Components)
	l.v.SetDefault("pipeline.mask.refine.gamma", mc.Refine.Gamma)
	l.v.SetDefault("pipeline.max_workers", d.Pipeline.MaxWorkers)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.dir", d.Output.Dir)
	l.v.SetDefault("output.transparent", d.Output.Transparent)
	l.v.SetDefault("output.mask", d.Output.Mask)
	l.v.SetDefault("output.steps", d.Output.Steps)
	l.v.SetDefault("output.overlay_color", d.Output.OverlayColor)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.recursive", d.Batch.Recursive)
	l.v.SetDefault("batch.include", d.Batch.Include)
	l.v.SetDefault("batch.exclude", d.Batch.Exclude)
	l.v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)
	l.v.SetDefault("batch.progress", d.Batch.Progress)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day", d.Server.RateLimit.MaxDataPerDay)

	l.v.SetDefault("report.file", d.Report.File)
	l.v.SetDefault("report.page_range", d.Report.PageRange)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a configuration file holding only the
// defaults. The format follows the file extension.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	}
	paths = append(paths, filepath.Join("/etc", ConfigFileName))
	return paths
}
