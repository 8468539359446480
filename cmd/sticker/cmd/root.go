package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/sticker/internal/config"
	"github.com/MeKo-Tech/sticker/internal/version"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// Execute builds the command tree and runs it.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand returns a fresh command tree with its own configuration
// state, so tests can run several invocations in one process.
func NewRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoaderWithViper(viper.New())}

	rootCmd := &cobra.Command{
		Use:   "sticker",
		Short: "Turn photos into die-cut stickers",
		Long: `Turn photos of a person or object into a sticker: the subject is separated
from the background by edge detection, optionally refined with GrabCut,
and outlined with a white border.

Examples:
  sticker image portrait.jpg --output-dir out
  sticker batch photos/ --workers 8 --style "black and white"
  sticker pdf album.pdf --pages 1-3 --output-dir out
  sticker report portrait.jpg --output report.pdf
  sticker serve --port 8080`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), a.cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME/.config/sticker, $XDG_CONFIG_HOME/sticker, /etc/sticker)")
	flags.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	v := a.loader.GetViper()
	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(
		newImageCmd(a),
		newBatchCmd(a),
		newPDFCmd(a),
		newReportCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig reads the configuration file, environment and bound flags.
func (a *app) loadConfig() error {
	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

// current returns a copy of the loaded configuration, loading it on first use.
func (a *app) current() (*config.Config, error) {
	if a.cfg == nil {
		if err := a.loadConfig(); err != nil {
			return nil, err
		}
	}
	c := *a.cfg
	return &c, nil
}

// setupLogging installs a JSON slog handler on w at the configured level.
func setupLogging(w io.Writer, cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sticker %s\n", version.String())
			return err
		},
	}
}
