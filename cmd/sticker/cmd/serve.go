package cmd

import (
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sticker/internal/config"
	"github.com/MeKo-Tech/sticker/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the sticker API",
		Long: `Start an HTTP server that turns uploaded photos into stickers.

The server provides the following endpoints:
  POST /sticker     - Make a sticker from an uploaded image
  GET  /ws          - WebSocket sticker requests
  GET  /health      - Health check endpoint
  GET  /info        - Defaults and accepted parameters
  GET  /metrics     - Prometheus metrics

Examples:
  sticker serve
  sticker serve --port 8080
  sticker serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, a)
		},
	}
	addStickerFlags(cmd)

	f := cmd.Flags()
	f.String("host", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origin")
	f.Int("max-upload-size", 20, "maximum upload size in MB")
	f.Int("timeout", 60, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	f.Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	f.Int("requests-per-minute", 30, "maximum requests per minute per client")
	f.Int("requests-per-hour", 600, "maximum requests per hour per client")
	f.Int("max-requests-per-day", 5000, "maximum requests per day per client")
	f.Int64("max-data-per-day", 1<<30, "maximum upload bytes per day per client")
	return cmd
}

// applyServeFlags copies changed server flags over cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Server.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	rl := &cfg.Server.RateLimit
	if f.Changed("rate-limit-enabled") {
		rl.Enabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		rl.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		rl.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		rl.MaxRequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
	if f.Changed("max-data-per-day") {
		rl.MaxDataPerDay, _ = f.GetInt64("max-data-per-day")
	}
}

// serverConfig maps the resolved configuration to server.Config.
func serverConfig(cfg *config.Config) server.Config {
	rl := cfg.Server.RateLimit
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		PipelineConfig: cfg.ToPipelineConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDay,
		},
	}
}

func runServe(cmd *cobra.Command, a *app) error {
	cfg, err := resolveConfig(cmd, a, applyStickerFlags, applyServeFlags)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(serverConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Sticker server listening on http://%s\n", addr)
	return srv.Run(ctx, addr, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
}
