package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/leafstitch/internal/server"
	"github.com/MeKo-Tech/leafstitch/internal/stitch"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the stitching API",
	Long: `Start an HTTP server that provides REST and WebSocket endpoints for
leaf panorama stitching.

The server provides the following endpoints:
  POST /stitch    - Composite an ordered multipart upload of segments
  POST /detect    - Locate the midrib in a single image
  POST /score     - Score the overlap between two edge strips
  GET  /health    - Health check endpoint
  GET  /metrics   - Prometheus metrics
  GET  /stitch/ws - WebSocket stitching with progress streaming

Examples:
  leafstitch serve
  leafstitch serve --port 8080
  leafstitch serve --host 0.0.0.0 --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Build pipeline defaults from centralized configuration; per-request
		// form values overlay these.
		pCfg := stitch.DefaultConfig()
		pCfg.OverlapFraction = cfg.Stitch.OverlapFraction
		pCfg.AutoOverlap = cfg.Stitch.AutoOverlap
		pCfg.MidribAlign = cfg.Midrib.Enabled
		pCfg.SearchTolerance = cfg.Midrib.SearchTolerance
		pCfg.MaxSegments = cfg.Stitch.MaxSegments
		pCfg.MaxPixels = cfg.Stitch.MaxPixels
		pCfg.Correlator.SearchRangeX = cfg.Correlator.SearchRangeX
		pCfg.Correlator.SearchRangeY = cfg.Correlator.SearchRangeY
		pCfg.Correlator.Downsample = cfg.Correlator.Downsample
		pCfg.Correlator.SampleStride = cfg.Correlator.SampleStride
		pCfg.Correlator.MinScore = cfg.Correlator.MinScore

		serverConfig := server.Config{
			Host:            host,
			Port:            port,
			CORSOrigin:      corsOrigin,
			MaxUploadMB:     int64(maxUploadSize),
			TimeoutSec:      timeout,
			ShutdownTimeout: shutdownTimeout,
			JPEGQuality:     cfg.Output.JPEGQuality,
			Pipeline:        pCfg,
		}

		stitchServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = stitchServer.Close() }()

		mux := http.NewServeMux()
		stitchServer.SetupRoutes(mux)
		mux.Handle("/metrics", promhttp.Handler())

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting stitch server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 64, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
}
