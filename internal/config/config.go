package config

import (
	"fmt"
	"strings"
)

// DefaultConfig returns the default configuration for all commands.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Verbose:  false,
		Stitch: StitchConfig{
			OverlapFraction: 0.10,
			AutoOverlap:     false,
			MaxSegments:     32,
			MaxPixels:       256 << 20,
		},
		Midrib: MidribConfig{
			Enabled:         false,
			SearchTolerance: 0.5,
			PreviewScale:    0.25,
		},
		Correlator: CorrelatorConfig{
			SearchRangeX: 20,
			SearchRangeY: 50,
			Downsample:   4,
			SampleStride: 2,
			MinScore:     0,
		},
		Output: OutputConfig{
			File:        "composite.jpg",
			JPEGQuality: 95,
			Format:      "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     64,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Stitch.OverlapFraction <= 0 || c.Stitch.OverlapFraction >= 1 {
		return fmt.Errorf("invalid overlap fraction: %.3f (must be in (0,1))", c.Stitch.OverlapFraction)
	}
	if c.Stitch.MaxSegments < 1 {
		return fmt.Errorf("invalid max segments: %d (must be positive)", c.Stitch.MaxSegments)
	}
	if c.Stitch.MaxPixels < 0 {
		return fmt.Errorf("invalid max pixels: %d (must be non-negative)", c.Stitch.MaxPixels)
	}

	if c.Midrib.SearchTolerance <= 0 || c.Midrib.SearchTolerance > 1 {
		return fmt.Errorf("invalid midrib search tolerance: %.3f (must be in (0,1])", c.Midrib.SearchTolerance)
	}
	if c.Midrib.PreviewScale <= 0 || c.Midrib.PreviewScale > 1 {
		return fmt.Errorf("invalid preview scale: %.3f (must be in (0,1])", c.Midrib.PreviewScale)
	}

	if c.Correlator.Downsample < 1 {
		return fmt.Errorf("invalid correlator downsample: %d (must be at least 1)", c.Correlator.Downsample)
	}
	if c.Correlator.SampleStride < 1 {
		return fmt.Errorf("invalid correlator sample stride: %d (must be at least 1)", c.Correlator.SampleStride)
	}
	if c.Correlator.SearchRangeX < 0 || c.Correlator.SearchRangeY < 0 {
		return fmt.Errorf("invalid correlator search range: %dx%d (must be non-negative)",
			c.Correlator.SearchRangeX, c.Correlator.SearchRangeY)
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (must be 1-100)", c.Output.JPEGQuality)
	}
	validFormats := []string{"text", "json"}
	formatOK := false
	for _, f := range validFormats {
		if c.Output.Format == f {
			formatOK = true
			break
		}
	}
	if !formatOK {
		return fmt.Errorf("invalid output format: %q (must be one of: %s)",
			c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("invalid max upload size: %d MB", c.Server.MaxUploadMB)
	}

	return nil
}
