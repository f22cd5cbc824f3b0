package config

// Config represents the complete configuration for the leafstitch
// application. It covers all commands (stitch, align, detect, score, serve)
// and supports loading from configuration files, environment variables, and
// command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Stitching pipeline configuration
	Stitch StitchConfig `mapstructure:"stitch" yaml:"stitch" json:"stitch"`

	// Midrib detection configuration
	Midrib MidribConfig `mapstructure:"midrib" yaml:"midrib" json:"midrib"`

	// Correlation aligner configuration
	Correlator CorrelatorConfig `mapstructure:"correlator" yaml:"correlator" json:"correlator"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// StitchConfig contains composition settings.
type StitchConfig struct {
	// OverlapFraction of each segment's width expected to overlap its
	// neighbor, in (0,1). Field captures typically sit in 0.05-0.25.
	OverlapFraction float64 `mapstructure:"overlap_fraction" yaml:"overlap_fraction" json:"overlap_fraction"`
	// AutoOverlap estimates the fraction from the first segment pair.
	AutoOverlap bool `mapstructure:"auto_overlap" yaml:"auto_overlap" json:"auto_overlap"`
	// MaxSegments caps the number of segments per composition.
	MaxSegments int `mapstructure:"max_segments" yaml:"max_segments" json:"max_segments"`
	// MaxPixels caps the summed pixel count across all segments.
	MaxPixels int64 `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
}

// MidribConfig contains midrib detection and alignment settings.
type MidribConfig struct {
	// Enabled turns on detection-driven vertical alignment.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	// SearchTolerance is the fraction of image height searched, centered
	// vertically; sensible values are 0.2-0.8.
	SearchTolerance float64 `mapstructure:"search_tolerance" yaml:"search_tolerance" json:"search_tolerance"`
	// PreviewScale is the downscale factor for the interactive offset
	// preview path.
	PreviewScale float64 `mapstructure:"preview_scale" yaml:"preview_scale" json:"preview_scale"`
}

// CorrelatorConfig contains brute-force correlation search settings.
type CorrelatorConfig struct {
	SearchRangeX int     `mapstructure:"search_range_x" yaml:"search_range_x" json:"search_range_x"`
	SearchRangeY int     `mapstructure:"search_range_y" yaml:"search_range_y" json:"search_range_y"`
	Downsample   int     `mapstructure:"downsample" yaml:"downsample" json:"downsample"`
	SampleStride int     `mapstructure:"sample_stride" yaml:"sample_stride" json:"sample_stride"`
	MinScore     float64 `mapstructure:"min_score" yaml:"min_score" json:"min_score"`
}

// OutputConfig contains composite encoding settings.
type OutputConfig struct {
	// File is the output path for the composite.
	File string `mapstructure:"file" yaml:"file" json:"file"`
	// JPEGQuality for composite encoding, 1-100.
	JPEGQuality int `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	// Format for report output of detect/align/score: text or json.
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}
