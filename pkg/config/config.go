// Package config provides configuration loading and management for removeislands.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"voxelislands/internal/models"
	"voxelislands/pkg/islands"
	"voxelislands/pkg/voxel"
)

// Config represents the application configuration loaded from YAML or TOML
type Config struct {
	// Processing parameters
	Processing struct {
		// Threshold is the minimum island size, in voxels, that is retained
		Threshold int `yaml:"threshold" toml:"threshold"`

		// Workers specifies how many goroutines clear islands and decode slices
		Workers int `yaml:"workers" toml:"workers"`

		// DryRun reports what would be removed without writing anything back
		DryRun bool `yaml:"dryRun" toml:"dryRun"`

		// PreserveInput filters a copy of the volume instead of the loaded grid
		PreserveInput bool `yaml:"preserveInput" toml:"preserveInput"`
	} `yaml:"processing" toml:"processing"`

	// Input volume
	Input struct {
		// Path is a directory of slice images or a mask file
		Path string `yaml:"path" toml:"path"`

		// Format is one of auto, slices or mask
		Format string `yaml:"format" toml:"format"`
	} `yaml:"input" toml:"input"`

	// Output volume
	Output struct {
		// Path is the output directory for slices or the output mask file
		Path string `yaml:"path" toml:"path"`

		// Format is a slice image format (png, tiff, webp, jpeg) or mask
		Format string `yaml:"format" toml:"format"`

		// PreviewDir receives x, y and z preview slices of the filtered volume when set
		PreviewDir string `yaml:"previewDir" toml:"previewDir"`

		// Mesh is an STL file receiving the surface of the filtered volume when set
		Mesh string `yaml:"mesh" toml:"mesh"`

		// SliceGap is the z spacing of the mesh relative to the in-plane pixel size
		SliceGap float64 `yaml:"sliceGap" toml:"sliceGap"`
	} `yaml:"output" toml:"output"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn or error
		Level string `yaml:"level" toml:"level"`

		// File enables a rotating log file instead of stderr
		File string `yaml:"file" toml:"file"`

		// MaxSize is the size in megabytes at which the log file rotates
		MaxSize int `yaml:"maxSize" toml:"max_log_size"`

		// MaxAge is the number of days rotated log files are kept
		MaxAge int `yaml:"maxAge" toml:"max_log_age"`
	} `yaml:"logging" toml:"logging"`
}

// Input formats
const (
	InputAuto   = "auto"
	InputSlices = "slices"
	InputMask   = "mask"
)

// OutputMask selects the compressed mask file as output format
const OutputMask = "mask"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Threshold = islands.DefaultThreshold
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.DryRun = false
	cfg.Processing.PreserveInput = false

	cfg.Input.Format = InputAuto

	cfg.Output.Format = string(models.FormatPNG)
	cfg.Output.SliceGap = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.MaxSize = 100
	cfg.Logging.MaxAge = 28

	return cfg
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	if isTOML(configPath) {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file, chosen by extension
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if isTOML(configPath) {
		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("error writing config file: %w", err)
		}
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			f.Close()
			return fmt.Errorf("error marshaling config: %w", err)
		}
		return f.Close()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the configuration before a run. It returns a
// *voxel.ConfigurationError describing the first problem found.
func (c *Config) Validate() error {
	if c.Processing.Threshold <= 0 {
		return voxel.Configf("processing.threshold", "must be positive, got %d", c.Processing.Threshold)
	}
	if c.Processing.Workers < 0 {
		return voxel.Configf("processing.workers", "must not be negative, got %d", c.Processing.Workers)
	}
	switch c.Input.Format {
	case InputAuto, InputSlices, InputMask:
	default:
		return voxel.Configf("input.format", "unknown format %q", c.Input.Format)
	}
	if c.Output.Format != OutputMask {
		f, ok := models.ParseFormat(c.Output.Format)
		if !ok || !f.Writable() {
			return voxel.Configf("output.format", "cannot write %q slices", c.Output.Format)
		}
	}
	if c.Output.SliceGap <= 0 {
		return voxel.Configf("output.sliceGap", "must be positive, got %g", c.Output.SliceGap)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return voxel.Configf("logging.level", "unknown level %q", c.Logging.Level)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
