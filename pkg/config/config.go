// Package config provides configuration loading and management for volumeio.
// It handles loading configuration from YAML, TOML or JSON5 files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	json "github.com/KevinWang15/go-json5"
	"gopkg.in/yaml.v3"

	"volumeio/pkg/resample"
)

// Config represents the application configuration
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel decoding and background jobs
		NumCores int `yaml:"numCores" toml:"num_cores" json:"numCores"`
	} `yaml:"processing" toml:"processing" json:"processing"`

	// Import parameters
	Import struct {
		// TargetShape bounds the x, y, z extents of resampled volumes
		TargetShape []int `yaml:"targetShape,flow" toml:"target_shape" json:"targetShape"`

		// TempFolder receives .npy conversions; empty writes them next to the source
		TempFolder string `yaml:"tempFolder" toml:"temp_folder" json:"tempFolder"`

		// ConvertNumpy also converts TIFF stacks to .npy
		ConvertNumpy bool `yaml:"convertNumpy" toml:"convert_numpy" json:"convertNumpy"`

		// Resample subsamples large .npy and .raw files
		Resample bool `yaml:"resample" toml:"resample" json:"resample"`

		// Spacing and Origin are written into synthesized raw headers
		Spacing []float64 `yaml:"spacing,flow" toml:"spacing" json:"spacing"`
		Origin  []float64 `yaml:"origin,flow" toml:"origin" json:"origin"`
	} `yaml:"import" toml:"import" json:"import"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose" toml:"verbose" json:"verbose"`

		// LogFile, when set, receives log output with rotation
		LogFile string `yaml:"logFile" toml:"log_file" json:"logFile"`

		// MaxLogSize is the size in megabytes before the log file is rotated
		MaxLogSize int `yaml:"maxLogSize" toml:"max_log_size" json:"maxLogSize"`

		// MaxLogAge is the number of days rotated log files are kept
		MaxLogAge int `yaml:"maxLogAge" toml:"max_log_age" json:"maxLogAge"`
	} `yaml:"output" toml:"output" json:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Import.TargetShape = append([]int(nil), resample.DefaultTargetShape...)
	cfg.Import.TempFolder = ""
	cfg.Import.ConvertNumpy = false
	cfg.Import.Resample = false
	cfg.Import.Spacing = []float64{1, 1, 1}
	cfg.Import.Origin = []float64{0, 0, 0}

	cfg.Output.Verbose = false
	cfg.Output.LogFile = ""
	cfg.Output.MaxLogSize = 100
	cfg.Output.MaxLogAge = 28

	return cfg
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func isJSON(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".json" || ext == ".json5"
}

// LoadConfig loads configuration from a YAML file. Names ending in .toml are
// read as TOML and names ending in .json or .json5 as JSON5.
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
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if isJSON(configPath) {
		// go-json5 appends to existing slices
		cfg.Import.TargetShape, cfg.Import.Spacing, cfg.Import.Origin = nil, nil, nil
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		cfg.fillSliceDefaults()
		return cfg, cfg.Validate()
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// fillSliceDefaults restores list settings the file left unset.
func (c *Config) fillSliceDefaults() {
	def := DefaultConfig()
	if c.Import.TargetShape == nil {
		c.Import.TargetShape = def.Import.TargetShape
	}
	if c.Import.Spacing == nil {
		c.Import.Spacing = def.Import.Spacing
	}
	if c.Import.Origin == nil {
		c.Import.Origin = def.Import.Origin
	}
}

// Validate checks values that would make imports fail later.
func (c *Config) Validate() error {
	if n := len(c.Import.TargetShape); n < 2 || n > 3 {
		return fmt.Errorf("import.targetShape needs 2 or 3 values, got %d", n)
	}
	for _, v := range c.Import.TargetShape {
		if v <= 0 {
			return fmt.Errorf("import.targetShape values must be positive, got %v", c.Import.TargetShape)
		}
	}
	if len(c.Import.Spacing) > 3 || len(c.Import.Origin) > 3 {
		return fmt.Errorf("import.spacing and import.origin take at most 3 values")
	}
	return nil
}

// SpacingOrigin returns the import spacing and origin padded to three axes.
func (c *Config) SpacingOrigin() (spacing, origin [3]float64) {
	spacing = [3]float64{1, 1, 1}
	copy(spacing[:], c.Import.Spacing)
	copy(origin[:], c.Import.Origin)
	return spacing, origin
}

// SaveConfig saves the configuration as YAML, or TOML when the name ends in .toml
func SaveConfig(cfg *Config, configPath string) error {
	if isJSON(configPath) {
		return fmt.Errorf("saving JSON5 config is not supported: %s", configPath)
	}

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
