// Package config provides configuration loading and management for binmorph.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"binmorph/internal/models"
	"binmorph/pkg/imageio"
	"binmorph/pkg/raster"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Threshold is the binarisation level: pixels below it become foreground
		Threshold int `yaml:"threshold"`

		// AutoThreshold selects the level per image with Otsu's method,
		// ignoring Threshold
		AutoThreshold bool `yaml:"autoThreshold"`

		// FillColor is written to output pixels that satisfy an operator
		FillColor int `yaml:"fillColor"`

		// MaxDim bounds the height and width of loaded images
		MaxDim int `yaml:"maxDim"`

		// NumWorkers is how many input files are processed concurrently
		NumWorkers int `yaml:"numWorkers"`

		// Operations is the chain applied to each image, in order
		Operations []string `yaml:"operations"`
	} `yaml:"processing"`

	// Structuring element parameters
	Element struct {
		// Shape is one of cross, square, diamond or pattern
		Shape string `yaml:"shape"`

		// Size is the side of the square element; must be odd
		Size int `yaml:"size"`

		// CenterX and CenterY locate the pattern centre; they are only
		// used with the pattern shape
		CenterX int `yaml:"centerX"`
		CenterY int `yaml:"centerY"`

		// Pattern rows use '#' for active cells and '.' for inactive ones
		Pattern []string `yaml:"pattern"`
	} `yaml:"element"`

	// Output parameters
	Output struct {
		// Format is the extension used for output files, e.g. "pgm" or "png"
		Format string `yaml:"format"`

		// ASCII writes plain (P2) PGM files
		ASCII bool `yaml:"ascii"`

		// SaveIntermediaryResults determines whether each stage is written out
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where stage images are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Preview prints each result as text after processing
		Preview bool `yaml:"preview"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.Threshold = 128
	cfg.Processing.AutoThreshold = false
	cfg.Processing.FillColor = raster.Black
	cfg.Processing.MaxDim = raster.DefaultMaxDim
	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.Operations = []string{"threshold", "open", "close"}

	// Set default element parameters: the four-neighbour cross
	cfg.Element.Shape = "cross"
	cfg.Element.Size = 3
	cfg.Element.CenterX = 1
	cfg.Element.CenterY = 1

	// Set default output parameters
	cfg.Output.Format = "pgm"
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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

// Validate checks every field that would otherwise fail later in the
// pipeline
func (c *Config) Validate() error {
	if err := raster.CheckColor("threshold", c.Processing.Threshold); err != nil {
		return err
	}
	if err := raster.CheckColor("fillColor", c.Processing.FillColor); err != nil {
		return err
	}
	if c.Processing.MaxDim < 1 {
		return fmt.Errorf("%w: maxDim %d must be positive", raster.ErrInvalidArgument, c.Processing.MaxDim)
	}
	if c.Processing.NumWorkers < 1 {
		return fmt.Errorf("%w: numWorkers %d must be positive", raster.ErrInvalidArgument, c.Processing.NumWorkers)
	}
	if _, err := c.ParsedOperations(); err != nil {
		return err
	}
	if _, err := c.StructuringElement(); err != nil {
		return err
	}
	if !imageio.IsSupported("out." + c.Output.Format) {
		return fmt.Errorf("%w: unsupported output format %q", raster.ErrInvalidArgument, c.Output.Format)
	}
	return nil
}

// ParsedOperations returns the operation chain
func (c *Config) ParsedOperations() ([]models.Operation, error) {
	ops, err := models.ParseOperations(c.Processing.Operations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raster.ErrInvalidArgument, err)
	}
	return ops, nil
}

// StructuringElement builds the element described by the Element section
func (c *Config) StructuringElement() (*raster.StructuringElement, error) {
	switch strings.ToLower(c.Element.Shape) {
	case "cross":
		return raster.Cross(c.Element.Size)
	case "square":
		return raster.Square(c.Element.Size)
	case "diamond":
		return raster.Diamond(c.Element.Size)
	case "pattern":
		return raster.ParsePattern(c.Element.Pattern, c.Element.CenterX, c.Element.CenterY)
	}
	return nil, fmt.Errorf("%w: unknown element shape %q", raster.ErrInvalidArgument, c.Element.Shape)
}
