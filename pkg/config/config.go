// Package config provides configuration loading and management for niftitostl.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"niftitostl/pkg/nifti"
	"niftitostl/pkg/smoothing"
	"niftitostl/pkg/stl"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input parameters
	Input struct {
		// Pattern is the glob matched against file names in the source directory
		Pattern string `yaml:"pattern"`

		// Coordinates is the physical frame of the output meshes: LPS or RAS
		Coordinates string `yaml:"coordinates"`
	} `yaml:"input"`

	// Smoothing parameters for the windowed-sinc filter
	Smoothing struct {
		// Iterations is the number of filter iterations
		Iterations int `yaml:"iterations"`

		// PassBand is the normalized pass-band frequency, lower is smoother
		PassBand float64 `yaml:"passBand"`

		// NonManifoldSmoothing allows vertices on non-manifold edges to move
		NonManifoldSmoothing bool `yaml:"nonManifoldSmoothing"`

		// BoundarySmoothing allows vertices on open boundaries to move
		BoundarySmoothing bool `yaml:"boundarySmoothing"`

		// NormalizeCoordinates scales the mesh into [-1, 1] while filtering
		NormalizeCoordinates bool `yaml:"normalizeCoordinates"`

		// GenerateErrorScalars records per-vertex displacement
		GenerateErrorScalars bool `yaml:"generateErrorScalars"`
	} `yaml:"smoothing"`

	// Output parameters
	Output struct {
		// Format is the STL encoding: ascii or binary
		Format string `yaml:"format"`

		// SaveMasks writes every label mask next to its mesh as NIfTI
		SaveMasks bool `yaml:"saveMasks"`

		// Verbose prints one line per label
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Labels maps label values to output file names (without .stl).
	// Labels missing from the map are named by their value.
	Labels map[int]string `yaml:"labels"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.Pattern = "*.nii.gz"
	cfg.Input.Coordinates = "LPS"

	opts := smoothing.DefaultOptions()
	cfg.Smoothing.Iterations = opts.Iterations
	cfg.Smoothing.PassBand = opts.PassBand
	cfg.Smoothing.NonManifoldSmoothing = opts.NonManifoldSmoothing
	cfg.Smoothing.BoundarySmoothing = opts.BoundarySmoothing
	cfg.Smoothing.NormalizeCoordinates = opts.NormalizeCoordinates
	cfg.Smoothing.GenerateErrorScalars = opts.GenerateErrorScalars

	cfg.Output.Format = "ascii"
	cfg.Output.SaveMasks = false
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

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
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return data, nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks value ranges and label names
func (c *Config) Validate() error {
	if _, err := filepath.Match(c.Input.Pattern, ""); err != nil || c.Input.Pattern == "" {
		return fmt.Errorf("invalid input pattern %q", c.Input.Pattern)
	}
	if _, err := nifti.ParseFrame(c.Input.Coordinates); err != nil {
		return err
	}
	if c.Smoothing.Iterations < 1 {
		return fmt.Errorf("smoothing iterations must be at least 1, got %d", c.Smoothing.Iterations)
	}
	if c.Smoothing.PassBand <= 0 || c.Smoothing.PassBand >= 2 {
		return fmt.Errorf("smoothing pass band must be in (0, 2), got %g", c.Smoothing.PassBand)
	}
	if _, err := stl.ParseFormat(c.Output.Format); err != nil {
		return err
	}

	used := make(map[string]int)
	for label, name := range c.Labels {
		if label == 0 {
			return fmt.Errorf("label 0 is background and cannot be named")
		}
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("label %d has an empty name", label)
		}
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("label %d name %q is not a plain file name", label, name)
		}
		if v, err := strconv.ParseFloat(name, 64); err == nil && v != float64(label) {
			return fmt.Errorf("label %d name %q is the number of another label", label, name)
		}
		if other, ok := used[name]; ok {
			return fmt.Errorf("labels %d and %d share the name %q", other, label, name)
		}
		used[name] = label
	}
	return nil
}

// SmoothingOptions converts the smoothing section into filter options
func (c *Config) SmoothingOptions() smoothing.Options {
	return smoothing.Options{
		Iterations:           c.Smoothing.Iterations,
		PassBand:             c.Smoothing.PassBand,
		NonManifoldSmoothing: c.Smoothing.NonManifoldSmoothing,
		BoundarySmoothing:    c.Smoothing.BoundarySmoothing,
		NormalizeCoordinates: c.Smoothing.NormalizeCoordinates,
		GenerateErrorScalars: c.Smoothing.GenerateErrorScalars,
	}
}
