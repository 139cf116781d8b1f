// Package config provides configuration loading and management for
// pendantdrop. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Physical constants of the measured system
	Physical struct {
		// InnerDensity is the drop-phase density in kg/m^3
		InnerDensity float64 `yaml:"innerDensity"`

		// OuterDensity is the surrounding-phase density in kg/m^3
		OuterDensity float64 `yaml:"outerDensity"`

		// NeedleWidth is the needle outer diameter in metres
		NeedleWidth float64 `yaml:"needleWidth"`

		// Gravity is the gravitational acceleration in m/s^2
		Gravity float64 `yaml:"gravity"`
	} `yaml:"physical"`

	// Fit parameters controlling the optimiser
	Fit struct {
		// ObjectiveTol is the relative objective-improvement threshold
		// below which the fit is considered converged
		ObjectiveTol float64 `yaml:"objectiveTol"`

		// MaxIterations caps the optimisation loop
		MaxIterations int `yaml:"maxIterations"`

		// ProfileStep is the arclength integration step of the profile
		ProfileStep float64 `yaml:"profileStep"`
	} `yaml:"fit"`

	// Acquisition parameters for local image sequences
	Acquisition struct {
		// FrameInterval is the synthetic capture spacing in seconds
		FrameInterval float64 `yaml:"frameInterval"`
	} `yaml:"acquisition"`

	// Output parameters
	Output struct {
		// OverlaySamples is the number of points drawn for the fitted
		// contour overlay
		OverlaySamples int `yaml:"overlaySamples"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Water drop in air, standard lab needle.
	cfg.Physical.InnerDensity = 1000
	cfg.Physical.OuterDensity = 1.2
	cfg.Physical.NeedleWidth = 0.7176e-3
	cfg.Physical.Gravity = 9.80665

	cfg.Fit.ObjectiveTol = 1e-6
	cfg.Fit.MaxIterations = 200
	cfg.Fit.ProfileStep = 0.01

	cfg.Acquisition.FrameInterval = 1.0

	cfg.Output.OverlaySamples = 150
	cfg.Output.Verbose = true

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
