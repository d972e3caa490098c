// Package config provides configuration loading and management for cubemask.
// It handles loading configuration from YAML files and provides default
// values for the masking, noise, and analysis stages.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"cubemask/pkg/mask"
	"cubemask/pkg/moment"
	"cubemask/pkg/noise"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters shared across stages.
	Processing struct {
		// NumCores specifies how many CPU cores to use for the
		// per-position noise estimation.
		NumCores int `yaml:"numCores"`

		// ChannelWidth is the spectral channel width (dv) used when
		// integrating moment-0 maps.
		ChannelWidth float64 `yaml:"channelWidth"`
	} `yaml:"processing"`

	// Noise estimation parameters.
	Noise struct {
		// ClipMultiplier bounds the refit of the robust sigma estimate.
		ClipMultiplier float64 `yaml:"clipMultiplier"`

		// MinSamples is the minimum finite sample count per profile.
		MinSamples int `yaml:"minSamples"`
	} `yaml:"noise"`

	// Masking parameters for the dual-threshold signal mask.
	Masking struct {
		// LowSigma and HighSigma are the permissive and strict threshold
		// multipliers.
		LowSigma  float64 `yaml:"lowSigma"`
		HighSigma float64 `yaml:"highSigma"`

		// MinHighPixels and MinLowPixels are the per-region retention
		// minima.
		MinHighPixels int `yaml:"minHighPixels"`
		MinLowPixels  int `yaml:"minLowPixels"`

		// SpikeWindow is the spectral spike-suppression window width.
		SpikeWindow int `yaml:"spikeWindow"`

		// DilationIters is the number of final spatial dilation passes.
		DilationIters int `yaml:"dilationIters"`

		// RecoverWings enables the bounded fixed-point expansion back into
		// the permissive mask.
		RecoverWings bool `yaml:"recoverWings"`

		// ExpandMaxIters caps the expansion.
		ExpandMaxIters int `yaml:"expandMaxIters"`
	} `yaml:"masking"`

	// Radial trend parameters; applied when NumBins is positive.
	Radial struct {
		CenterX          float64 `yaml:"centerX"`
		CenterY          float64 `yaml:"centerY"`
		PositionAngleDeg float64 `yaml:"positionAngleDeg"`
		InclinationDeg   float64 `yaml:"inclinationDeg"`
		PixelScale       float64 `yaml:"pixelScale"`
		NumBins          int     `yaml:"numBins"`
		MaxRadius        float64 `yaml:"maxRadius"`
	} `yaml:"radial"`

	// Output parameters.
	Output struct {
		// SaveIntermediaryResults determines whether the pipeline dumps
		// intermediary maps and masks as images.
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.ChannelWidth = 1.0

	cfg.Noise.ClipMultiplier = 3.0
	cfg.Noise.MinSamples = 5

	mp := mask.DefaultParams()
	cfg.Masking.LowSigma = mp.LowSigma
	cfg.Masking.HighSigma = mp.HighSigma
	cfg.Masking.MinHighPixels = mp.MinHighPixels
	cfg.Masking.MinLowPixels = mp.MinLowPixels
	cfg.Masking.SpikeWindow = mp.SpikeWindow
	cfg.Masking.DilationIters = mp.DilationIters
	cfg.Masking.ExpandMaxIters = 10

	cfg.Radial.NumBins = 0 // radial analysis off unless configured
	cfg.Radial.PixelScale = 1.0

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = true

	return cfg
}

// MaskParams converts the configuration into the masking parameter set.
func (c *Config) MaskParams() mask.Params {
	return mask.Params{
		LowSigma:       c.Masking.LowSigma,
		HighSigma:      c.Masking.HighSigma,
		MinHighPixels:  c.Masking.MinHighPixels,
		MinLowPixels:   c.Masking.MinLowPixels,
		SpikeWindow:    c.Masking.SpikeWindow,
		DilationIters:  c.Masking.DilationIters,
		RecoverWings:   c.Masking.RecoverWings,
		ExpandMaxIters: c.Masking.ExpandMaxIters,
		Noise: noise.Params{
			ClipMultiplier: c.Noise.ClipMultiplier,
			MinSamples:     c.Noise.MinSamples,
			Workers:        c.Processing.NumCores,
		},
	}
}

// RadialParams converts the configuration into radial analysis parameters.
func (c *Config) RadialParams() moment.RadialParams {
	return moment.RadialParams{
		CenterX:       c.Radial.CenterX,
		CenterY:       c.Radial.CenterY,
		PositionAngle: c.Radial.PositionAngleDeg * math.Pi / 180,
		Inclination:   c.Radial.InclinationDeg * math.Pi / 180,
		PixelScale:    c.Radial.PixelScale,
		NumBins:       c.Radial.NumBins,
		MaxRadius:     c.Radial.MaxRadius,
	}
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
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

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
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

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
