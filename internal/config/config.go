// Package config handles converter configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/meshconv/pkg/geometry"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds all converter settings.
type Config struct {
	Conversion ConversionConfig `yaml:"conversion"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ConversionConfig controls how model instances become world-space geometry.
type ConversionConfig struct {
	ScaleFactor     float32 `yaml:"scale_factor"`
	NormalPolicy    string  `yaml:"normal_policy"` // legacy | corrected
	NormalizeOrigin bool    `yaml:"normalize_origin"`
	AnimTimeMs      float32 `yaml:"anim_time_ms"`
	TwoSided        bool    `yaml:"two_sided"` // back faces for every face
}

// OutputConfig controls the encoders.
type OutputConfig struct {
	VertexColors     bool    `yaml:"vertex_colors"`
	Dedup            bool    `yaml:"dedup"`
	EmissiveStrength float32 `yaml:"emissive_strength"`
	Roughness        float32 `yaml:"roughness"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Conversion: ConversionConfig{
			ScaleFactor:     geometry.DefaultScale,
			NormalPolicy:    geometry.NormalsLegacy.String(),
			NormalizeOrigin: true,
			AnimTimeMs:      0,
			TwoSided:        false,
		},
		Output: OutputConfig{
			VertexColors:     true,
			Dedup:            true,
			EmissiveStrength: 0.5,
			Roughness:        0.9,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.Conversion.ScaleFactor <= 0 {
		return fmt.Errorf("%w: scale_factor must be positive, got %g", ErrInvalid, c.Conversion.ScaleFactor)
	}
	if _, err := geometry.ParseNormalPolicy(c.Conversion.NormalPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Conversion.AnimTimeMs < 0 {
		return fmt.Errorf("%w: anim_time_ms must not be negative", ErrInvalid)
	}
	if c.Output.Roughness < 0 || c.Output.Roughness > 1 {
		return fmt.Errorf("%w: roughness must be within [0, 1], got %g", ErrInvalid, c.Output.Roughness)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}

// Transformer returns the geometry transformer the config describes.
// Call Validate first.
func (c *Config) Transformer() geometry.Transformer {
	policy, _ := geometry.ParseNormalPolicy(c.Conversion.NormalPolicy)
	return geometry.Transformer{Scale: c.Conversion.ScaleFactor, Normals: policy}
}
