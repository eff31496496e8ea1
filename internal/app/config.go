package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every editor environment variable.
const EnvPrefix = "ANNOTATOR"

// Config holds the editor settings read from the environment.
type Config struct {
	SaveURL     string        `envconfig:"SAVE_URL" default:"http://localhost:3000"`
	SaveTimeout time.Duration `envconfig:"SAVE_TIMEOUT" default:"10s"`
	ZoomStep    float64       `envconfig:"ZOOM_STEP" default:"1.1"`
	FrameRate   int           `envconfig:"FRAME_RATE" default:"60"`
	Verbose     bool          `envconfig:"VERBOSE" default:"false"`
}

// LoadConfig reads ANNOTATOR_* variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the editor cannot run with.
func (c *Config) Validate() error {
	if c.ZoomStep <= 1 {
		return fmt.Errorf("%s_ZOOM_STEP must be greater than 1, got %v", EnvPrefix, c.ZoomStep)
	}
	if c.FrameRate <= 0 || c.FrameRate > 240 {
		return fmt.Errorf("%s_FRAME_RATE must be in 1..240, got %d", EnvPrefix, c.FrameRate)
	}
	if c.SaveTimeout <= 0 {
		return fmt.Errorf("%s_SAVE_TIMEOUT must be positive, got %v", EnvPrefix, c.SaveTimeout)
	}
	return nil
}
