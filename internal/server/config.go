package server

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     int    `envconfig:"PORT" default:"3000"`
	DataDir  string `envconfig:"DATA_DIR" default:"./data/annotations"`
	ImageDir string `envconfig:"IMAGE_DIR"` // served under /images/ when set
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ANNOTSERVER", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
