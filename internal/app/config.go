package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	DocumentPath string // hcl document file or directory

	LogFormat   string
	LogLevel    string
	MetricsPort int
	WorkerCount int
	Triggers    []string // node ids to start from; empty means the whole document
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.DocumentPath == "" {
		return nil, errors.New("DocumentPath is a required configuration field and cannot be empty")
	}

	return &cfg, nil
}
