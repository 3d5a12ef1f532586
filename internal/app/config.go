package app

import (
	"errors"
	"fmt"

	"github.com/vk/artiflow/internal/runctx"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // hcl file or directory
	DataDir      string // root of the local artifact store

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	EventsURL       string // socket.io endpoint receiving run events
	StoreDSN        string // postgres artifact store

	Task        string
	Parallelism runctx.Mode
	Workers     int
	Downstream  bool

	Vars       map[string]string // raw --var overrides, parsed against the param types
	ParamsFile string            // yaml file of param overrides

	// WorkerArgs are the arguments a child process is started with in
	// processes mode, before the task and context flags.
	WorkerArgs []string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	mode, err := runctx.ParseMode(string(cfg.Parallelism))
	if err != nil {
		return nil, err
	}
	cfg.Parallelism = mode

	if _, ok := parseLogLevel(cfg.LogLevel); !ok {
		return nil, fmt.Errorf("log level has to be one of debug, info, warn or error, got %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = logFormatText
	case logFormatText, logFormatJSON:
	default:
		return nil, fmt.Errorf("log format has to be text or json, got %q", cfg.LogFormat)
	}
	return &cfg, nil
}
