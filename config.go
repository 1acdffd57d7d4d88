package smt

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds settings shared by all backends.
type Config struct {
	// Enables logging to stderr when Logger is not set.
	Verbose bool `yaml:"verbose"`

	// Maximum duration of a single satisfiability check. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`

	RandomSeed int `yaml:"random_seed"`

	// Backend-specific options. Unknown keys are logged and ignored.
	Options map[string]string `yaml:"options"`

	// Destination for log output. Defaults to discard unless Verbose is set.
	Logger *log.Logger `yaml:"-"`
}

// NewConfig returns a new instance of Config with default settings.
func NewConfig() Config {
	return Config{Options: make(map[string]string)}
}

// ParseConfig decodes a YAML document into a Config.
func ParseConfig(data []byte) (Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrap(err, "parse config")
	}
	if config.Timeout < 0 {
		return config, errors.Errorf("parse config: negative timeout: %s", config.Timeout)
	}
	if config.Options == nil {
		config.Options = make(map[string]string)
	}
	return config, nil
}

// Log returns the configured logger or a default based on Verbose.
func (c *Config) Log() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	} else if c.Verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}
