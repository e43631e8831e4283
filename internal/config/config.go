// Package config loads foldstack defaults from the environment.
package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/foldstack/pkg/collapse"
)

// Config holds the settings that command line flags default to.
type Config struct {
	// Threads is the worker count. Zero means one per CPU.
	Threads       int    `env:"FOLDSTACK_THREADS" env-default:"0" env-description:"worker threads, 0 for one per CPU"`
	StacksPerJob  int    `env:"FOLDSTACK_STACKS_PER_JOB" env-default:"100" env-description:"stacks handed to a worker at once"`
	Demangle      bool   `env:"FOLDSTACK_DEMANGLE" env-default:"false" env-description:"demangle function names"`
	IncludeOffset bool   `env:"FOLDSTACK_INCLUDE_OFFSET" env-default:"false" env-description:"keep function offsets"`
	LogLevel      string `env:"FOLDSTACK_LOG_LEVEL" env-default:"warn" env-description:"logrus level"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no collapse run can use.
func (c *Config) Validate() error {
	if c.Threads < 0 {
		return errors.Errorf("FOLDSTACK_THREADS must not be negative, got %d", c.Threads)
	}
	if c.StacksPerJob < 1 {
		return errors.Errorf("FOLDSTACK_STACKS_PER_JOB must be at least 1, got %d", c.StacksPerJob)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "FOLDSTACK_LOG_LEVEL")
	}
	return nil
}

// EffectiveThreads resolves a zero thread count to the CPU count.
func (c *Config) EffectiveThreads() int {
	if c.Threads == 0 {
		return collapse.DefaultThreads
	}
	return c.Threads
}

// Usage describes the recognised environment variables.
func Usage() string {
	var cfg Config
	s, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return s
}
