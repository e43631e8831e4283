package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/foldstack/pkg/collapse"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{
		Threads:      0,
		StacksPerJob: collapse.DefaultStacksPerJob,
		LogLevel:     "warn",
	}, cfg)
	assert.Equal(t, collapse.DefaultThreads, cfg.EffectiveThreads())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FOLDSTACK_THREADS", "3")
	t.Setenv("FOLDSTACK_STACKS_PER_JOB", "7")
	t.Setenv("FOLDSTACK_DEMANGLE", "true")
	t.Setenv("FOLDSTACK_INCLUDE_OFFSET", "true")
	t.Setenv("FOLDSTACK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{
		Threads:       3,
		StacksPerJob:  7,
		Demangle:      true,
		IncludeOffset: true,
		LogLevel:      "debug",
	}, cfg)
	assert.Equal(t, 3, cfg.EffectiveThreads())
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"zero stacks per job", "FOLDSTACK_STACKS_PER_JOB", "0", "at least 1"},
		{"negative threads", "FOLDSTACK_THREADS", "-2", "must not be negative"},
		{"bad level", "FOLDSTACK_LOG_LEVEL", "chatty", "FOLDSTACK_LOG_LEVEL"},
		{"not a number", "FOLDSTACK_THREADS", "many", "read environment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestUsage(t *testing.T) {
	assert.Contains(t, Usage(), "FOLDSTACK_STACKS_PER_JOB")
}
