package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "json format", mutate: func(c *Config) { c.Format = "json" }},
		{name: "bad format", mutate: func(c *Config) { c.Format = "logfmt" }, wantErr: true},
		{name: "zero tick", mutate: func(c *Config) { c.Sampling.Tick = 0 }, wantErr: true},
		{name: "zero tick without sampling", mutate: func(c *Config) {
			c.Sampling.Enabled = false
			c.Sampling.Tick = 0
		}},
		{name: "zero initial", mutate: func(c *Config) { c.Sampling.Initial = 0 }, wantErr: true},
		{name: "negative skip", mutate: func(c *Config) {
			c.Caller.Enabled = true
			c.Caller.Skip = -1
		}, wantErr: true},
		{name: "bad pattern", mutate: func(c *Config) { c.Redaction.Patterns = []string{"("} }, wantErr: true},
		{name: "empty field value", mutate: func(c *Config) { c.Fields = map[string]string{"env": ""} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "stderr", cfg.Output.Target)
	assert.Equal(t, time.Second, cfg.Sampling.Tick)
	assert.Equal(t, "vaultorg", cfg.Fields["service"])
}

func TestConfig_ValidateReportsAll(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	cfg.Redaction.Patterns = []string{"["}

	err := cfg.Validate()
	assert.ErrorContains(t, err, "format")
	assert.ErrorContains(t, err, "redaction pattern")
}
