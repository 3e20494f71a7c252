package config

import (
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
)

var logLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "" {
		if _, err := format.ParseOutput(c.OutputFormat); err != nil {
			return errors.Wrap(err, "output_format")
		}
	}

	if c.LogLevel != "" && !logLevels[c.LogLevel] {
		return errors.WithHint(
			errors.NewValidationError("loglevel must be one of debug, info, warn, error, got %q", c.LogLevel),
			"set IDX_LOGLEVEL or loglevel in indexfile.yml")
	}

	if _, err := c.Format(); err != nil {
		return errors.Wrap(err, "format")
	}
	return nil
}
