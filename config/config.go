// Package config loads idxtools settings with viper and turns them into the
// immutable format.Format used by the index engine.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/logger"
)

// Config represents the idxtools configuration
type Config struct {
	Index        string           `mapstructure:"index" yaml:"index" json:"index" toml:"index"`
	FormatFile   string           `mapstructure:"format_file" yaml:"format_file" json:"format_file" toml:"format_file"`
	OutputFormat string           `mapstructure:"output_format" yaml:"output_format" json:"output_format" toml:"output_format"`
	LogLevel     string           `mapstructure:"loglevel" yaml:"loglevel" json:"loglevel" toml:"loglevel"`
	MapKeys      bool             `mapstructure:"map_keys" yaml:"map_keys" json:"map_keys" toml:"map_keys"`
	Layout       format.Overrides `mapstructure:"format" yaml:"format" json:"format" toml:"format"`
}

// Format builds the index format: defaults, then the format section, then
// the format file when one is configured.
func (c *Config) Format() (*format.Format, error) {
	f := format.Default().WithOverrides(c.Layout)
	if c.FormatFile != "" {
		o, err := ReadFormatFile(c.FormatFile)
		if err != nil {
			return nil, err
		}
		f = f.WithOverrides(o)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFormatFile decodes format overrides from a JSON or YAML file. When
// src names no existing file it is parsed as an inline document.
func ReadFormatFile(src string) (format.Overrides, error) {
	var o format.Overrides

	raw, err := os.ReadFile(src)
	switch {
	case err == nil:
	case os.IsNotExist(err) && looksInline(src):
		raw = []byte(src)
	default:
		return o, errors.WrapIOf(err, "read format file %s", src)
	}

	if err := yaml.Unmarshal(raw, &o); err != nil {
		return o, errors.WithHint(
			errors.NewValidationError("format file %s: %v", shorten(src), err),
			"the format file must be a JSON or YAML mapping")
	}
	logger.Debugw("format file loaded", "format_file", shorten(src))
	return o, nil
}

func looksInline(src string) bool {
	s := strings.TrimSpace(src)
	return strings.HasPrefix(s, "{") || strings.Contains(s, ":")
}

func shorten(s string) string {
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}

// String returns a short summary of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Index: %s, Output: %s, LogLevel: %s}",
		c.Index, c.OutputFormat, c.LogLevel)
}
