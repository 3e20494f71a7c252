package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/idxtools/config"
	"github.com/teranos/idxtools/errors"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the active configuration",
		Long: `Display the configuration after defaults, files, environment and flags
have been merged, or list the sources that were checked.

Examples:
  idxtools config show                 # YAML
  idxtools config show --format toml
  idxtools config where`,
	}

	var outFormat string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.cfg.Validate(); err != nil {
				return errors.Wrap(err, "configuration validation failed")
			}
			data, err := marshalConfig(g.cfg, outFormat)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return errors.WrapIO(err, "write config")
		},
	}
	show.Flags().StringVar(&outFormat, "format", "yaml", "Output format: yaml, json, toml")

	where := &cobra.Command{
		Use:   "where",
		Short: "Show where configuration is loaded from",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
			for i, loc := range config.Where() {
				status := "missing"
				if loc.Found {
					status = "loaded"
				}
				path := loc.Path
				if path == "" {
					path = "-"
				}
				fmt.Fprintf(out, "  %d. [%-11s] %-7s %s\n", i+1, loc.Source, status, path)
			}
			return nil
		},
	}

	cmd.AddCommand(show, where)
	return cmd
}

func marshalConfig(cfg *config.Config, outFormat string) ([]byte, error) {
	switch outFormat {
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		return data, errors.Wrap(err, "failed to marshal config to YAML")
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to JSON")
		}
		return append(data, '\n'), nil
	case "toml":
		data, err := toml.Marshal(cfg)
		return data, errors.Wrap(err, "failed to marshal config to TOML")
	default:
		return nil, errors.NewValidationError("unsupported format: %s (supported: yaml, json, toml)", outFormat)
	}
}
