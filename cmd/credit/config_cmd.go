package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// secretKeys are masked by config show.
var secretKeys = map[string]bool{
	"sheets.client_secret": true,
	"sheets.refresh_token": true,
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print every configuration key with its effective value after merging
defaults, the config file, CREDIT_* environment variables and flags.
Secrets are masked.`,
		RunE: runConfigShow,
	})

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	settings := effectiveSettings(viper.GetViper())

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		writef(out, "# config file: %s\n", used)
	}
	writef(out, "%s", data)
	return nil
}

// effectiveSettings nests every resolved key into maps, masking secrets.
func effectiveSettings(v *viper.Viper) map[string]any {
	keys := v.AllKeys()
	sort.Strings(keys)

	root := make(map[string]any)
	for _, key := range keys {
		value := v.Get(key)
		if secretKeys[key] && v.GetString(key) != "" {
			value = "********"
		}
		setNested(root, key, value)
	}
	return root
}

func setNested(root map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	node := root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}
