package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML with secrets redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := redactSettings(viper.AllSettings())

		data, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}

		out := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(out, "# config file: %s\n", used)
		} else {
			_, _ = fmt.Fprintln(out, "# config file: (none, defaults and environment)")
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// redactSettings masks every credential-bearing key. The input is not modified.
func redactSettings(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		if nested, ok := value.(map[string]any); ok {
			out[key] = redactSettings(nested)
			continue
		}
		if isSecretKey(key) {
			out[key] = redactValue(value)
			continue
		}
		out[key] = value
	}
	return out
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	return key == "tokens" || strings.HasSuffix(key, "token") || strings.Contains(key, "secret")
}

func redactValue(value any) any {
	switch v := value.(type) {
	case []string:
		masked := make([]string, len(v))
		for i := range v {
			masked[i] = redacted
		}
		return masked
	case []any:
		masked := make([]string, len(v))
		for i := range v {
			masked[i] = redacted
		}
		return masked
	case string:
		if v == "" {
			return v
		}
		return redacted
	case nil:
		return nil
	default:
		return redacted
	}
}
