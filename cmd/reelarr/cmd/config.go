package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing reelarr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration in YAML format.

This shows every configuration option after the config file, environment
variables and flags have been applied. Secrets are masked. You can redirect
this output to a file to create a configuration template:

  reelarr config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, ./configs/config.yaml, /etc/reelarr/config.yaml)
  - Environment variables (REELARR_SERVER_PORT, REELARR_SYNC_CHANNELS, etc.)
  - Legacy environment variables (CHANNELS, SYNC_LIMIT, DATABASE_URL, etc.)
  - Command-line flags (for some options)

Environment variables use the REELARR_ prefix and underscores for nesting.
Example: sync.incremental_window -> REELARR_SYNC_INCREMENTAL_WINDOW`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// secretKeys are masked in the dump.
var secretKeys = map[string]bool{"token": true}

// toMap converts a config struct to a map keyed by mapstructure tags,
// formatting durations for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(fieldType.Name)
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = fv.String()
		case string:
			if secretKeys[key] && fv != "" {
				result[key] = "********"
			} else {
				result[key] = fv
			}
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# reelarr Configuration File")
	fmt.Fprintln(out, "# ==========================")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out, "# Duration format: 30s, 5m, 1h")
	fmt.Fprintln(out, "# Schedules use 5-field cron syntax or @every <duration>; empty disables the job.")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out, "# Environment variable overrides:")
	fmt.Fprintln(out, "#   REELARR_SERVER_HOST, REELARR_SERVER_PORT")
	fmt.Fprintln(out, "#   REELARR_DATABASE_DRIVER, REELARR_DATABASE_DSN")
	fmt.Fprintln(out, "#   REELARR_SOURCE_BASE_URL, REELARR_SOURCE_TOKEN")
	fmt.Fprintln(out, "#   REELARR_SYNC_CHANNELS (or CHANNELS=@a,@b)")
	fmt.Fprintln(out, "#   etc.")
	fmt.Fprintln(out, "")
	fmt.Fprint(out, string(yamlData))

	return nil
}
