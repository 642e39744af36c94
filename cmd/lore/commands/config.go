package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/lore/config"
	"github.com/teranos/lore/errors"
	"gopkg.in/yaml.v3"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lore configuration",
	Long: `Display and manage lore configuration settings.

Configuration sources (in order of precedence):
1. Environment variables (LORE_* prefix)
2. Project config (./lore.toml, searches up directories)
3. User config (~/.lore/config.toml)
4. System config (/etc/lore/config.toml)
5. Default values

Examples:
  lore config show                  # Show effective configuration
  lore config show --format json    # Show configuration in JSON format
  lore config get graph.uri         # Get a specific value
  lore config validate              # Validate current configuration
  lore config path                  # Show the configuration cascade
  lore config init                  # Write a starter ./lore.toml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long:  "Display the effective lore configuration merged from all sources",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., graph.uri, ingest.workers)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runConfigValidate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files are active.

Lists all configuration sources in order of precedence and the files
that actually exist on this machine.`,
	RunE: runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long:  "Write a configuration file populated with the default values. Existing files are rotated to .back1 style backups first.",
	RunE:  runConfigInit,
}

var (
	configFormat string
	configUser   bool
)

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	configInitCmd.Flags().BoolVar(&configUser, "user", false, "Write to the user config path instead of ./lore.toml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configPathCmd)
	ConfigCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	// Never echo credentials back to the terminal
	shown := *cfg
	if shown.Graph.Password != "" {
		shown.Graph.Password = "********"
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(shown, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(shown)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Printf("# lore configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(shown)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# lore configuration\n%s", string(data))

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := config.GetViper()
	if !v.IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}

	fmt.Println(config.Get(key))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	fmt.Println("✓ Configuration is valid")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println("Configuration cascade (later overrides earlier):")
	fmt.Println("  1. [DEFAULT]  Built-in defaults")
	fmt.Println("  2. [SYSTEM]   /etc/lore/config.toml")
	fmt.Printf("  3. [USER]     %s\n", config.UserConfigPath())
	fmt.Println("  4. [PROJECT]  ./lore.toml (searches up directories)")
	fmt.Println("  5. [ENV]      LORE_* environment variables")
	fmt.Println()

	active := config.ActivePaths()
	if len(active) == 0 {
		fmt.Println("Active files: none (defaults and environment only)")
		return nil
	}

	fmt.Println("Active files:")
	for _, path := range active {
		fmt.Printf("  %s\n", path)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "lore.toml"
	if configUser {
		path = config.UserConfigPath()
	}

	if err := config.WriteDefault(path); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", path)
	}

	pterm.Success.Printf("Wrote configuration to %s", path)
	return nil
}
