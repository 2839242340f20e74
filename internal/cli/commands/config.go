package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/liteclaw/abstractbot/internal/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config helpers (init/get/set/show/validate)",
		Long:  `Create, inspect and change the active config file.`,
		Example: `  # Get config value
  abstractbot config get server.port

  # Set config value
  abstractbot config set server.port 8080`,
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigValidateCommand())

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := config.EnsureConfigFile()
			if err != nil {
				return err
			}
			if created {
				cmd.Printf("Created %s\n", config.ConfigPath())
			} else {
				cmd.Printf("Config already exists at %s\n", config.ConfigPath())
			}
			return nil
		},
	}
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "get [key]",
		Short:   "Get a configuration value",
		Example: `  abstractbot config get server.port`,
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			v, err := config.LoadViper()
			if err != nil {
				cmd.Printf("Failed to load config: %v\n", err)
				return
			}

			val := v.Get(args[0])
			if val == nil {
				cmd.Println("null")
				return
			}
			cmd.Printf("%v\n", val)
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value",
		Example: `  abstractbot config set server.port 9000
  abstractbot config set channels.telegram.enabled true`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			v, err := config.LoadViper()
			if err != nil {
				cmd.Printf("Failed to load config: %v\n", err)
				return
			}

			key := args[0]
			valStr := args[1]
			var val any = valStr

			// Type inference attempt
			if vInt, err := strconv.Atoi(valStr); err == nil {
				val = vInt
			} else if vBool, err := strconv.ParseBool(valStr); err == nil {
				val = vBool
			} else if vFloat, err := strconv.ParseFloat(valStr, 64); err == nil && strings.Contains(valStr, ".") {
				val = vFloat
			}

			v.Set(key, val)

			if err := v.WriteConfig(); err != nil {
				target := v.ConfigFileUsed()
				if target == "" {
					target = config.ConfigPath()
				}
				if err := v.WriteConfigAs(target); err != nil {
					cmd.Printf("Failed to write config: %v\n", err)
					return
				}
			}

			cmd.Printf("Updated %s = %v\n", key, val)
		},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config for errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.Println("Config OK")
			return nil
		},
	}
}
