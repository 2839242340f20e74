// Package cli provides the command-line interface for abstractbot.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liteclaw/abstractbot/internal/cli/commands"
	"github.com/liteclaw/abstractbot/internal/config"
	"github.com/liteclaw/abstractbot/internal/version"
)

var rootCmd = NewRootCommand()

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abstractbot",
		Short: "abstractbot - one bot, many chat platforms",
		Long: `abstractbot serves webhooks for Telegram, WhatsApp, Messenger, GreenAPI,
email, websocket and raw HTTP clients, and runs one task handler for all of
them with the platform's capabilities bound to each message.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				return os.Setenv("ABSTRACTBOT_CONFIG_PATH", path)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := os.Stat(config.ConfigPath()); err != nil {
				cmd.Printf("No config at %s. Run: abstractbot config init\n\n", config.ConfigPath())
			}
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(commands.NewServeCommand())
	cmd.AddCommand(commands.NewChannelsCommand())
	cmd.AddCommand(commands.NewConfigCommand())
	cmd.AddCommand(commands.NewWebhookCommand())
	cmd.AddCommand(commands.NewLogsCommand())
	cmd.AddCommand(commands.NewVersionCommand())

	cmd.PersistentFlags().StringP("config", "c", "", "config file (default is ~/.abstractbot/abstractbot.json)")
	return cmd
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
