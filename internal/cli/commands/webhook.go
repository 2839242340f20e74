package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/liteclaw/abstractbot/extensions/greenapi"
	"github.com/liteclaw/abstractbot/extensions/telegram"
	"github.com/liteclaw/abstractbot/internal/config"
)

// NewWebhookCommand creates the webhook subcommand, which points a
// platform's webhook at this server's public domain.
func NewWebhookCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Register platform webhooks",
		Example: `  abstractbot webhook telegram
  abstractbot webhook greenapi --url https://bot.example.com/green-api`,
	}
	cmd.PersistentFlags().String("url", "", "Webhook URL (default: server.domain + channel path)")

	cmd.AddCommand(&cobra.Command{
		Use:   "telegram",
		Short: "Register the Telegram webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tg := cfg.Channels.Telegram
			if tg.BotToken == "" {
				return fmt.Errorf("channels.telegram.botToken is not set")
			}
			url := webhookURL(cmd, cfg, tg.WebhookPath)
			nop := zerolog.Nop()
			client := telegram.NewClient(tg.BotToken, tg.APIBase, 0, 0, &nop)
			if err := client.SetWebhook(commandContext(cmd), url); err != nil {
				return err
			}
			cmd.Printf("Telegram webhook set to %s\n", url)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "greenapi",
		Short: "Register the GreenAPI webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ga := cfg.Channels.GreenAPI
			if ga.IDInstance == "" || ga.APITokenInstance == "" {
				return fmt.Errorf("channels.greenApi credentials are not set")
			}
			url := webhookURL(cmd, cfg, ga.WebhookPath)
			client := greenapi.NewClient(ga.IDInstance, ga.APITokenInstance, ga.APIBase, 0)
			if err := client.SetWebhook(commandContext(cmd), url); err != nil {
				return err
			}
			cmd.Printf("GreenAPI webhook set to %s\n", url)
			return nil
		},
	})

	return cmd
}

func webhookURL(cmd *cobra.Command, cfg *config.Config, path string) string {
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		return url
	}
	return strings.TrimRight(cfg.Server.Domain, "/") + path
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
