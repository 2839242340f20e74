package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/config"
	"github.com/liteclaw/abstractbot/internal/gateway"
)

func NewChannelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Channel overview",
		Long:  `List the configured channels and check their credentials.`,
		Example: `  # List channels
  abstractbot channels

  # Check credentials of enabled channels
  abstractbot channels probe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			renderChannels(cmd, cfg)
			return nil
		},
	}

	cmd.AddCommand(newChannelsProbeCommand())
	return cmd
}

func renderChannels(cmd *cobra.Command, cfg *config.Config) {
	ch := cfg.Channels
	rows := [][]string{
		{"telegram", strconv.FormatBool(ch.Telegram.Enabled), ch.Telegram.WebhookPath, configured(ch.Telegram.BotToken)},
		{"whatsapp", strconv.FormatBool(ch.WhatsApp.Enabled), ch.WhatsApp.WebhookPath, configured(ch.WhatsApp.AccessToken, ch.WhatsApp.PhoneNumberID)},
		{"messenger", strconv.FormatBool(ch.Messenger.Enabled), ch.Messenger.WebhookPath, configured(ch.Messenger.AccessToken)},
		{"greenApi", strconv.FormatBool(ch.GreenAPI.Enabled), ch.GreenAPI.WebhookPath, configured(ch.GreenAPI.IDInstance, ch.GreenAPI.APITokenInstance)},
		{"email", strconv.FormatBool(ch.Email.Enabled), ch.Email.WebhookPath, configured(ch.Email.APIKey, ch.Email.From)},
		{"websocket", strconv.FormatBool(ch.Websocket.Enabled), ch.Websocket.Path, configured(strconv.Itoa(len(ch.Websocket.Tokens)))},
		{"database", strconv.FormatBool(ch.Database.Enabled), ch.Database.Path, "yes"},
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Channel", "Enabled", "Path", "Credentials"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

func configured(values ...string) string {
	for _, v := range values {
		if v == "" || v == "0" {
			return "missing"
		}
	}
	return "yes"
}

func newChannelsProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check credentials of enabled channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			registry, err := gateway.BuildRegistry(cfg, nil, nil, zerolog.Nop())
			if err != nil {
				return err
			}
			renderProbes(cmd, probeAll(commandContext(cmd), registry, timeout))
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 10*time.Second, "Timeout per channel")
	return cmd
}

type probeRow struct {
	id     string
	result *channels.ProbeResult
}

func probeAll(ctx context.Context, registry *channels.Registry, timeout time.Duration) []probeRow {
	var rows []probeRow
	for _, ch := range registry.All() {
		p, ok := ch.(channels.Prober)
		if !ok {
			rows = append(rows, probeRow{id: ch.ID()})
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		res, err := p.Probe(pctx)
		cancel()
		if err != nil {
			res = &channels.ProbeResult{Error: err.Error()}
		}
		if res.LatencyMs == 0 {
			res.LatencyMs = time.Since(start).Milliseconds()
		}
		rows = append(rows, probeRow{id: ch.ID(), result: res})
	}
	return rows
}

func renderProbes(cmd *cobra.Command, rows []probeRow) {
	if len(rows) == 0 {
		cmd.Println("No channels enabled.")
		return
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Channel", "Status", "Identity", "Latency"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, r := range rows {
		if r.result == nil {
			table.Append([]string{r.id, "n/a", "", ""})
			continue
		}
		status := "ok"
		if !r.result.OK {
			status = "error: " + r.result.Error
		}
		identity := r.result.Username
		if identity == "" {
			identity = r.result.BotName
		}
		table.Append([]string{r.id, status, identity, fmt.Sprintf("%dms", r.result.LatencyMs)})
	}
	table.Render()
}
