// Package channels is the framework channel adapters plug into. A channel
// turns platform webhooks into bouncer endpoints and binds the outbound
// capabilities of internal/bot for the task handler.
package channels

import (
	"time"
)

// ChannelType names a supported platform.
type ChannelType string

const (
	ChannelTypeTelegram  ChannelType = "telegram"
	ChannelTypeWhatsApp  ChannelType = "whatsapp"
	ChannelTypeMessenger ChannelType = "facebook-messenger"
	ChannelTypeGreenAPI  ChannelType = "green-api"
	ChannelTypeEmail     ChannelType = "email"
	ChannelTypeWebsocket ChannelType = "websocket"
	ChannelTypeDatabase  ChannelType = "database"
)

// RuntimeState holds runtime state of a channel.
type RuntimeState struct {
	Running        bool       `json:"running"`
	Mode           string     `json:"mode,omitempty"` // "webhook", "websocket", "store"
	LastStartAt    *time.Time `json:"lastStartAt,omitempty"`
	LastStopAt     *time.Time `json:"lastStopAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	LastInboundAt  *time.Time `json:"lastInboundAt,omitempty"`
	LastOutboundAt *time.Time `json:"lastOutboundAt,omitempty"`
	MessageCount   int64      `json:"messageCount"`
}

// ProbeResult holds the result of probing a channel's credentials.
type ProbeResult struct {
	OK        bool   `json:"ok"`
	BotID     string `json:"botId,omitempty"`
	BotName   string `json:"botName,omitempty"`
	Username  string `json:"username,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
}

// Status is a channel's state for CLI and API output.
type Status struct {
	ID            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Type          ChannelType `json:"type" yaml:"type"`
	Running       bool        `json:"running" yaml:"running"`
	Mode          string      `json:"mode,omitempty" yaml:"mode,omitempty"`
	Endpoints     int         `json:"endpoints" yaml:"endpoints"`
	MessageCount  int64       `json:"messageCount" yaml:"messageCount"`
	LastError     string      `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	LastInboundAt *time.Time  `json:"lastInboundAt,omitempty" yaml:"lastInboundAt,omitempty"`
}
