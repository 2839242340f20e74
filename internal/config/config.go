// Package config provides configuration management for abstractbot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
)

// ErrConfigNotFound indicates no usable config file was found.
var ErrConfigNotFound = errors.New("config not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config matches the structure of abstractbot.json.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Channels ChannelsConfig `json:"channels" yaml:"channels" mapstructure:"channels"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
}

type ServerConfig struct {
	// Domain is the public base URL the server re-delivers bounced tasks to.
	Domain      string          `json:"domain" yaml:"domain" mapstructure:"domain" validate:"required,url"`
	Host        string          `json:"host" yaml:"host" mapstructure:"host"`
	Port        int             `json:"port" yaml:"port" mapstructure:"port" validate:"min=0,max=65535"`
	BodyLimit   string          `json:"bodyLimit" yaml:"bodyLimit" mapstructure:"bodyLimit"`
	MetricsPath string          `json:"metricsPath,omitempty" yaml:"metricsPath,omitempty" mapstructure:"metricsPath"`
	HealthPath  string          `json:"healthPath,omitempty" yaml:"healthPath,omitempty" mapstructure:"healthPath"`
	RateLimit   RateLimitConfig `json:"rateLimit" yaml:"rateLimit" mapstructure:"rateLimit"`
}

type RateLimitConfig struct {
	Enabled bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	RPS     float64 `json:"rps" yaml:"rps" mapstructure:"rps" validate:"min=0"`
	Burst   int     `json:"burst" yaml:"burst" mapstructure:"burst" validate:"min=0"`
}

type ChannelsConfig struct {
	Telegram  TelegramConfig  `json:"telegram" yaml:"telegram" mapstructure:"telegram"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp" yaml:"whatsapp" mapstructure:"whatsapp"`
	Messenger MessengerConfig `json:"messenger" yaml:"messenger" mapstructure:"messenger"`
	GreenAPI  GreenAPIConfig  `json:"greenApi" yaml:"greenApi" mapstructure:"greenApi"`
	Email     EmailConfig     `json:"email" yaml:"email" mapstructure:"email"`
	Websocket WebsocketConfig `json:"websocket" yaml:"websocket" mapstructure:"websocket"`
	Database  DatabaseConfig  `json:"database" yaml:"database" mapstructure:"database"`
}

type TelegramConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BotToken    string  `json:"botToken" yaml:"botToken" mapstructure:"botToken" validate:"required_if=Enabled true"`
	WebhookPath string  `json:"webhookPath" yaml:"webhookPath" mapstructure:"webhookPath"`
	APIBase     string  `json:"apiBase,omitempty" yaml:"apiBase,omitempty" mapstructure:"apiBase"`
	FileLimitMB float64 `json:"fileLimitMb,omitempty" yaml:"fileLimitMb,omitempty" mapstructure:"fileLimitMb"`
}

type WhatsAppConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	AccessToken   string `json:"accessToken" yaml:"accessToken" mapstructure:"accessToken" validate:"required_if=Enabled true"`
	PhoneNumberID string `json:"phoneNumberId" yaml:"phoneNumberId" mapstructure:"phoneNumberId" validate:"required_if=Enabled true"`
	VerifyToken   string `json:"verifyToken" yaml:"verifyToken" mapstructure:"verifyToken"`
	WebhookPath   string `json:"webhookPath" yaml:"webhookPath" mapstructure:"webhookPath"`
	APIBase       string `json:"apiBase,omitempty" yaml:"apiBase,omitempty" mapstructure:"apiBase"`
}

type MessengerConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	AccessToken string `json:"accessToken" yaml:"accessToken" mapstructure:"accessToken" validate:"required_if=Enabled true"`
	VerifyToken string `json:"verifyToken" yaml:"verifyToken" mapstructure:"verifyToken"`
	PageID      string `json:"pageId,omitempty" yaml:"pageId,omitempty" mapstructure:"pageId"`
	WebhookPath string `json:"webhookPath" yaml:"webhookPath" mapstructure:"webhookPath"`
	APIBase     string `json:"apiBase,omitempty" yaml:"apiBase,omitempty" mapstructure:"apiBase"`
}

type GreenAPIConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	IDInstance       string `json:"idInstance" yaml:"idInstance" mapstructure:"idInstance" validate:"required_if=Enabled true"`
	APITokenInstance string `json:"apiTokenInstance" yaml:"apiTokenInstance" mapstructure:"apiTokenInstance" validate:"required_if=Enabled true"`
	WebhookPath      string `json:"webhookPath" yaml:"webhookPath" mapstructure:"webhookPath"`
	APIBase          string `json:"apiBase,omitempty" yaml:"apiBase,omitempty" mapstructure:"apiBase"`
}

type EmailConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	APIKey      string `json:"apiKey" yaml:"apiKey" mapstructure:"apiKey" validate:"required_if=Enabled true"`
	From        string `json:"from" yaml:"from" mapstructure:"from" validate:"required_if=Enabled true"`
	WebhookPath string `json:"webhookPath" yaml:"webhookPath" mapstructure:"webhookPath"`
	APIBase     string `json:"apiBase,omitempty" yaml:"apiBase,omitempty" mapstructure:"apiBase"`
}

type WebsocketConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
	// Tokens maps login tokens to user ids.
	Tokens map[string]string `json:"tokens" yaml:"tokens" mapstructure:"tokens" validate:"required_if=Enabled true"`
}

type DatabaseConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
	BotName string `json:"botName" yaml:"botName" mapstructure:"botName"`
	// File is a JSON lines file records are appended to; empty keeps them
	// in memory.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Pretty bool   `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
}

// StateDir returns the abstractbot state directory path.
// Can be overridden via ABSTRACTBOT_STATE_DIR environment variable.
// Default: ~/.abstractbot
func StateDir() string {
	if override := strings.TrimSpace(os.Getenv("ABSTRACTBOT_STATE_DIR")); override != "" {
		return expandPath(override)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".abstractbot"
	}
	return filepath.Join(home, ".abstractbot")
}

// ConfigPath returns the default config file path.
// Can be overridden via ABSTRACTBOT_CONFIG_PATH environment variable.
// Default: ~/.abstractbot/abstractbot.json
func ConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("ABSTRACTBOT_CONFIG_PATH")); override != "" {
		return expandPath(override)
	}
	return filepath.Join(StateDir(), "abstractbot.json")
}

// expandPath expands ~ to home directory and resolves the path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

// LoadViper loads the configuration into a Viper instance.
func LoadViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath := strings.TrimSpace(os.Getenv("ABSTRACTBOT_CONFIG_PATH")); configPath != "" {
		expandedPath := expandPath(configPath)
		fileInfo, err := os.Stat(expandedPath)
		if err == nil && fileInfo.IsDir() {
			v.SetConfigName("abstractbot")
			v.AddConfigPath(expandedPath)
		} else {
			v.SetConfigFile(expandedPath)
		}
	} else {
		// abstractbot.json, or .yaml
		v.SetConfigName("abstractbot")
		v.AddConfigPath(StateDir())
	}

	v.SetEnvPrefix("ABSTRACTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return v, nil
}

// Load reads the configuration from file and environment variables.
func Load() (*Config, error) {
	v, err := LoadViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Defaults returns the configuration used when no file exists.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := decode(v)
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	expandEnvVars(&cfg)
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.bodyLimit", "10M")
	v.SetDefault("server.healthPath", "/healthz")
	v.SetDefault("server.rateLimit.rps", 10)
	v.SetDefault("server.rateLimit.burst", 20)

	v.SetDefault("channels.telegram.webhookPath", "/telegram")
	v.SetDefault("channels.whatsapp.webhookPath", "/whatsapp")
	v.SetDefault("channels.messenger.webhookPath", "/messenger")
	v.SetDefault("channels.greenApi.webhookPath", "/green-api")
	v.SetDefault("channels.email.webhookPath", "/email")
	v.SetDefault("channels.websocket.path", "/ws")
	v.SetDefault("channels.database.path", "/messages")
	v.SetDefault("channels.database.botName", "bot")

	v.SetDefault("logging.level", "info")
}

// expandEnvVars expands ${VAR} references in secrets.
func expandEnvVars(cfg *Config) {
	cfg.Server.Domain = os.ExpandEnv(cfg.Server.Domain)

	ch := &cfg.Channels
	ch.Telegram.BotToken = os.ExpandEnv(ch.Telegram.BotToken)
	ch.WhatsApp.AccessToken = os.ExpandEnv(ch.WhatsApp.AccessToken)
	ch.WhatsApp.VerifyToken = os.ExpandEnv(ch.WhatsApp.VerifyToken)
	ch.Messenger.AccessToken = os.ExpandEnv(ch.Messenger.AccessToken)
	ch.Messenger.VerifyToken = os.ExpandEnv(ch.Messenger.VerifyToken)
	ch.GreenAPI.APITokenInstance = os.ExpandEnv(ch.GreenAPI.APITokenInstance)
	ch.Email.APIKey = os.ExpandEnv(ch.Email.APIKey)
}

// Save saves the configuration to ConfigPath as JSON.
func Save(cfg *Config) error {
	configPath := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}

var validate = validator.New()

// Validate checks for semantic errors in the config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}

// EnabledChannels lists the enabled channel names in startup order.
func (c *Config) EnabledChannels() []string {
	ch := c.Channels
	var names []string
	for _, e := range []struct {
		name    string
		enabled bool
	}{
		{"telegram", ch.Telegram.Enabled},
		{"whatsapp", ch.WhatsApp.Enabled},
		{"messenger", ch.Messenger.Enabled},
		{"greenApi", ch.GreenAPI.Enabled},
		{"email", ch.Email.Enabled},
		{"websocket", ch.Websocket.Enabled},
		{"database", ch.Database.Enabled},
	} {
		if e.enabled {
			names = append(names, e.name)
		}
	}
	return names
}
