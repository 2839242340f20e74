package config

import (
	"os"
	"path/filepath"
)

const defaultConfigJSON = `{
  "server": {
    "domain": "https://bot.example.com",
    "port": 8080
  },
  "channels": {
    "telegram": {
      "enabled": false,
      "botToken": "${TELEGRAM_BOT_TOKEN}"
    },
    "websocket": {
      "enabled": false,
      "tokens": {}
    }
  },
  "logging": {
    "level": "info",
    "pretty": true
  }
}
`

// EnsureConfigFile writes a starter config if none exists and reports
// whether it did.
func EnsureConfigFile() (bool, error) {
	path := ConfigPath()
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(defaultConfigJSON), 0600); err != nil {
		return false, err
	}
	return true, nil
}
