// Package main provides the entry point for the abstractbot CLI.
package main

import (
	"os"

	"github.com/liteclaw/abstractbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
