package commands

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/liteclaw/abstractbot/internal/config"
	"github.com/liteclaw/abstractbot/internal/infra"
)

func NewLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "logs",
		Short:   "View server logs (tail -f)",
		Long:    `Follow the log of a server started with serve --detached, or the configured logging.file.`,
		Example: `  abstractbot logs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile := logPath()
			if _, err := os.Stat(logFile); os.IsNotExist(err) {
				return fmt.Errorf("log file not found at %s. Is the server running in detached mode?", logFile)
			}

			cmd.Printf("Displaying logs from: %s\n", logFile)
			cmd.Println("Press Ctrl+C to exit.")
			cmd.Println("---")

			tailPath, err := exec.LookPath("tail")
			if err != nil {
				return fmt.Errorf("'tail' command not found in PATH")
			}

			c := exec.Command(tailPath, "-f", logFile)
			c.Stdout = cmd.OutOrStdout()
			c.Stderr = cmd.ErrOrStderr()
			return c.Run()
		},
	}
}

// logPath prefers logging.file from the config over the detached log.
func logPath() string {
	if cfg, err := config.Load(); err == nil && cfg.Logging.File != "" {
		return cfg.Logging.File
	}
	return infra.ServeLogPath()
}
