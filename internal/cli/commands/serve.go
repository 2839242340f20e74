// Package commands provides CLI subcommands for abstractbot.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/liteclaw/abstractbot/internal/config"
	"github.com/liteclaw/abstractbot/internal/gateway"
	"github.com/liteclaw/abstractbot/internal/infra"
	"github.com/liteclaw/abstractbot/internal/logging"
)

// NewServeCommand creates the serve subcommand.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot server",
		Long:  `Start the webhook server for every enabled channel, or manage a running one.`,
		Example: `  abstractbot serve
  abstractbot serve --port 9090 -d
  abstractbot serve status`,
		RunE: runServe,
	}

	cmd.PersistentFlags().IntP("port", "p", 0, "Server port (overrides config)")
	cmd.PersistentFlags().String("host", "", "Server host (overrides config)")
	cmd.Flags().BoolP("detached", "d", false, "Run in background")

	cmd.AddCommand(newServeStopCommand())
	cmd.AddCommand(newServeStatusCommand())
	return cmd
}

func newServeStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Stop a background server",
		Example: `  abstractbot serve stop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeStop(cmd)
		},
	}
}

func newServeStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show server status",
		Example: `  abstractbot serve status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeStatus(cmd)
		},
	}
}

func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadServeConfig(cmd)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			fmt.Fprintln(out, "❌ No abstractbot config found.")
			fmt.Fprintln(out, "   Run: abstractbot config init")
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if detached, _ := cmd.Flags().GetBool("detached"); detached {
		return startDetached(cmd, cfg)
	}

	if err := infra.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	lockPath := infra.ServeLockPath()
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("error checking lock file: %w", err)
	}
	if !locked {
		fmt.Fprintln(out, "❌ Error: abstractbot is already running.")
		fmt.Fprintf(out, "   Lock file found at: %s\n", lockPath)
		fmt.Fprintln(out, "   Only one server may run per state dir, since webhooks can point at one place only.")
		return fmt.Errorf("server already running")
	}
	defer func() { _ = fileLock.Unlock() }()

	if err := writeServePID(); err != nil {
		return err
	}
	defer func() { _ = removeServePID() }()

	fmt.Fprintf(out, "Starting abstractbot on %s:%d (%s)\n", cfg.Server.Host, cfg.Server.Port, strings.Join(cfg.EnabledChannels(), ", "))

	if os.Getenv("ABSTRACTBOT_SKIP_SERVE") == "true" {
		fmt.Fprintln(out, "Skipping actual server start for testing.")
		return nil
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	server, err := gateway.New(cfg, gateway.WithLogger(logger.With().Str("component", "gateway").Logger()))
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	return server.Run(commandContext(cmd))
}

func startDetached(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	if err := ensureNotRunning(); err != nil {
		return err
	}

	if err := infra.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	logPath := infra.ServeLogPath()
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	executable, err := os.Executable()
	if err != nil {
		executable = "abstractbot"
	}
	c := exec.Command(executable, "serve",
		"--port", strconv.Itoa(cfg.Server.Port),
		"--host", cfg.Server.Host)
	c.Stdout = logFile
	c.Stderr = logFile
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}

	fmt.Fprintf(out, "abstractbot started in background (PID: %d)\n", c.Process.Pid)
	fmt.Fprintf(out, "Logs: %s\n", logPath)
	return nil
}

func runServeStop(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	pid, err := readServePID()
	if err != nil {
		return fmt.Errorf("server not running (pid file missing)")
	}
	if !checkProcessRunning(pid) {
		_ = removeServePID()
		return fmt.Errorf("server process not running (stale pid file)")
	}
	if err := terminateProcess(pid); err != nil {
		return fmt.Errorf("failed to stop server (pid %d): %w", pid, err)
	}

	fmt.Fprintf(out, "Sent stop signal to server (PID %d)\n", pid)
	waitForProcessExit(pid, 3*time.Second)
	return nil
}

type healthStatus struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func runServeStatus(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	status, err := fetchHealth(commandContext(cmd), cfg)
	if err != nil {
		fmt.Fprintln(out, "Server: not running")
		return nil
	}
	fmt.Fprintf(out, "Server: %s (uptime %s)\n", status.Status, status.Uptime)
	return nil
}

func fetchHealth(ctx context.Context, cfg *config.Config) (*healthStatus, error) {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	var status healthStatus
	resp, err := resty.New().
		SetTimeout(time.Second).
		R().
		SetContext(ctx).
		SetResult(&status).
		Get(fmt.Sprintf("http://%s:%d%s", host, cfg.Server.Port, cfg.Server.HealthPath))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("health check: status %d", resp.StatusCode())
	}
	return &status, nil
}

func writeServePID() error {
	return os.WriteFile(infra.ServePIDPath(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readServePID() (int, error) {
	data, err := os.ReadFile(infra.ServePIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file")
	}
	return pid, nil
}

func removeServePID() error {
	return os.Remove(infra.ServePIDPath())
}

func ensureNotRunning() error {
	if err := infra.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	fileLock := flock.New(infra.ServeLockPath())
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("error checking lock file: %w", err)
	}
	if !locked {
		return fmt.Errorf("server already running")
	}
	_ = fileLock.Unlock()
	return nil
}
