// Package gateway wires the configured channels to a bouncer and runs them
// until the process is asked to stop.
package gateway

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/liteclaw/abstractbot/extensions/database"
	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Option customizes a Server.
type Option func(*Server)

// WithTaskHandler replaces EchoHandler.
func WithTaskHandler(h bot.TaskHandler) Option {
	return func(s *Server) { s.handler = h }
}

// WithLogger replaces the gateway logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithStore sets the database channel store.
func WithStore(store database.Storer) Option {
	return func(s *Server) { s.store = store }
}

// Server represents the abstractbot gateway.
type Server struct {
	config   *config.Config
	logger   zerolog.Logger
	handler  bot.TaskHandler
	store    database.Storer
	registry *channels.Registry
	bouncer  *bouncer.Server

	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// New creates a gateway for cfg. Channels are built but not started.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		config:  cfg,
		logger:  log.Logger.With().Str("component", "gateway").Logger(),
		handler: EchoHandler,
	}
	for _, opt := range opts {
		opt(s)
	}

	registry, err := BuildRegistry(cfg, s.handler, s.store, s.logger)
	if err != nil {
		return nil, err
	}
	s.registry = registry

	endpoints := s.registry.Endpoints()
	if cfg.Server.HealthPath != "" {
		endpoints = append([]bouncer.Endpoint{bouncer.Health(cfg.Server.HealthPath)}, endpoints...)
	}
	bopts := append([]bouncer.Option{bouncer.WithLogger(s.logger)}, s.registry.Routes()...)
	s.bouncer = bouncer.New(&bouncer.Config{
		Domain:      cfg.Server.Domain,
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		BodyLimit:   cfg.Server.BodyLimit,
		MetricsPath: cfg.Server.MetricsPath,
		RateLimit: bouncer.RateLimit{
			Enabled: cfg.Server.RateLimit.Enabled,
			RPS:     cfg.Server.RateLimit.RPS,
			Burst:   cfg.Server.RateLimit.Burst,
		},
	}, endpoints, bopts...)
	return s, nil
}

// Registry returns the channel registry.
func (s *Server) Registry() *channels.Registry { return s.registry }

// Handler exposes the bouncer as an http.Handler.
func (s *Server) Handler() http.Handler { return s.bouncer.Handler() }

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string { return s.bouncer.Addr() }

// Start starts every channel and begins listening. It returns once the port
// is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("gateway already running")
	}
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	if err := s.registry.StartAll(ctx); err != nil {
		s.setStopped()
		return err
	}
	if err := s.bouncer.Listen(); err != nil {
		_ = s.registry.StopAll(ctx)
		s.setStopped()
		return err
	}
	s.logger.Info().
		Str("addr", s.Addr()).
		Int("channels", len(s.registry.All())).
		Msg("Gateway started")
	return nil
}

// Run starts the gateway and blocks until ctx is done or SIGINT/SIGTERM
// arrives, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	s.printStartupBanner()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// A terminal in raw mode delivers Ctrl+C as byte 0x03 instead of SIGINT.
	manualQuit := make(chan struct{}, 1)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		go func() {
			reader := bufio.NewReader(os.Stdin)
			for {
				b, err := reader.ReadByte()
				if err != nil {
					return
				}
				if b == 3 {
					manualQuit <- struct{}{}
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case <-quit:
	case <-manualQuit:
	}

	s.logger.Info().Msg("Shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, then stops every channel.
func (s *Server) Shutdown(ctx context.Context) error {
	bErr := s.bouncer.Close(ctx)
	cErr := s.registry.StopAll(ctx)
	s.setStopped()

	if bErr != nil {
		return fmt.Errorf("server shutdown failed: %w", bErr)
	}
	if cErr != nil {
		return fmt.Errorf("channel shutdown failed: %w", cErr)
	}
	s.logger.Info().Msg("Gateway stopped")
	return nil
}

func (s *Server) setStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Server) printStartupBanner() {
	fmt.Println()
	fmt.Println("  abstractbot gateway")
	fmt.Println("  ===================")
	fmt.Printf("  ✓ Listening on http://%s\n", s.Addr())
	fmt.Printf("  ✓ Public domain: %s\n", s.config.Server.Domain)
	for _, ch := range s.registry.All() {
		fmt.Printf("  ✓ Channel: %s\n", ch.Name())
	}
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()
}

// IsRunning returns whether the gateway is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the gateway has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startTime)
}
