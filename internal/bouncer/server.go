// Package bouncer serves bot webhooks. Each request is matched against an
// ordered list of endpoints. Bounce endpoints are acknowledged at once and
// their work is re-delivered to the same process as a deferred task, so slow
// handlers never hold a platform's webhook call open.
package bouncer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/liteclaw/abstractbot/internal/bot"
)

// ErrAlreadyRunning is returned by Listen on a server that is listening.
var ErrAlreadyRunning = errors.New("bouncer already running")

var ack = map[string]string{"message": "Data received successfully"}

// RateLimit configures per-IP request limiting.
type RateLimit struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Config holds the bouncer configuration.
type Config struct {
	// Domain is the externally reachable base URL of this server, used to
	// re-deliver bounced tasks, e.g. "https://bot.example.com".
	Domain      string
	Host        string
	Port        int
	BodyLimit   string
	MetricsPath string
	RateLimit   RateLimit
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger replaces the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClient replaces the HTTP client used to forward bounced tasks.
func WithClient(client *resty.Client) Option {
	return func(s *Server) { s.client = client }
}

// WithRoute registers a raw echo route ahead of endpoint matching, for
// handlers that need the connection itself such as protocol upgrades.
func WithRoute(method, path string, h echo.HandlerFunc) Option {
	return func(s *Server) {
		s.routes = append(s.routes, route{method: method, path: path, handler: h})
	}
}

type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
}

// Server is a running or runnable bouncer.
type Server struct {
	config    *Config
	endpoints []Endpoint
	echo      *echo.Echo
	client    *resty.Client
	logger    zerolog.Logger
	metrics   *metrics
	routes    []route
	forwards  sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	started  time.Time
}

// New builds a server for endpoints without listening.
func New(cfg *Config, endpoints []Endpoint, opts ...Option) *Server {
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "10M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = serializer{}
	e.Validator = newStructValidator()

	s := &Server{
		config:    cfg,
		endpoints: append([]Endpoint(nil), endpoints...),
		echo:      e,
		client:    newForwardClient(),
		logger:    log.Logger.With().Str("component", "bouncer").Logger(),
		metrics:   newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e.HTTPErrorHandler = s.httpErrorHandler
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Start builds a server and starts listening on port. The returned server
// is accepting connections.
func Start(domain string, port int, endpoints []Endpoint, opts ...Option) (*Server, error) {
	s := New(&Config{Domain: domain, Port: port}, endpoints, opts...)
	if err := s.Listen(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Pre(cors)
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit(s.config.BodyLimit))
	s.echo.Use(s.rateLimit())
}

func (s *Server) setupRoutes() {
	for _, r := range s.routes {
		s.echo.Add(r.method, r.path, r.handler)
	}
	s.echo.Any("/", s.handleRequest)
	s.echo.Any("/*", s.handleRequest)
}

// Handler exposes the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Listen binds the configured address and serves in the background.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return ErrAlreadyRunning
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.started = time.Now()
	s.echo.Listener = ln

	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Int("endpoints", len(s.endpoints)).Msg("Bouncer listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Bouncer stopped")
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close waits for pending forwards to be delivered, then stops accepting
// requests and waits for in-flight ones, including the deferred requests
// those forwards made. It returns once they finish or ctx expires; forwards
// still pending when ctx expires are lost.
func (s *Server) Close(ctx context.Context) error {
	var err error
	done := make(chan struct{})
	go func() {
		s.forwards.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.logger.Warn().Msg("Closing with bounced tasks still pending")
	}

	if serr := s.echo.Shutdown(ctx); serr != nil && err == nil {
		err = serr
	}

	s.mu.Lock()
	if s.listener != nil {
		s.logger.Info().Dur("uptime", time.Since(s.started)).Msg("Bouncer closed")
	}
	s.mu.Unlock()
	return err
}

func (s *Server) handleRequest(c echo.Context) error {
	req := c.Request()
	addr := Address{Method: req.Method, URL: req.URL.Path}

	switch {
	case addr.Method == http.MethodPost && addr.URL == DeferredPath:
		return s.handleDeferred(c)
	case s.config.MetricsPath != "" && addr.Method == http.MethodGet && addr.URL == s.config.MetricsPath:
		h := promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})
		h.ServeHTTP(c.Response(), req)
		return nil
	}

	payload, err := parsePayload(c)
	if err != nil {
		s.metrics.requests.WithLabelValues(outcomeParseError).Inc()
		s.logger.Warn().Err(err).Str("method", addr.Method).Str("url", addr.URL).Msg("Failed to parse request")
		return c.NoContent(http.StatusInternalServerError)
	}

	i, ok := s.match(addr)
	if !ok {
		s.metrics.requests.WithLabelValues(outcomeNotFound).Inc()
		return c.NoContent(http.StatusNotFound)
	}
	ep := s.endpoints[i]
	task := Task{Address: addr, Payload: payload}

	if ep.Bounce {
		s.metrics.requests.WithLabelValues(outcomeBounced).Inc()
		s.forward(task)
		return c.NoContent(http.StatusOK)
	}

	result, err := s.run(req.Context(), i, task)
	if err != nil {
		s.metrics.requests.WithLabelValues(outcomeHandlerFail).Inc()
		s.logger.Error().Err(err).Str("endpoint", s.label(i)).Str("url", addr.URL).Msg("Handler failed")
		return c.NoContent(http.StatusInternalServerError)
	}
	s.metrics.requests.WithLabelValues(outcomeHandled).Inc()
	return writeResult(c, result)
}

// handleDeferred runs a bounced task. The endpoint is resolved again from
// the task address and its handler runs directly, so a task is never
// bounced twice.
func (s *Server) handleDeferred(c echo.Context) error {
	var task Task
	if err := c.Echo().JSONSerializer.Deserialize(c, &task); err != nil {
		s.metrics.requests.WithLabelValues(outcomeParseError).Inc()
		s.logger.Warn().Err(err).Msg("Invalid deferred task")
		return c.NoContent(http.StatusInternalServerError)
	}
	if err := c.Validate(&task); err != nil {
		s.metrics.requests.WithLabelValues(outcomeParseError).Inc()
		s.logger.Warn().Err(err).Msg("Invalid deferred task")
		return c.NoContent(http.StatusInternalServerError)
	}

	i, ok := s.matchBounce(task.Address)
	if !ok {
		s.metrics.requests.WithLabelValues(outcomeNotFound).Inc()
		s.logger.Warn().
			Str("method", task.Address.Method).
			Str("url", task.Address.URL).
			Msg("No endpoint for deferred task")
		return c.NoContent(http.StatusNotFound)
	}

	// The forwarding client may hang up; accepted work still runs to the end.
	ctx := context.WithoutCancel(c.Request().Context())
	if _, err := s.run(ctx, i, task); err != nil {
		s.metrics.requests.WithLabelValues(outcomeHandlerFail).Inc()
		s.logger.Error().Err(err).Str("endpoint", s.label(i)).Str("url", task.Address.URL).Msg("Deferred handler failed")
		return c.NoContent(http.StatusInternalServerError)
	}
	s.metrics.requests.WithLabelValues(outcomeDeferred).Inc()
	return c.JSON(http.StatusOK, ack)
}

// match returns the index of the first endpoint whose predicate accepts addr.
func (s *Server) match(addr Address) (int, bool) {
	for i, ep := range s.endpoints {
		if ep.Predicate != nil && ep.Predicate(addr) {
			return i, true
		}
	}
	return 0, false
}

// matchBounce is match restricted to bounce endpoints. Only those can have
// produced a deferred task.
func (s *Server) matchBounce(addr Address) (int, bool) {
	for i, ep := range s.endpoints {
		if ep.Bounce && ep.Predicate != nil && ep.Predicate(addr) {
			return i, true
		}
	}
	return 0, false
}

func (s *Server) label(i int) string {
	if name := s.endpoints[i].Name; name != "" {
		return name
	}
	return "#" + strconv.Itoa(i)
}

func (s *Server) run(ctx context.Context, i int, task Task) (result any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		s.metrics.handlerDuration.WithLabelValues(s.label(i)).Observe(time.Since(start).Seconds())
	}()

	h := s.endpoints[i].Handler
	if h == nil {
		return nil, nil
	}
	return h(bot.WithURL(task.Address.URL).Apply(ctx), task.Payload)
}

func writeResult(c echo.Context, result any) error {
	switch v := result.(type) {
	case nil:
		return c.JSON(http.StatusOK, ack)
	case string:
		return c.String(http.StatusOK, v)
	case Response:
		return v.write(c)
	case *Response:
		if v == nil {
			return c.JSON(http.StatusOK, ack)
		}
		return v.write(c)
	default:
		return c.JSON(http.StatusOK, v)
	}
}

// httpErrorHandler answers every error with an empty body.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("url", c.Request().URL.Path).Msg("Request failed")
	}
	if err := c.NoContent(code); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write error response")
	}
}
