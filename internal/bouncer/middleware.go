package bouncer

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ", ")
	corsHeaders = strings.Join([]string{
		echo.HeaderContentType, echo.HeaderAuthorization,
	}, ", ")
)

// cors stamps the permissive CORS headers on every response and answers
// preflight requests before any endpoint is consulted. It runs as a Pre
// middleware so unmatched and failed requests carry the headers too.
func cors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
		h.Set(echo.HeaderAccessControlAllowMethods, corsMethods)
		h.Set(echo.HeaderAccessControlAllowHeaders, corsHeaders)
		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusNoContent)
		}
		return next(c)
	}
}

// requestLogger feeds echo's request logger into zerolog.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

// rateLimit limits requests per client IP. A zero RPS disables it.
func (s *Server) rateLimit() echo.MiddlewareFunc {
	rl := s.config.RateLimit
	if !rl.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	rps := rl.RPS
	if rps <= 0 {
		rps = 10
	}
	burst := rl.Burst
	if burst <= 0 {
		burst = 20
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			// Bounced tasks come back from this process.
			return c.Request().URL.Path == DeferredPath
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:  rate.Limit(rps),
				Burst: burst,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.NoContent(http.StatusForbidden)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.metrics.requests.WithLabelValues(outcomeLimited).Inc()
			return c.NoContent(http.StatusTooManyRequests)
		},
	})
}
