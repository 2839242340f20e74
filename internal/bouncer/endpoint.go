package bouncer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// DeferredPath is where bounced tasks are re-delivered.
const DeferredPath = "/abstract-bot-api-deferred"

// Address identifies an endpoint: request method plus pathname.
type Address struct {
	Method string `json:"method" validate:"required"`
	URL    string `json:"url" validate:"required,startswith=/"`
}

// Task is the envelope posted to DeferredPath.
type Task struct {
	Address Address `json:"address"`
	Payload any     `json:"payload"`
}

// Predicate selects the requests an endpoint handles.
type Predicate func(Address) bool

// Handler processes a parsed payload. JSON bodies arrive as map[string]any
// with numbers as encoding/json.Number, so {"a":1} gives
// map[string]any{"a": json.Number("1")}. Form and query values are strings,
// or []string when a key repeats. See writeResult for how the result is
// rendered for non-bounce endpoints.
type Handler func(ctx context.Context, payload any) (any, error)

// Endpoint is one routing entry. Endpoints are matched in order and the first
// whose predicate returns true wins.
type Endpoint struct {
	Name      string
	Predicate Predicate
	Bounce    bool
	Handler   Handler
}

// Route matches an exact method and path.
func Route(method, path string) Predicate {
	return func(a Address) bool {
		return a.Method == method && a.URL == path
	}
}

// Any matches every request.
func Any() Predicate {
	return func(Address) bool { return true }
}

// Response lets a non-bounce handler pick status, content type and body.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

func (r Response) write(c echo.Context) error {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	if len(r.Body) == 0 {
		return c.NoContent(status)
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = echo.MIMETextPlainCharsetUTF8
	}
	return c.Blob(status, contentType, r.Body)
}

// Typed adapts a handler that wants a concrete payload type.
func Typed[T any](fn func(ctx context.Context, payload T) (any, error)) Handler {
	return func(ctx context.Context, payload any) (any, error) {
		var v T
		if err := Decode(payload, &v); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return fn(ctx, v)
	}
}

// StaticFile serves body on GET path.
func StaticFile(path, contentType string, body []byte) Endpoint {
	return Endpoint{
		Name:      "static " + path,
		Predicate: Route(http.MethodGet, path),
		Handler: func(context.Context, any) (any, error) {
			return Response{Status: http.StatusOK, ContentType: contentType, Body: body}, nil
		},
	}
}

type verification struct {
	Mode      string `json:"hub.mode"`
	Token     string `json:"hub.verify_token"`
	Challenge string `json:"hub.challenge"`
}

// VerifyWebhook answers the Graph API subscription handshake on GET path.
func VerifyWebhook(path, verifyToken string) Endpoint {
	return Endpoint{
		Name:      "verify " + path,
		Predicate: Route(http.MethodGet, path),
		Handler: Typed(func(_ context.Context, v verification) (any, error) {
			if v.Mode != "subscribe" || verifyToken == "" || v.Token != verifyToken {
				return Response{Status: http.StatusNotFound}, nil
			}
			return Response{Status: http.StatusOK, ContentType: echo.MIMETextPlain, Body: []byte(v.Challenge)}, nil
		}),
	}
}

// Health reports liveness on GET path.
func Health(path string) Endpoint {
	started := time.Now()
	return Endpoint{
		Name:      "health",
		Predicate: Route(http.MethodGet, path),
		Handler: func(context.Context, any) (any, error) {
			return map[string]any{
				"status": "ok",
				"uptime": time.Since(started).Round(time.Second).String(),
			}, nil
		},
	}
}
