package bouncer

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
)

func newForwardClient() *resty.Client {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	return client
}

func (s *Server) deferredURL() string {
	return strings.TrimRight(s.config.Domain, "/") + DeferredPath
}

// forward posts task back to this server's deferred endpoint without waiting
// for the result. Delivery is at most once; failures are only logged.
func (s *Server) forward(task Task) {
	s.forwards.Add(1)
	go func() {
		defer s.forwards.Done()

		resp, err := s.client.R().
			SetContext(context.Background()).
			SetBody(task).
			Post(s.deferredURL())
		if err != nil {
			s.metrics.forwards.WithLabelValues("error").Inc()
			s.logger.Error().Err(err).
				Str("method", task.Address.Method).
				Str("url", task.Address.URL).
				Msg("Failed to forward deferred task")
			return
		}
		if resp.IsError() {
			s.metrics.forwards.WithLabelValues("rejected").Inc()
			s.logger.Error().
				Int("status", resp.StatusCode()).
				Str("method", task.Address.Method).
				Str("url", task.Address.URL).
				Msg("Deferred task rejected")
			return
		}
		s.metrics.forwards.WithLabelValues("ok").Inc()
	}()
}
