// Package graph is a small client for the Meta Graph API, shared by the
// WhatsApp Cloud and Messenger channels.
package graph

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

// DefaultBase is the Graph API version the channels are written against.
const DefaultBase = "https://graph.facebook.com/v24.0"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Error is the error object Graph returns on failure.
type Error struct {
	Status    int    `json:"-"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("graph API error: %d %s (code: %d)", e.Status, e.Message, e.Code)
}

type errorEnvelope struct {
	Error *Error `json:"error"`
}

// Client calls the Graph API with a bearer token. Requests are retried twice
// on transport errors, 429 and 5xx.
type Client struct {
	http    *resty.Client
	uploads *resty.Client
}

// NewClient creates a client. An empty base means DefaultBase.
func NewClient(base, accessToken string, retryWait time.Duration) *Client {
	if base == "" {
		base = DefaultBase
	}
	if retryWait <= 0 {
		retryWait = 500 * time.Millisecond
	}
	base = strings.TrimRight(base, "/")
	c := resty.New().
		SetHostURL(base).
		SetAuthToken(accessToken).
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal

	uploads := resty.New().
		SetHostURL(base).
		SetAuthToken(accessToken).
		SetTimeout(5 * time.Minute)
	uploads.JSONUnmarshal = json.Unmarshal
	return &Client{http: c, uploads: uploads}
}

// Post sends body as JSON to path and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	req := c.http.R().SetContext(ctx).SetBody(body)
	if out != nil {
		req.SetResult(out)
	}
	return check(req.Post(path))
}

// Get decodes the JSON at path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return check(c.http.R().SetContext(ctx).SetResult(out).Get(path))
}

// Download fetches an absolute URL with the bearer token, as media URLs
// require.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return resp.Body(), nil
}

// Upload posts a multipart file plus form fields to path. It is not retried
// since the body reader is consumed by the first attempt.
func (c *Client) Upload(ctx context.Context, path, field, filename, contentType string, data []byte, fields map[string]string, out any) error {
	resp, err := c.uploads.R().
		SetContext(ctx).
		SetFormData(fields).
		SetMultipartField(field, filename, contentType, bytes.NewReader(data)).
		SetResult(out).
		Post(path)
	return check(resp, err)
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	var env errorEnvelope
	if json.Unmarshal(resp.Body(), &env) == nil && env.Error != nil {
		env.Error.Status = resp.StatusCode()
		return env.Error
	}
	return &Error{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
}
