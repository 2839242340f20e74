package greenapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

const defaultAPIBase = "https://api.green-api.com"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client calls the GreenAPI REST API of one instance.
type Client struct {
	idInstance string
	token      string
	http       *resty.Client
}

// NewClient creates a new GreenAPI client.
func NewClient(idInstance, token, apiBase string, retryWait time.Duration) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if retryWait <= 0 {
		retryWait = 500 * time.Millisecond
	}
	c := resty.New().
		SetHostURL(strings.TrimRight(apiBase, "/")).
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	return &Client{idInstance: idInstance, token: token, http: c}
}

func (c *Client) path(method string) string {
	return "/waInstance" + c.idInstance + "/" + method + "/" + c.token
}

func (c *Client) do(ctx context.Context, httpMethod, method string, body, out any) error {
	req := c.http.R().SetContext(ctx).SetResult(out)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(httpMethod, c.path(method))
	if err != nil {
		return fmt.Errorf("green-api %s: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("green-api %s: %d %s", method, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	return nil
}

type messageResponse struct {
	IDMessage string `json:"idMessage"`
}

// SendMessage sends text to a phone number and returns the message id.
func (c *Client) SendMessage(ctx context.Context, phone, text string) (string, error) {
	var out messageResponse
	err := c.do(ctx, http.MethodPost, "sendMessage", map[string]any{
		"chatId":  chatID(phone),
		"message": text,
	}, &out)
	return out.IDMessage, err
}

// SendFileByURL sends a file GreenAPI downloads from url.
func (c *Client) SendFileByURL(ctx context.Context, phone, url, fileName, caption string) (string, error) {
	var out messageResponse
	err := c.do(ctx, http.MethodPost, "sendFileByUrl", map[string]any{
		"chatId":   chatID(phone),
		"urlFile":  url,
		"fileName": fileName,
		"caption":  caption,
	}, &out)
	return out.IDMessage, err
}

// SetWebhook points the instance notifications at url.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	var out struct {
		SaveSettings bool `json:"saveSettings"`
	}
	if err := c.do(ctx, http.MethodPost, "setSettings", map[string]any{"webhookUrl": url}, &out); err != nil {
		return err
	}
	if !out.SaveSettings {
		return fmt.Errorf("green-api setSettings: settings not saved")
	}
	return nil
}

// State returns the instance state, "authorized" when usable.
func (c *Client) State(ctx context.Context) (string, error) {
	var out struct {
		StateInstance string `json:"stateInstance"`
	}
	err := c.do(ctx, http.MethodGet, "getStateInstance", nil, &out)
	return out.StateInstance, err
}
