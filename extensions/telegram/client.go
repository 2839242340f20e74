package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/internal/htmlfmt"
)

const defaultAPIBase = "https://api.telegram.org"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is a Telegram Bot API client. API calls retry twice 500ms apart;
// file transfers retry twice 3s apart.
type Client struct {
	token   string
	apiBase string
	api     *resty.Client
	files   *resty.Client
	uploads *resty.Client
	logger  *zerolog.Logger
}

// NewClient creates a new Telegram client. An empty apiBase means the
// public Bot API.
func NewClient(token, apiBase string, retryWait, fileRetryWait time.Duration, logger *zerolog.Logger) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	apiBase = strings.TrimRight(apiBase, "/")
	if retryWait <= 0 {
		retryWait = 500 * time.Millisecond
	}
	if fileRetryWait <= 0 {
		fileRetryWait = 3 * time.Second
	}

	return &Client{
		token:   token,
		apiBase: apiBase,
		api:     newRestyClient(60*time.Second, retryWait).SetHostURL(apiBase + "/bot" + token),
		files:   newRestyClient(5*time.Minute, fileRetryWait),
		uploads: newRestyClient(5*time.Minute, fileRetryWait).SetRetryCount(0).SetHostURL(apiBase + "/bot" + token),
		logger:  logger,
	}
}

func newRestyClient(timeout, wait time.Duration) *resty.Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(wait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	return c
}

// call posts params to method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params map[string]any, out any) error {
	var apiResp tgbotapi.APIResponse
	req := c.api.R().
		SetContext(ctx).
		SetResult(&apiResp).
		SetError(&apiResp)
	if params != nil {
		req.SetBody(params)
	}
	_, err := req.Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return decodeResult(method, &apiResp, out)
}

func decodeResult(method string, apiResp *tgbotapi.APIResponse, out any) error {
	if !apiResp.Ok {
		return fmt.Errorf("telegram API error: %s: %s (code: %d)", method, apiResp.Description, apiResp.ErrorCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(apiResp.Result, out)
}

// GetMe returns information about the bot.
func (c *Client) GetMe(ctx context.Context) (*tgbotapi.User, error) {
	var user tgbotapi.User
	if err := c.call(ctx, "getMe", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SendHTML sends text with parse_mode HTML after sanitizing it.
func (c *Client) SendHTML(ctx context.Context, chatID int64, text string) (int, error) {
	return c.sendMessage(ctx, map[string]any{
		"chat_id":                  chatID,
		"text":                     htmlfmt.TelegramHTML(text),
		"parse_mode":               tgbotapi.ModeHTML,
		"disable_web_page_preview": true,
	})
}

// SendText sends text without formatting.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	return c.sendMessage(ctx, map[string]any{"chat_id": chatID, "text": text})
}

func (c *Client) sendMessage(ctx context.Context, params map[string]any) (int, error) {
	var msg tgbotapi.Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditText replaces a message's text, sanitized as HTML when html is set.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, html bool) error {
	params := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if html {
		params["text"] = htmlfmt.TelegramHTML(text)
		params["parse_mode"] = tgbotapi.ModeHTML
	}
	return c.call(ctx, "editMessageText", params, nil)
}

// SendChatAction shows an activity indicator such as "typing".
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.call(ctx, "sendChatAction", map[string]any{"chat_id": chatID, "action": action}, nil)
}

// SendAnimation sends a GIF by URL.
func (c *Client) SendAnimation(ctx context.Context, chatID int64, url string) (int, error) {
	var msg tgbotapi.Message
	if err := c.call(ctx, "sendAnimation", map[string]any{"chat_id": chatID, "animation": url}, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendPhotoURL sends a photo Telegram fetches itself.
func (c *Client) SendPhotoURL(ctx context.Context, chatID int64, url, caption string) (int, error) {
	params := map[string]any{"chat_id": chatID, "photo": url}
	if caption != "" {
		params["caption"] = caption
	}
	var msg tgbotapi.Message
	if err := c.call(ctx, "sendPhoto", params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendPhotoData uploads base64 image data. Data URLs are accepted.
func (c *Client) SendPhotoData(ctx context.Context, chatID int64, data, caption string) (int, error) {
	contentType := "image/jpeg"
	if strings.HasPrefix(data, "data:") {
		header, payload, ok := strings.Cut(data, ",")
		if !ok {
			return 0, fmt.Errorf("malformed data url")
		}
		contentType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		data = payload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, fmt.Errorf("decode photo: %w", err)
	}

	fields := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if caption != "" {
		fields["caption"] = caption
	}
	name := "photo" + extensionFor(contentType)
	return c.upload(ctx, "sendPhoto", "photo", name, contentType, raw, fields)
}

// SendVideo downloads url and uploads it as a video.
func (c *Client) SendVideo(ctx context.Context, chatID int64, url string) (int, error) {
	data, err := c.fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	fields := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	name := path.Base(strings.SplitN(url, "?", 2)[0])
	return c.upload(ctx, "sendVideo", "video", name, MimeFromPath(name), data, fields)
}

// upload posts a multipart file with the file retry policy. Each attempt
// needs a fresh reader, so the loop lives here instead of in resty.
func (c *Client) upload(ctx context.Context, method, field, filename, contentType string, data []byte, fields map[string]string) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.files.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(c.files.RetryWaitTime):
			}
		}
		var apiResp tgbotapi.APIResponse
		_, err := c.uploads.R().
			SetContext(ctx).
			SetFormData(fields).
			SetMultipartField(field, filename, contentType, bytes.NewReader(data)).
			SetResult(&apiResp).
			SetError(&apiResp).
			Post("/" + method)
		if err != nil {
			lastErr = fmt.Errorf("telegram %s: %w", method, err)
			continue
		}
		var msg tgbotapi.Message
		if err := decodeResult(method, &apiResp, &msg); err != nil {
			lastErr = err
			continue
		}
		return msg.MessageID, nil
	}
	return 0, lastErr
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*tgbotapi.File, error) {
	var file tgbotapi.File
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// Download fetches the content of a file id, returning its path too.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, "", fmt.Errorf("could not fetch file url: %w", err)
	}
	data, err := c.fetch(ctx, c.apiBase+"/file/bot"+c.token+"/"+file.FilePath)
	if err != nil {
		return nil, "", err
	}
	return data, file.FilePath, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.files.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("could not fetch file: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("could not fetch file: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// SetWebhook points Telegram at url.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	var apiResp tgbotapi.APIResponse
	_, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("url", url).
		SetResult(&apiResp).
		SetError(&apiResp).
		Get("/setWebhook")
	if err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	return decodeResult("setWebhook", &apiResp, nil)
}
