// Package telegram implements gateway.Gateway over the Telegram Bot API and
// turns Bot API updates into gateway events. Outbound calls share one token
// bucket so broadcasts stay under Telegram's flood limits.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tbourn/flatmate-bot/internal/gateway"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// APIError is a Bot API call that returned ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// IsNotModified reports whether err is Telegram refusing a no-op edit.
func IsNotModified(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && strings.Contains(ae.Description, "message is not modified")
}

// Options configures a Client.
type Options struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	// SendRPS and SendBurst size the outbound token bucket. SendRPS <= 0
	// disables throttling.
	SendRPS   float64
	SendBurst int
	Logger    zerolog.Logger
}

// Client talks to the Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	log        zerolog.Logger
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient builds a client. It does not contact Telegram.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		// Long polling holds requests open; the poll timeout is added per call.
		opts.HTTPClient = &http.Client{Timeout: 75 * time.Second}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.SendRPS > 0 {
		burst := opts.SendBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.SendRPS), burst)
	}
	return &Client{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		limiter:    limiter,
		log:        opts.Logger,
	}, nil
}

// call POSTs payload as JSON to method and decodes the result into out
// (which may be nil).
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL embeds the token; never log or return it.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("telegram %s: parse response (status %d): %w", method, resp.StatusCode, err)
	}
	c.log.Debug().Str("method", method).Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).Msg("telegram call")
	if !r.Ok {
		ae := &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
		if r.Parameters != nil {
			ae.RetryAfter = time.Duration(r.Parameters.RetryAfter) * time.Second
		}
		return ae
	}
	if out != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// send waits for the outbound bucket before calling method.
func (c *Client) send(ctx context.Context, method string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.call(ctx, method, payload, out)
}

func inlineMarkup(menu gateway.Menu) *InlineKeyboardMarkup {
	m := &InlineKeyboardMarkup{InlineKeyboard: make([][]InlineKeyboardButton, 0, len(menu))}
	for _, row := range menu {
		r := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		m.InlineKeyboard = append(m.InlineKeyboard, r)
	}
	return m
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, "sendMessage", sendMessageRequest{
		ChatID: chatID, Text: text, ParseMode: "HTML", DisableWebPagePreview: true,
	}, nil)
}

func (c *Client) SendMenu(ctx context.Context, chatID int64, text string, menu gateway.Menu) (gateway.MessageRef, error) {
	var m Message
	err := c.send(ctx, "sendMessage", sendMessageRequest{
		ChatID: chatID, Text: text, ParseMode: "HTML", ReplyMarkup: inlineMarkup(menu),
	}, &m)
	if err != nil {
		return gateway.MessageRef{}, err
	}
	return gateway.MessageRef{ChatID: m.Chat.ID, MessageID: m.MessageID}, nil
}

func (c *Client) SendKeyboard(ctx context.Context, chatID int64, text string, keys [][]string) error {
	kb := ReplyKeyboardMarkup{ResizeKeyboard: true}
	for _, row := range keys {
		r := make([]KeyboardButton, 0, len(row))
		for _, k := range row {
			r = append(r, KeyboardButton{Text: k})
		}
		kb.Keyboard = append(kb.Keyboard, r)
	}
	return c.send(ctx, "sendMessage", sendMessageRequest{
		ChatID: chatID, Text: text, ParseMode: "HTML", ReplyMarkup: kb,
	}, nil)
}

func (c *Client) EditMenu(ctx context.Context, ref gateway.MessageRef, menu gateway.Menu) error {
	err := c.send(ctx, "editMessageReplyMarkup", editReplyMarkupRequest{
		ChatID: ref.ChatID, MessageID: ref.MessageID, ReplyMarkup: inlineMarkup(menu),
	}, nil)
	if IsNotModified(err) {
		return nil
	}
	return err
}

func (c *Client) ClearMenu(ctx context.Context, ref gateway.MessageRef) error {
	err := c.send(ctx, "editMessageReplyMarkup", editReplyMarkupRequest{
		ChatID: ref.ChatID, MessageID: ref.MessageID,
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}},
	}, nil)
	if IsNotModified(err) {
		return nil
	}
	return err
}

func (c *Client) AnswerPress(ctx context.Context, pressID, text string) error {
	// Acknowledgements bypass the bucket: Telegram shows a spinner until
	// they arrive.
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: pressID, Text: text}, nil)
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var out []Update
	err := c.call(ctx, "getUpdates", getUpdatesRequest{
		Offset: offset, Timeout: int(timeout / time.Second), AllowedUpdates: allowedUpdates,
	}, &out)
	return out, err
}

// SetWebhook registers hookURL for push delivery. Telegram echoes secret in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) SetWebhook(ctx context.Context, hookURL, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL: hookURL, SecretToken: secret, AllowedUpdates: allowedUpdates,
	}, nil)
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.call(ctx, "deleteWebhook", deleteWebhookRequest{DropPendingUpdates: dropPending}, nil)
}
