package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/pkg/httpretry"
)

// maxMessageRunes is the Bot API limit for one message.
const maxMessageRunes = 4096

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// APIError is a Bot API answer with ok=false.
type APIError struct {
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: [%d] %s", e.Code, e.Description)
}

// Telegram posts messages to one chat, paced by a token bucket so bursts
// of leads stay under the per-chat flood limit.
type Telegram struct {
	baseURL    string
	token      string
	chatID     string
	httpClient httpretry.HTTPDoer
	limiter    *rate.Limiter
}

// NewTelegram creates a sender from config.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 10 * time.Second,
		}, 2),
		limiter: rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), 1),
	}
}

// Send delivers text as Markdown. It blocks for the rate limiter.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  truncate(text, maxMessageRunes),
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// the URL carries the bot token
		return fmt.Errorf("telegram: sendMessage failed: %s", redactToken(err.Error(), t.token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("telegram: read body: %w", err)
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, raw)
	}
	if !out.OK {
		return &APIError{
			Code:        out.ErrorCode,
			Description: out.Description,
			RetryAfter:  time.Duration(out.Parameters.RetryAfter) * time.Second,
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}
