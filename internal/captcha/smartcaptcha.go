// Package captcha validates Yandex SmartCaptcha tokens server-side.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/pkg/httpretry"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

type validateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Host    string `json:"host"`
}

// SmartCaptcha implements intake.CaptchaVerifier.
type SmartCaptcha struct {
	serverKey  string
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// New creates a verifier for the given server key. Verify is not retried.
func New(cfg config.CaptchaConfig) *SmartCaptcha {
	return &SmartCaptcha{
		serverKey:  cfg.ServerKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// Verify reports whether token passed the challenge. An error means the
// service could not answer, not that the token is bad.
func (s *SmartCaptcha) Verify(ctx context.Context, token, clientIP string) (bool, error) {
	params := url.Values{}
	params.Set("secret", s.serverKey)
	params.Set("token", token)
	if clientIP != "" {
		params.Set("ip", clientIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/validate?"+params.Encode(), nil)
	if err != nil {
		return false, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("smartcaptcha: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, fmt.Errorf("smartcaptcha: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("smartcaptcha: status %d: %s", resp.StatusCode, body)
	}

	var out validateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("smartcaptcha: decode: %w", err)
	}
	if out.Status != "ok" {
		logger.Info("captcha rejected", "message", out.Message, "ip", clientIP)
		return false, nil
	}
	return true, nil
}
