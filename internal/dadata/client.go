// Package dadata is the client for the DaData Clean API, which standardizes
// phones and emails and grades them with a quality code.
package dadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/pkg/httpretry"
)

// ErrEmptyResult is returned when the API answers 200 with no records.
var ErrEmptyResult = errors.New("dadata: empty result")

// StatusError is a non-200 answer. 401 and 403 are credential or billing
// problems and never succeed on retry.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	switch e.Status {
	case http.StatusUnauthorized:
		return "dadata: invalid api key or secret"
	case http.StatusForbidden:
		return "dadata: account not confirmed or out of funds"
	case http.StatusTooManyRequests:
		return "dadata: rate limit exceeded"
	}
	return fmt.Sprintf("dadata: status %d: %s", e.Status, e.Body)
}

// Phone is one record of /clean/phone.
type Phone struct {
	Source   string `json:"source"`
	Type     string `json:"type"`
	Phone    string `json:"phone"`
	Provider string `json:"provider"`
	Country  string `json:"country"`
	Region   string `json:"region"`
	City     string `json:"city"`
	Timezone string `json:"timezone"`
	QC       *int   `json:"qc"`
}

// Email is one record of /clean/email.
type Email struct {
	Source string `json:"source"`
	Email  string `json:"email"`
	Local  string `json:"local"`
	Domain string `json:"domain"`
	Type   string `json:"type"`
	QC     *int   `json:"qc"`
}

// Client calls the Clean API. It implements intake.PhoneVerifier and
// intake.EmailVerifier.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a client. Calls are made once with no retry: they sit
// on the request path, and the gate's fail policy covers a provider that
// does not answer in time.
func NewClient(cfg config.DaDataConfig) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// CleanPhone standardizes one phone.
func (c *Client) CleanPhone(ctx context.Context, phone string) (*Phone, error) {
	var out []Phone
	if err := c.post(ctx, "/api/v1/clean/phone", phone, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return &out[0], nil
}

// CleanEmail standardizes one email.
func (c *Client) CleanEmail(ctx context.Context, email string) (*Email, error) {
	var out []Email
	if err := c.post(ctx, "/api/v1/clean/email", email, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return &out[0], nil
}

// VerifyPhone maps CleanPhone onto the lead model. A record without qc is
// treated as garbage (qc 2).
func (c *Client) VerifyPhone(ctx context.Context, phone string) (lead.PhoneInfo, error) {
	p, err := c.CleanPhone(ctx, phone)
	if err != nil {
		return lead.PhoneInfo{}, err
	}
	return lead.PhoneInfo{
		QC:       qcOr(p.QC, 2),
		Type:     p.Type,
		Provider: p.Provider,
		Region:   p.Region,
		Country:  p.Country,
		Timezone: p.Timezone,
	}, nil
}

// VerifyEmail maps CleanEmail onto the lead model.
func (c *Client) VerifyEmail(ctx context.Context, email string) (lead.EmailInfo, error) {
	e, err := c.CleanEmail(ctx, email)
	if err != nil {
		return lead.EmailInfo{}, err
	}
	return lead.EmailInfo{QC: qcOr(e.QC, 2), Type: e.Type}, nil
}

func qcOr(qc *int, def int) int {
	if qc == nil {
		return def
	}
	return *qc
}

func (c *Client) post(ctx context.Context, path, value string, dst any) error {
	body, err := json.Marshal([]string{value})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("X-Secret", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dadata %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("dadata %s: read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("dadata %s: decode: %w", path, err)
	}
	return nil
}
