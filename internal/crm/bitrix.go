// Package crm looks up existing Bitrix24 contacts for accepted leads so
// downstream consumers can attach the lead instead of creating a duplicate.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/pkg/httpretry"
)

type findByCommRequest struct {
	Type       string   `json:"type"`
	Values     []string `json:"values"`
	EntityType string   `json:"entity_type"`
}

type findByCommResponse struct {
	// Result is {"CONTACT":[ids]} on a hit and [] when nothing matched.
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// Bitrix implements intake.ContactFinder over an inbound webhook URL.
type Bitrix struct {
	webhookURL string
	httpClient httpretry.HTTPDoer
}

// NewBitrix creates a client for the webhook in cfg.
func NewBitrix(cfg config.CRMConfig) *Bitrix {
	return &Bitrix{
		webhookURL: strings.TrimRight(cfg.WebhookURL, "/"),
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 1),
	}
}

// FindContact returns the id of a contact matching the phone, then the
// email, or "" when there is none.
func (b *Bitrix) FindContact(ctx context.Context, phone, email string) (string, error) {
	if digits := datanorm.DigitsOnly(phone); len(digits) >= 10 {
		id, err := b.findByComm(ctx, "PHONE", digits)
		if err != nil || id != "" {
			return id, err
		}
	}
	if email != "" {
		return b.findByComm(ctx, "EMAIL", strings.ToLower(strings.TrimSpace(email)))
	}
	return "", nil
}

func (b *Bitrix) findByComm(ctx context.Context, kind, value string) (string, error) {
	body, err := json.Marshal(findByCommRequest{Type: kind, Values: []string{value}, EntityType: "CONTACT"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.webhookURL+"/crm.duplicate.findbycomm.json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("bitrix findbycomm: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("bitrix findbycomm: read body: %w", err)
	}
	var out findByCommResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("bitrix findbycomm: status %d: %s", resp.StatusCode, raw)
	}
	if out.Error != "" {
		return "", fmt.Errorf("bitrix findbycomm: %s: %s", out.Error, out.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bitrix findbycomm: status %d", resp.StatusCode)
	}
	return firstContact(out.Result), nil
}

func firstContact(result json.RawMessage) string {
	var byEntity map[string][]json.Number
	if err := json.Unmarshal(result, &byEntity); err != nil {
		return ""
	}
	ids := byEntity["CONTACT"]
	if len(ids) == 0 {
		return ""
	}
	if n, err := ids[0].Int64(); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ids[0].String()
}
