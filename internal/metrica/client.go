// Package metrica uploads offline conversions to Yandex Metrica so ad
// campaigns can optimize for leads that passed validation.
package metrica

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/pkg/httpretry"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

// Conversion is one row of the upload.
type Conversion struct {
	ClientID string
	Target   string
	At       time.Time
}

type uploadResponse struct {
	Uploading struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"uploading"`
}

// Client implements intake.ConversionSignal.
type Client struct {
	baseURL    string
	counterID  string
	token      string
	goal       string
	location   *time.Location
	httpClient httpretry.HTTPDoer
}

// NewClient creates a client. Conversion times are written in Moscow time,
// the zone Metrica counters default to.
func NewClient(cfg config.MetricaConfig) *Client {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		counterID: cfg.CounterID,
		token:     cfg.Token,
		goal:      cfg.Goal,
		location:  loc,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 15 * time.Second,
		}, 2),
	}
}

// QualityLead reports a lead that passed every check.
func (c *Client) QualityLead(ctx context.Context, clientID string, at time.Time) error {
	return c.Upload(ctx, []Conversion{{ClientID: clientID, Target: c.goal, At: at}})
}

// Upload sends conversions as one CSV file.
func (c *Client) Upload(ctx context.Context, rows []Conversion) error {
	if len(rows) == 0 {
		return nil
	}
	body, contentType, err := c.multipartCSV(rows)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/management/v1/counter/%s/offline_conversions/upload", c.baseURL, c.counterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metrica upload: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrica upload: status %d: %s", resp.StatusCode, raw)
	}
	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err == nil {
		logger.Info("metrica conversions uploaded", "upload_id", out.Uploading.ID, "rows", len(rows))
	}
	return nil
}

func (c *Client) multipartCSV(rows []Conversion) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "conversions.csv")
	if err != nil {
		return nil, "", err
	}

	w := csv.NewWriter(part)
	w.Write([]string{"ClientId", "Target", "DateTime"})
	for _, r := range rows {
		w.Write([]string{r.ClientID, r.Target, r.At.In(c.location).Format("2006-01-02 15:04:05")})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
