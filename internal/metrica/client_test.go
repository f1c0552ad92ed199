package metrica

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadgate/internal/config"
)

func TestQualityLeadUpload(t *testing.T) {
	var rows [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/management/v1/counter/12345/offline_conversions/upload", r.URL.Path)
		assert.Equal(t, "OAuth tok", r.Header.Get("Authorization"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "conversions.csv", hdr.Filename)

		rows, err = csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		w.Write([]byte(`{"uploading":{"id":77,"status":"UPLOADED"}}`))
	}))
	defer srv.Close()

	c := NewClient(config.MetricaConfig{CounterID: "12345", Token: "tok", Goal: "quality_lead", BaseURL: srv.URL})
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	require.NoError(t, c.QualityLead(context.Background(), "1700000000123456789", at))

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"ClientId", "Target", "DateTime"}, rows[0])
	assert.Equal(t, []string{"1700000000123456789", "quality_lead", "2026-05-04 12:30:00"}, rows[1])
}

func TestUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"error_type":"access_denied"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.MetricaConfig{CounterID: "1", Token: "bad", Goal: "g", BaseURL: srv.URL})
	err := c.QualityLead(context.Background(), "cid", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUploadNothing(t *testing.T) {
	c := NewClient(config.MetricaConfig{BaseURL: "http://127.0.0.1:1"})
	assert.NoError(t, c.Upload(context.Background(), nil))
}
