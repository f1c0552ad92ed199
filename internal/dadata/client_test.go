package dadata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadgate/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.DaDataConfig{
		APIKey:         "key",
		SecretKey:      "secret",
		BaseURL:        srv.URL + "/",
		TimeoutSeconds: 2,
	})
}

func TestVerifyPhone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/clean/phone", r.URL.Path)
		assert.Equal(t, "Token key", r.Header.Get("Authorization"))
		assert.Equal(t, "secret", r.Header.Get("X-Secret"))

		var in []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, []string{"79161234567"}, in)

		w.Write([]byte(`[{"source":"79161234567","type":"Мобильный","phone":"+7 916 123-45-67",
			"provider":"ПАО \"Мобильные ТелеСистемы\"","country":"Россия","region":"Москва и Московская область",
			"timezone":"UTC+3","qc":0}]`))
	})

	info, err := c.VerifyPhone(context.Background(), "79161234567")
	require.NoError(t, err)
	assert.Equal(t, 0, info.QC)
	assert.Equal(t, "Мобильный", info.Type)
	assert.Equal(t, "Москва и Московская область", info.Region)
	assert.Equal(t, "UTC+3", info.Timezone)
}

func TestVerifyPhoneMissingQC(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"source":"abc","qc":null}]`))
	})
	info, err := c.VerifyPhone(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, info.QC)
}

func TestVerifyEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/clean/email", r.URL.Path)
		w.Write([]byte(`[{"source":"x@mailinator.com","email":"x@mailinator.com","type":"DISPOSABLE","qc":0}]`))
	})
	info, err := c.VerifyEmail(context.Background(), "x@mailinator.com")
	require.NoError(t, err)
	assert.Equal(t, 0, info.QC)
	assert.Equal(t, "DISPOSABLE", info.Type)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, "", func(t *testing.T, err error) {
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, http.StatusUnauthorized, se.Status)
			assert.Contains(t, err.Error(), "invalid api key")
		}},
		{"forbidden", http.StatusForbidden, "", func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), "out of funds")
		}},
		{"empty", http.StatusOK, `[]`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrEmptyResult)
		}},
		{"garbage", http.StatusOK, `<html>`, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), "decode")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.VerifyPhone(context.Background(), "79161234567")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(config.DaDataConfig{BaseURL: srv.URL, TimeoutSeconds: 1})
	c.httpClient = http.DefaultClient
	_, err := c.VerifyPhone(context.Background(), "79161234567")
	assert.Error(t, err)
}

func TestRateLimitedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "4")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	start := time.Now()
	_, err := c.VerifyPhone(context.Background(), "79161234567")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Equal(t, int32(1), calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}
