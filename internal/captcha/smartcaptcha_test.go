package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadgate/internal/config"
)

func newVerifier(t *testing.T, h http.HandlerFunc) *SmartCaptcha {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.CaptchaConfig{ServerKey: "srv-key", BaseURL: srv.URL, TimeoutSeconds: 2})
}

func TestVerifyOK(t *testing.T) {
	s := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "srv-key", q.Get("secret"))
		assert.Equal(t, "tok", q.Get("token"))
		assert.Equal(t, "203.0.113.9", q.Get("ip"))
		w.Write([]byte(`{"status":"ok","message":"","host":"example.ru"}`))
	})

	ok, err := s.Verify(context.Background(), "tok", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejected(t *testing.T) {
	s := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("ip"))
		w.Write([]byte(`{"status":"failed","message":"Token invalid or expired."}`))
	})

	ok, err := s.Verify(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyServiceError(t *testing.T) {
	s := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"failed","message":"Authentication failed. Secret has not provided."}`))
	})

	ok, err := s.Verify(context.Background(), "tok", "")
	assert.Error(t, err)
	assert.False(t, ok)
}
