package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadgate/internal/lead"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestDecisionCounters(t *testing.T) {
	m := New()
	m.Decision(lead.Accept("id", 0, nil, nil, nil, 20*time.Millisecond))
	m.Decision(lead.Reject(*lead.NewReason(lead.CodeDuplicatePhone), 0, nil, nil, nil, time.Millisecond))
	m.Decision(lead.Reject(*lead.PhoneQC(2), 0, nil, nil, nil, time.Millisecond))
	m.Decision(lead.Reject(*lead.PhoneQC(3), 0, nil, nil, nil, time.Millisecond))

	body := scrape(t, m)
	assert.Contains(t, body, `leadgate_decisions_total{reason="none",result="accepted"} 1`)
	assert.Contains(t, body, `leadgate_decisions_total{reason="duplicate_phone",result="rejected"} 1`)
	assert.Contains(t, body, `leadgate_decisions_total{reason="invalid_phone_qc",result="rejected"} 2`)
	assert.Contains(t, body, `leadgate_decision_seconds_count 4`)
}

func TestDependencyAndBlacklistCounters(t *testing.T) {
	m := New()
	m.DependencyFailed("verification")
	m.DependencyFailed("verification")
	m.DependencyFailed("dedup")
	m.BlacklistAdded()

	body := scrape(t, m)
	assert.Contains(t, body, `leadgate_dependency_errors_total{dependency="verification"} 2`)
	assert.Contains(t, body, `leadgate_dependency_errors_total{dependency="dedup"} 1`)
	assert.Contains(t, body, `leadgate_blacklist_added_total 1`)
	assert.Contains(t, body, `go_goroutines`)
}
