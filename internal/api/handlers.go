// Package api serves the lead intake endpoints, the form webhooks and the
// operator endpoints.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/leadgate/internal/intake"
	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/leadlog"
	"github.com/ignite/leadgate/internal/pkg/httputil"
	"github.com/ignite/leadgate/internal/report"
	"github.com/ignite/leadgate/internal/store"
)

// Decider returns the outcome for one submission.
type Decider interface {
	Decide(ctx context.Context, sub lead.Submission) lead.Outcome
}

// OutcomeStats reads the persisted outcome log.
type OutcomeStats interface {
	DailyStats(ctx context.Context, day time.Time) (leadlog.DayStats, error)
	PhoneHistory(ctx context.Context, normalizedPhone string) (leadlog.PhoneHistory, error)
}

// BlacklistStore is the operator view of the placement blacklist.
type BlacklistStore interface {
	List(ctx context.Context) ([]store.BlacklistEntry, error)
	Add(ctx context.Context, p lead.Placement, reason string, ttl time.Duration) (bool, error)
	Remove(ctx context.Context, p lead.Placement) (bool, error)
}

// ReportBuilder builds the quality report on demand.
type ReportBuilder interface {
	Build(ctx context.Context) (report.QualityReport, error)
}

// BlacklistRefresher runs the refresh job on demand.
type BlacklistRefresher interface {
	RunOnce(ctx context.Context) (int, error)
}

// Deps are the collaborators of the handlers. Only Gate is required; the
// endpoints of a missing collaborator answer 503.
type Deps struct {
	Gate         Decider
	Phones       intake.PhoneVerifier
	Outcomes     OutcomeStats
	Blacklist    BlacklistStore
	BlacklistTTL time.Duration
	Reports      ReportBuilder
	Refresher    BlacklistRefresher
	Health       *HealthChecker
	Metrics      http.Handler
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	deps   Deps
	health *HealthChecker
	now    func() time.Time
}

// NewHandlers creates the handlers.
func NewHandlers(deps Deps) *Handlers {
	health := deps.Health
	if health == nil {
		health = NewHealthChecker(nil, nil)
	}
	if deps.BlacklistTTL <= 0 {
		deps.BlacklistTTL = 21 * 24 * time.Hour
	}
	return &Handlers{deps: deps, health: health, now: time.Now}
}

// SubmitLead decides one JSON submission. Every decodable request gets a
// 200 with the outcome, rejections included.
//
//	POST /api/lead
func (h *Handlers) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var sub lead.Submission
	if !httputil.Decode(w, r, &sub) {
		return
	}
	h.decide(w, r, sub)
}

func (h *Handlers) decide(w http.ResponseWriter, r *http.Request, sub lead.Submission) {
	if sub.ClientIP == "" {
		sub.ClientIP = ClientIP(r)
	}
	if sub.UserAgent == "" {
		sub.UserAgent = r.UserAgent()
	}
	if sub.Referer == "" {
		sub.Referer = r.Referer()
	}
	out := h.deps.Gate.Decide(r.Context(), sub)
	httputil.OK(w, out.Response())
}

// LeadHealth is the liveness probe of the intake endpoint.
//
//	GET /api/lead/health
func (h *Handlers) LeadHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok", "service": "leadgate"})
}

// ClientIP resolves the submitter address: CF-Connecting-IP, the first
// X-Forwarded-For entry, X-Real-IP, then the peer address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
