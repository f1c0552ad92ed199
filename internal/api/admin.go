package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/leadgate/internal/blacklist"
	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/intake"
	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/pkg/httputil"
	"github.com/ignite/leadgate/internal/pkg/logger"
	"github.com/ignite/leadgate/internal/report"
)

var qcDescriptions = map[int]string{
	0: "Телефон распознан уверенно",
	1: "Телефон распознан с допущениями",
	2: "Телефон не распознан",
	3: "Найдено несколько телефонов",
	7: "Иностранный телефон",
}

// LeadStats returns the outcome totals of one day (default today, UTC).
//
//	GET /api/lead/stats?date=YYYY-MM-DD
func (h *Handlers) LeadStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Outcomes == nil {
		httputil.Unavailable(w, "outcome log is not configured")
		return
	}
	day := h.now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.BadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	stats, err := h.deps.Outcomes.DailyStats(r.Context(), day)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// CheckPhone verifies a phone with the provider without creating a lead.
//
//	GET /api/lead/check-phone?phone=
func (h *Handlers) CheckPhone(w http.ResponseWriter, r *http.Request) {
	phone := datanorm.NormalizePhone(r.URL.Query().Get("phone"))
	if phone == "" {
		httputil.BadRequest(w, "phone is required")
		return
	}
	if h.deps.Phones == nil {
		httputil.Unavailable(w, "phone verification is not configured")
		return
	}

	resp := map[string]interface{}{"phone": phone}
	if h.deps.Outcomes != nil {
		if hist, err := h.deps.Outcomes.PhoneHistory(r.Context(), phone); err == nil {
			resp["history"] = hist
		} else {
			logger.Warn("phone history lookup failed", "error", err)
		}
	}

	info, err := h.deps.Phones.VerifyPhone(r.Context(), phone)
	if err != nil {
		logger.Warn("manual phone check failed", "phone", phone, "error", err)
		resp["success"] = false
		resp["error"] = "verification provider unavailable"
		httputil.OK(w, resp)
		return
	}

	description, ok := qcDescriptions[info.QC]
	if !ok {
		description = "Неизвестно"
	}
	resp["success"] = true
	resp["is_valid"] = intake.PhoneDecision(info.QC) == nil
	resp["qc"] = info.QC
	resp["qc_description"] = description
	resp["type"] = info.Type
	resp["provider"] = info.Provider
	resp["region"] = info.Region
	resp["country"] = info.Country
	resp["timezone"] = info.Timezone
	httputil.OK(w, resp)
}

// QualityReport renders the current report.
//
//	GET /api/reports/quality?format=json|excel
func (h *Handlers) QualityReport(w http.ResponseWriter, r *http.Request) {
	if h.deps.Reports == nil {
		httputil.Unavailable(w, "reports are not configured")
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != "json" && format != "excel" {
		httputil.BadRequest(w, "format must be json or excel")
		return
	}

	rep, err := h.deps.Reports.Build(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if format == "excel" {
		data, err := report.Excel(rep)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.Attachment(w, report.ContentTypeExcel, report.Filename(rep), data)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, rep); err != nil {
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ListBlacklist lists live entries.
//
//	GET /api/reports/blacklist
func (h *Handlers) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	if h.deps.Blacklist == nil {
		httputil.Unavailable(w, "blacklist store is not configured")
		return
	}
	entries, err := h.deps.Blacklist.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"count": len(entries), "placements": entries})
}

type blacklistRequest struct {
	lead.Placement
	Reason  string `json:"reason"`
	TTLDays int    `json:"ttl_days"`
}

// AddBlacklist blocks a placement by hand. An existing entry is kept
// unchanged.
//
//	POST /api/reports/blacklist
func (h *Handlers) AddBlacklist(w http.ResponseWriter, r *http.Request) {
	if h.deps.Blacklist == nil {
		httputil.Unavailable(w, "blacklist store is not configured")
		return
	}
	var req blacklistRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		httputil.BadRequest(w, "utm_source is required")
		return
	}
	if req.TTLDays < 0 {
		httputil.BadRequest(w, "ttl_days must not be negative")
		return
	}
	ttl := h.deps.BlacklistTTL
	if req.TTLDays > 0 {
		ttl = time.Duration(req.TTLDays) * 24 * time.Hour
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}

	p := req.Placement.Normalized()
	added, err := h.deps.Blacklist.Add(r.Context(), p, reason, ttl)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	logger.Info("placement blacklisted manually", "placement", p.Key(), "added", added)

	resp := map[string]interface{}{"added": added, "key": p.Key()}
	if added {
		httputil.Created(w, resp)
		return
	}
	httputil.OK(w, resp)
}

// RemoveBlacklist unblocks a placement given by utm_source, utm_campaign
// and utm_content query parameters.
//
//	DELETE /api/reports/blacklist
func (h *Handlers) RemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	if h.deps.Blacklist == nil {
		httputil.Unavailable(w, "blacklist store is not configured")
		return
	}
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("utm_source")) == "" {
		httputil.BadRequest(w, "utm_source is required")
		return
	}
	p := lead.Placement{
		Source:   q.Get("utm_source"),
		Campaign: q.Get("utm_campaign"),
		Content:  q.Get("utm_content"),
	}.Normalized()

	removed, err := h.deps.Blacklist.Remove(r.Context(), p)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !removed {
		httputil.NotFound(w, "placement is not blacklisted")
		return
	}
	logger.Info("placement removed from blacklist", "placement", p.Key())
	httputil.NoContent(w)
}

// RefreshBlacklist runs the refresh job now.
//
//	POST /api/reports/blacklist/refresh
func (h *Handlers) RefreshBlacklist(w http.ResponseWriter, r *http.Request) {
	if h.deps.Refresher == nil {
		httputil.Unavailable(w, "blacklist refresh is not configured")
		return
	}
	added, err := h.deps.Refresher.RunOnce(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"added": added})
}

var _ BlacklistRefresher = (*blacklist.Refresher)(nil)
