// Package leadlog persists every gate decision to PostgreSQL for audits
// and the admin statistics endpoint.
package leadlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/lead"
)

// DayStats summarizes one UTC day of decisions.
type DayStats struct {
	Date     string           `json:"date"`
	Total    int64            `json:"total"`
	Accepted int64            `json:"accepted"`
	Rejected int64            `json:"rejected"`
	ByReason map[string]int64 `json:"by_reason"`
}

// PhoneHistory summarizes past decisions for one phone.
type PhoneHistory struct {
	Total     int64      `json:"total"`
	Accepted  int64      `json:"accepted"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	LastError string     `json:"last_reason,omitempty"`
}

// Repo implements intake.OutcomeLog against PostgreSQL.
type Repo struct{ db *sql.DB }

// Open connects and pings the database.
func Open(ctx context.Context, url string, maxOpen int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewRepo creates a Postgres-backed outcome log.
func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// Log stores one decision. Phone and email are hashed the same way the
// dedup store hashes them.
func (r *Repo) Log(ctx context.Context, sub lead.Submission, out lead.Outcome, at time.Time) error {
	var emailHash string
	if email := datanorm.NormalizeEmail(sub.Email); email != "" {
		emailHash = datanorm.HashIdentity(email)
	}
	var qc sql.NullInt64
	if out.Phone != nil {
		qc = sql.NullInt64{Int64: int64(out.Phone.QC), Valid: true}
	}
	var leadID sql.NullString
	if out.LeadID != "" {
		leadID = sql.NullString{String: out.LeadID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_outcomes (
			id, lead_id, accepted, reason, risk_score, warnings, annotations,
			phone_hash, email_hash, client_ip, placement,
			utm_source, utm_medium, utm_campaign, utm_content,
			phone_qc, elapsed_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		uuid.New().String(), leadID, out.Accepted, out.ReasonString(), out.RiskScore,
		pq.Array(nonNil(out.Warnings)), pq.Array(nonNil(out.Annotations)),
		datanorm.HashIdentity(datanorm.NormalizePhone(sub.Phone)), emailHash, sub.ClientIP,
		sub.UTM.Placement().Key(),
		sub.Source, sub.Medium, sub.Campaign, sub.Content,
		qc, out.Elapsed.Milliseconds(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert lead outcome: %w", err)
	}
	return nil
}

// DailyStats returns the totals and the rejection histogram for the UTC day
// containing day.
func (r *Repo) DailyStats(ctx context.Context, day time.Time) (DayStats, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	stats := DayStats{Date: from.Format("2006-01-02"), ByReason: map[string]int64{}}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE accepted),
		       COUNT(*) FILTER (WHERE NOT accepted)
		FROM lead_outcomes
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&stats.Total, &stats.Accepted, &stats.Rejected)
	if err != nil {
		return DayStats{}, fmt.Errorf("daily totals: %w", err)
	}
	if stats.Rejected == 0 {
		return stats, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT reason, COUNT(*)
		FROM lead_outcomes
		WHERE NOT accepted AND created_at >= $1 AND created_at < $2
		GROUP BY reason
	`, from, to)
	if err != nil {
		return DayStats{}, fmt.Errorf("daily reasons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reason string
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			return DayStats{}, fmt.Errorf("scan daily reasons: %w", err)
		}
		stats.ByReason[reason] = n
	}
	return stats, rows.Err()
}

// PhoneHistory summarizes decisions for a normalized phone.
func (r *Repo) PhoneHistory(ctx context.Context, normalizedPhone string) (PhoneHistory, error) {
	var h PhoneHistory
	var last sql.NullTime
	var reason sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE accepted),
		       MAX(created_at),
		       (SELECT reason FROM lead_outcomes WHERE phone_hash = $1 ORDER BY created_at DESC LIMIT 1)
		FROM lead_outcomes
		WHERE phone_hash = $1
	`, datanorm.HashIdentity(normalizedPhone)).Scan(&h.Total, &h.Accepted, &last, &reason)
	if err != nil {
		return PhoneHistory{}, fmt.Errorf("phone history: %w", err)
	}
	if last.Valid {
		t := last.Time
		h.LastSeen = &t
	}
	h.LastError = reason.String
	return h, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
