// Package blacklist periodically turns bad placements into blacklist
// entries and alerts about sources that are heading that way.
package blacklist

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ignite/leadgate/internal/analytics"
	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/pkg/distlock"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

const (
	DefaultMinLeads      = 10
	DefaultRejectionRate = 70.0
	DefaultTTL           = 21 * 24 * time.Hour
	DefaultInterval      = 24 * time.Hour
	DefaultAlertCooldown = 24 * time.Hour
)

// Sources yields the placements over a rejection threshold.
type Sources interface {
	BadSources(ctx context.Context, minLeads int, minRate float64) ([]analytics.SourceStats, error)
}

// Store adds entries without extending existing ones.
type Store interface {
	Add(ctx context.Context, p lead.Placement, reason string, ttl time.Duration) (bool, error)
}

// Alerter receives bad-source alerts and blacklist announcements.
type Alerter interface {
	BadSource(ctx context.Context, s analytics.SourceStats) error
	Blacklisted(ctx context.Context, s analytics.SourceStats, ttl time.Duration) error
}

// Counter is told about every new entry.
type Counter interface {
	BlacklistAdded()
}

// Options configures a Refresher. Zero values take the defaults above.
type Options struct {
	MinLeads      int
	RejectionRate float64
	TTL           time.Duration
	Interval      time.Duration

	// Alerts are sent for sources at or above these thresholds. A zero
	// AlertMinLeads disables them.
	AlertMinLeads int
	AlertRate     float64
	AlertCooldown time.Duration

	Alerter Alerter
	Counter Counter
	// Lock keeps Start single-instance across processes. Nil runs unguarded.
	Lock distlock.DistLock
}

// Refresher is the blacklist refresh job.
type Refresher struct {
	sources Sources
	store   Store
	opts    Options

	now       func() time.Time
	mu        sync.Mutex
	lastAlert map[string]time.Time
}

// NewRefresher creates a refresher.
func NewRefresher(sources Sources, store Store, opts Options) *Refresher {
	if opts.MinLeads <= 0 {
		opts.MinLeads = DefaultMinLeads
	}
	if opts.RejectionRate <= 0 {
		opts.RejectionRate = DefaultRejectionRate
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.AlertCooldown <= 0 {
		opts.AlertCooldown = DefaultAlertCooldown
	}
	return &Refresher{
		sources:   sources,
		store:     store,
		opts:      opts,
		now:       time.Now,
		lastAlert: make(map[string]time.Time),
	}
}

// Reason renders the stored reason of an automatic entry.
func Reason(s analytics.SourceStats) string {
	return fmt.Sprintf("rejection_rate_%.1f%%_leads_%d_rejected_%d", s.RejectionRate(), s.TotalLeads, s.RejectedLeads)
}

// RunOnce sends due alerts, then blacklists every qualifying placement that
// is not listed yet. It returns how many entries were added. A failure on
// one placement does not stop the others; the first error is returned.
func (r *Refresher) RunOnce(ctx context.Context) (int, error) {
	if r.opts.Alerter != nil && r.opts.AlertMinLeads > 0 {
		r.alert(ctx)
	}

	bad, err := r.sources.BadSources(ctx, r.opts.MinLeads, r.opts.RejectionRate)
	if err != nil {
		return 0, fmt.Errorf("bad sources: %w", err)
	}

	var added int
	var firstErr error
	for _, s := range bad {
		ok, err := r.store.Add(ctx, s.Placement, Reason(s), r.opts.TTL)
		if err != nil {
			logger.Error("blacklist add failed", "placement", s.Placement.Key(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("add %s: %w", s.Placement.Key(), err)
			}
			continue
		}
		if !ok {
			continue
		}
		added++
		logger.Info("placement blacklisted",
			"placement", s.Placement.Key(),
			"rejection_rate", fmt.Sprintf("%.1f", s.RejectionRate()),
			"total", s.TotalLeads,
		)
		if r.opts.Counter != nil {
			r.opts.Counter.BlacklistAdded()
		}
		if r.opts.Alerter != nil {
			if err := r.opts.Alerter.Blacklisted(ctx, s, r.opts.TTL); err != nil {
				logger.Warn("blacklist announcement failed", "placement", s.Placement.Key(), "error", err)
			}
		}
	}
	return added, firstErr
}

func (r *Refresher) alert(ctx context.Context) {
	warn, err := r.sources.BadSources(ctx, r.opts.AlertMinLeads, r.opts.AlertRate)
	if err != nil {
		logger.Warn("bad source alert query failed", "error", err)
		return
	}
	now := r.now()
	r.mu.Lock()
	for key, last := range r.lastAlert {
		if now.Sub(last) >= r.opts.AlertCooldown {
			delete(r.lastAlert, key)
		}
	}
	r.mu.Unlock()

	for _, s := range warn {
		key := s.Placement.Key()
		r.mu.Lock()
		last, seen := r.lastAlert[key]
		due := !seen || now.Sub(last) >= r.opts.AlertCooldown
		if due {
			r.lastAlert[key] = now
		}
		r.mu.Unlock()
		if !due {
			continue
		}
		if err := r.opts.Alerter.BadSource(ctx, s); err != nil {
			logger.Warn("bad source alert failed", "placement", key, "error", err)
		}
	}
}

// Start runs RunOnce immediately and then on every interval. It blocks
// until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	log.Printf("[BlacklistRefresher] Starting (interval=%s, min_leads=%d, rate=%.0f%%)",
		r.opts.Interval, r.opts.MinLeads, r.opts.RejectionRate)

	r.tick(ctx)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[BlacklistRefresher] Stopping")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	lock := r.opts.Lock
	if lock == nil {
		lock = distlock.NewLock(nil, nil, "", 0)
	}
	var added int
	ran, err := distlock.Run(ctx, lock, func(ctx context.Context) error {
		var err error
		added, err = r.RunOnce(ctx)
		return err
	})
	switch {
	case err != nil:
		log.Printf("[BlacklistRefresher] Refresh failed: %v", err)
	case !ran:
		log.Println("[BlacklistRefresher] Another instance holds the lock, skipping")
	default:
		log.Printf("[BlacklistRefresher] Refresh completed, %d new placements", added)
	}
}
