// Package analytics counts decisions per placement and derives the
// bad-source list and the quality report from those counters.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/leadgate/internal/lead"
)

// SourceStats are the counters of one placement.
type SourceStats struct {
	Placement     lead.Placement   `json:"placement"`
	Key           string           `json:"key"`
	TotalLeads    int64            `json:"total_leads"`
	RejectedLeads int64            `json:"rejected_leads"`
	Reasons       map[string]int64 `json:"rejection_reasons,omitempty"`
}

// RejectionRate is the rejected share in percent, 0 when nothing was seen.
func (s SourceStats) RejectionRate() float64 {
	if s.TotalLeads == 0 {
		return 0
	}
	return float64(s.RejectedLeads) * 100 / float64(s.TotalLeads)
}

// Snapshot is a consistent copy of all counters.
type Snapshot struct {
	PeriodStart time.Time
	Sources     []SourceStats
}

// Backend stores the counters. Implementations must make Record safe for
// concurrent use.
type Backend interface {
	Record(ctx context.Context, p lead.Placement, rejected bool, reason string) error
	Snapshot(ctx context.Context) (Snapshot, error)
	Reset(ctx context.Context) error
}

// ReasonCount is one bar of the rejection histogram.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// Report is the period summary handed to the scheduled report.
type Report struct {
	PeriodStart   time.Time     `json:"period_start"`
	PeriodEnd     time.Time     `json:"period_end"`
	TotalLeads    int64         `json:"total_leads"`
	RejectedLeads int64         `json:"rejected_leads"`
	RejectionRate float64       `json:"rejection_rate"`
	SourceCount   int           `json:"source_count"`
	BadSources    []SourceStats `json:"bad_sources"`
	TopReasons    []ReasonCount `json:"top_reasons"`
}

// ReportOptions selects which sources count as bad in a report.
type ReportOptions struct {
	TopN             int
	MinLeads         int
	MinRejectionRate float64
}

// Aggregator is the process-wide view over a Backend.
type Aggregator struct {
	backend Backend
	now     func() time.Time
}

// New wraps a backend.
func New(backend Backend) *Aggregator {
	return &Aggregator{backend: backend, now: time.Now}
}

// Record counts one decision for the placement.
func (a *Aggregator) Record(ctx context.Context, p lead.Placement, rejected bool, reason string) error {
	return a.backend.Record(ctx, p.Normalized(), rejected, reason)
}

// BadSources returns placements with at least minLeads leads and a
// rejection rate of at least minRate percent, worst first.
func (a *Aggregator) BadSources(ctx context.Context, minLeads int, minRate float64) ([]SourceStats, error) {
	snap, err := a.backend.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return filterBad(snap.Sources, minLeads, minRate), nil
}

// Report summarizes the current period without clearing it.
func (a *Aggregator) Report(ctx context.Context, opts ReportOptions) (Report, error) {
	snap, err := a.backend.Snapshot(ctx)
	if err != nil {
		return Report{}, err
	}

	now := a.now().UTC()
	rep := Report{
		PeriodStart: snap.PeriodStart,
		PeriodEnd:   now,
		SourceCount: len(snap.Sources),
	}
	if rep.PeriodStart.IsZero() {
		rep.PeriodStart = now
	}

	reasons := make(map[string]int64)
	for _, s := range snap.Sources {
		rep.TotalLeads += s.TotalLeads
		rep.RejectedLeads += s.RejectedLeads
		for r, n := range s.Reasons {
			reasons[r] += n
		}
	}
	if rep.TotalLeads > 0 {
		rep.RejectionRate = float64(rep.RejectedLeads) * 100 / float64(rep.TotalLeads)
	}

	rep.BadSources = filterBad(snap.Sources, opts.MinLeads, opts.MinRejectionRate)
	rep.TopReasons = make([]ReasonCount, 0, len(reasons))
	for r, n := range reasons {
		rep.TopReasons = append(rep.TopReasons, ReasonCount{Reason: r, Count: n})
	}
	sort.Slice(rep.TopReasons, func(i, j int) bool {
		if rep.TopReasons[i].Count != rep.TopReasons[j].Count {
			return rep.TopReasons[i].Count > rep.TopReasons[j].Count
		}
		return rep.TopReasons[i].Reason < rep.TopReasons[j].Reason
	})
	if opts.TopN > 0 {
		if len(rep.BadSources) > opts.TopN {
			rep.BadSources = rep.BadSources[:opts.TopN]
		}
		if len(rep.TopReasons) > opts.TopN {
			rep.TopReasons = rep.TopReasons[:opts.TopN]
		}
	}
	return rep, nil
}

// Reset clears every counter and starts a new period.
func (a *Aggregator) Reset(ctx context.Context) error {
	return a.backend.Reset(ctx)
}

func filterBad(sources []SourceStats, minLeads int, minRate float64) []SourceStats {
	bad := make([]SourceStats, 0)
	for _, s := range sources {
		if s.TotalLeads >= int64(minLeads) && s.RejectionRate() >= minRate {
			bad = append(bad, s)
		}
	}
	sort.Slice(bad, func(i, j int) bool {
		ri, rj := bad[i].RejectionRate(), bad[j].RejectionRate()
		if ri != rj {
			return ri > rj
		}
		if bad[i].TotalLeads != bad[j].TotalLeads {
			return bad[i].TotalLeads > bad[j].TotalLeads
		}
		return bad[i].Key < bad[j].Key
	})
	return bad
}
