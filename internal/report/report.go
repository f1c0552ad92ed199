// Package report builds the periodic traffic quality report and ships it
// to Telegram and object storage.
package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/leadgate/internal/analytics"
	"github.com/ignite/leadgate/internal/store"
)

// Stats is the aggregator view the report reads and optionally resets.
type Stats interface {
	Report(ctx context.Context, opts analytics.ReportOptions) (analytics.Report, error)
	Reset(ctx context.Context) error
}

// Entries lists the live placement blacklist.
type Entries interface {
	List(ctx context.Context) ([]store.BlacklistEntry, error)
}

// QualityReport is the aggregator report plus the current blacklist.
type QualityReport struct {
	analytics.Report
	Blacklist   []store.BlacklistEntry `json:"blacklist"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// Builder assembles QualityReports.
type Builder struct {
	stats     Stats
	blacklist Entries
	opts      analytics.ReportOptions
	now       func() time.Time
}

// NewBuilder creates a builder. blacklist may be nil when no store is
// configured.
func NewBuilder(stats Stats, blacklist Entries, opts analytics.ReportOptions) *Builder {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	return &Builder{stats: stats, blacklist: blacklist, opts: opts, now: time.Now}
}

// Build fetches the counters and the blacklist concurrently.
func (b *Builder) Build(ctx context.Context) (QualityReport, error) {
	var rep QualityReport
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := b.stats.Report(gCtx, b.opts)
		if err != nil {
			return fmt.Errorf("aggregator report: %w", err)
		}
		rep.Report = r
		return nil
	})
	if b.blacklist != nil {
		g.Go(func() error {
			entries, err := b.blacklist.List(gCtx)
			if err != nil {
				return fmt.Errorf("blacklist list: %w", err)
			}
			rep.Blacklist = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return QualityReport{}, err
	}
	if rep.Blacklist == nil {
		rep.Blacklist = []store.BlacklistEntry{}
	}
	rep.GeneratedAt = b.now().UTC()
	return rep, nil
}

// Filename names the Excel attachment for a report.
func Filename(r QualityReport) string {
	return fmt.Sprintf("quality_report_%s.xlsx", r.GeneratedAt.Format("20060102_150405"))
}
