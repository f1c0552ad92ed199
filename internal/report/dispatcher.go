package report

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ignite/leadgate/internal/analytics"
	"github.com/ignite/leadgate/internal/pkg/distlock"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

const DefaultInterval = 7 * 24 * time.Hour

// Announcer posts the report summary.
type Announcer interface {
	Report(ctx context.Context, r analytics.Report, link string) error
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Interval time.Duration
	// Archive is optional; without it the summary goes out without a link.
	Archive Archive
	// ResetAfterDispatch clears the counters once the summary was delivered.
	ResetAfterDispatch bool
	Lock               distlock.DistLock
}

// Dispatcher is the scheduled report job.
type Dispatcher struct {
	builder   *Builder
	stats     Stats
	announcer Announcer
	opts      DispatcherOptions
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(builder *Builder, announcer Announcer, opts DispatcherOptions) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Dispatcher{builder: builder, stats: builder.stats, announcer: announcer, opts: opts}
}

// RunOnce builds and delivers one report. An upload failure only drops the
// link; a delivery failure keeps the counters for the next attempt.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	rep, err := d.builder.Build(ctx)
	if err != nil {
		return err
	}

	var link string
	if d.opts.Archive != nil {
		link, err = d.archive(ctx, rep)
		if err != nil {
			logger.Warn("report upload failed", "error", err)
		}
	}

	if err := d.announcer.Report(ctx, rep.Report, link); err != nil {
		return fmt.Errorf("deliver report: %w", err)
	}
	logger.Info("quality report sent",
		"total", rep.TotalLeads,
		"rejected", rep.RejectedLeads,
		"bad_sources", len(rep.BadSources),
		"archived", link != "",
	)

	if d.opts.ResetAfterDispatch {
		if err := d.stats.Reset(ctx); err != nil {
			return fmt.Errorf("reset counters: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) archive(ctx context.Context, rep QualityReport) (string, error) {
	data, err := Excel(rep)
	if err != nil {
		return "", err
	}
	return d.opts.Archive.Upload(ctx, Filename(rep), ContentTypeExcel, data)
}

// Start runs RunOnce on every interval until ctx is cancelled. The first
// report goes out one interval after start.
func (d *Dispatcher) Start(ctx context.Context) {
	log.Printf("[ReportDispatcher] Starting (interval=%s, reset=%v)", d.opts.Interval, d.opts.ResetAfterDispatch)

	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ReportDispatcher] Stopping")
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	lock := d.opts.Lock
	if lock == nil {
		lock = distlock.NewLock(nil, nil, "", 0)
	}
	ran, err := distlock.Run(ctx, lock, d.RunOnce)
	switch {
	case err != nil:
		log.Printf("[ReportDispatcher] Report failed: %v", err)
	case !ran:
		log.Println("[ReportDispatcher] Another instance holds the lock, skipping")
	default:
		log.Println("[ReportDispatcher] Report dispatched")
	}
}
