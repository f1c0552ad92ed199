package leadlog

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/lib/pq"
)

const (
	DefaultRetentionInterval = time.Hour
	retentionBatchSize       = 10000
)

// RetentionWorker deletes lead_outcomes rows older than the retention
// window in bounded batches.
type RetentionWorker struct {
	db        *sql.DB
	retention time.Duration
	interval  time.Duration
	pause     time.Duration
}

// NewRetentionWorker keeps rows for retentionDays days.
func NewRetentionWorker(db *sql.DB, retentionDays int) *RetentionWorker {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &RetentionWorker{
		db:        db,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  DefaultRetentionInterval,
		pause:     100 * time.Millisecond,
	}
}

// Start runs a cleanup immediately and then every interval until ctx is
// cancelled.
func (rw *RetentionWorker) Start(ctx context.Context) {
	log.Printf("[LeadLogRetention] Starting (retention=%s, interval=%s)", rw.retention, rw.interval)

	rw.Cleanup(ctx)

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LeadLogRetention] Stopping")
			return
		case <-ticker.C:
			rw.Cleanup(ctx)
		}
	}
}

// Cleanup deletes expired rows batch by batch and returns how many went.
// A missing table is not an error: migrations may not have run yet.
func (rw *RetentionWorker) Cleanup(ctx context.Context) int64 {
	cutoff := time.Now().Add(-rw.retention).UTC()
	var total int64

	for ctx.Err() == nil {
		queryCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		res, err := rw.db.ExecContext(queryCtx, `
			DELETE FROM lead_outcomes
			WHERE id IN (
				SELECT id FROM lead_outcomes
				WHERE created_at < $1
				LIMIT $2
			)
		`, cutoff, retentionBatchSize)
		cancel()

		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
				log.Println("[LeadLogRetention] Table lead_outcomes does not exist, skipping")
				return total
			}
			log.Printf("[LeadLogRetention] Error deleting expired outcomes: %v", err)
			return total
		}

		affected, _ := res.RowsAffected()
		if affected == 0 {
			break
		}
		total += affected
		time.Sleep(rw.pause)
	}

	if total > 0 {
		log.Printf("[LeadLogRetention] Removed %d outcomes older than %s", total, rw.retention)
	}
	return total
}
