package intake

import (
	"context"
	"time"

	"github.com/ignite/leadgate/internal/lead"
)

// AnalyticsRecorder counts every decision per placement.
type AnalyticsRecorder interface {
	Record(ctx context.Context, p lead.Placement, rejected bool, reason string) error
}

// OutcomeLog persists decisions for later inspection.
type OutcomeLog interface {
	Log(ctx context.Context, sub lead.Submission, out lead.Outcome, at time.Time) error
}

// Observer receives decision metrics.
type Observer interface {
	Decision(out lead.Outcome)
	DependencyFailed(dep string)
}

// Notifier announces accepted leads.
type Notifier interface {
	NewLead(ctx context.Context, l lead.Accepted) error
}

// ContactFinder looks up an existing CRM contact for the lead.
type ContactFinder interface {
	FindContact(ctx context.Context, phone, email string) (string, error)
}

// Exporter hands accepted leads to downstream systems.
type Exporter interface {
	Export(ctx context.Context, l lead.Accepted) error
}

// ConversionSignal reports a quality lead to the ad platform.
type ConversionSignal interface {
	QualityLead(ctx context.Context, clientID string, at time.Time) error
}

// Effects groups the post-acceptance collaborators. Any of them may be nil.
type Effects struct {
	Notifier   Notifier
	CRM        ContactFinder
	Exporter   Exporter
	Conversion ConversionSignal
	Timeout    time.Duration
}
