package intake

import (
	"context"
	"time"

	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/lead"
)

// Stage is one check in the pipeline. Check returns nil to pass.
type Stage interface {
	Name() string
	Check(ctx context.Context, ev *Evaluation) *lead.Reason
}

// Evaluation is the mutable state of one run through the pipeline.
type Evaluation struct {
	Submission lead.Submission
	// Phone and Email are normalized once and shared by every stage.
	Phone string
	Email string
	Now   time.Time

	score       int
	warnings    []string
	annotations []string
	phoneInfo   *lead.PhoneInfo
	failed      []Dependency
}

// NewEvaluation normalizes the submission identities.
func NewEvaluation(sub lead.Submission, now time.Time) *Evaluation {
	return &Evaluation{
		Submission: sub,
		Phone:      datanorm.NormalizePhone(sub.Phone),
		Email:      datanorm.NormalizeEmail(sub.Email),
		Now:        now,
	}
}

// Warn records a non-blocking observation.
func (ev *Evaluation) Warn(w string) {
	ev.warnings = append(ev.warnings, w)
}

// Annotate records a skipped dependency. Duplicates are dropped.
func (ev *Evaluation) Annotate(a string) {
	if a == "" {
		return
	}
	for _, existing := range ev.annotations {
		if existing == a {
			return
		}
	}
	ev.annotations = append(ev.annotations, a)
}

// AddRisk adds points to the campaign risk score.
func (ev *Evaluation) AddRisk(points int, warning string) {
	ev.score += points
	ev.Warn(warning)
}

// Score is the accumulated risk score.
func (ev *Evaluation) Score() int { return ev.score }

// Warnings returns the recorded warnings.
func (ev *Evaluation) Warnings() []string { return ev.warnings }

// Annotations returns the recorded annotations.
func (ev *Evaluation) Annotations() []string { return ev.annotations }

// PhoneInfo returns the verification enrichment, if any.
func (ev *Evaluation) PhoneInfo() *lead.PhoneInfo { return ev.phoneInfo }

// SetPhoneInfo stores the verification enrichment.
func (ev *Evaluation) SetPhoneInfo(info lead.PhoneInfo) { ev.phoneInfo = &info }

// Failed lists dependencies that were unavailable during the run.
func (ev *Evaluation) Failed() []Dependency { return ev.failed }
