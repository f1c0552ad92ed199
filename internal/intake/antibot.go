package intake

import (
	"context"
	"time"

	"github.com/ignite/leadgate/internal/lead"
)

// AntibotStage catches honeypot fills and implausible form timing.
type AntibotStage struct {
	MinFill time.Duration
	MaxAge  time.Duration
}

// NewAntibotStage returns the stage with the given timing bounds.
func NewAntibotStage(minFill, maxAge time.Duration) *AntibotStage {
	return &AntibotStage{MinFill: minFill, MaxAge: maxAge}
}

func (s *AntibotStage) Name() string { return "antibot" }

func (s *AntibotStage) Check(_ context.Context, ev *Evaluation) *lead.Reason {
	if ev.Submission.Honeypot != "" {
		return lead.NewReason(lead.CodeHoneypotFilled)
	}
	if ev.Submission.SubmittedAt == nil {
		return nil
	}

	elapsed := ev.Now.Sub(formTime(*ev.Submission.SubmittedAt))
	switch {
	case elapsed < s.MinFill:
		return lead.NewReason(lead.CodeFormFilledTooFast)
	case elapsed > s.MaxAge:
		return lead.NewReason(lead.CodeStaleTimestamp)
	}
	return nil
}

// formTime accepts unix seconds or, from JS Date.now(), milliseconds.
func formTime(ts int64) time.Time {
	if ts > 1e12 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
