package intake

import (
	"context"
	"time"

	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/lead"
)

// RateLimiter counts attempts per key inside a fixed window.
type RateLimiter interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// AdmissionStage throttles submissions per client IP and per phone.
type AdmissionStage struct {
	limiter  RateLimiter
	mode     FailMode
	perIP    int
	perPhone int
	window   time.Duration
}

// NewAdmissionStage creates the stage. A zero limit disables that check.
func NewAdmissionStage(limiter RateLimiter, mode FailMode, perIP, perPhone int, window time.Duration) *AdmissionStage {
	return &AdmissionStage{limiter: limiter, mode: mode, perIP: perIP, perPhone: perPhone, window: window}
}

func (s *AdmissionStage) Name() string { return "admission" }

func (s *AdmissionStage) Check(ctx context.Context, ev *Evaluation) *lead.Reason {
	if ip := ev.Submission.ClientIP; ip != "" && s.perIP > 0 {
		if r := s.hit(ctx, ev, ip, s.perIP, lead.CodeRateLimitExceeded); r != nil {
			return r
		}
	}
	if ev.Phone != "" && s.perPhone > 0 {
		key := "phone:" + datanorm.HashIdentity(ev.Phone)
		if r := s.hit(ctx, ev, key, s.perPhone, lead.CodePhoneRateLimitExceeded); r != nil {
			return r
		}
	}
	return nil
}

func (s *AdmissionStage) hit(ctx context.Context, ev *Evaluation, key string, limit int, code lead.Code) *lead.Reason {
	ok, err := s.limiter.Hit(ctx, key, limit, s.window)
	if err != nil {
		return unavailable(ev, DepRateLimit, s.mode, lead.AnnotationStoreUnavailable, lead.NewReason(code), err)
	}
	if !ok {
		return lead.NewReason(code)
	}
	return nil
}
