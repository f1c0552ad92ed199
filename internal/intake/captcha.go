package intake

import (
	"context"

	"github.com/ignite/leadgate/internal/lead"
)

// CaptchaVerifier validates a client captcha token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, clientIP string) (bool, error)
}

// CaptchaStage requires a valid captcha token.
type CaptchaStage struct {
	verifier CaptchaVerifier
	mode     FailMode
}

// NewCaptchaStage wraps a verifier.
func NewCaptchaStage(v CaptchaVerifier, mode FailMode) *CaptchaStage {
	return &CaptchaStage{verifier: v, mode: mode}
}

func (s *CaptchaStage) Name() string { return "captcha" }

func (s *CaptchaStage) Check(ctx context.Context, ev *Evaluation) *lead.Reason {
	token := ev.Submission.CaptchaToken
	if token == "" {
		return lead.NewReason(lead.CodeCaptchaFailed)
	}
	ok, err := s.verifier.Verify(ctx, token, ev.Submission.ClientIP)
	if err != nil {
		return unavailable(ev, DepCaptcha, s.mode, lead.AnnotationCaptchaUnavailable, lead.NewReason(lead.CodeCaptchaFailed), err)
	}
	if !ok {
		return lead.NewReason(lead.CodeCaptchaFailed)
	}
	return nil
}
