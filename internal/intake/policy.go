package intake

import (
	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

// FailMode decides what an unavailable dependency means for the lead.
type FailMode int

const (
	// FailOpen lets the lead continue as if the check passed.
	FailOpen FailMode = iota
	// FailClosed rejects the lead with the stage's own reason.
	FailClosed
)

func (m FailMode) String() string {
	if m == FailClosed {
		return "closed"
	}
	return "open"
}

// Dependency names an external collaborator of a stage.
type Dependency string

const (
	DepCaptcha      Dependency = "captcha"
	DepRateLimit    Dependency = "rate_limit"
	DepDedup        Dependency = "dedup"
	DepMX           Dependency = "mx"
	DepVerification Dependency = "verification"
	DepBlacklist    Dependency = "blacklist"
	DepAnalytics    Dependency = "analytics"
)

// Policy holds one FailMode per dependency.
type Policy struct {
	Captcha      FailMode
	RateLimit    FailMode
	Dedup        FailMode
	MX           FailMode
	Verification FailMode
}

// Mode returns the mode for dep. Dependencies without a setting fail open.
func (p Policy) Mode(dep Dependency) FailMode {
	switch dep {
	case DepCaptcha:
		return p.Captcha
	case DepRateLimit:
		return p.RateLimit
	case DepDedup:
		return p.Dedup
	case DepMX:
		return p.MX
	case DepVerification:
		return p.Verification
	default:
		return FailOpen
	}
}

// unavailable applies mode to a failed dependency call and returns the
// rejection to use, or nil to continue.
func unavailable(ev *Evaluation, dep Dependency, mode FailMode, annotation string, closed *lead.Reason, err error) *lead.Reason {
	ev.failed = append(ev.failed, dep)
	ev.Annotate(annotation)
	logger.Warn("dependency unavailable",
		"dependency", string(dep),
		"policy", mode.String(),
		"error", err,
	)
	if mode == FailClosed {
		return closed
	}
	return nil
}
