package intake

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/lead"
)

// MXResolver is satisfied by *net.Resolver.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// MXStage rejects emails whose domain has no mail exchanger.
type MXStage struct {
	resolver MXResolver
	mode     FailMode
	timeout  time.Duration
}

// NewMXStage creates the stage. A nil resolver uses net.DefaultResolver.
func NewMXStage(r MXResolver, mode FailMode, timeout time.Duration) *MXStage {
	if r == nil {
		r = net.DefaultResolver
	}
	return &MXStage{resolver: r, mode: mode, timeout: timeout}
}

func (s *MXStage) Name() string { return "mx" }

func (s *MXStage) Check(ctx context.Context, ev *Evaluation) *lead.Reason {
	domain := datanorm.EmailDomain(ev.Email)
	if domain == "" {
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.resolver.LookupMX(lookupCtx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return lead.NewReason(lead.CodeEmailNoMX)
		}
		return unavailable(ev, DepMX, s.mode, lead.AnnotationMXUnavailable, lead.NewReason(lead.CodeEmailNoMX), err)
	}
	if len(records) == 0 {
		return lead.NewReason(lead.CodeEmailNoMX)
	}
	return nil
}
