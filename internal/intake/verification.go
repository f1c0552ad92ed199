package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/lead"
)

// PhoneVerifier returns provider enrichment for a normalized phone.
type PhoneVerifier interface {
	VerifyPhone(ctx context.Context, phone string) (lead.PhoneInfo, error)
}

// EmailVerifier returns provider quality data for a normalized email.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, email string) (lead.EmailInfo, error)
}

// ErrNoProvider is returned by an empty chain.
var ErrNoProvider = errors.New("no verification provider configured")

// PhoneChain tries providers in order and returns the first success.
type PhoneChain []PhoneVerifier

// VerifyPhone implements PhoneVerifier.
func (c PhoneChain) VerifyPhone(ctx context.Context, phone string) (lead.PhoneInfo, error) {
	if len(c) == 0 {
		return lead.PhoneInfo{}, ErrNoProvider
	}
	var errs []error
	for _, p := range c {
		info, err := p.VerifyPhone(ctx, phone)
		if err == nil {
			return info, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return lead.PhoneInfo{}, errors.Join(errs...)
}

// EmailChain tries providers in order and returns the first success.
type EmailChain []EmailVerifier

// VerifyEmail implements EmailVerifier.
func (c EmailChain) VerifyEmail(ctx context.Context, email string) (lead.EmailInfo, error) {
	if len(c) == 0 {
		return lead.EmailInfo{}, ErrNoProvider
	}
	var errs []error
	for _, p := range c {
		info, err := p.VerifyEmail(ctx, email)
		if err == nil {
			return info, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return lead.EmailInfo{}, errors.Join(errs...)
}

// PhoneDecision maps a provider phone quality code to a rejection.
//
//	qc 0  valid
//	qc 7  valid (foreign number)
//	qc 1  invalid_phone_qc_1
//	qc 2  invalid_phone_qc_2 (empty or garbage)
//	qc 3  invalid_phone_qc_3 (several numbers)
//	other invalid_phone_qc_<qc>
func PhoneDecision(qc int) *lead.Reason {
	switch qc {
	case 0, 7:
		return nil
	default:
		return lead.PhoneQC(qc)
	}
}

// EmailDecision maps a provider email result to a rejection. qc 0 and 1
// are valid; a disposable type rejects regardless of qc.
func EmailDecision(info lead.EmailInfo) *lead.Reason {
	if info.QC >= 2 {
		return lead.EmailQC(info.QC)
	}
	if strings.EqualFold(info.Type, "DISPOSABLE") {
		return lead.NewReason(lead.CodeEmailDisposable)
	}
	return nil
}

// VerificationStage consults the external provider for the phone and, when
// given, the email. Both calls share one timeout.
type VerificationStage struct {
	phones  PhoneVerifier
	emails  EmailVerifier
	mode    FailMode
	timeout time.Duration
}

// NewVerificationStage creates the stage. emails may be nil; a zero
// timeout means 5s.
func NewVerificationStage(phones PhoneVerifier, emails EmailVerifier, mode FailMode, timeout time.Duration) *VerificationStage {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &VerificationStage{phones: phones, emails: emails, mode: mode, timeout: timeout}
}

func (s *VerificationStage) Name() string { return "verification" }

func (s *VerificationStage) Check(ctx context.Context, ev *Evaluation) *lead.Reason {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.phones.VerifyPhone(ctx, ev.Phone)
	if err != nil {
		// local enrichment keeps the region when the provider is down
		if region := datanorm.PhoneRegion(ev.Phone); region != "" {
			ev.SetPhoneInfo(lead.PhoneInfo{Country: region})
		}
		return unavailable(ev, DepVerification, s.mode, lead.AnnotationVerificationUnavailable,
			lead.NewReason(lead.CodeVerificationUnavailable), fmt.Errorf("phone: %w", err))
	}
	ev.SetPhoneInfo(info)
	if r := PhoneDecision(info.QC); r != nil {
		return r
	}

	if ev.Email == "" || s.emails == nil {
		return nil
	}
	einfo, err := s.emails.VerifyEmail(ctx, ev.Email)
	if err != nil {
		return unavailable(ev, DepVerification, s.mode, lead.AnnotationVerificationUnavailable,
			lead.NewReason(lead.CodeVerificationUnavailable), fmt.Errorf("email: %w", err))
	}
	return EmailDecision(einfo)
}
