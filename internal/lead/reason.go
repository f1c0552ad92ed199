package lead

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Code identifies why a lead was rejected.
type Code string

const (
	CodeHoneypotFilled          Code = "honeypot_filled"
	CodeFormFilledTooFast       Code = "form_filled_too_fast"
	CodeStaleTimestamp          Code = "stale_timestamp"
	CodeCaptchaFailed           Code = "captcha_failed"
	CodeSuspiciousUserAgent     Code = "suspicious_user_agent"
	CodePhoneTooFewDigits       Code = "phone_too_few_digits"
	CodePhoneTooManyDigits      Code = "phone_too_many_digits"
	CodeEmailInvalidFormat      Code = "email_invalid_format"
	CodeEmailDisposableDomain   Code = "email_disposable_domain"
	CodeGarbageName             Code = "garbage_name"
	CodeRateLimitExceeded       Code = "rate_limit_exceeded"
	CodePhoneRateLimitExceeded  Code = "phone_rate_limit_exceeded"
	CodeDuplicatePhone          Code = "duplicate_phone"
	CodeDuplicateEmail          Code = "duplicate_email"
	CodeEmailNoMX               Code = "email_no_mx"
	CodeInvalidPhoneQC          Code = "invalid_phone_qc"
	CodeInvalidEmailQC          Code = "invalid_email_qc"
	CodeEmailDisposable         Code = "email_disposable"
	CodeVerificationUnavailable Code = "dadata_unavailable"
	CodeBlacklistedPlacement    Code = "blacklisted_placement"
	CodeHighSpamRisk            Code = "high_spam_risk"
)

// hasQC marks the codes that carry a provider quality code.
func (c Code) hasQC() bool {
	return c == CodeInvalidPhoneQC || c == CodeInvalidEmailQC
}

// Reason is a rejection code plus its payload. Only the qc family carries a
// payload; every other code renders as itself.
type Reason struct {
	Code Code
	QC   int
}

// NewReason returns a payload-free reason.
func NewReason(c Code) *Reason {
	return &Reason{Code: c}
}

// PhoneQC returns invalid_phone_qc_<qc>.
func PhoneQC(qc int) *Reason {
	return &Reason{Code: CodeInvalidPhoneQC, QC: qc}
}

// EmailQC returns invalid_email_qc_<qc>.
func EmailQC(qc int) *Reason {
	return &Reason{Code: CodeInvalidEmailQC, QC: qc}
}

// String renders the machine-readable reason, e.g. "invalid_phone_qc_2".
func (r Reason) String() string {
	if r.Code.hasQC() {
		return fmt.Sprintf("%s_%d", r.Code, r.QC)
	}
	return string(r.Code)
}

// ParseReason is the inverse of String.
func ParseReason(s string) (Reason, error) {
	for _, c := range []Code{CodeInvalidPhoneQC, CodeInvalidEmailQC} {
		prefix := string(c) + "_"
		if strings.HasPrefix(s, prefix) {
			qc, err := strconv.Atoi(strings.TrimPrefix(s, prefix))
			if err != nil {
				return Reason{}, fmt.Errorf("lead: bad qc in reason %q", s)
			}
			return Reason{Code: c, QC: qc}, nil
		}
	}
	c := Code(s)
	if _, ok := knownCodes[c]; !ok || c.hasQC() {
		return Reason{}, fmt.Errorf("lead: unknown reason %q", s)
	}
	return Reason{Code: c}, nil
}

var knownCodes = map[Code]struct{}{
	CodeHoneypotFilled: {}, CodeFormFilledTooFast: {}, CodeStaleTimestamp: {},
	CodeCaptchaFailed: {}, CodeSuspiciousUserAgent: {}, CodePhoneTooFewDigits: {}, CodePhoneTooManyDigits: {},
	CodeEmailInvalidFormat: {}, CodeEmailDisposableDomain: {}, CodeGarbageName: {},
	CodeRateLimitExceeded: {}, CodePhoneRateLimitExceeded: {}, CodeDuplicatePhone: {},
	CodeDuplicateEmail: {}, CodeEmailNoMX: {}, CodeInvalidPhoneQC: {}, CodeInvalidEmailQC: {},
	CodeEmailDisposable: {}, CodeVerificationUnavailable: {}, CodeBlacklistedPlacement: {},
	CodeHighSpamRisk: {},
}

// MarshalJSON encodes the reason as its string form.
func (r Reason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes the string form produced by MarshalJSON.
func (r *Reason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseReason(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
