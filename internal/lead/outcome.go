package lead

import "time"

// Annotations recorded on an outcome when a dependency was skipped.
const (
	AnnotationVerificationUnavailable = "dadata_unavailable"
	AnnotationStoreUnavailable        = "store_unavailable"
	AnnotationCaptchaUnavailable      = "captcha_unavailable"
	AnnotationMXUnavailable           = "mx_unavailable"
)

// PhoneInfo is the enrichment returned by phone verification.
type PhoneInfo struct {
	QC       int    `json:"qc"`
	Type     string `json:"type,omitempty"`
	Provider string `json:"provider,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Outcome is the final decision for one submission. Build it with Accept or
// Reject; it is not modified afterwards.
type Outcome struct {
	LeadID      string
	Accepted    bool
	Reason      *Reason
	RiskScore   int
	Warnings    []string
	Annotations []string
	Phone       *PhoneInfo
	Elapsed     time.Duration
}

// Accept builds an accepted outcome.
func Accept(id string, score int, warnings, annotations []string, phone *PhoneInfo, elapsed time.Duration) Outcome {
	return Outcome{
		LeadID:      id,
		Accepted:    true,
		RiskScore:   score,
		Warnings:    warnings,
		Annotations: annotations,
		Phone:       phone,
		Elapsed:     elapsed,
	}
}

// Reject builds a rejected outcome.
func Reject(r Reason, score int, warnings, annotations []string, phone *PhoneInfo, elapsed time.Duration) Outcome {
	return Outcome{
		Reason:      &r,
		RiskScore:   score,
		Warnings:    warnings,
		Annotations: annotations,
		Phone:       phone,
		Elapsed:     elapsed,
	}
}

// ReasonString returns the rejection reason or "" when accepted.
func (o Outcome) ReasonString() string {
	if o.Reason == nil {
		return ""
	}
	return o.Reason.String()
}

// Response is the wire shape of an Outcome.
type Response struct {
	Success         bool     `json:"success"`
	LeadID          string   `json:"lead_id,omitempty"`
	RejectionReason *Reason  `json:"rejection_reason,omitempty"`
	RiskScore       int      `json:"risk_score"`
	Warnings        []string `json:"warnings,omitempty"`
	Annotations     []string `json:"annotations,omitempty"`
	PhoneType       string   `json:"phone_type,omitempty"`
	PhoneProvider   string   `json:"phone_provider,omitempty"`
	PhoneRegion     string   `json:"phone_region,omitempty"`
	DaDataQC        *int     `json:"dadata_qc,omitempty"`
	ExecutionTimeMS float64  `json:"execution_time_ms"`
}

// Response converts the outcome to its wire shape.
func (o Outcome) Response() Response {
	resp := Response{
		Success:         o.Accepted,
		LeadID:          o.LeadID,
		RejectionReason: o.Reason,
		RiskScore:       o.RiskScore,
		Warnings:        o.Warnings,
		Annotations:     o.Annotations,
		ExecutionTimeMS: float64(o.Elapsed.Microseconds()) / 1000,
	}
	if o.Phone != nil {
		qc := o.Phone.QC
		resp.PhoneType = o.Phone.Type
		resp.PhoneProvider = o.Phone.Provider
		resp.PhoneRegion = o.Phone.Region
		resp.DaDataQC = &qc
	}
	return resp
}
