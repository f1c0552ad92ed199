package lead

import "time"

// EmailInfo is the result of email verification.
type EmailInfo struct {
	QC   int    `json:"qc"`
	Type string `json:"type,omitempty"`
}

// Accepted is the payload handed to downstream consumers after a lead
// passes every stage.
type Accepted struct {
	LeadID       string     `json:"lead_id"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email,omitempty"`
	Name         string     `json:"name,omitempty"`
	UTM          UTM        `json:"utm"`
	ClientID     string     `json:"client_id,omitempty"`
	PhoneInfo    *PhoneInfo `json:"phone_info,omitempty"`
	RiskScore    int        `json:"risk_score"`
	Warnings     []string   `json:"warnings,omitempty"`
	CRMContactID string     `json:"crm_contact_id,omitempty"`
	AcceptedAt   time.Time  `json:"accepted_at"`
}
