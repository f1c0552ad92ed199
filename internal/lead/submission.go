package lead

import "strings"

// UTM holds campaign attribution tags as received.
type UTM struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Content  string `json:"utm_content,omitempty"`
	Term     string `json:"utm_term,omitempty"`
}

// Fields returns the tags in a fixed order for format checks.
func (u UTM) Fields() []string {
	return []string{u.Source, u.Medium, u.Campaign, u.Content, u.Term}
}

// Placement returns the aggregation key of this attribution.
func (u UTM) Placement() Placement {
	return Placement{Source: u.Source, Campaign: u.Campaign, Content: u.Content}
}

// Submission is one inbound lead as posted by a form or webhook.
type Submission struct {
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Honeypot string `json:"website,omitempty"`
	// SubmittedAt is the unix time the form was rendered; nil skips the timing checks.
	SubmittedAt     *int64 `json:"timestamp,omitempty"`
	CaptchaToken    string `json:"smart_token,omitempty"`
	GeoCountry      string `json:"geo_country,omitempty"`
	BrowserTimezone string `json:"timezone,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	Referer         string `json:"referer,omitempty"`
	UTM

	ClientIP  string `json:"-"`
	UserAgent string `json:"-"`
}

// Placement is the (source, campaign, content) triple that identifies an ad slot.
type Placement struct {
	Source   string `json:"utm_source"`
	Campaign string `json:"utm_campaign"`
	Content  string `json:"utm_content"`
}

// Normalized fills empty parts with their defaults.
func (p Placement) Normalized() Placement {
	return Placement{
		Source:   orDefault(p.Source, "direct"),
		Campaign: orDefault(p.Campaign, "none"),
		Content:  orDefault(p.Content, "none"),
	}
}

// Key renders "source:campaign:content" with defaults applied.
func (p Placement) Key() string {
	n := p.Normalized()
	return n.Source + ":" + n.Campaign + ":" + n.Content
}

// ParsePlacementKey reverses Key. Extra colons stay in the content part.
func ParsePlacementKey(key string) Placement {
	parts := strings.SplitN(key, ":", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return Placement{Source: parts[0], Campaign: parts[1], Content: parts[2]}.Normalized()
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
