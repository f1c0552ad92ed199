// Package notify sends lead, alert and report messages to Telegram.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/ignite/leadgate/internal/analytics"
	"github.com/ignite/leadgate/internal/lead"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Notifier renders domain events and hands them to a Sender. It implements
// intake.Notifier.
type Notifier struct {
	sender    Sender
	templates *Templates
	// BadSourceRate is shown in the report heading.
	BadSourceRate float64
}

// New creates a notifier.
func New(sender Sender, templates *Templates) *Notifier {
	return &Notifier{sender: sender, templates: templates, BadSourceRate: 50}
}

// NewLead announces an accepted lead.
func (n *Notifier) NewLead(ctx context.Context, l lead.Accepted) error {
	b := map[string]any{"phone": "+" + l.Phone}
	set(b, "name", l.Name)
	set(b, "email", l.Email)
	if p := l.PhoneInfo; p != nil {
		set(b, "phone_type", p.Type)
		set(b, "provider", p.Provider)
		set(b, "region", p.Region)
	}
	set(b, "utm", utmLine(l.UTM))
	if len(l.Warnings) > 0 {
		b["warnings"] = strings.Join(l.Warnings, ", ")
		b["risk_score"] = l.RiskScore
	}
	return n.send(ctx, TemplateNewLead, b)
}

// BadSource alerts about a placement crossing the alert threshold.
func (n *Notifier) BadSource(ctx context.Context, s analytics.SourceStats) error {
	return n.send(ctx, TemplateBadSource, sourceBindings(s))
}

// Blacklisted reports a placement the refresher just blocked.
func (n *Notifier) Blacklisted(ctx context.Context, s analytics.SourceStats, ttl time.Duration) error {
	b := sourceBindings(s)
	b["key"] = s.Placement.Key()
	b["ttl_days"] = int(ttl.Hours() / 24)
	return n.send(ctx, TemplateBlacklisted, b)
}

// Report posts the quality report summary. link may be empty.
func (n *Notifier) Report(ctx context.Context, r analytics.Report, link string) error {
	reasons := make([]map[string]any, 0, len(r.TopReasons))
	for _, rc := range r.TopReasons {
		reasons = append(reasons, map[string]any{"reason": rc.Reason, "count": rc.Count})
	}
	bad := make([]map[string]any, 0, len(r.BadSources))
	for _, s := range r.BadSources {
		bad = append(bad, sourceBindings(s))
	}

	b := map[string]any{
		"period_start": r.PeriodStart.Format("02.01.2006"),
		"period_end":   r.PeriodEnd.Format("02.01.2006"),
		"total":        r.TotalLeads,
		"rejected":     r.RejectedLeads,
		"rate":         r.RejectionRate,
		"bad_rate":     n.BadSourceRate,
	}
	if len(reasons) > 0 {
		b["reasons"] = reasons
	}
	if len(bad) > 0 {
		b["bad_sources"] = bad
	}
	set(b, "link", link)
	return n.send(ctx, TemplateReport, b)
}

func (n *Notifier) send(ctx context.Context, name string, b map[string]any) error {
	text, err := n.templates.Render(name, b)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, text)
}

func sourceBindings(s analytics.SourceStats) map[string]any {
	p := s.Placement.Normalized()
	return map[string]any{
		"source":   p.Source,
		"campaign": p.Campaign,
		"content":  p.Content,
		"total":    s.TotalLeads,
		"rejected": s.RejectedLeads,
		"rate":     s.RejectionRate(),
	}
}

func utmLine(u lead.UTM) string {
	var parts []string
	for _, kv := range [][2]string{{"source", u.Source}, {"medium", u.Medium}, {"campaign", u.Campaign}} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, ", ")
}

func set(b map[string]any, key, value string) {
	if value != "" {
		b[key] = value
	}
}
