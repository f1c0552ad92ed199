package intake

import (
	"context"
	"net/url"
	"strings"

	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

// WarnRefererInvalid is attached when the Referer is not an http(s) URL.
const WarnRefererInvalid = "referer_invalid"

const minUserAgentLength = 20

// Substrings of clients that are scripts, crawlers or automated browsers.
var suspiciousUserAgents = []string{
	"curl",
	"python-requests",
	"python-urllib",
	"wget",
	"postmanruntime",
	"insomnia",
	"httpie",
	"axios",
	"node-fetch",
	"go-http-client",
	"java/",
	"okhttp",
	"apache-httpclient",
	"libwww-perl",
	"scrapy",
	"bot",
	"crawler",
	"spider",
	"headless",
	"phantomjs",
	"selenium",
	"puppeteer",
	"playwright",
}

// RequestStage screens the HTTP headers of the submitting client. A
// submission without a User-Agent is not screened; webhooks relayed by a
// form platform often carry none.
type RequestStage struct{}

// NewRequestStage returns the stage.
func NewRequestStage() *RequestStage { return &RequestStage{} }

func (s *RequestStage) Name() string { return "request" }

func (s *RequestStage) Check(_ context.Context, ev *Evaluation) *lead.Reason {
	ua := ev.Submission.UserAgent
	if ua == "" {
		return nil
	}
	if pattern, bad := suspiciousUserAgent(ua); bad {
		logger.Info("suspicious user agent", "user_agent", ua, "pattern", pattern)
		return lead.NewReason(lead.CodeSuspiciousUserAgent)
	}
	if ref := ev.Submission.Referer; ref != "" && !validReferer(ref) {
		ev.Warn(WarnRefererInvalid)
	}
	return nil
}

// suspiciousUserAgent returns the matched pattern, "blocked" for a bare or
// placeholder value, or "too_short".
func suspiciousUserAgent(ua string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(ua))
	switch lower {
	case "", "-", "mozilla/5.0":
		return "blocked", true
	}
	for _, p := range suspiciousUserAgents {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	if len(ua) < minUserAgentLength {
		return "too_short", true
	}
	return "", false
}

func validReferer(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
