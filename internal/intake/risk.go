package intake

import (
	"context"
	"regexp"
	"strings"

	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

const (
	utmFormatPoints   = 20
	geoMismatchPoints = 50
	suspiciousPoints  = 30
	maxUTMLength      = 200
)

// Warnings attached by the risk stage.
const (
	WarnUTMFormat        = "utm_format"
	WarnGeoMismatch      = "geo_mismatch"
	WarnSuspiciousUTM    = "suspicious_utm"
	WarnTimezoneMismatch = "timezone_mismatch"
	WarnElevatedRisk     = "elevated_risk"
)

var (
	utmBadChars = regexp.MustCompile(`[<>"'\x00-\x1f]`)

	suspiciousUTMPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^test`),
		regexp.MustCompile(`^debug`),
		regexp.MustCompile(`^\d+$`),
		regexp.MustCompile(`^[a-z]$`),
		regexp.MustCompile(`^(null|undefined|none)$`),
		regexp.MustCompile(`\{.*\}`),
	}
)

// Blacklist answers whether a placement is blocked.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, p lead.Placement) (bool, error)
}

// RiskRules configures campaign risk scoring.
type RiskRules struct {
	DomesticSources   []string
	DomesticCountries []string
	RejectScore       int
	WarnScore         int
}

// RiskStage blocks blacklisted placements and scores attribution anomalies.
type RiskStage struct {
	blacklist Blacklist
	rules     RiskRules
	domestic  map[string]struct{}
}

// NewRiskStage creates the stage. blacklist may be nil.
func NewRiskStage(blacklist Blacklist, rules RiskRules) *RiskStage {
	s := &RiskStage{blacklist: blacklist, rules: rules, domestic: make(map[string]struct{})}
	for _, c := range rules.DomesticCountries {
		s.domestic[strings.ToUpper(c)] = struct{}{}
	}
	return s
}

func (s *RiskStage) Name() string { return "campaign_risk" }

func (s *RiskStage) Check(ctx context.Context, ev *Evaluation) *lead.Reason {
	sub := ev.Submission

	if s.blacklist != nil {
		listed, err := s.blacklist.IsBlacklisted(ctx, sub.UTM.Placement())
		if err != nil {
			ev.failed = append(ev.failed, DepBlacklist)
			logger.Warn("blacklist lookup failed, treating placement as clean", "error", err)
		}
		if listed {
			return lead.NewReason(lead.CodeBlacklistedPlacement)
		}
	}

	if hasFormatIssue(sub.UTM) {
		ev.AddRisk(utmFormatPoints, WarnUTMFormat)
	}
	if s.geoMismatch(sub.Source, sub.GeoCountry) {
		ev.AddRisk(geoMismatchPoints, WarnGeoMismatch)
	}
	if hasSuspiciousPattern(sub.UTM) {
		ev.AddRisk(suspiciousPoints, WarnSuspiciousUTM)
	}
	if timezoneMismatch(sub.BrowserTimezone, sub.GeoCountry) {
		ev.Warn(WarnTimezoneMismatch)
	}

	switch score := ev.Score(); {
	case score >= s.rules.RejectScore:
		return lead.NewReason(lead.CodeHighSpamRisk)
	case score >= s.rules.WarnScore:
		ev.Warn(WarnElevatedRisk)
	}
	return nil
}

func hasFormatIssue(u lead.UTM) bool {
	for _, v := range u.Fields() {
		if len(v) > maxUTMLength || utmBadChars.MatchString(v) {
			return true
		}
	}
	return false
}

func hasSuspiciousPattern(u lead.UTM) bool {
	for _, v := range []string{u.Source, u.Medium, u.Campaign} {
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		for _, re := range suspiciousUTMPatterns {
			if re.MatchString(lower) {
				return true
			}
		}
	}
	return false
}

// geoMismatch flags a domestic ad channel whose visitor geolocates abroad.
// A channel matches when the source contains one of the configured names,
// so "yandex_direct" counts as "yandex".
func (s *RiskStage) geoMismatch(source, country string) bool {
	if source == "" || country == "" {
		return false
	}
	if _, ok := s.domestic[strings.ToUpper(country)]; ok {
		return false
	}
	src := strings.ToLower(source)
	for _, d := range s.rules.DomesticSources {
		if d != "" && strings.Contains(src, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

var timezoneCountry = map[string]string{
	"Europe/Moscow":      "RU",
	"Europe/Kaliningrad": "RU",
	"Europe/Samara":      "RU",
	"Europe/Volgograd":   "RU",
	"Europe/Kirov":       "RU",
	"Europe/Astrakhan":   "RU",
	"Europe/Saratov":     "RU",
	"Europe/Ulyanovsk":   "RU",
	"Asia/Yekaterinburg": "RU",
	"Asia/Omsk":          "RU",
	"Asia/Novosibirsk":   "RU",
	"Asia/Barnaul":       "RU",
	"Asia/Tomsk":         "RU",
	"Asia/Novokuznetsk":  "RU",
	"Asia/Krasnoyarsk":   "RU",
	"Asia/Irkutsk":       "RU",
	"Asia/Chita":         "RU",
	"Asia/Yakutsk":       "RU",
	"Asia/Vladivostok":   "RU",
	"Asia/Magadan":       "RU",
	"Asia/Sakhalin":      "RU",
	"Asia/Kamchatka":     "RU",
	"Europe/Kiev":        "UA",
	"Europe/Kyiv":        "UA",
	"Europe/Minsk":       "BY",
	"Asia/Almaty":        "KZ",
	"Asia/Tashkent":      "UZ",
	"Asia/Tbilisi":       "GE",
	"Asia/Yerevan":       "AM",
	"Asia/Baku":          "AZ",
}

// timezoneMismatch reports a browser zone that belongs to a different
// country than the IP geolocation. Unknown zones never mismatch.
func timezoneMismatch(tz, country string) bool {
	if tz == "" || country == "" {
		return false
	}
	expected, ok := timezoneCountry[tz]
	return ok && !strings.EqualFold(expected, country)
}
