package api

import (
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/pkg/httputil"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

// TildaWebhook maps a Tilda form post to a submission. Tilda verifies a
// webhook URL by posting test=test and expects a plain "ok".
//
//	POST /api/webhooks/tilda
func (h *Handlers) TildaWebhook(w http.ResponseWriter, r *http.Request) {
	fields, ok := webhookFields(w, r)
	if !ok {
		return
	}
	if fields["test"] == "test" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
		return
	}

	sub := lead.Submission{
		Phone:        first(fields, "phone", "Phone", "PHONE"),
		Email:        first(fields, "email", "Email", "EMAIL"),
		Name:         first(fields, "name", "Name", "NAME"),
		Honeypot:     fields["website"],
		CaptchaToken: fields["smart-token"],
		ClientID:     first(fields, "ym_uid", "_ym_uid"),
		Referer:      fields["referer"],
		UTM:          utmFrom(fields, fields["referer"]),
	}
	if sub.Phone == "" {
		httputil.BadRequest(w, "phone is required")
		return
	}
	logger.Info("tilda webhook received", "phone", sub.Phone, "form", fields["formid"])
	h.decide(w, r, sub)
}

// MarquizWebhook maps a Marquiz quiz result to a submission.
//
//	POST /api/webhooks/marquiz
func (h *Handlers) MarquizWebhook(w http.ResponseWriter, r *http.Request) {
	fields, ok := webhookFields(w, r)
	if !ok {
		return
	}

	sub := lead.Submission{
		Phone:           fields["phone"],
		Email:           fields["email"],
		Name:            fields["name"],
		ClientID:        first(fields, "ym_uid", "_ym_uid"),
		Referer:         fields["referrer"],
		GeoCountry:      countryFromLocation(fields["location"]),
		BrowserTimezone: timezoneFromOffset(fields["leadTimezone"]),
		ClientIP:        fields["IP"],
		UserAgent:       fields["userAgent"],
		UTM:             utmFrom(fields, fields["source"]),
	}
	if sub.Phone == "" {
		httputil.BadRequest(w, "phone is required")
		return
	}
	logger.Info("marquiz webhook received", "phone", sub.Phone, "quiz", fields["quiz"])
	h.decide(w, r, sub)
}

// webhookFields flattens a form-encoded, multipart or JSON body into
// string fields. Nested JSON values are dropped.
func webhookFields(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	fields := make(map[string]string)

	if ct == "application/json" {
		var raw map[string]interface{}
		if !httputil.Decode(w, r, &raw) {
			return nil, false
		}
		for k, v := range raw {
			switch v := v.(type) {
			case string:
				fields[k] = strings.TrimSpace(v)
			case float64:
				fields[k] = strconv.FormatFloat(v, 'f', -1, 64)
			case bool:
				fields[k] = strconv.FormatBool(v)
			}
		}
		return fields, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)
	var err error
	if ct == "multipart/form-data" {
		err = r.ParseMultipartForm(httputil.MaxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		httputil.BadRequest(w, "invalid form body")
		return nil, false
	}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = strings.TrimSpace(v[0])
		}
	}
	return fields, true
}

func first(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" {
			return v
		}
	}
	return ""
}

// utmFrom prefers explicit utm_* fields and falls back to the query of
// pageURL.
func utmFrom(fields map[string]string, pageURL string) lead.UTM {
	var q url.Values
	if u, err := url.Parse(pageURL); err == nil {
		q = u.Query()
	}
	pick := func(key string) string {
		if v := fields[key]; v != "" {
			return v
		}
		return q.Get(key)
	}
	return lead.UTM{
		Source:   pick("utm_source"),
		Medium:   pick("utm_medium"),
		Campaign: pick("utm_campaign"),
		Content:  pick("utm_content"),
		Term:     pick("utm_term"),
	}
}

var locationCountries = []struct{ name, code string }{
	{"россия", "RU"}, {"russia", "RU"},
	{"украина", "UA"}, {"ukraine", "UA"},
	{"беларусь", "BY"}, {"belarus", "BY"},
	{"казахстан", "KZ"}, {"kazakhstan", "KZ"},
}

// countryFromLocation turns "Россия, Москва" into "RU".
func countryFromLocation(location string) string {
	l := strings.ToLower(location)
	if l == "" {
		return ""
	}
	for _, c := range locationCountries {
		if strings.Contains(l, c.name) {
			return c.code
		}
	}
	return ""
}

var utcOffset = regexp.MustCompile(`UTC\s*([+-]?\d+)`)

var offsetZones = map[int]string{
	3:  "Europe/Moscow",
	5:  "Asia/Yekaterinburg",
	7:  "Asia/Krasnoyarsk",
	10: "Asia/Vladivostok",
}

// timezoneFromOffset maps "UTC 3" to a representative IANA zone.
func timezoneFromOffset(s string) string {
	m := utcOffset.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	offset, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	return offsetZones[offset]
}
