package intake

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/lead"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

var suspiciousNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[0-9]+$`),
	regexp.MustCompile(`^\d`),
	regexp.MustCompile(`[0-9]{4,}`),
	regexp.MustCompile(`[@#$%^&*()+=\[\]{}|\\]`),
	regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}]`),
	regexp.MustCompile(`^[a-z]{1,2}$`),
	regexp.MustCompile(`^[а-яё]{1,2}$`),
}

// DataQualityStage rejects malformed phones, throwaway email domains and
// placeholder names. It performs no I/O.
type DataQualityStage struct {
	disposable map[string]struct{}
	garbage    map[string]struct{}
}

// NewDataQualityStage builds the stage with the built-in lists plus any
// extra disposable domains.
func NewDataQualityStage(extraDisposable ...string) *DataQualityStage {
	s := &DataQualityStage{
		disposable: make(map[string]struct{}, len(disposableDomains)+len(extraDisposable)),
		garbage:    make(map[string]struct{}, len(garbageNames)),
	}
	for _, d := range disposableDomains {
		s.disposable[d] = struct{}{}
	}
	for _, d := range extraDisposable {
		s.disposable[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	for _, n := range garbageNames {
		s.garbage[n] = struct{}{}
	}
	return s
}

func (s *DataQualityStage) Name() string { return "data_quality" }

func (s *DataQualityStage) Check(_ context.Context, ev *Evaluation) *lead.Reason {
	digits := len(datanorm.DigitsOnly(ev.Submission.Phone))
	if digits < minPhoneDigits {
		return lead.NewReason(lead.CodePhoneTooFewDigits)
	}
	if digits > maxPhoneDigits {
		return lead.NewReason(lead.CodePhoneTooManyDigits)
	}

	if ev.Email != "" {
		domain := datanorm.EmailDomain(ev.Email)
		if domain == "" {
			return lead.NewReason(lead.CodeEmailInvalidFormat)
		}
		if s.IsDisposable(domain) {
			return lead.NewReason(lead.CodeEmailDisposableDomain)
		}
	}

	if name := ev.Submission.Name; strings.TrimSpace(name) != "" && s.IsGarbageName(name) {
		return lead.NewReason(lead.CodeGarbageName)
	}
	return nil
}

// IsDisposable reports whether domain is a known throwaway mail service.
func (s *DataQualityStage) IsDisposable(domain string) bool {
	_, ok := s.disposable[strings.ToLower(domain)]
	return ok
}

// IsGarbageName reports whether name is a placeholder or keyboard mash.
func (s *DataQualityStage) IsGarbageName(name string) bool {
	clean := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if utf8.RuneCountInString(clean) < 2 {
		return true
	}
	if _, ok := s.garbage[clean]; ok {
		return true
	}
	if repeatedRune(clean) {
		return true
	}
	for _, re := range suspiciousNamePatterns {
		if re.MatchString(clean) {
			return true
		}
	}
	return false
}

// repeatedRune matches four or more copies of one character and nothing else.
func repeatedRune(s string) bool {
	if utf8.RuneCountInString(s) < 4 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return true
}
