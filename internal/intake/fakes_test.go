package intake

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/ignite/leadgate/internal/lead"
)

var errDown = errors.New("connection refused")

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newFakeLimiter() *fakeLimiter { return &fakeLimiter{counts: make(map[string]int)} }

func (f *fakeLimiter) Hit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key] <= limit, nil
}

type fakePhones struct {
	mu    sync.Mutex
	info  lead.PhoneInfo
	err   error
	calls int
}

func (f *fakePhones) VerifyPhone(_ context.Context, _ string) (lead.PhoneInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.info, f.err
}

func (f *fakePhones) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEmails struct {
	info  lead.EmailInfo
	err   error
	calls int
}

func (f *fakeEmails) VerifyEmail(_ context.Context, _ string) (lead.EmailInfo, error) {
	f.calls++
	return f.info, f.err
}

type fakeBlacklist struct {
	listed map[string]bool
	err    error
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, p lead.Placement) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.listed[p.Key()], nil
}

type fakeCaptcha struct {
	ok  bool
	err error
}

func (f *fakeCaptcha) Verify(_ context.Context, _, _ string) (bool, error) { return f.ok, f.err }

type fakeResolver struct {
	records []*net.MX
	err     error
}

func (f *fakeResolver) LookupMX(_ context.Context, _ string) ([]*net.MX, error) {
	return f.records, f.err
}

type panicStage struct{ name string }

func (p panicStage) Name() string { return p.name }

func (p panicStage) Check(context.Context, *Evaluation) *lead.Reason { panic("boom") }

type recorder struct {
	mu         sync.Mutex
	notified   []lead.Accepted
	exported   []lead.Accepted
	conversion []string
	logged     []lead.Outcome
	decisions  []lead.Outcome
	failed     []string
	crmID      string
	exportErr  error
}

func (r *recorder) NewLead(_ context.Context, l lead.Accepted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, l)
	return nil
}

func (r *recorder) FindContact(_ context.Context, _, _ string) (string, error) {
	return r.crmID, nil
}

func (r *recorder) Export(_ context.Context, l lead.Accepted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exported = append(r.exported, l)
	return r.exportErr
}

func (r *recorder) QualityLead(_ context.Context, clientID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversion = append(r.conversion, clientID)
	return nil
}

func (r *recorder) Log(_ context.Context, _ lead.Submission, out lead.Outcome, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logged = append(r.logged, out)
	return nil
}

func (r *recorder) Decision(out lead.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, out)
}

func (r *recorder) DependencyFailed(dep string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, dep)
}

func ts(t time.Time) *int64 {
	v := t.Unix()
	return &v
}
