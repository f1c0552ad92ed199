package blacklist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadgate/internal/analytics"
	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/store"
)

type alerts struct {
	mu          sync.Mutex
	bad         []string
	blacklisted []string
}

func (a *alerts) BadSource(_ context.Context, s analytics.SourceStats) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bad = append(a.bad, s.Placement.Key())
	return nil
}

func (a *alerts) Blacklisted(_ context.Context, s analytics.SourceStats, _ time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blacklisted = append(a.blacklisted, s.Placement.Key())
	return nil
}

type counter struct{ n int }

func (c *counter) BlacklistAdded() { c.n++ }

func record(t *testing.T, agg *analytics.Aggregator, p lead.Placement, accepted, rejected int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < accepted; i++ {
		require.NoError(t, agg.Record(ctx, p, false, ""))
	}
	for i := 0; i < rejected; i++ {
		require.NoError(t, agg.Record(ctx, p, true, "invalid_phone_qc_2"))
	}
}

func setup(t *testing.T) (*miniredis.Miniredis, *store.Blacklist, *analytics.Aggregator) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, store.NewBlacklist(client), analytics.New(analytics.NewMemory())
}

func TestReason(t *testing.T) {
	s := analytics.SourceStats{TotalLeads: 10, RejectedLeads: 8}
	assert.Equal(t, "rejection_rate_80.0%_leads_10_rejected_8", Reason(s))
}

func TestRunOnceBlacklistsBadPlacement(t *testing.T) {
	mr, bl, agg := setup(t)
	bad := lead.Placement{Source: "vk", Campaign: "promo", Content: "banner1"}
	good := lead.Placement{Source: "yandex", Campaign: "spring", Content: "ad1"}
	record(t, agg, bad, 2, 8)
	record(t, agg, good, 9, 1)

	c := &counter{}
	a := &alerts{}
	r := NewRefresher(agg, bl, Options{Counter: c, Alerter: a})

	added, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, c.n)
	assert.Equal(t, []string{"vk:promo:banner1"}, a.blacklisted)
	assert.Empty(t, a.bad, "alerts are off without AlertMinLeads")

	listed, err := bl.IsBlacklisted(context.Background(), bad)
	require.NoError(t, err)
	assert.True(t, listed)
	listed, err = bl.IsBlacklisted(context.Background(), good)
	require.NoError(t, err)
	assert.False(t, listed)

	ttl := mr.TTL("placement:vk:promo:banner1")
	assert.Equal(t, 21*24*time.Hour, ttl)
	entries, err := bl.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rejection_rate_80.0%_leads_10_rejected_8", entries[0].Reason)
}

func TestRunOnceBelowMinimumLeads(t *testing.T) {
	_, bl, agg := setup(t)
	record(t, agg, lead.Placement{Source: "vk"}, 0, 9)

	added, err := NewRefresher(agg, bl, Options{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestRunOnceDoesNotExtendExistingEntry(t *testing.T) {
	mr, bl, agg := setup(t)
	p := lead.Placement{Source: "vk", Campaign: "promo", Content: "banner1"}
	record(t, agg, p, 0, 10)

	r := NewRefresher(agg, bl, Options{})
	added, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, added)

	mr.FastForward(48 * time.Hour)
	added, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 19*24*time.Hour, mr.TTL("placement:vk:promo:banner1"))
}

func TestRunOnceAlertsWithCooldown(t *testing.T) {
	_, bl, agg := setup(t)
	record(t, agg, lead.Placement{Source: "mytarget", Campaign: "c1"}, 3, 3)

	a := &alerts{}
	r := NewRefresher(agg, bl, Options{AlertMinLeads: 5, AlertRate: 50, Alerter: a})
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mytarget:c1:none"}, a.bad)
	assert.Empty(t, a.blacklisted)

	now = now.Add(time.Hour)
	_, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, a.bad, 1)

	now = now.Add(24 * time.Hour)
	_, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, a.bad, 2)
}

type fixedSources struct {
	stats []analytics.SourceStats
}

func (f *fixedSources) BadSources(context.Context, int, float64) ([]analytics.SourceStats, error) {
	return f.stats, nil
}

func TestAlertCooldownEntriesExpire(t *testing.T) {
	_, bl, _ := setup(t)
	first := analytics.SourceStats{Placement: lead.Placement{Source: "mytarget"}, TotalLeads: 6, RejectedLeads: 4}
	second := analytics.SourceStats{Placement: lead.Placement{Source: "vk"}, TotalLeads: 6, RejectedLeads: 4}
	src := &fixedSources{stats: []analytics.SourceStats{first}}

	r := NewRefresher(src, bl, Options{MinLeads: 1000, AlertMinLeads: 5, AlertRate: 50, Alerter: &alerts{}})
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, r.lastAlert, 1)

	src.stats = []analytics.SourceStats{second}
	now = now.Add(25 * time.Hour)
	_, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, r.lastAlert, 1)
	assert.Contains(t, r.lastAlert, "vk:none:none")
}

type failingSources struct{}

func (failingSources) BadSources(context.Context, int, float64) ([]analytics.SourceStats, error) {
	return nil, errors.New("redis: connection refused")
}

func TestRunOnceSourcesError(t *testing.T) {
	_, bl, _ := setup(t)
	_, err := NewRefresher(failingSources{}, bl, Options{}).RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad sources")
}

func TestRunOnceStoreDown(t *testing.T) {
	mr, bl, agg := setup(t)
	record(t, agg, lead.Placement{Source: "vk"}, 0, 10)
	mr.Close()

	added, err := NewRefresher(agg, bl, Options{}).RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, added)
}

type busyLock struct{}

func (busyLock) Acquire(context.Context) (bool, error) { return false, nil }
func (busyLock) Release(context.Context) error         { return nil }

func TestTickSkipsWhenLocked(t *testing.T) {
	_, bl, agg := setup(t)
	p := lead.Placement{Source: "vk"}
	record(t, agg, p, 0, 10)

	NewRefresher(agg, bl, Options{Lock: busyLock{}}).tick(context.Background())

	listed, err := bl.IsBlacklisted(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestStartStopsOnCancel(t *testing.T) {
	_, bl, agg := setup(t)
	p := lead.Placement{Source: "vk"}
	record(t, agg, p, 0, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRefresher(agg, bl, Options{Interval: time.Hour}).Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		ok, _ := bl.IsBlacklisted(context.Background(), p)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
