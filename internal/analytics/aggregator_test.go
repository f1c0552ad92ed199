package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadgate/internal/lead"
)

func backends(t *testing.T) map[string]func() Backend {
	return map[string]func() Backend{
		"memory": func() Backend { return NewMemory() },
		"redis": func() Backend {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return NewRedis(client)
		},
	}
}

func record(t *testing.T, a *Aggregator, p lead.Placement, accepted, rejected int, reason string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < accepted; i++ {
		require.NoError(t, a.Record(ctx, p, false, ""))
	}
	for i := 0; i < rejected; i++ {
		require.NoError(t, a.Record(ctx, p, true, reason))
	}
}

func TestBadSourceDetection(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := New(mk())
			p := lead.Placement{Source: "yandex", Campaign: "c1", Content: "site42"}
			record(t, a, p, 2, 8, "garbage_name")

			bad, err := a.BadSources(context.Background(), 10, 70)
			require.NoError(t, err)
			require.Len(t, bad, 1)
			assert.Equal(t, int64(10), bad[0].TotalLeads)
			assert.Equal(t, int64(8), bad[0].RejectedLeads)
			assert.InDelta(t, 80.0, bad[0].RejectionRate(), 0.0001)
			assert.Equal(t, "yandex:c1:site42", bad[0].Key)
			assert.Equal(t, int64(8), bad[0].Reasons["garbage_name"])
		})
	}
}

func TestBadSourcesThresholdsAndOrdering(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := New(mk())
			record(t, a, lead.Placement{Source: "few"}, 0, 9, "honeypot_filled")           // below min leads
			record(t, a, lead.Placement{Source: "ok"}, 7, 3, "garbage_name")               // 30%
			record(t, a, lead.Placement{Source: "worst"}, 1, 19, "high_spam_risk")         // 95%
			record(t, a, lead.Placement{Source: "edge"}, 3, 7, "duplicate_phone")          // exactly 70%
			record(t, a, lead.Placement{Source: "big-edge"}, 6, 14, "rate_limit_exceeded") // 70%, more leads

			bad, err := a.BadSources(context.Background(), 10, 70)
			require.NoError(t, err)
			require.Len(t, bad, 3)
			assert.Equal(t, "worst:none:none", bad[0].Key)
			assert.Equal(t, "big-edge:none:none", bad[1].Key)
			assert.Equal(t, "edge:none:none", bad[2].Key)
		})
	}
}

func TestEmptyPlacementUsesDefaults(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := New(mk())
			record(t, a, lead.Placement{}, 1, 0, "")

			rep, err := a.Report(context.Background(), ReportOptions{})
			require.NoError(t, err)
			assert.Equal(t, 1, rep.SourceCount)
			assert.Equal(t, int64(1), rep.TotalLeads)
			require.Len(t, rep.BadSources, 1, "zero thresholds include every source")
			assert.Equal(t, lead.Placement{Source: "direct", Campaign: "none", Content: "none"}, rep.BadSources[0].Placement)
		})
	}
}

func TestReportAndReset(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := New(mk())
			record(t, a, lead.Placement{Source: "a"}, 5, 5, "garbage_name")
			record(t, a, lead.Placement{Source: "b"}, 10, 0, "")
			record(t, a, lead.Placement{Source: "c"}, 0, 2, "honeypot_filled")
			require.NoError(t, a.Record(ctx, lead.Placement{Source: "c"}, true, "invalid_phone_qc_2"))

			rep, err := a.Report(ctx, ReportOptions{TopN: 2, MinLeads: 3, MinRejectionRate: 50})
			require.NoError(t, err)
			assert.Equal(t, int64(23), rep.TotalLeads)
			assert.Equal(t, int64(8), rep.RejectedLeads)
			assert.InDelta(t, 34.78, rep.RejectionRate, 0.01)
			assert.Equal(t, 3, rep.SourceCount)
			require.Len(t, rep.BadSources, 2)
			assert.Equal(t, "c:none:none", rep.BadSources[0].Key)
			assert.Equal(t, "a:none:none", rep.BadSources[1].Key)
			require.Len(t, rep.TopReasons, 2)
			assert.Equal(t, ReasonCount{Reason: "garbage_name", Count: 5}, rep.TopReasons[0])
			assert.Equal(t, ReasonCount{Reason: "honeypot_filled", Count: 2}, rep.TopReasons[1])
			assert.False(t, rep.PeriodStart.IsZero())
			assert.False(t, rep.PeriodEnd.Before(rep.PeriodStart))

			// reporting does not clear
			again, err := a.Report(ctx, ReportOptions{})
			require.NoError(t, err)
			assert.Equal(t, int64(23), again.TotalLeads)

			require.NoError(t, a.Reset(ctx))
			empty, err := a.Report(ctx, ReportOptions{})
			require.NoError(t, err)
			assert.Equal(t, int64(0), empty.TotalLeads)
			assert.Empty(t, empty.BadSources)
			assert.Equal(t, 0.0, empty.RejectionRate)
		})
	}
}

func TestConcurrentRecord(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := New(mk())
			p := lead.Placement{Source: "vk"}

			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = a.Record(context.Background(), p, i%2 == 0, "garbage_name")
				}(i)
			}
			wg.Wait()

			bad, err := a.BadSources(context.Background(), 0, 0)
			require.NoError(t, err)
			require.Len(t, bad, 1)
			assert.Equal(t, int64(50), bad[0].TotalLeads)
			assert.Equal(t, int64(25), bad[0].RejectedLeads)
		})
	}
}

func TestRedisPeriodStartSurvivesReads(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewRedis(client)
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	require.NoError(t, b.Record(context.Background(), lead.Placement{Source: "x"}.Normalized(), false, ""))
	b.now = func() time.Time { return fixed.Add(time.Hour) }
	require.NoError(t, b.Record(context.Background(), lead.Placement{Source: "x"}.Normalized(), false, ""))

	snap, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixed, snap.PeriodStart)
}
