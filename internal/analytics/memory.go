package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/leadgate/internal/lead"
)

// Memory keeps counters in process. Use it for a single instance only.
type Memory struct {
	mu          sync.Mutex
	stats       map[string]*SourceStats
	periodStart time.Time
	now         func() time.Time
}

// NewMemory creates an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{stats: make(map[string]*SourceStats), now: time.Now}
}

// Record implements Backend.
func (m *Memory) Record(_ context.Context, p lead.Placement, rejected bool, reason string) error {
	key := p.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.periodStart.IsZero() {
		m.periodStart = m.now().UTC()
	}
	s, ok := m.stats[key]
	if !ok {
		s = &SourceStats{Placement: p.Normalized(), Key: key, Reasons: make(map[string]int64)}
		m.stats[key] = s
	}
	s.TotalLeads++
	if rejected {
		s.RejectedLeads++
		if reason != "" {
			s.Reasons[reason]++
		}
	}
	return nil
}

// Snapshot implements Backend.
func (m *Memory) Snapshot(_ context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{PeriodStart: m.periodStart, Sources: make([]SourceStats, 0, len(m.stats))}
	for _, s := range m.stats {
		cp := *s
		cp.Reasons = make(map[string]int64, len(s.Reasons))
		for r, n := range s.Reasons {
			cp.Reasons[r] = n
		}
		snap.Sources = append(snap.Sources, cp)
	}
	return snap, nil
}

// Reset implements Backend.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	m.stats = make(map[string]*SourceStats)
	m.periodStart = time.Time{}
	m.mu.Unlock()
	return nil
}
