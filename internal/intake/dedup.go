package intake

import (
	"context"
	"time"

	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/store"
)

// DedupStore remembers accepted identities.
type DedupStore interface {
	IsDuplicate(ctx context.Context, kind store.Kind, normalized string) (bool, error)
	Claim(ctx context.Context, ids []store.Identity, ttl time.Duration) (store.Kind, error)
}

// DedupStage rejects identities accepted within the dedup window. Phone is
// checked first; email only when one was supplied.
type DedupStage struct {
	store DedupStore
	mode  FailMode
}

// NewDedupStage wraps a store.
func NewDedupStage(s DedupStore, mode FailMode) *DedupStage {
	return &DedupStage{store: s, mode: mode}
}

func (s *DedupStage) Name() string { return "dedup" }

func (s *DedupStage) Check(ctx context.Context, ev *Evaluation) *lead.Reason {
	if r := s.check(ctx, ev, store.KindPhone, ev.Phone, lead.CodeDuplicatePhone); r != nil {
		return r
	}
	if ev.Email != "" {
		return s.check(ctx, ev, store.KindEmail, ev.Email, lead.CodeDuplicateEmail)
	}
	return nil
}

func (s *DedupStage) check(ctx context.Context, ev *Evaluation, kind store.Kind, value string, code lead.Code) *lead.Reason {
	dup, err := s.store.IsDuplicate(ctx, kind, value)
	if err != nil {
		return unavailable(ev, DepDedup, s.mode, lead.AnnotationStoreUnavailable, lead.NewReason(code), err)
	}
	if dup {
		return lead.NewReason(code)
	}
	return nil
}

// identities lists what the gate claims on acceptance.
func identities(ev *Evaluation) []store.Identity {
	ids := []store.Identity{{Kind: store.KindPhone, Value: ev.Phone}}
	if ev.Email != "" {
		ids = append(ids, store.Identity{Kind: store.KindEmail, Value: ev.Email})
	}
	return ids
}

func duplicateReason(kind store.Kind) *lead.Reason {
	if kind == store.KindEmail {
		return lead.NewReason(lead.CodeDuplicateEmail)
	}
	return lead.NewReason(lead.CodeDuplicatePhone)
}
