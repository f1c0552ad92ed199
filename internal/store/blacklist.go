package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadgate/internal/lead"
)

const placementPrefix = "placement:"

// BlacklistEntry is one blocked placement as listed to operators.
type BlacklistEntry struct {
	Placement lead.Placement `json:"placement"`
	Key       string         `json:"key"`
	Reason    string         `json:"reason"`
	AddedAt   time.Time      `json:"added_at"`
	ExpiresIn time.Duration  `json:"-"`
	TTLDays   float64        `json:"ttl_days"`
}

type blacklistValue struct {
	Reason  string    `json:"reason"`
	AddedAt time.Time `json:"added_at"`
}

// Blacklist keeps blocked placements as self-expiring keys.
type Blacklist struct {
	redis *redis.Client
	now   func() time.Time
}

// NewBlacklist creates a placement blacklist on the given client.
func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{redis: client, now: time.Now}
}

func placementKey(p lead.Placement) string {
	return placementPrefix + p.Key()
}

// IsBlacklisted reports whether the placement is currently blocked.
func (b *Blacklist) IsBlacklisted(ctx context.Context, p lead.Placement) (bool, error) {
	n, err := b.redis.Exists(ctx, placementKey(p)).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return n > 0, nil
}

// Add blocks the placement for ttl unless it is already blocked. An existing
// entry keeps its original TTL.
func (b *Blacklist) Add(ctx context.Context, p lead.Placement, reason string, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(blacklistValue{Reason: reason, AddedAt: b.now().UTC()})
	if err != nil {
		return false, err
	}
	added, err := b.redis.SetNX(ctx, placementKey(p), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist add: %w", err)
	}
	return added, nil
}

// Remove unblocks the placement. Only operators call this.
func (b *Blacklist) Remove(ctx context.Context, p lead.Placement) (bool, error) {
	n, err := b.redis.Del(ctx, placementKey(p)).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist remove: %w", err)
	}
	return n > 0, nil
}

// List returns every live entry, longest remaining TTL first.
func (b *Blacklist) List(ctx context.Context) ([]BlacklistEntry, error) {
	var entries []BlacklistEntry
	iter := b.redis.Scan(ctx, 0, placementPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		entry, err := b.load(ctx, key)
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("blacklist scan: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ExpiresIn != entries[j].ExpiresIn {
			return entries[i].ExpiresIn > entries[j].ExpiresIn
		}
		return entries[i].Key < entries[j].Key
	})
	return entries, nil
}

func (b *Blacklist) load(ctx context.Context, key string) (BlacklistEntry, error) {
	raw, err := b.redis.Get(ctx, key).Result()
	if err != nil {
		return BlacklistEntry{}, err
	}
	ttl, err := b.redis.TTL(ctx, key).Result()
	if err != nil {
		return BlacklistEntry{}, fmt.Errorf("blacklist ttl: %w", err)
	}

	var v blacklistValue
	if jsonErr := json.Unmarshal([]byte(raw), &v); jsonErr != nil {
		// entries set by hand from redis-cli
		v.Reason = raw
	}
	k := strings.TrimPrefix(key, placementPrefix)
	return BlacklistEntry{
		Placement: lead.ParsePlacementKey(k),
		Key:       k,
		Reason:    v.Reason,
		AddedAt:   v.AddedAt,
		ExpiresIn: ttl,
		TTLDays:   float64(int(ttl.Hours()/24*10)) / 10,
	}, nil
}
