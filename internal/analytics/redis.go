package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadgate/internal/lead"
)

const (
	redisIndexKey  = "analytics:placements"
	redisPeriodKey = "analytics:period_start"
	redisStatsKey  = "analytics:placement:"
	reasonField    = "reason:"
)

// Lua script dropping every counter hash listed in the index, the index
// itself and the period marker in one step.
const resetLuaScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, m in ipairs(members) do
    redis.call("DEL", ARGV[1] .. m)
end
redis.call("DEL", KEYS[1], KEYS[2])
return #members
`

// Redis keeps counters in Redis so every server instance and the worker
// see the same numbers.
type Redis struct {
	redis       *redis.Client
	resetScript *redis.Script
	now         func() time.Time
}

// NewRedis creates a shared backend on the given client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{redis: client, resetScript: redis.NewScript(resetLuaScript), now: time.Now}
}

// Record implements Backend. All increments land in one MULTI.
func (r *Redis) Record(ctx context.Context, p lead.Placement, rejected bool, reason string) error {
	key := p.Key()
	hash := redisStatsKey + key
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisPeriodKey, r.now().UTC().Format(time.RFC3339), 0)
		pipe.SAdd(ctx, redisIndexKey, key)
		pipe.HIncrBy(ctx, hash, "total", 1)
		if rejected {
			pipe.HIncrBy(ctx, hash, "rejected", 1)
			if reason != "" {
				pipe.HIncrBy(ctx, hash, reasonField+reason, 1)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("analytics record: %w", err)
	}
	return nil
}

// Snapshot implements Backend.
func (r *Redis) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	start, err := r.redis.Get(ctx, redisPeriodKey).Result()
	switch {
	case err == redis.Nil:
	case err != nil:
		return snap, fmt.Errorf("analytics period: %w", err)
	default:
		snap.PeriodStart, _ = time.Parse(time.RFC3339, start)
	}

	keys, err := r.redis.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return snap, fmt.Errorf("analytics index: %w", err)
	}
	if len(keys) == 0 {
		return snap, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HGetAll(ctx, redisStatsKey+k)
		}
		return nil
	})
	if err != nil {
		return snap, fmt.Errorf("analytics load: %w", err)
	}

	snap.Sources = make([]SourceStats, 0, len(keys))
	for i, k := range keys {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		s := SourceStats{Placement: lead.ParsePlacementKey(k), Key: k, Reasons: make(map[string]int64)}
		for f, v := range fields {
			n, _ := strconv.ParseInt(v, 10, 64)
			switch {
			case f == "total":
				s.TotalLeads = n
			case f == "rejected":
				s.RejectedLeads = n
			case strings.HasPrefix(f, reasonField):
				s.Reasons[strings.TrimPrefix(f, reasonField)] = n
			}
		}
		snap.Sources = append(snap.Sources, s)
	}
	return snap, nil
}

// Reset implements Backend.
func (r *Redis) Reset(ctx context.Context) error {
	if err := r.resetScript.Run(ctx, r.redis, []string{redisIndexKey, redisPeriodKey}, redisStatsKey).Err(); err != nil {
		return fmt.Errorf("analytics reset: %w", err)
	}
	return nil
}
