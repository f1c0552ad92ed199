package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadgate/internal/datanorm"
)

// Kind distinguishes the identity namespaces.
type Kind string

const (
	KindPhone Kind = "phone"
	KindEmail Kind = "email"
)

// Identity is one normalized phone or email.
type Identity struct {
	Kind  Kind
	Value string
}

// Lua script claiming every key or none. Returns the 1-based index of the
// first key that already exists, or 0 after setting all of them.
const claimLuaScript = `
for i, key in ipairs(KEYS) do
    if redis.call("EXISTS", key) == 1 then
        return i
    end
end
for _, key in ipairs(KEYS) do
    redis.call("SET", key, ARGV[1], "EX", ARGV[2])
end
return 0
`

// DedupStore remembers accepted identities for a fixed TTL.
type DedupStore struct {
	redis  *redis.Client
	script *redis.Script
	now    func() time.Time
}

// NewDedupStore creates a dedup store on the given client.
func NewDedupStore(client *redis.Client) *DedupStore {
	return &DedupStore{
		redis:  client,
		script: redis.NewScript(claimLuaScript),
		now:    time.Now,
	}
}

func dedupKey(kind Kind, normalized string) string {
	return fmt.Sprintf("lead:%s:%s", kind, datanorm.HashIdentity(normalized))
}

// IsDuplicate reports whether the identity was accepted within the TTL.
func (d *DedupStore) IsDuplicate(ctx context.Context, kind Kind, normalized string) (bool, error) {
	n, err := d.redis.Exists(ctx, dedupKey(kind, normalized)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup lookup %s: %w", kind, err)
	}
	return n > 0, nil
}

// Claim marks all identities atomically. When any of them is already
// present nothing is written and its Kind is returned.
func (d *DedupStore) Claim(ctx context.Context, ids []Identity, ttl time.Duration) (Kind, error) {
	if len(ids) == 0 {
		return "", nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = dedupKey(id.Kind, id.Value)
	}
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	idx, err := d.script.Run(ctx, d.redis, keys, d.now().UTC().Format(time.RFC3339), seconds).Int()
	if err != nil {
		return "", fmt.Errorf("dedup claim: %w", err)
	}
	if idx > 0 && idx <= len(ids) {
		return ids[idx-1].Kind, nil
	}
	return "", nil
}
