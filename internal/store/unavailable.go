package store

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/leadgate/internal/lead"
)

// ErrNotConfigured is returned by Unavailable for every call.
var ErrNotConfigured = errors.New("store: redis not configured")

// Unavailable stands in for the Redis-backed stores when no Redis URL is
// configured. Every call fails, so callers apply their fail policy exactly
// as they would for an unreachable server.
type Unavailable struct{}

func (Unavailable) Hit(context.Context, string, int, time.Duration) (bool, error) {
	return false, ErrNotConfigured
}

func (Unavailable) IsDuplicate(context.Context, Kind, string) (bool, error) {
	return false, ErrNotConfigured
}

func (Unavailable) Claim(context.Context, []Identity, time.Duration) (Kind, error) {
	return "", ErrNotConfigured
}

func (Unavailable) IsBlacklisted(context.Context, lead.Placement) (bool, error) {
	return false, ErrNotConfigured
}
