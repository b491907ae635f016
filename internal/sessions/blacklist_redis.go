package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked access tokens until they expire. A Blacklist
// with a nil client accepts every token.
type Blacklist struct {
	client *redis.Client
	prefix string
}

func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client, prefix: "signflow:blacklist:access:"}
}

// Enabled reports whether revocations are persisted.
func (b *Blacklist) Enabled() bool {
	return b != nil && b.client != nil
}

// Revoke stores the token for ttl. Non-positive ttls are ignored since the
// token is already expired.
func (b *Blacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if !b.Enabled() || ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.prefix+token, "1", ttl).Err()
}

// IsRevoked returns true when the token was revoked and has not yet expired.
func (b *Blacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if !b.Enabled() {
		return false, nil
	}
	n, err := b.client.Exists(ctx, b.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
