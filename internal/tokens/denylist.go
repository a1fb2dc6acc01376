package tokens

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked refresh token ids until they would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisDenylist keeps one key per revoked jti with a TTL matching the token.
type RedisDenylist struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisDenylist(rdb *redis.Client) *RedisDenylist {
	return &RedisDenylist{rdb: rdb, prefix: "revoked:"}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return d.rdb.SetNX(ctx, d.prefix+jti, "1", ttl).Result()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
