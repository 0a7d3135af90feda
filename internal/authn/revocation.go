package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore is a best-effort Redis denylist of revoked token ids
// (spec §6.1 logout: "revokes the presented token (best-effort)"). JWTs are
// otherwise stateless; a revoked jti is remembered only until its token
// would have expired anyway.
type RevocationStore struct {
	rdb *redis.Client
}

// NewRevocationStore builds a RevocationStore.
func NewRevocationStore(rdb *redis.Client) *RevocationStore {
	return &RevocationStore{rdb: rdb}
}

func revocationKey(jti string) string {
	return fmt.Sprintf("bridgecore:revoked:%s", jti)
}

// Revoke denies jti until ttl elapses, which should be set to the token's
// remaining lifetime so the denylist entry never outlives the token itself.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, revocationKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether jti has been revoked. A Redis error fails open
// (not revoked) rather than locking every caller out on an infrastructure
// blip, matching the read-through cache's fail-open policy.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) bool {
	n, err := s.rdb.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false
	}
	return n > 0
}
