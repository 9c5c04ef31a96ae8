package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xstock-options/internal/application/options"
	"xstock-options/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const optionTTL = 10 * time.Minute

// putIfNewerLua writes a snapshot only when its version is above the cached
// one, so a slow writer never replaces a later commit.
const putIfNewerLua = `
local cur = redis.call('HGET', KEYS[1], 'ver')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
    return 0
end
redis.call('HSET', KEYS[1], 'ver', ARGV[1], 'cc', ARGV[2], 'vault', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`

// OptionCache stores covered-call snapshots in the fixed record layout.
//
// Key schema:
//
//	option:{id} - hash with fields "ver", "cc" and "vault"
type OptionCache struct {
	rdb        *redis.Client
	putIfNewer *redis.Script
	ttl        time.Duration
}

// NewOptionCache creates an OptionCache backed by the given Client.
func NewOptionCache(c *Client) *OptionCache {
	return &OptionCache{
		rdb:        c.Underlying(),
		putIfNewer: redis.NewScript(putIfNewerLua),
		ttl:        optionTTL,
	}
}

func optionKey(id uuid.UUID) string { return "option:" + id.String() }

// PutOption caches the snapshot unless a newer version is already cached.
func (oc *OptionCache) PutOption(ctx context.Context, cc *domain.CoveredCall, vault *domain.Vault) error {
	rawCC, err := domain.EncodeCoveredCall(cc)
	if err != nil {
		return fmt.Errorf("redis: encode option %s: %w", cc.ID, err)
	}
	rawVault, err := domain.EncodeVault(vault)
	if err != nil {
		return fmt.Errorf("redis: encode vault %s: %w", cc.ID, err)
	}
	err = oc.putIfNewer.Run(ctx, oc.rdb, []string{optionKey(cc.ID)},
		cc.Version, rawCC, rawVault, oc.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis: put option %s: %w", cc.ID, err)
	}
	return nil
}

// GetOption returns the cached snapshot. It returns domain.ErrNotFound on a
// miss and a *domain.DecodeError when the stored bytes are corrupt.
func (oc *OptionCache) GetOption(ctx context.Context, id uuid.UUID) (*domain.CoveredCall, *domain.Vault, error) {
	vals, err := oc.rdb.HMGet(ctx, optionKey(id), "cc", "vault").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("redis: get option %s: %w", id, err)
	}
	rawCC, ok1 := vals[0].(string)
	rawVault, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil, nil, domain.ErrNotFound
	}
	cc, err := domain.DecodeCoveredCall([]byte(rawCC))
	if err != nil {
		return nil, nil, err
	}
	vault, err := domain.DecodeVault([]byte(rawVault))
	if err != nil {
		return nil, nil, err
	}
	if cc.ID != id || vault.CoveredCallID != id {
		return nil, nil, &domain.DecodeError{Field: "id", Reason: "snapshot does not belong to key"}
	}
	return cc, vault, nil
}

// Invalidate removes a snapshot.
func (oc *OptionCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := oc.rdb.Del(ctx, optionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate option %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ options.SnapshotCache = (*OptionCache)(nil)
