// Package lock serializes closing sessions per organization through a redis
// advisory lock. Two operators starting a session for the same organization
// would otherwise race the same unbilled entries.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const DefaultTTL = 30 * time.Minute

type SessionLocker struct {
	client *redis.Client
	script *redis.Script

	mu    sync.Mutex
	local map[snowflake.ID]string
}

// New builds the locker. Without a redis client it falls back to in-process
// locking, which is enough for single-replica deployments.
func New(client *redis.Client) *SessionLocker {
	l := &SessionLocker{
		local: make(map[snowflake.ID]string),
	}
	if client != nil {
		l.client = client
		l.script = redis.NewScript(releaseScript)
	}
	return l
}

func key(orgID snowflake.ID) string {
	return "closing:session:" + orgID.String()
}

// Acquire takes the per-organization session lock. The returned token must
// be presented on release so an expired lock grabbed by another session is
// never deleted.
func (l *SessionLocker) Acquire(ctx context.Context, orgID snowflake.ID, ttl time.Duration) (string, bool, error) {
	if l == nil {
		return "", true, nil
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	if l.client == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, held := l.local[orgID]; held {
			return "", false, nil
		}
		l.local[orgID] = token
		return token, true, nil
	}

	ok, err := l.client.SetNX(ctx, key(orgID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *SessionLocker) Release(ctx context.Context, orgID snowflake.ID, token string) error {
	if l == nil || token == "" {
		return nil
	}
	if l.client == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.local[orgID] == token {
			delete(l.local, orgID)
		}
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key(orgID)}, token).Err()
}
