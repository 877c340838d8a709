// Package lock serializes image replacements per owner across instances
// using Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/ClassifiedsGo/pkg/errors"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

const keyPrefix = "media:lock:"

// DefaultTTL bounds how long a crashed holder can block an owner.
const DefaultTTL = 30 * time.Second

// ErrLocked is returned when another replacement for the same owner holds
// the lock.
var ErrLocked = fmt.Errorf("owner locked: %w", apperrors.ErrConflict)

// releaseScript deletes the key only while it still carries our token, so an
// expired holder cannot release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseFunc releases an acquired lock.
type ReleaseFunc func(ctx context.Context) error

// OwnerLock is a Redis-backed mutex keyed by owner kind and id.
type OwnerLock struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewOwnerLock creates a lock manager. A non-positive ttl uses DefaultTTL.
func NewOwnerLock(client redis.UniversalClient, ttl time.Duration) *OwnerLock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &OwnerLock{client: client, ttl: ttl}
}

// Acquire takes the lock for (kind, id) without waiting. It fails with an
// error matching ErrLocked when the lock is held.
func (l *OwnerLock) Acquire(ctx context.Context, kind domain.OwnerKind, id string) (ReleaseFunc, error) {
	key := lockKey(kind, id)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire owner lock: %w", err)
	}
	if !ok {
		return nil, apperrors.New("UPLOAD_IN_PROGRESS", http.StatusConflict,
			fmt.Sprintf("another image upload for %s owner %s is in progress", kind, id), ErrLocked)
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release owner lock: %w", err)
		}
		return nil
	}, nil
}

func lockKey(kind domain.OwnerKind, id string) string {
	return keyPrefix + string(kind) + ":" + id
}
