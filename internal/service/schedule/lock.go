package schedule

import (
	"context"
	"time"

	"github.com/jmehdipour/church-sms/internal/util"
	"github.com/redis/go-redis/v9"
)

// Locker guards a trigger run against overlapping runs.
type Locker interface {
	// TryLock returns ok=false when another run holds the lock.
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// RedisLocker is a SET NX PX lock with a token-checked release.
type RedisLocker struct {
	rds *redis.Client
	key string
	ttl time.Duration
}

func NewRedisLocker(rds *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = "churchsms:scheduler:lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{rds: rds, key: key, ttl: ttl}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := util.NewID()

	ok, err := l.rds.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		// the run ctx may already be done
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rds, []string{l.key}, token).Err()
	}
	return unlock, true, nil
}
