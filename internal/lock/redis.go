package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/rand"
)

const retryBase = 25 * time.Millisecond

// unlockScript deletes the key only while it still carries our token, so an
// expired lock taken over by another instance is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Logger is the subset of logging the Redis locker needs.
type Logger interface {
	Errorf(string, ...interface{})
}

// Redis is a Locker shared by every instance pointed at the same Redis.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	logger Logger
}

func NewRedis(rdb *redis.Client, ttl, wait time.Duration, logger Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{rdb: rdb, prefix: "ewaste:lock:", ttl: ttl, wait: wait, logger: logger}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()

	ctx, cancel := withWait(ctx, r.wait)
	defer cancel()

	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrapf(ErrBusy, "%s: %v", key, ctx.Err())
			}
			return nil, errors.Wrapf(err, "lock: set %s", k)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() { r.unlock(k, token) })
			}, nil
		}

		delay := retryBase + time.Duration(rand.Int63n(int64(retryBase)))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrapf(ErrBusy, "%s: %v", key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (r *Redis) unlock(key, token string) {
	// the caller's context may already be done
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil && r.logger != nil {
		r.logger.Errorf("lock: release %s: %v", key, err)
	}
}
