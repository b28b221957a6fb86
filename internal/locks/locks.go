package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/smaehq/smae-backend/internal/logger"
)

// SkillLocker serializes mutations per skill. Level and fail-count writes
// (validation submissions, panic, level-up) must hold the lock so two
// concurrent requests are applied one after the other against the latest
// persisted state.
type SkillLocker interface {
	Lock(ctx context.Context, skillID uuid.UUID) (func(), error)
}

// New returns a redis-backed locker when an address is configured, otherwise
// a process-local one. Single-instance deployments need no redis.
func New(log *logger.Logger, redisAddr string) (SkillLocker, error) {
	if redisAddr == "" {
		return NewLocalLocker(), nil
	}
	return NewRedisLocker(log, redisAddr)
}

type localLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewLocalLocker() SkillLocker {
	return &localLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *localLocker) Lock(ctx context.Context, skillID uuid.UUID) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[skillID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[skillID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

const (
	redisLockTTL   = 10 * time.Second
	redisLockRetry = 50 * time.Millisecond
)

// Compare-and-delete so a lock that expired and was re-acquired elsewhere is
// never released by the original holder.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisLocker struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisLocker(log *logger.Logger, addr string) (SkillLocker, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisLocker{
		log: log.With("service", "RedisSkillLocker"),
		rdb: rdb,
	}, nil
}

func (l *redisLocker) Lock(ctx context.Context, skillID uuid.UUID) (func(), error) {
	key := "smae:skill-lock:" + skillID.String()
	token := uuid.New().String()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, redisLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire skill lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisLockRetry):
		}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("Failed to release skill lock", "skill_id", skillID, "error", err)
		}
	}
	return release, nil
}
