package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	releaseScript = redis.NewScript(1, `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	refreshScript = redis.NewScript(1, `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// RedisLocker is a distributed per-session lock for processes sharing one
// store. The lock key expires after TTL unless the holder keeps refreshing it.
type RedisLocker struct {
	pool   *redis.Pool
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisPool creates a redigo connection pool for addr.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 5 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialReadTimeout(5*time.Second),
				redis.DialWriteTimeout(5*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(pool *redis.Pool, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		pool:   pool,
		prefix: "designpartner:lock:",
		ttl:    ttl,
		retry:  50 * time.Millisecond,
	}
}

// Lock implements Locker.
func (r *RedisLocker) Lock(ctx context.Context, id string) (func(), error) {
	key := r.prefix + id
	token := uuid.NewString()

	for {
		ok, err := r.tryAcquire(ctx, key, token)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	stop := make(chan struct{})
	go r.keepAlive(key, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			if err := r.release(key, token); err != nil {
				log.Warn().Err(err).Str("session", id).Msg("Failed to release session lock")
			}
		})
	}, nil
}

func (r *RedisLocker) tryAcquire(ctx context.Context, key, token string) (bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("redis lock: %w", err)
	}
	defer conn.Close()

	_, err = redis.String(conn.Do("SET", key, token, "NX", "PX", r.ttl.Milliseconds()))
	if errors.Is(err, redis.ErrNil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis lock: %w", err)
	}
	return true, nil
}

func (r *RedisLocker) keepAlive(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn := r.pool.Get()
			n, err := redis.Int(refreshScript.Do(conn, key, token, r.ttl.Milliseconds()))
			_ = conn.Close()
			if err != nil || n == 0 {
				log.Warn().Err(err).Str("key", key).Msg("Session lock refresh failed")
				return
			}
		}
	}
}

func (r *RedisLocker) release(key, token string) error {
	conn := r.pool.Get()
	defer conn.Close()
	_, err := releaseScript.Do(conn, key, token)
	return err
}
