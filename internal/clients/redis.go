package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"minimalapi/school/internal/bootstrap"
	"minimalapi/school/internal/config"
	"minimalapi/school/internal/student"
)

const redisProbeName = "redis"

// redisBackend is the subset of go-redis used by RedisClient. It is
// implemented by realRedisBackend and by test doubles, so tests need not
// construct *redis.StatusCmd values.
type redisBackend interface {
	PingResult(ctx context.Context) (string, error)
	GetResult(ctx context.Context, key string) (string, error)
	SetResult(ctx context.Context, key, value string, ttl time.Duration) error
	DelResult(ctx context.Context, keys ...string) error
	Close() error
}

type realRedisBackend struct {
	client *redis.Client
}

func (r *realRedisBackend) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisBackend) GetResult(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *realRedisBackend) SetResult(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *realRedisBackend) DelResult(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *realRedisBackend) Close() error {
	return r.client.Close()
}

// cachedStudent is the JSON form stored under student:<id>.
type cachedStudent struct {
	ID        int       `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	BirthDate time.Time `json:"birthDate"`
}

// RedisClient is the read-through student cache. Every call runs through the
// circuit breaker; after 3 consecutive failures the breaker opens and calls
// fail fast with "circuit open" until it half-opens.
type RedisClient struct {
	cb      *gobreaker.CircuitBreaker
	backend redisBackend
	ttl     time.Duration
}

// NewRedisClient creates a RedisClient. go-redis dials lazily, so no
// connection is opened at construction time.
func NewRedisClient(cfg config.CacheConfig, cb *gobreaker.CircuitBreaker) *RedisClient {
	return &RedisClient{
		cb: cb,
		backend: &realRedisBackend{
			client: redis.NewClient(&redis.Options{
				Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
				Password: cfg.Password,
				DB:       cfg.DB,
			}),
		},
		ttl: cfg.TTL,
	}
}

// Probe sends a PING command to Redis and validates the PONG response.
func (c *RedisClient) Probe(ctx context.Context) bootstrap.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		val, err := c.backend.PingResult(ctx)
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		return bootstrap.ProbeResult{
			Name:      redisProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     probeError(err),
		}
	}

	return bootstrap.ProbeResult{
		Name:      redisProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// Get returns the cached student with business id id. A miss is (zero, false,
// nil) and does not count against the breaker.
func (c *RedisClient) Get(ctx context.Context, id int) (student.Student, bool, error) {
	raw, err := c.cb.Execute(func() (any, error) {
		val, err := c.backend.GetResult(ctx, studentKey(id))
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", studentKey(id), err)
		}
		return val, nil
	})
	if err != nil {
		return student.Student{}, false, err
	}

	val, ok := raw.(string)
	if !ok {
		return student.Student{}, false, nil
	}

	var cs cachedStudent
	if err := json.Unmarshal([]byte(val), &cs); err != nil {
		return student.Student{}, false, fmt.Errorf("decoding cached student %d: %w", id, err)
	}
	return student.Student{
		ID:        cs.ID,
		FirstName: cs.FirstName,
		LastName:  cs.LastName,
		BirthDate: cs.BirthDate,
	}, true, nil
}

// Set stores s for the configured TTL.
func (c *RedisClient) Set(ctx context.Context, s student.Student) error {
	payload, err := json.Marshal(cachedStudent{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		BirthDate: s.BirthDate,
	})
	if err != nil {
		return fmt.Errorf("encoding student %d: %w", s.ID, err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		if err := c.backend.SetResult(ctx, studentKey(s.ID), string(payload), c.ttl); err != nil {
			return nil, fmt.Errorf("set %s: %w", studentKey(s.ID), err)
		}
		return nil, nil
	})
	return err
}

// Invalidate drops the cached entry for id.
func (c *RedisClient) Invalidate(ctx context.Context, id int) error {
	_, err := c.cb.Execute(func() (any, error) {
		if err := c.backend.DelResult(ctx, studentKey(id)); err != nil {
			return nil, fmt.Errorf("del %s: %w", studentKey(id), err)
		}
		return nil, nil
	})
	return err
}

// Close releases the underlying connection pool.
func (c *RedisClient) Close() error {
	return c.backend.Close()
}

func studentKey(id int) string {
	return "student:" + strconv.Itoa(id)
}
