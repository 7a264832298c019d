package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisSet struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSet stores each id as its own key so entries expire individually.
// A zero ttl keeps ids forever. The key value is the time the id was marked,
// read from now (time.Now when nil).
func NewRedisSet(client *redis.Client, ttl time.Duration, now func() time.Time) *RedisSet {
	if now == nil {
		now = time.Now
	}
	return &RedisSet{client: client, ttl: ttl, now: now}
}

func processedKey(id string) string {
	return "maintcore:anomaly:processed:" + id
}

func (r *RedisSet) Contains(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, processedKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisSet) stamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

func (r *RedisSet) Add(ctx context.Context, id string) error {
	return r.client.Set(ctx, processedKey(id), r.stamp(), r.ttl).Err()
}

// Claim sets the key only if it is absent, so of several instances racing
// on one id exactly one wins.
func (r *RedisSet) Claim(ctx context.Context, id string) (bool, error) {
	return r.client.SetNX(ctx, processedKey(id), r.stamp(), r.ttl).Result()
}

func (r *RedisSet) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSet) Close() error {
	return r.client.Close()
}
