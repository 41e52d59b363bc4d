package lock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobLock is the cluster-wide claim on the right to assign a driver to a
// job. TryClaim returns true for exactly one caller per job id across all
// concurrent workers; every later call returns false regardless of driver
// until Release frees the claim.
type JobLock interface {
	TryClaim(ctx context.Context, jobID, driverID string) (bool, error)
	Release(ctx context.Context, jobID string) error
	// Holder reports the winning driver id, empty when unclaimed.
	Holder(ctx context.Context, jobID string) (string, error)
}

// MemoryLock serves tests and single-process deployments.
type MemoryLock struct {
	mu     sync.Mutex
	claims map[string]string
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{claims: make(map[string]string)}
}

func (l *MemoryLock) TryClaim(ctx context.Context, jobID, driverID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.claims[jobID]; taken {
		return false, nil
	}
	l.claims[jobID] = driverID
	return true, nil
}

func (l *MemoryLock) Release(ctx context.Context, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claims, jobID)
	return nil
}

func (l *MemoryLock) Holder(ctx context.Context, jobID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.claims[jobID], nil
}

// RedisLock claims jobs with SET NX so the race resolves inside Redis even
// with many API replicas. TTL bounds leakage if a process dies mid-dispatch;
// it should be at least the acceptance deadline.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, ttl: ttl}
}

func lockKey(jobID string) string { return "job:lock:" + jobID }

func (l *RedisLock) TryClaim(ctx context.Context, jobID, driverID string) (bool, error) {
	return l.client.SetNX(ctx, lockKey(jobID), driverID, l.ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, jobID string) error {
	return l.client.Del(ctx, lockKey(jobID)).Err()
}

func (l *RedisLock) Holder(ctx context.Context, jobID string) (string, error) {
	v, err := l.client.Get(ctx, lockKey(jobID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}
