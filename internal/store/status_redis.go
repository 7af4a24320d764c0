package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobStatus is the externally visible state of one print job.
type JobStatus struct {
	Status   string         `json:"status"` // queued|processing|success|failed
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Start    *time.Time     `json:"start,omitempty"`
	End      *time.Time     `json:"end,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RedisStatus stores job status records in Redis with a TTL.
type RedisStatus struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatus connects to Redis for status storage.
func NewRedisStatus(redisURL string) (*RedisStatus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStatus{client: c, ttl: 24 * time.Hour}, nil
}

func (s *RedisStatus) Close() error { return s.client.Close() }

func key(jobID string) string { return "job:" + jobID + ":status" }

// Set writes the full status record for a job.
func (s *RedisStatus) Set(ctx context.Context, jobID string, st JobStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return s.client.Set(ctx, key(jobID), b, s.ttl).Err()
}

// Get reads a job's status; the bool reports whether it exists.
func (s *RedisStatus) Get(ctx context.Context, jobID string) (JobStatus, bool, error) {
	b, err := s.client.Get(ctx, key(jobID)).Bytes()
	if err == redis.Nil {
		return JobStatus{}, false, nil
	}
	if err != nil {
		return JobStatus{}, false, err
	}
	var st JobStatus
	if err := json.Unmarshal(b, &st); err != nil {
		return JobStatus{}, false, fmt.Errorf("unmarshal status: %w", err)
	}
	return st, true, nil
}
