// Package redis keeps the crawl cursor marker under a single Redis key, so
// several crawler replicas can share one listing position.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// DefaultKey is used when no key is configured.
const DefaultKey = "skills:cursor:default"

type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// CursorStore implements crawler.CursorStore.
type CursorStore struct {
	client client
	key    string
	ttl    time.Duration
}

// New connects to the Redis instance at url.
func New(ctx context.Context, url, key string, ttl time.Duration) (*CursorStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newWithClient(rdb, key, ttl), nil
}

func newWithClient(c client, key string, ttl time.Duration) *CursorStore {
	if key == "" {
		key = DefaultKey
	}
	return &CursorStore{client: c, key: key, ttl: ttl}
}

// Load returns the stored marker. A missing key means no marker.
func (s *CursorStore) Load(ctx context.Context) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cursor %s: %w", s.key, err)
	}
	if strings.ContainsAny(val, "\r\n") {
		return "", false, crawler.ErrCorruptMarker
	}
	return val, val != "", nil
}

// Save overwrites the marker. A zero ttl keeps it forever.
func (s *CursorStore) Save(ctx context.Context, marker string) error {
	if err := s.client.Set(ctx, s.key, marker, s.ttl).Err(); err != nil {
		return fmt.Errorf("set cursor %s: %w", s.key, err)
	}
	return nil
}

// Close releases the client.
func (s *CursorStore) Close() error {
	return s.client.Close()
}
