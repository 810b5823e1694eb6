// Package drafts keeps unsaved editing sessions in Redis so they survive a
// restart of the API process.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrDraftNotFound = errors.New("draft not found or expired")

// Draft is the serialized element tree of a page that has not been saved.
type Draft struct {
	PageID      string    `json:"page_id"`
	Content     string    `json:"content"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedBy   string    `json:"updated_by"`
	SavedAt     time.Time `json:"saved_at"`
}

// RedisStore implements draft storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL. Drafts expire after ttl.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "draft:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(pageID string) string {
	return s.prefix + pageID
}

// Save stores the draft of a page, replacing any previous one and
// refreshing its expiry.
func (s *RedisStore) Save(ctx context.Context, draft Draft) error {
	if draft.SavedAt.IsZero() {
		draft.SavedAt = time.Now().UTC()
	}
	jsonData, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(draft.PageID), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", draft.PageID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, pageID string) (Draft, error) {
	jsonData, err := s.client.Get(ctx, s.key(pageID)).Result()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrDraftNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft %s: %w", pageID, err)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(jsonData), &draft); err != nil {
		return Draft{}, fmt.Errorf("unmarshal draft %s: %w", pageID, err)
	}
	return draft, nil
}

// Discard deletes the draft of a page. Missing drafts are not an error.
func (s *RedisStore) Discard(ctx context.Context, pageID string) error {
	if err := s.client.Del(ctx, s.key(pageID)).Err(); err != nil {
		return fmt.Errorf("discard draft %s: %w", pageID, err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
