package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"tuteur-backend/internal/models"
)

var ErrClipNotFound = errors.New("speech clip not found")

// ClipStore holds synthesized speech until the client fetches it. Take hands
// the clip over once and forgets it; unclaimed clips expire after the TTL.
type ClipStore interface {
	Put(ctx context.Context, clip *models.SpeechClip) (string, error)
	Take(ctx context.Context, id string) (*models.SpeechClip, error)
}

// MemoryClipStore is the single-instance ClipStore. Unclaimed clips are
// purged by the cache janitor once their TTL passes.
type MemoryClipStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemoryClipStore(ttl time.Duration) *MemoryClipStore {
	return &MemoryClipStore{cache: newExpiringCache(ttl)}
}

func (s *MemoryClipStore) Put(_ context.Context, clip *models.SpeechClip) (string, error) {
	id := uuid.NewString()
	s.cache.Set(id, clip, cache.DefaultExpiration)
	return id, nil
}

func (s *MemoryClipStore) Take(_ context.Context, id string) (*models.SpeechClip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.cache.Get(id)
	if !found {
		return nil, ErrClipNotFound
	}
	s.cache.Delete(id)
	return x.(*models.SpeechClip), nil
}

// Len counts clips still held, expired ones included until the janitor runs.
func (s *MemoryClipStore) Len() int {
	return s.cache.ItemCount()
}

// RedisClipStore shares clips between instances behind a load balancer.
type RedisClipStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisClipStore(client *redis.Client, ttl time.Duration) *RedisClipStore {
	return &RedisClipStore{redis: client, ttl: ttl}
}

func clipKey(id string) string { return "speech_clip:" + id }

func (s *RedisClipStore) Put(ctx context.Context, clip *models.SpeechClip) (string, error) {
	data, err := json.Marshal(clip)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	if err := s.redis.Set(ctx, clipKey(id), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store speech clip: %w", err)
	}
	return id, nil
}

func (s *RedisClipStore) Take(ctx context.Context, id string) (*models.SpeechClip, error) {
	data, err := s.redis.GetDel(ctx, clipKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrClipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load speech clip: %w", err)
	}

	var clip models.SpeechClip
	if err := json.Unmarshal(data, &clip); err != nil {
		return nil, fmt.Errorf("corrupt speech clip: %w", err)
	}
	return &clip, nil
}
