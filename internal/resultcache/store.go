package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dlstracker-backend/internal/identity"
	"dlstracker-backend/internal/tracker"

	"github.com/redis/go-redis/v9"
)

// Entry is the latest scrape of one team.
type Entry struct {
	Identity  identity.TrackedIdentity `json:"identity"`
	FetchedAt time.Time                `json:"fetched_at"`
	Result    tracker.ScrapeResult     `json:"result"`
}

// Store persists entries by identity.
//
// note: fault injection point
type Store interface {
	Load(ctx context.Context, id identity.TrackedIdentity) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
	Count(ctx context.Context) (int, error)
	All(ctx context.Context) ([]Entry, error)
	// Evict removes entries fetched before cutoff and returns how many were removed.
	Evict(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mutex   sync.Mutex
	entries map[identity.TrackedIdentity]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[identity.TrackedIdentity]Entry{}}
}

func (s *MemoryStore) Load(_ context.Context, id identity.TrackedIdentity) (Entry, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entry, ok := s.entries[id]
	return entry, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, entry Entry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[entry.Identity] = entry
	return nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries), nil
}

func (s *MemoryStore) All(context.Context) ([]Entry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) Evict(_ context.Context, cutoff time.Time) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	removed := 0
	for id, e := range s.entries {
		if e.FetchedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

const redisKeyPrefix = "team:"

// RedisStore shares entries between several API replicas. Keys expire after ttl so Evict has
// nothing to do.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) RedisStore {
	return RedisStore{client: client, ttl: ttl}
}

func redisKey(id identity.TrackedIdentity) string {
	return redisKeyPrefix + string(id)
}

func (s RedisStore) Load(ctx context.Context, id identity.TrackedIdentity) (Entry, bool, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	err = json.Unmarshal(data, &entry)
	if err != nil {
		return Entry{}, false, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return entry, true, nil
}

func (s RedisStore) Save(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", entry.Identity, err)
	}
	return s.client.Set(ctx, redisKey(entry.Identity), data, s.ttl).Err()
}

func (s RedisStore) keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (s RedisStore) Count(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	return len(keys), err
}

func (s RedisStore) All(ctx context.Context) ([]Entry, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(values))
	for i, v := range values {
		// expired between SCAN and MGET
		str, ok := v.(string)
		if !ok {
			continue
		}
		var entry Entry
		err := json.Unmarshal([]byte(str), &entry)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s RedisStore) Evict(context.Context, time.Time) (int, error) {
	return 0, nil
}
