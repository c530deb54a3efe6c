package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const recordVersion1 = 1

var (
	// ErrNotFound is returned when no record exists for the transaction id.
	ErrNotFound = errors.New("transaction not found")
	// ErrExpired is returned when saving a transaction whose token has no time left.
	ErrExpired = errors.New("transaction expired")
	// ErrBackend wraps Redis failures.
	ErrBackend = errors.New("transaction store backend unavailable")
	// ErrCorrupt is returned for records that cannot be decoded.
	ErrCorrupt = errors.New("corrupt transaction record")
)

// Store is a Redis-backed transaction store.
type Store struct {
	redis  *redis.Client
	prefix string
}

// New returns a store writing keys as prefix:txID.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "ggtx"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(txID string) string {
	return s.prefix + ":" + txID
}

// Save writes payload for txID with the given ttl.
func (s *Store) Save(ctx context.Context, txID string, payload []byte, ttl time.Duration) error {
	if txID == "" {
		return errors.New("store: empty transaction id")
	}
	if ttl <= 0 {
		return ErrExpired
	}
	record := make([]byte, 0, len(payload)+1)
	record = append(record, recordVersion1)
	record = append(record, payload...)

	if err := s.redis.Set(ctx, s.key(txID), record, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Load returns the payload saved for txID.
func (s *Store) Load(ctx context.Context, txID string) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key(txID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if len(data) == 0 || data[0] != recordVersion1 {
		return nil, ErrCorrupt
	}
	return data[1:], nil
}

// TTL returns the time left before the record for txID expires.
func (s *Store) TTL(ctx context.Context, txID string) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, s.key(txID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	switch ttl {
	case -2:
		return 0, ErrNotFound
	case -1:
		log.Print("goGuardian: stored transaction has no expiry")
		return 0, nil
	}
	return ttl, nil
}

// Delete removes the record for txID. It reports whether a record existed.
func (s *Store) Delete(ctx context.Context, txID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(txID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}
