// Package idempotency lets clients retry POST /pedido safely: the first
// request under an Idempotency-Key runs, later ones replay its response.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "pdv:idempotency:"
	pendingMarker = "pending"
)

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Record is a stored response.
type Record struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Store{client: client, ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Reserve claims key for the caller. It returns (nil, nil) when the key was
// free, the stored record when a previous request already completed, and
// ErrInFlight while a previous request is still running.
func (s *Store) Reserve(ctx context.Context, key string) (*Record, error) {
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingMarker, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		val, err := s.client.Get(ctx, keyPrefix+key).Result()
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read idempotency key: %w", err)
		}

		if val == pendingMarker {
			return nil, ErrInFlight
		}

		var rec Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode stored response: %w", err)
		}
		return &rec, nil
	}

	return nil, ErrInFlight
}

// Complete stores the response for replay until the TTL runs out.
func (s *Store) Complete(ctx context.Context, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	return s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err()
}

// Release frees key so the client may retry after a failure.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}

func (r Record) successful() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}
