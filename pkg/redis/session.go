package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
)

// SessionStore keeps a browser session's local cart state in redis. It
// satisfies cart.Storage for clients that run without a writable disk.
type SessionStore struct {
	client    *redisclient.Client
	sessionID string
	ttl       time.Duration
}

func NewSessionStore(client *redisclient.Client, sessionID string, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, sessionID: sessionID, ttl: ttl}
}

func (s *SessionStore) key(key string) string {
	return fmt.Sprintf("session:%s:%s", s.sessionID, key)
}

func (s *SessionStore) Load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redisclient.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *SessionStore) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, s.key(key), raw, s.ttl).Err()
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
