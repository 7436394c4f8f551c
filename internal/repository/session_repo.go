package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-tour-auth/internal/model"
)

var ErrStoreUnavailable = errors.New("credential store unavailable")

// SessionRepository holds at most one refresh token per user in Redis, keyed by user id.
// Every call is a single-key command bounded by the operation timeout.
type SessionRepository struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

func NewSessionRepository(client redis.UniversalClient, prefix string, timeout time.Duration) *SessionRepository {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SessionRepository{client: client, prefix: prefix, timeout: timeout}
}

func (r *SessionRepository) key(userID string) string {
	return r.prefix + userID
}

// Set replaces any existing record for the user.
func (r *SessionRepository) Set(ctx context.Context, userID string, refreshToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("store session: ttl must be positive, got %s", ttl)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(userID), refreshToken, ttl).Err(); err != nil {
		return fmt.Errorf("%w: store session: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", model.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: get session: %v", ErrStoreUnavailable, err)
	}
	return value, nil
}

// Delete is idempotent: removing an absent record is not an error.
func (r *SessionRepository) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: delete session: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}
	return nil
}
