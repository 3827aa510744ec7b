package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every Redis failure surfaced by the registry.
var ErrUnavailable = errors.New("session registry unavailable")

const (
	keyNamespace = "refresh_token"
	scanBatch    = 500
)

// Record is the revocation entry stored for one issued refresh token.
type Record struct {
	UserID    string    `json:"userId"`
	TenantID  string    `json:"tenantId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry stores one record per refresh token. A record's existence is what makes a
// refresh token usable.
type Registry struct {
	redis redis.UniversalClient
}

// NewRegistry creates a registry backed by the given Redis client.
func NewRegistry(client redis.UniversalClient) *Registry {
	return &Registry{redis: client}
}

func key(userID, refreshToken string) string {
	return keyNamespace + ":" + userID + ":" + refreshToken
}

func userPattern(userID string) string {
	return keyNamespace + ":" + userID + ":*"
}

// Put records refreshToken for userID, expiring after ttl.
func (r *Registry) Put(ctx context.Context, userID, refreshToken string, rec Record, ttl time.Duration) error {
	rec.UserID = userID
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := r.redis.Set(ctx, key(userID, refreshToken), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the record for the pair, or nil when none exists.
func (r *Registry) Get(ctx context.Context, userID, refreshToken string) (*Record, error) {
	data, err := r.redis.Get(ctx, key(userID, refreshToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}

// Delete removes one record. Deleting a missing record is not an error.
func (r *Registry) Delete(ctx context.Context, userID, refreshToken string) error {
	if err := r.redis.Del(ctx, key(userID, refreshToken)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every record for userID and returns how many were deleted.
//
// The scan and the deletes are not atomic: a session written after the scan has passed
// its key survives this call.
func (r *Registry) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, userPattern(userID), scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := r.redis.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping reports whether Redis is reachable.
func (r *Registry) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
