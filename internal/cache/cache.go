// Package cache wraps the volatile keyed store used for OTPs, verification
// tokens, admin sessions and derived read caches.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("cache: key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	DeletePattern(ctx context.Context, pattern string) error
}

type redisStore struct {
	client *redis.Client
}

func New(addr, password string, db int) Store {
	return &redisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Incr bumps a counter, attaching the TTL only on first increment so the
// attempt window does not slide on every failure.
func (s *redisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incr %s: %w", key, err)
	}
	if n == 1 && ttl > 0 {
		_ = s.client.Expire(ctx, key, ttl).Err()
	}
	return n, nil
}

func (s *redisStore) DeletePattern(ctx context.Context, pattern string) error {
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("cache keys %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.Delete(ctx, keys...)
}

// Key builders. Every mutation path invalidates through these same names so
// a cached read can never outlive the row it was derived from.

func OTPKey(email string) string {
	return "otp:" + strings.ToLower(email)
}

func OTPAttemptsKey(email string) string {
	return "otpattempts:" + strings.ToLower(email)
}

func TokenKey(token string) string {
	return "vtoken:" + token
}

func SessionKey(token string) string {
	return "adminsession:" + token
}

func VerifStatusKey(participantID int64) string {
	return fmt.Sprintf("verifstatus:%d", participantID)
}

func TrackKey(email string) string {
	return "track:" + strings.ToLower(email)
}

const (
	StatsPattern = "stats:*"
	TrackPattern = "track:*"
)

// InvalidateParticipant drops every derived read for one participant plus the
// aggregate stats. Best effort: a failed invalidation is logged, never
// surfaced, because the owning transaction has already committed.
func InvalidateParticipant(ctx context.Context, store Store, log *zerolog.Logger, participantID int64, email string) {
	keys := []string{VerifStatusKey(participantID)}
	if email != "" {
		keys = append(keys, TrackKey(email))
	}
	if err := store.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Int64("participant_id", participantID).Msg("cache invalidation failed")
	}
	if err := store.DeletePattern(ctx, StatsPattern); err != nil {
		log.Warn().Err(err).Msg("stats cache invalidation failed")
	}
}
