package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/redis"
)

var (
	ErrAlreadySent     = errors.New("send already completed")
	ErrSendLockHeld    = errors.New("send lock held by another consumer")
	ErrTooManyAttempts = errors.New("maximum send attempts exceeded")
)

// DedupeConfig tunes the redis-backed send dedupe. SentTTL is how long the
// completed marker outlives the send; once it expires a replayed job would
// go out again, so it must comfortably exceed queue retention.
type DedupeConfig struct {
	LockTTL        time.Duration
	SentTTL        time.Duration
	MaxAttempts    int
	LockPrefix     string
	SentPrefix     string
	AttemptsPrefix string
}

func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{
		LockTTL:        30 * time.Second,
		SentTTL:        24 * time.Hour,
		MaxAttempts:    3,
		LockPrefix:     "dedupe:lock:",
		SentPrefix:     "dedupe:sent:",
		AttemptsPrefix: "dedupe:attempts:",
	}
}

// DedupeService guarantees at-most-once delivery on top of the at-least-once
// queue. Campaign sends are keyed "campaignID:recipientID"; the key survives
// retries so a crashed consumer cannot double-send after redelivery.
type DedupeService struct {
	redis  redis.RedisAdapter
	config DedupeConfig
}

func NewDedupeService(redisAdapter redis.RedisAdapter, config DedupeConfig) *DedupeService {
	return &DedupeService{
		redis:  redisAdapter,
		config: config,
	}
}

// SendToken is the claim over one send key; it must be resolved with
// MarkSent, MarkFailed or Release before the consumer acks.
type SendToken struct {
	Key          string
	Attempts     int
	IsRetry      bool
	lockAcquired bool
}

// Acquire claims the send key for this consumer. It fails with
// ErrAlreadySent when a completed marker exists, ErrTooManyAttempts when
// the attempt budget is spent, and ErrSendLockHeld when another consumer
// currently owns the key.
func (s *DedupeService) Acquire(ctx context.Context, key string) (*SendToken, error) {
	sentKey := s.config.SentPrefix + key
	exists, err := s.redis.Exist(sentKey)
	if err != nil {
		// Better to risk a duplicate than to stall the queue on a redis
		// read failure.
		logger.Warn("failed to check sent marker", "key", key, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadySent
	}

	attempts, err := s.attempts(key)
	if err != nil {
		logger.Warn("failed to read attempt counter", "key", key, "error", err)
	}
	if attempts >= s.config.MaxAttempts {
		return nil, fmt.Errorf("%w: key=%s attempts=%d", ErrTooManyAttempts, key, attempts)
	}

	lockKey := s.config.LockPrefix + key
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendLockHeld, err)
	}
	if !acquired {
		return nil, ErrSendLockHeld
	}

	return &SendToken{
		Key:          key,
		Attempts:     attempts,
		IsRetry:      attempts > 0,
		lockAcquired: true,
	}, nil
}

// MarkSent sets the long-lived completed marker and clears the lock and
// attempt counter.
func (s *DedupeService) MarkSent(ctx context.Context, token *SendToken) error {
	sentKey := s.config.SentPrefix + token.Key
	if err := s.redis.Set(sentKey, []byte("1"), s.config.SentTTL); err != nil {
		return fmt.Errorf("set sent marker: %w", err)
	}

	s.cleanup(token)
	return nil
}

// MarkFailed bumps the attempt counter and releases the lock so the queue
// retry can claim the key again.
func (s *DedupeService) MarkFailed(ctx context.Context, token *SendToken, reason error) {
	attemptsKey := s.config.AttemptsPrefix + token.Key
	next := token.Attempts + 1
	if err := s.redis.Set(attemptsKey, []byte(fmt.Sprintf("%d", next)), s.config.SentTTL); err != nil {
		logger.Error("failed to bump attempt counter", "key", token.Key, "error", err)
	}

	s.Release(ctx, token)

	logger.Warn("send failed, key released for retry",
		"key", token.Key,
		"attempts", next,
		"max_attempts", s.config.MaxAttempts,
		"reason", reason)
}

// Release drops the lock without touching the sent marker or attempts.
func (s *DedupeService) Release(ctx context.Context, token *SendToken) {
	if token == nil || !token.lockAcquired {
		return
	}
	if err := s.redis.Del(s.config.LockPrefix + token.Key); err != nil {
		logger.Warn("failed to release send lock", "key", token.Key, "error", err)
		return
	}
	token.lockAcquired = false
}

// IsSent reports whether the completed marker exists for a key.
func (s *DedupeService) IsSent(ctx context.Context, key string) (bool, error) {
	exists, err := s.redis.Exist(s.config.SentPrefix + key)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *DedupeService) attempts(key string) (int, error) {
	raw, err := s.redis.Get(s.config.AttemptsPrefix + key)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	n := 0
	fmt.Sscanf(string(raw), "%d", &n)
	return n, nil
}

func (s *DedupeService) cleanup(token *SendToken) {
	if err := s.redis.Del(s.config.LockPrefix + token.Key); err != nil {
		logger.Warn("failed to cleanup send lock", "key", token.Key, "error", err)
	}
	if err := s.redis.Del(s.config.AttemptsPrefix + token.Key); err != nil {
		logger.Warn("failed to cleanup attempt counter", "key", token.Key, "error", err)
	}
	token.lockAcquired = false
}
