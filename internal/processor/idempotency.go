package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/younegotiate/settlement-engine/pkg/logger"
	"github.com/younegotiate/settlement-engine/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("schedule transaction already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// IdempotencyConfig tunes the redis locks guarding settlement attempts.
// The lock is the first line of mutual exclusion per schedule
// transaction; the DB status guard is the second.
type IdempotencyConfig struct {
	LockTTL time.Duration

	ProcessedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "settle:retry:",
		LockKeyPrefix:      "settle:lock:",
		ProcessedKeyPrefix: "settle:done:",
	}
}

type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

// ProcessingContext tracks one held lock for one schedule transaction.
type ProcessingContext struct {
	RowID        string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

// AcquireProcessingLock takes the per-row SetNX lock. A row that was
// already settled within the processed TTL, or that burned through its
// retries, never reaches the gateway again.
func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, rowID string) (*ProcessingContext, error) {
	processedKey := s.config.ProcessedKeyPrefix + rowID
	exists, err := s.redis.Exist(processedKey)
	if err != nil {
		logger.Warn("Failed to check processed marker", "row_id", rowID, "error", err)
		// The DB status guard still protects the row; keep going.
	} else if exists > 0 {
		logger.Info("Schedule transaction already processed, skipping", "row_id", rowID)
		return nil, ErrAlreadyProcessed
	}

	retryKey := s.config.RetryKeyPrefix + rowID
	retryCountBytes, err := s.redis.Get(retryKey)
	retryCount := 0
	if err == nil && len(retryCountBytes) > 0 {
		fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		logger.Error("Max retries exceeded for schedule transaction", "row_id", rowID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: row_id=%s, retries=%d", ErrMaxRetriesExceeded, rowID, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + rowID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("Failed to acquire lock", "row_id", rowID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}

	if !acquired {
		logger.Info("Lock already held by another consumer", "row_id", rowID)
		return nil, ErrLockAcquireFailed
	}

	logger.Info("Processing lock acquired",
		"row_id", rowID,
		"retry_count", retryCount,
		"lock_ttl", s.config.LockTTL)

	return &ProcessingContext{
		RowID:        rowID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

// MarkSuccess stamps the long-term processed marker and drops the lock
// and retry counter.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	rowID := pc.RowID

	processedKey := s.config.ProcessedKeyPrefix + rowID
	err := s.redis.Set(processedKey, []byte("1"), s.config.ProcessedTTL)
	if err != nil {
		logger.Error("Failed to mark schedule transaction as processed", "row_id", rowID, "error", err)
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	s.cleanup(ctx, pc)

	logger.Info("Schedule transaction marked as processed",
		"row_id", rowID,
		"retry_count", pc.RetryCount)

	return nil
}

// MarkFailure bumps the retry counter and releases the lock so a later
// delivery can try again.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	rowID := pc.RowID

	retryKey := s.config.RetryKeyPrefix + rowID
	newRetryCount := pc.RetryCount + 1
	retryValue := []byte(fmt.Sprintf("%d", newRetryCount))

	// The counter outlives the lock so retries are tracked across
	// consumer restarts.
	err := s.redis.Set(retryKey, retryValue, s.config.ProcessedTTL)
	if err != nil {
		logger.Error("Failed to increment retry counter", "row_id", rowID, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + rowID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to remove lock", "row_id", rowID, "error", err)
	}

	logger.Warn("Settlement attempt failed, will retry",
		"row_id", rowID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + pc.RowID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to release lock", "row_id", pc.RowID, "error", err)
		return err
	}

	pc.lockAcquired = false
	logger.Debug("Processing lock released", "row_id", pc.RowID)
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, pc *ProcessingContext) {
	rowID := pc.RowID

	lockKey := s.config.LockKeyPrefix + rowID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to cleanup lock", "row_id", rowID, "error", err)
	}

	retryKey := s.config.RetryKeyPrefix + rowID
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("Failed to cleanup retry counter", "row_id", rowID, "error", err)
	}

	pc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, rowID string) (int, error) {
	retryKey := s.config.RetryKeyPrefix + rowID
	retryCountBytes, err := s.redis.Get(retryKey)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, rowID string) (bool, error) {
	processedKey := s.config.ProcessedKeyPrefix + rowID
	exists, err := s.redis.Exist(processedKey)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
