package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/younegotiate/settlement-engine/internal/queue"
	"github.com/younegotiate/settlement-engine/internal/services"
	"github.com/younegotiate/settlement-engine/pkg/logger"
)

// SettlementJob is the queue payload: one due schedule transaction.
// The scheduler publishes ids only; the processor re-reads the row so a
// stale payload can never settle stale terms.
type SettlementJob struct {
	ScheduleTransactionID int64 `json:"schedule_transaction_id"`
}

type Coordinator interface {
	Settle(ctx context.Context, scheduleTransactionID int64) (*services.SettlementOutcome, error)
}

type SettlementProcessor struct {
	coordinator Coordinator
	idempotency *IdempotencyService
}

func NewSettlementProcessor(coordinator Coordinator, idempotency *IdempotencyService) *SettlementProcessor {
	return &SettlementProcessor{
		coordinator: coordinator,
		idempotency: idempotency,
	}
}

func (p *SettlementProcessor) GetType() string {
	return "settlement"
}

// Process runs one settlement attempt for a queued schedule transaction.
//
// ACK/NACK rules: a recorded outcome (successful or declined) ACKs, a
// held lock or transient bookkeeping failure NACKs for redelivery, and
// a row in a terminal state ACKs since retrying cannot change it.
func (p *SettlementProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job SettlementJob
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal settlement job", "error", err)
		return err // malformed payload moves to DLQ
	}
	if job.ScheduleTransactionID == 0 {
		logger.Error("Settlement job without schedule transaction id", "message_id", queueMessage.ID)
		return errors.New("settlement job missing schedule_transaction_id")
	}

	rowID := strconv.FormatInt(job.ScheduleTransactionID, 10)

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, rowID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			return nil // ACK, a previous delivery finished this row
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Settlement gave up after max retries", "row_id", rowID)
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("lock held by another consumer")
		}
		logger.Error("Failed to acquire lock", "row_id", rowID, "error", err)
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Settling schedule transaction",
		"row_id", rowID,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	outcome, err := p.coordinator.Settle(ctx, job.ScheduleTransactionID)
	if err != nil {
		if errors.Is(err, services.ErrNotSettleable) {
			// The DB guard fired: another path already moved the row.
			logger.Info("Schedule transaction no longer settleable", "row_id", rowID)
			if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
				logger.Error("Failed to mark success", "row_id", rowID, "error", markErr)
			}
			return nil
		}
		if errors.Is(err, services.ErrDataIntegrity) {
			// Nothing was mutated; an operator has to fix the account.
			logger.Error("Settlement blocked by data integrity", "row_id", rowID, "error", err)
			if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
				logger.Error("Failed to mark failure", "row_id", rowID, "error", markErr)
			}
			return err
		}
		// Bookkeeping failed; the attempt must be redelivered.
		logger.Error("Settlement bookkeeping failed", "row_id", rowID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "row_id", rowID, "error", markErr)
		}
		return err
	}

	// Both outcomes are final for this row: a decline is recorded as
	// FAILED in the DB and only an explicit reschedule revives it.
	if outcome.Declined {
		logger.Warn("Settlement declined",
			"row_id", rowID,
			"decline_code", outcome.DeclineCode)
	} else {
		logger.Info("Settlement successful",
			"row_id", rowID,
			"transaction_id", outcome.Transaction.ID,
			"plan_balance", outcome.PlanBalance.StringFixed(2),
			"consumer_settled", outcome.ConsumerSettled)
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "row_id", rowID, "error", markErr)
	}
	return nil
}
