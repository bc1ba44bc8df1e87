package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/internal/processor"
	"github.com/younegotiate/settlement-engine/pkg/logger"
)

// DefaultSpec scans once a day after midnight, when the due date of
// every row scheduled for "today" has arrived.
const DefaultSpec = "5 0 * * *"

const defaultBatchSize = 500

type ScheduleSource interface {
	ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*model.ScheduleTransaction, error)
}

type publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// Scheduler is the hosted trigger: a cron job that enumerates due
// schedule transactions and publishes one settlement job per row. It
// never settles anything itself; duplicate publishes are harmless
// because the processor locks per row.
type Scheduler struct {
	cron      *cron.Cron
	schedules ScheduleSource
	queue     publisher
	spec      string
	batchSize int
	now       func() time.Time
}

func New(schedules ScheduleSource, queue publisher, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		cron:      cron.New(),
		schedules: schedules,
		queue:     queue,
		spec:      spec,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		published, err := s.ScanOnce(ctx)
		if err != nil {
			logger.Error("[scheduler] due scan failed", "error", err)
			return
		}
		logger.Info("[scheduler] due scan complete", "published", published)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("[scheduler] started", "spec", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("[scheduler] stopped")
}

// ScanOnce enumerates every SCHEDULED row due by end of today and
// publishes a settlement job for each. Rows come back oldest first per
// consumer, so a plan's installments are always attempted in order.
func (s *Scheduler) ScanOnce(ctx context.Context) (int, error) {
	dueBy := endOfDay(s.now())

	rows, err := s.schedules.ListDue(ctx, dueBy, s.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, row := range rows {
		job := processor.SettlementJob{ScheduleTransactionID: row.ID}
		if _, err := s.queue.PublishJSON(ctx, job, map[string]string{"type": "settlement"}); err != nil {
			return published, err
		}
		published++
	}

	// Rows beyond the batch limit stay SCHEDULED and are picked up by
	// the next scan.
	if len(rows) == s.batchSize {
		logger.Warn("[scheduler] due scan hit batch limit", "batch_size", s.batchSize)
	}

	return published, nil
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
