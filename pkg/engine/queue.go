package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/deinJoni/artemis-hr-app-sub000/pkg/storage"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultSweepInterval is how often the processor polls for due entries.
	DefaultSweepInterval = 60 * time.Second
	// DefaultSweepBatch bounds how many entries one sweep picks up.
	DefaultSweepBatch = 50
	// MaxResumeAttempts is the retry budget per queue entry.
	MaxResumeAttempts = 3
)

// QueueProcessor drains due delay-queue entries back into the step executor.
// It is a single-consumer polling loop: one instance, one sweep at a time.
type QueueProcessor struct {
	engine    *Engine
	store     storage.Store
	logger    Logger
	interval  time.Duration
	batchSize int
	cron      *cron.Cron
	sweeping  int32
}

func NewQueueProcessor(e *Engine, interval time.Duration) *QueueProcessor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &QueueProcessor{
		engine:    e,
		store:     e.store,
		logger:    e.logger,
		interval:  interval,
		batchSize: DefaultSweepBatch,
	}
}

// Start schedules the sweep on the configured interval and returns. Stop
// waits for an in-flight sweep to finish.
func (p *QueueProcessor) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		p.Sweep(ctx)
	}); err != nil {
		return errors.Wrap(err, "schedule queue sweep")
	}
	c.Start()
	p.cron = c
	p.logger.Infof("Delay queue processor sweeping every %s", p.interval)
	return nil
}

func (p *QueueProcessor) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

// Sweep processes one batch of due queue entries and returns how many were
// resumed. Overlapping sweeps are skipped: the interval may be shorter than
// a slow sweep and two concurrent sweeps would double-process entries.
func (p *QueueProcessor) Sweep(ctx context.Context) int {
	if !atomic.CompareAndSwapInt32(&p.sweeping, 0, 1) {
		p.logger.Infof("Queue sweep already in progress, skipping")
		return 0
	}
	defer atomic.StoreInt32(&p.sweeping, 0)

	entries, err := p.store.DueQueueEntries(time.Now(), p.batchSize)
	if err != nil {
		p.logger.Errorf("Failed to load due queue entries: %v", err)
		return 0
	}

	resumed := 0
	for _, entry := range entries {
		if p.processEntry(ctx, entry) {
			resumed++
		}
	}
	if resumed > 0 {
		p.logger.Infof("Queue sweep resumed %d entries", resumed)
	}
	return resumed
}

func (p *QueueProcessor) processEntry(ctx context.Context, entry models.QueueEntry) bool {
	// drop tickets whose run or node no longer resolves
	if _, err := p.store.GetRun(entry.RunID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Infof("Deleting orphaned queue entry %d: run %d is gone", entry.ID, entry.RunID)
			p.deleteEntry(entry.ID)
		} else {
			p.logger.Errorf("Queue entry %d: load run %d: %v", entry.ID, entry.RunID, err)
		}
		return false
	}
	if _, err := p.store.GetNodeByID(entry.NodeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Infof("Deleting orphaned queue entry %d: node %d is gone", entry.ID, entry.NodeID)
			p.deleteEntry(entry.ID)
		} else {
			p.logger.Errorf("Queue entry %d: load node %d: %v", entry.ID, entry.NodeID, err)
		}
		return false
	}

	if err := p.engine.ResumeStep(ctx, entry.RunID, entry.NodeID); err != nil {
		p.retryOrFail(entry, err)
		return false
	}
	p.deleteEntry(entry.ID)
	return true
}

// retryOrFail re-arms the entry with exponential backoff (2, 4 minutes) and,
// once the retry budget is spent, fails the owning run and drops the entry.
func (p *QueueProcessor) retryOrFail(entry models.QueueEntry, cause error) {
	attempts := entry.Attempts + 1
	if attempts >= MaxResumeAttempts {
		p.logger.Errorf("Queue entry %d exhausted %d attempts, failing run %d: %v", entry.ID, attempts, entry.RunID, cause)
		if err := p.store.UpdateRunStatus(entry.RunID, models.FailedRunStatus, cause.Error()); err != nil {
			p.logger.Errorf("Failed to mark run %d as failed: %v", entry.RunID, err)
		}
		p.deleteEntry(entry.ID)
		return
	}
	backoff := time.Duration(1<<uint(attempts)) * time.Minute
	resumeAt := time.Now().Add(backoff)
	if err := p.store.RearmQueueEntry(entry.ID, resumeAt, attempts, cause.Error()); err != nil {
		p.logger.Errorf("Failed to re-arm queue entry %d: %v", entry.ID, err)
		return
	}
	p.logger.Infof("Queue entry %d re-armed for %s (attempt %d): %v", entry.ID, resumeAt.Format(time.RFC3339), attempts, cause)
}

func (p *QueueProcessor) deleteEntry(id int64) {
	if err := p.store.DeleteQueueEntry(id); err != nil {
		p.logger.Errorf("Failed to delete queue entry %d: %v", id, err)
	}
}
