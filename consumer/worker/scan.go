package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/autonmap/scan-orchestrator/entity"
	"github.com/autonmap/scan-orchestrator/executor"
	"github.com/autonmap/scan-orchestrator/infra"
	"github.com/autonmap/scan-orchestrator/infra/produce"
	"github.com/autonmap/scan-orchestrator/repository"
	"github.com/autonmap/scan-orchestrator/xmltree"
)

// ScanStore is the slice of the repository the worker drives the state
// machine through.
type ScanStore interface {
	FindByID(id uuid.UUID) (*entity.Scan, error)
	MarkRunning(id uuid.UUID, startedAt time.Time) (bool, error)
	MarkSucceeded(id uuid.UUID, resultXML string, finishedAt time.Time) error
	MarkFailed(id uuid.UUID, finishedAt time.Time) error
}

type ScanExecutor interface {
	Run(ctx context.Context, scanID uuid.UUID, profile string, targets []string, ports *string, timing string) ([]byte, int, error)
}

type Notifier interface {
	Notify(ctx context.Context, endpoint string, payload infra.WebhookPayload) error
}

type ScanLocker interface {
	AcquireScanLock(ctx context.Context, scanID string, ttl time.Duration) (bool, error)
	ReleaseScanLock(ctx context.Context, scanID string) error
}

type ResultArchiver interface {
	ArchiveResult(ctx context.Context, scanID uuid.UUID, xmlReport []byte) error
}

// ScanConsumer pulls scan tasks off the queue and runs each through the
// lifecycle queued -> running -> succeeded|failed. Duplicate deliveries are
// absorbed by the conditional running transition plus a Redis lock; a task
// whose scan is already claimed or terminal is acked without execution.
type ScanConsumer struct {
	channel  *amqp.Channel
	store    ScanStore
	executor ScanExecutor
	notifier Notifier
	locker   ScanLocker
	archiver ResultArchiver
	logger   *infra.LoggerClient
	workers  int
	lockTTL  time.Duration
}

func NewScanConsumer(channel *amqp.Channel, inf *infra.Infra, repo *repository.Repository, exec *executor.NmapExecutor, workers int) *ScanConsumer {
	c := &ScanConsumer{
		channel:  channel,
		store:    repo.ScanRepo,
		executor: exec,
		notifier: inf.Webhook,
		locker:   inf.Redis,
		logger:   inf.Logger,
		workers:  workers,
		// The lock must outlive the slowest legitimate run.
		lockTTL: exec.Timeout + 10*time.Minute,
	}
	if inf.Minio != nil {
		c.archiver = inf.Minio
	}
	return c
}

func (c *ScanConsumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(c.workers, 0, false); err != nil {
		return fmt.Errorf("failed to set channel prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		produce.ScanTaskQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register scan consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Scan Consumer] Started %d workers on queue: %s", c.workers, produce.ScanTaskQueue)

	for i := 0; i < c.workers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					c.logger.InfoWithContextf(ctx, "[Scan Consumer] Shutting down...")
					return
				case msg, ok := <-msgs:
					if !ok {
						c.logger.WarningWithContextf(ctx, "[Scan Consumer] Channel closed")
						return
					}
					c.handleScanTask(ctx, msg)
				}
			}
		}()
	}

	return nil
}

func (c *ScanConsumer) handleScanTask(ctx context.Context, msg amqp.Delivery) {
	var task produce.ScanTaskMessage
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Scan Consumer] Failed to unmarshal scan task")
		_ = msg.Nack(false, false)
		return
	}

	scanID, err := uuid.Parse(task.ScanID)
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Scan Consumer] Invalid scan ID %q", task.ScanID)
		_ = msg.Nack(false, false)
		return
	}

	c.process(ctx, scanID, task)

	// The scan row carries the outcome either way; requeueing would only
	// produce duplicate deliveries.
	_ = msg.Ack(false)
}

// process drives one scan through the state machine. Every exit path leaves
// the row in a queryable state; nothing stays running past this call.
func (c *ScanConsumer) process(ctx context.Context, scanID uuid.UUID, task produce.ScanTaskMessage) {
	scan, err := c.store.FindByID(scanID)
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Scan Consumer] Scan %s not found, dropping task", scanID)
		return
	}

	if scan.IsTerminal() || scan.Status == entity.ScanStatusRunning {
		c.logger.WarningWithContextf(ctx, "[Scan Consumer] Duplicate delivery for scan %s in status %q, skipping", scanID, scan.Status)
		return
	}

	locked, err := c.locker.AcquireScanLock(ctx, scanID.String(), c.lockTTL)
	if err != nil {
		// Lock service down: the conditional transition below still fences
		// duplicate execution, so keep going.
		c.logger.WarningWithContextf(ctx, "[Scan Consumer] Scan lock unavailable for %s: %v", scanID, err)
	} else if !locked {
		c.logger.WarningWithContextf(ctx, "[Scan Consumer] Scan %s locked by another worker, skipping", scanID)
		return
	} else {
		defer func() {
			if err := c.locker.ReleaseScanLock(ctx, scanID.String()); err != nil {
				c.logger.WarningWithContextf(ctx, "[Scan Consumer] Failed to release lock for scan %s: %v", scanID, err)
			}
		}()
	}

	claimed, err := c.store.MarkRunning(scanID, time.Now().UTC())
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Scan Consumer] Failed to claim scan %s", scanID)
		return
	}
	if !claimed {
		c.logger.WarningWithContextf(ctx, "[Scan Consumer] Scan %s already claimed, skipping", scanID)
		return
	}

	c.logger.InfoWithContextf(ctx, "[Scan Consumer] Scan %s running: profile=%s targets=%d timing=%s",
		scanID, task.Profile, len(task.Targets), task.TimingTemplate)

	xmlReport, exitCode, runErr := c.runScan(ctx, scanID, task)
	finishedAt := time.Now().UTC()

	status := entity.ScanStatusSucceeded
	if runErr != nil {
		if errors.Is(runErr, executor.ErrEngineMissing) {
			c.logger.ErrorWithContextf(ctx, runErr, "[Scan Consumer] FATAL: scan engine binary missing, scan %s cannot run", scanID)
		} else {
			c.logger.ErrorWithContextf(ctx, runErr, "[Scan Consumer] Scan %s execution failed", scanID)
		}
		status = entity.ScanStatusFailed
		if err := c.store.MarkFailed(scanID, finishedAt); err != nil {
			c.logger.ErrorWithContextf(ctx, err, "[Scan Consumer] Failed to persist failed state for scan %s", scanID)
		}
	} else {
		if exitCode != 0 {
			c.logger.WarningWithContextf(ctx, "[Scan Consumer] Scan %s engine exited with code %d, report captured anyway", scanID, exitCode)
		}
		if err := c.store.MarkSucceeded(scanID, string(xmlReport), finishedAt); err != nil {
			c.logger.ErrorWithContextf(ctx, err, "[Scan Consumer] Failed to persist result for scan %s", scanID)
			status = entity.ScanStatusFailed
			if err := c.store.MarkFailed(scanID, finishedAt); err != nil {
				c.logger.ErrorWithContextf(ctx, err, "[Scan Consumer] Failed to persist failed state for scan %s", scanID)
			}
		} else {
			c.logger.InfoWithContextf(ctx, "[Scan Consumer] Scan %s succeeded, %d bytes of report stored", scanID, len(xmlReport))
			c.archive(ctx, scanID, xmlReport)
		}
	}

	if task.CallbackURL != nil && *task.CallbackURL != "" {
		c.notify(ctx, scan, *task.CallbackURL, status, finishedAt, xmlReport)
	}
}

// runScan invokes the executor with a recovery boundary so an unexpected
// panic becomes a failed scan instead of a stuck one.
func (c *ScanConsumer) runScan(ctx context.Context, scanID uuid.UUID, task produce.ScanTaskMessage) (xmlReport []byte, exitCode int, err error) {
	defer func() {
		if r := recover(); r != nil {
			xmlReport = nil
			err = fmt.Errorf("scan execution panicked: %v", r)
		}
	}()
	return c.executor.Run(ctx, scanID, task.Profile, task.Targets, task.Ports, task.TimingTemplate)
}

func (c *ScanConsumer) archive(ctx context.Context, scanID uuid.UUID, xmlReport []byte) {
	if c.archiver == nil {
		return
	}
	if err := c.archiver.ArchiveResult(ctx, scanID, xmlReport); err != nil {
		c.logger.WarningWithContextf(ctx, "[Scan Consumer] Failed to archive report for scan %s: %v", scanID, err)
	}
}

func (c *ScanConsumer) notify(ctx context.Context, scan *entity.Scan, endpoint, status string, finishedAt time.Time, xmlReport []byte) {
	payload := infra.WebhookPayload{
		ID:         scan.ID.String(),
		Status:     status,
		Targets:    []string(scan.Targets),
		Profile:    scan.Profile,
		FinishedAt: finishedAt.Format(time.RFC3339),
	}

	if status == entity.ScanStatusSucceeded && len(xmlReport) > 0 {
		tree, err := xmltree.Parse(xmlReport)
		if err != nil {
			c.logger.WarningWithContextf(ctx, "[Scan Consumer] Failed to convert report for webhook on scan %s: %v", scan.ID, err)
		} else {
			payload.Result = tree
		}
	}

	if err := c.notifier.Notify(ctx, endpoint, payload); err != nil {
		// Best effort: delivery failures never change job state.
		c.logger.ErrorWithContextf(ctx, err, "[Scan Consumer] Webhook delivery failed for scan %s", scan.ID)
		return
	}
	c.logger.InfoWithContextf(ctx, "[Scan Consumer] Webhook delivered for scan %s", scan.ID)
}
