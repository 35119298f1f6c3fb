// Package gormqueue is the relational-store implementation of the job queue.
// Claims use FOR UPDATE SKIP LOCKED so concurrent workers never double-claim;
// SQLite falls back to an optimistic UPDATE claim.
package gormqueue

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/clock"
	obsmetrics "github.com/orderguard/orderguard/internal/observability/metrics"
	"github.com/orderguard/orderguard/internal/queue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Queue struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(db *gorm.DB, log *zap.Logger, genID *snowflake.Node, clk clock.Clock) *Queue {
	return &Queue{
		db:    db,
		log:   log.Named("queue"),
		genID: genID,
		clock: clk,
	}
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, payload []byte, opts queue.Options) (snowflake.ID, error) {
	queueName = strings.TrimSpace(queueName)
	if queueName == "" {
		return 0, queue.ErrInvalidQueue
	}
	if len(payload) == 0 {
		return 0, queue.ErrInvalidPayload
	}
	opts = opts.WithDefaults()

	now := q.clock.Now()
	job := queue.Job{
		ID:                q.genID.Generate(),
		Queue:             queueName,
		State:             queue.StateQueued,
		Payload:           payload,
		RetryLimit:        opts.RetryLimit,
		RetryDelaySeconds: int(opts.RetryDelay / time.Second),
		RunAfter:          now,
		ExpireAt:          now.Add(opts.ExpireIn),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := q.db.WithContext(ctx).Create(&job).Error; err != nil {
		return 0, err
	}
	return job.ID, nil
}

func (q *Queue) Process(ctx context.Context, queueName string, handler queue.Handler, opts queue.ProcessOptions) error {
	if strings.TrimSpace(queueName) == "" {
		return queue.ErrInvalidQueue
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.consume(ctx, queueName, handler, poll)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (q *Queue) consume(ctx context.Context, queueName string, handler queue.Handler, poll time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := q.claim(ctx, queueName)
		if err != nil {
			q.log.Warn("claim failed", zap.String("queue", queueName), zap.Error(err))
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(poll):
			}
			continue
		}

		q.run(ctx, job, handler)
	}
}

func (q *Queue) run(parent context.Context, job *queue.Job, handler queue.Handler) {
	start := q.clock.Now()

	// The job's hard expiry doubles as the handler deadline. There is no
	// mid-job cancellation beyond it.
	ctx, cancel := context.WithDeadline(parent, job.ExpireAt)
	defer cancel()

	err := handler(ctx, job)
	obsmetrics.Pipeline().ObserveJobDuration(job.Queue, time.Since(start))
	if err == nil {
		if markErr := q.markCompleted(parent, job); markErr != nil {
			q.log.Warn("mark completed failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(markErr),
			)
		}
		return
	}

	q.retryOrBury(parent, job, err)
}

// claim picks the oldest eligible job and transitions it to processing.
func (q *Queue) claim(ctx context.Context, queueName string) (*queue.Job, error) {
	now := q.clock.Now()
	if strings.EqualFold(q.db.Dialector.Name(), "sqlite") {
		return q.claimOptimistic(ctx, queueName, now)
	}

	var claimed *queue.Job
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobs []queue.Job
		err := tx.WithContext(ctx).Raw(
			`SELECT id, queue, state, payload, retry_count, retry_limit, retry_delay_seconds,
			        run_after, expire_at, started_at, completed_at, last_error, created_at, updated_at
			 FROM queue_jobs
			 WHERE queue = ?
			   AND state IN (?, ?)
			   AND run_after <= ?
			   AND expire_at > ?
			 ORDER BY run_after ASC, id ASC
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED`,
			queueName,
			queue.StateQueued,
			queue.StateFailed,
			now,
			now,
		).Scan(&jobs).Error
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		job := jobs[0]
		if err := tx.WithContext(ctx).Exec(
			`UPDATE queue_jobs
			 SET state = ?, started_at = ?, updated_at = ?
			 WHERE id = ?`,
			queue.StateProcessing,
			now,
			now,
			job.ID,
		).Error; err != nil {
			return err
		}
		job.State = queue.StateProcessing
		job.StartedAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// claimOptimistic is the SQLite path: read, then claim guarded by the state
// we saw. A lost race just means another worker got the job.
func (q *Queue) claimOptimistic(ctx context.Context, queueName string, now time.Time) (*queue.Job, error) {
	var jobs []queue.Job
	err := q.db.WithContext(ctx).
		Where("queue = ? AND state IN (?, ?) AND run_after <= ? AND expire_at > ?",
			queueName, queue.StateQueued, queue.StateFailed, now, now).
		Order("run_after ASC, id ASC").
		Limit(1).
		Find(&jobs).Error
	if err != nil || len(jobs) == 0 {
		return nil, err
	}

	job := jobs[0]
	result := q.db.WithContext(ctx).Exec(
		`UPDATE queue_jobs
		 SET state = ?, started_at = ?, updated_at = ?
		 WHERE id = ? AND state = ?`,
		queue.StateProcessing,
		now,
		now,
		job.ID,
		job.State,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	job.State = queue.StateProcessing
	job.StartedAt = &now
	return &job, nil
}

func (q *Queue) markCompleted(ctx context.Context, job *queue.Job) error {
	now := q.clock.Now()
	return q.db.WithContext(ctx).Exec(
		`UPDATE queue_jobs
		 SET state = ?, completed_at = ?, last_error = NULL, updated_at = ?
		 WHERE id = ?`,
		queue.StateCompleted,
		now,
		now,
		job.ID,
	).Error
}

// retryOrBury applies the retry policy: schedule another attempt with the
// fixed delay, or dead-letter after the budget is spent.
func (q *Queue) retryOrBury(ctx context.Context, job *queue.Job, cause error) {
	now := q.clock.Now()
	message := cause.Error()
	nextRetry := job.RetryCount + 1

	if nextRetry > job.RetryLimit || !now.Add(time.Duration(job.RetryDelaySeconds)*time.Second).Before(job.ExpireAt) {
		if err := q.db.WithContext(ctx).Exec(
			`UPDATE queue_jobs
			 SET state = ?, retry_count = ?, last_error = ?, updated_at = ?
			 WHERE id = ?`,
			queue.StateDead,
			nextRetry,
			message,
			now,
			job.ID,
		).Error; err != nil {
			q.log.Error("dead-letter update failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			return
		}
		obsmetrics.Pipeline().IncDeadLetter(job.Queue)
		obsmetrics.Pipeline().IncJobOutcome(obsmetrics.OutcomeDead)
		q.log.Error("job dead-lettered",
			zap.String("queue", job.Queue),
			zap.String("job_id", job.ID.String()),
			zap.Int("attempts", nextRetry),
			zap.String("error", message),
		)
		return
	}

	if err := q.db.WithContext(ctx).Exec(
		`UPDATE queue_jobs
		 SET state = ?, retry_count = ?, run_after = ?, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		queue.StateFailed,
		nextRetry,
		now.Add(time.Duration(job.RetryDelaySeconds)*time.Second),
		message,
		now,
		job.ID,
	).Error; err != nil {
		q.log.Error("retry update failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	obsmetrics.Pipeline().IncJobOutcome(obsmetrics.OutcomeRetried)
	q.log.Warn("job scheduled for retry",
		zap.String("queue", job.Queue),
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", nextRetry),
		zap.String("error", message),
	)
}

// ReapExpired moves stale processing rows back through the retry policy and
// buries queued work that outlived its expiry. Run periodically.
func (q *Queue) ReapExpired(ctx context.Context, queueName string) error {
	now := q.clock.Now()

	var stale []queue.Job
	if err := q.db.WithContext(ctx).
		Where("queue = ? AND state = ? AND expire_at <= ?", queueName, queue.StateProcessing, now).
		Find(&stale).Error; err != nil {
		return err
	}
	for i := range stale {
		q.retryOrBury(ctx, &stale[i], context.DeadlineExceeded)
	}

	result := q.db.WithContext(ctx).Exec(
		`UPDATE queue_jobs
		 SET state = ?, last_error = ?, updated_at = ?
		 WHERE queue = ? AND state IN (?, ?) AND expire_at <= ?`,
		queue.StateDead,
		"expired before completion",
		now,
		queueName,
		queue.StateQueued,
		queue.StateFailed,
		now,
	)
	if result.Error != nil {
		return result.Error
	}
	for i := int64(0); i < result.RowsAffected; i++ {
		obsmetrics.Pipeline().IncDeadLetter(queueName)
	}
	return nil
}

func (q *Queue) ListDead(ctx context.Context, queueName string, limit int) ([]queue.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []queue.Job
	err := q.db.WithContext(ctx).
		Where("queue = ? AND state = ?", queueName, queue.StateDead).
		Order("updated_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (q *Queue) Requeue(ctx context.Context, id snowflake.ID) error {
	now := q.clock.Now()
	result := q.db.WithContext(ctx).Exec(
		`UPDATE queue_jobs
		 SET state = ?, retry_count = 0, run_after = ?, expire_at = ?, last_error = NULL, updated_at = ?
		 WHERE id = ? AND state = ?`,
		queue.StateQueued,
		now,
		now.Add(15*time.Minute),
		now,
		id,
		queue.StateDead,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return queue.ErrNotDead
	}
	return nil
}

// Depth counts claimable and retrying jobs, for the queue depth gauge.
func (q *Queue) Depth(ctx context.Context, queueName string) (int, error) {
	var count int64
	err := q.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM queue_jobs WHERE queue = ? AND state IN (?, ?)`,
		queueName,
		queue.StateQueued,
		queue.StateFailed,
	).Scan(&count).Error
	return int(count), err
}
