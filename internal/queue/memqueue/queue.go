// Package memqueue is an in-memory queue.Queue used by tests. Jobs are held
// in a slice and drained synchronously so tests stay deterministic.
package memqueue

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/queue"
)

type Queue struct {
	mu    sync.Mutex
	genID *snowflake.Node
	jobs  []*queue.Job
	dead  []*queue.Job
}

func New(genID *snowflake.Node) *Queue {
	return &Queue{genID: genID}
}

func (q *Queue) Enqueue(_ context.Context, queueName string, payload []byte, opts queue.Options) (snowflake.ID, error) {
	if queueName == "" {
		return 0, queue.ErrInvalidQueue
	}
	if len(payload) == 0 {
		return 0, queue.ErrInvalidPayload
	}
	opts = opts.WithDefaults()

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	job := &queue.Job{
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
	q.jobs = append(q.jobs, job)
	return job.ID, nil
}

// Process is not a long-running loop here: it drains whatever is queued and
// returns, which is what tests want.
func (q *Queue) Process(ctx context.Context, queueName string, handler queue.Handler, _ queue.ProcessOptions) error {
	return q.Drain(ctx, queueName, handler)
}

// Drain runs the handler over every pending job in FIFO order, applying the
// same retry accounting as the durable queue.
func (q *Queue) Drain(ctx context.Context, queueName string, handler queue.Handler) error {
	for {
		job := q.next(queueName)
		if job == nil {
			return nil
		}

		err := handler(ctx, job)

		q.mu.Lock()
		if err == nil {
			now := time.Now().UTC()
			job.State = queue.StateCompleted
			job.CompletedAt = &now
		} else {
			job.RetryCount++
			message := err.Error()
			job.LastError = &message
			if job.RetryCount > job.RetryLimit {
				job.State = queue.StateDead
				q.dead = append(q.dead, job)
			} else {
				job.State = queue.StateQueued
				q.jobs = append(q.jobs, job)
			}
		}
		q.mu.Unlock()
	}
}

func (q *Queue) next(queueName string) *queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.jobs {
		if job.Queue != queueName {
			continue
		}
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		job.State = queue.StateProcessing
		return job
	}
	return nil
}

// Pending reports how many jobs are waiting on the named queue.
func (q *Queue) Pending(queueName string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, job := range q.jobs {
		if job.Queue == queueName {
			n++
		}
	}
	return n
}

func (q *Queue) ListDead(_ context.Context, queueName string, limit int) ([]queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Job
	for _, job := range q.dead {
		if job.Queue != queueName {
			continue
		}
		out = append(out, *job)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (q *Queue) Requeue(_ context.Context, id snowflake.ID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.dead {
		if job.ID != id {
			continue
		}
		q.dead = append(q.dead[:i], q.dead[i+1:]...)
		job.State = queue.StateQueued
		job.RetryCount = 0
		job.LastError = nil
		q.jobs = append(q.jobs, job)
		return nil
	}
	return queue.ErrNotDead
}
