// Package queue defines the durable job queue contract used to decouple
// webhook intake from processing. The backing implementation is swappable:
// gormqueue persists jobs in the relational store, memqueue backs tests.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// OrdersCreateQueue is the queue fed by order-creation webhooks.
const OrdersCreateQueue = "orders-create-processing"

// Job states.
const (
	StateQueued     = "queued"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
	StateDead       = "dead"
)

var (
	ErrInvalidQueue   = errors.New("invalid_queue")
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrJobNotFound    = errors.New("job_not_found")
	ErrNotDead        = errors.New("job_not_dead")
)

// Job is one unit of work. Payload is opaque to the queue.
type Job struct {
	ID         snowflake.ID   `gorm:"primaryKey"`
	Queue      string         `gorm:"type:text;not null;index:idx_queue_jobs_claim,priority:1"`
	State      string         `gorm:"type:text;not null;index:idx_queue_jobs_claim,priority:2"`
	Payload    datatypes.JSON `gorm:"not null"`
	RetryCount int            `gorm:"not null;default:0"`
	RetryLimit int            `gorm:"not null;default:3"`
	// Fixed retry backoff, persisted so it survives restarts.
	RetryDelaySeconds int `gorm:"not null;default:60"`
	// Next time the job is eligible to be claimed.
	RunAfter time.Time `gorm:"not null;index:idx_queue_jobs_claim,priority:3"`
	// Hard deadline after which the job is abandoned to the dead letter set.
	ExpireAt    time.Time  `gorm:"not null"`
	StartedAt   *time.Time `gorm:""`
	CompletedAt *time.Time `gorm:""`
	LastError   *string    `gorm:"type:text"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Job) TableName() string { return "queue_jobs" }

// Options control retry and expiry for an enqueued job.
type Options struct {
	RetryLimit int
	RetryDelay time.Duration
	ExpireIn   time.Duration
}

// DefaultOptions match the orders-create queue contract.
func DefaultOptions() Options {
	return Options{
		RetryLimit: 3,
		RetryDelay: 60 * time.Second,
		ExpireIn:   15 * time.Minute,
	}
}

// WithDefaults fills unset fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.RetryLimit <= 0 {
		o.RetryLimit = defaults.RetryLimit
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaults.RetryDelay
	}
	if o.ExpireIn <= 0 {
		o.ExpireIn = defaults.ExpireIn
	}
	return o
}

// ProcessOptions control the consumer pool.
type ProcessOptions struct {
	Concurrency  int
	PollInterval time.Duration
}

// Handler processes one claimed job. A returned error sends the job through
// the retry policy; nil completes it.
type Handler func(ctx context.Context, job *Job) error

// Queue is the durable at-least-once work queue.
type Queue interface {
	Enqueue(ctx context.Context, queueName string, payload []byte, opts Options) (snowflake.ID, error)
	// Process consumes jobs with a bounded worker pool until ctx is done.
	Process(ctx context.Context, queueName string, handler Handler, opts ProcessOptions) error
}

// Inspector exposes dead-lettered jobs for operators; they represent orders
// that were never evaluated and must not be silently discarded.
type Inspector interface {
	ListDead(ctx context.Context, queueName string, limit int) ([]Job, error)
	// Requeue puts a dead job back on the queue with a fresh retry budget.
	Requeue(ctx context.Context, id snowflake.ID) error
}
