package worker

import (
	"context"
	"time"

	"github.com/orderguard/orderguard/internal/config"
	obsmetrics "github.com/orderguard/orderguard/internal/observability/metrics"
	"github.com/orderguard/orderguard/internal/queue"
	"github.com/orderguard/orderguard/internal/queue/gormqueue"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("worker.orders",
	fx.Provide(New),
	fx.Invoke(registerPipeline),
)

// registerPipeline starts the consumer pool and the expiry reaper with the
// application lifecycle.
func registerPipeline(lc fx.Lifecycle, log *zap.Logger, w *Worker, q queue.Queue, durable *gormqueue.Queue, holder *config.PipelineConfigHolder) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	reaperDone := make(chan struct{})
	log = log.Named("worker.pipeline")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			cfg := holder.Current()
			go func() {
				defer close(done)
				err := q.Process(runCtx, queue.OrdersCreateQueue, w.HandleOrderCreate, queue.ProcessOptions{
					Concurrency:  cfg.Concurrency,
					PollInterval: cfg.PollInterval,
				})
				if err != nil && runCtx.Err() == nil {
					log.Error("queue consumer stopped", zap.Error(err))
				}
			}()
			go func() {
				defer close(reaperDone)
				runReaper(runCtx, log, durable, holder)
			}()
			log.Info("order pipeline started", zap.Int("concurrency", cfg.Concurrency))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			for _, ch := range []chan struct{}{done, reaperDone} {
				select {
				case <-ch:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		},
	})
}

// runReaper periodically buries expired jobs, requeues stale processing rows,
// and refreshes the queue depth gauge.
func runReaper(ctx context.Context, log *zap.Logger, durable *gormqueue.Queue, holder *config.PipelineConfigHolder) {
	interval := holder.Current().ReapInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := durable.ReapExpired(ctx, queue.OrdersCreateQueue); err != nil {
			log.Warn("queue reap failed", zap.Error(err))
		}
		if depth, err := durable.Depth(ctx, queue.OrdersCreateQueue); err == nil {
			obsmetrics.Pipeline().SetQueueDepth(queue.OrdersCreateQueue, depth)
		}
	}
}
