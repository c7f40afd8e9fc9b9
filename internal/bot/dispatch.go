package bot

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	rtsup "remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Run reads updates until ctx ends or the channel closes, handling them on a
// bounded worker pool. A full backlog drops the update.
func (c *Controller) Run(ctx context.Context, updates <-chan kit.Update) error {
	cfg := c.config()
	jobs := make(chan kit.Update, cfg.QueueSize)

	sup := rtsup.New(ctx,
		rtsup.WithLogger(c.log.With(logx.String("comp", "bot.dispatch"))),
		rtsup.WithCancelOnError(false),
	)
	c.log.Info("dispatcher started", logx.Int("workers", cfg.Workers), logx.Int("queue_cap", cfg.QueueSize))

	for i := 0; i < cfg.Workers; i++ {
		idx := i
		sup.GoRestart("bot.worker."+strconv.Itoa(idx), func(wctx context.Context) error {
			for {
				select {
				case <-wctx.Done():
					return nil
				case up, ok := <-jobs:
					if !ok {
						return nil
					}
					c.work(wctx, idx, up)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		close(jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		sup.Cancel()
		c.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case jobs <- up:
			default:
				c.log.Warn("update dropped: dispatcher backlog full", logx.String("kind", string(up.Kind)), logx.Int("queue_cap", cap(jobs)))
			}
		}
	}
}

func (c *Controller) work(ctx context.Context, idx int, up kit.Update) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in update worker", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	// Errors are logged by the request middleware.
	_ = c.Handle(ctx, up)
}
