// Package effects 写操作提交后的副作用（清缓存、推送事件等）。
// 每一步相互隔离：出错或 panic 只记录日志和指标，不影响后面的步骤，也不影响主请求。
package effects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsroom.local/internal/platform/metrics"
)

type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

type Runner struct {
	stepTimeout time.Duration
}

func NewRunner(stepTimeout time.Duration) *Runner {
	if stepTimeout <= 0 {
		stepTimeout = time.Second
	}
	return &Runner{stepTimeout: stepTimeout}
}

// Run 按顺序同步执行，返回所有失败步骤的合并错误（调用方通常只记录，不返回给客户端）。
// ctx 只用来携带 trace / request id，请求取消不会中断副作用。
func (r *Runner) Run(ctx context.Context, fx ...Effect) error {
	base := context.WithoutCancel(ctx)
	var errs []error
	for _, e := range fx {
		if err := r.step(base, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) step(base context.Context, e Effect) (err error) {
	ctx, cancel := context.WithTimeout(base, r.stepTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("effect %s panicked: %v", e.Name, rec)
		}
		if err != nil {
			slog.WarnContext(base, "post-commit effect failed", "effect", e.Name, "err", err)
			metrics.Effects.WithLabelValues(e.Name, "error").Inc()
			return
		}
		metrics.Effects.WithLabelValues(e.Name, "ok").Inc()
	}()

	if e.Run == nil {
		return nil
	}
	if err := e.Run(ctx); err != nil {
		return fmt.Errorf("effect %s: %w", e.Name, err)
	}
	return nil
}
