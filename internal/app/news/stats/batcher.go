package stats

import (
	"context"
	"log/slog"
	"time"
)

// Sink 批量落库，由 repo.ViewLog 实现
type Sink interface {
	InsertViews(ctx context.Context, events []ViewEvent) error
}

const (
	defaultBatchSize = 100         //批量写入大小
	defaultInterval  = time.Second //最大等待时间
	flushTimeout     = 5 * time.Second
)

// batcher 攒批：满 batchSize 或到 interval 就写一次；src 关闭或 ctx 取消时写出剩余事件后返回
type batcher struct {
	sink      Sink
	batchSize int
	interval  time.Duration
	name      string
}

func (b batcher) run(ctx context.Context, src <-chan ViewEvent) {
	batch := make([]ViewEvent, 0, b.batchSize)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.drain(src, batch)
			return
		case event, ok := <-src:
			if !ok {
				b.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= b.batchSize {
				b.flush(batch)
				batch = batch[:0] //清空切片，保留容量
			}
		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// drain 把缓冲里已有的事件一起写掉，不再等待新事件
func (b batcher) drain(src <-chan ViewEvent, batch []ViewEvent) {
	for {
		select {
		case event, ok := <-src:
			if !ok {
				b.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= b.batchSize {
				b.flush(batch)
				batch = batch[:0]
			}
		default:
			b.flush(batch)
			return
		}
	}
}

func (b batcher) flush(batch []ViewEvent) {
	if len(batch) == 0 {
		return
	}
	// 关机时 ctx 已取消，写库用独立的超时
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := b.sink.InsertViews(ctx, batch); err != nil {
		slog.Error(b.name+": flush failed", "err", err, "count", len(batch))
		return
	}
	slog.Debug(b.name+": flushed", "count", len(batch))
}
