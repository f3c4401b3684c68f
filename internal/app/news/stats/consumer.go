package stats

import (
	"context"
	"time"
)

// Consumer 消费 ChannelCollector 的事件
type Consumer struct {
	collector *ChannelCollector
	batcher   batcher
}

func NewConsumer(sink Sink, collector *ChannelCollector) *Consumer {
	return &Consumer{
		collector: collector,
		batcher: batcher{
			sink:      sink,
			batchSize: defaultBatchSize,
			interval:  defaultInterval,
			name:      "view stats",
		},
	}
}

// WithBatch 调整批量大小和刷新间隔，非正数保留默认值
func (c *Consumer) WithBatch(size int, interval time.Duration) *Consumer {
	if size > 0 {
		c.batcher.batchSize = size
	}
	if interval > 0 {
		c.batcher.interval = interval
	}
	return c
}

// Run 阻塞，直到 ctx 取消或 collector 关闭
func (c *Consumer) Run(ctx context.Context) {
	c.batcher.run(ctx, c.collector.Events())
}
