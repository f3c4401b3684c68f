// Package stats 文章浏览日志：请求路径只投递事件，后台批量写入 post_views。
// 浏览数本身由详情接口同步去重更新，这里只保留明细。
package stats

import (
	"sync"
	"time"

	"newsroom.local/internal/platform/metrics"
)

// 浏览事件
type ViewEvent struct {
	PostID    int64     `json:"postId,string"`
	ViewedAt  time.Time `json:"viewedAt"`
	IP        string    `json:"ip"`        //访客 IP
	UserAgent string    `json:"userAgent"` //客户端信息（浏览器、操作系统）
	Referer   string    `json:"referer"`   //从哪个页面过来的
	Counted   bool      `json:"counted"`   //这次浏览是否让计数 +1
}

// Collector 收集器接口：channel 或 Kafka。Collect 不能阻塞请求。
type Collector interface {
	Collect(event ViewEvent)
	Close()
}

// ChannelCollector 基于 channel 的收集器，满了就丢弃
type ChannelCollector struct {
	mu     sync.RWMutex
	ch     chan ViewEvent
	closed bool
}

func NewChannelCollector(bufferSize int) *ChannelCollector {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &ChannelCollector{ch: make(chan ViewEvent, bufferSize)}
}

func (c *ChannelCollector) Collect(event ViewEvent) {
	// 读锁保证 Close 之后不会再向已关闭的 channel 发送
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- event:
	default:
		metrics.ViewEventsDropped.Inc()
	}
}

func (c *ChannelCollector) Events() <-chan ViewEvent {
	return c.ch
}

// Close 可以重复调用
func (c *ChannelCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
