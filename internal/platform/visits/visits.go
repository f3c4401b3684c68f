// Package visits 按 (主体, 访客, 时间窗口) 去重浏览计数。
package visits

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"newsroom.local/internal/platform/kvstore"
	"newsroom.local/internal/platform/metrics"

	"github.com/cespare/xxhash/v2"
)

const keyPrefix = "post-view:"

// Counter 判断一次浏览是否需要计数。
// EXISTS 和 SET 不是原子的：同一访客的并发请求可能都被判定为新访问，多计的次数有上限，可以接受。
type Counter struct {
	store  kvstore.Store
	window time.Duration
}

func NewCounter(store kvstore.Store, window time.Duration) *Counter {
	return &Counter{store: store, window: window}
}

// RecordViewIfNew 返回 true 表示调用方应当把浏览数 +1。
// 访客为空、KV 出错时都返回 true（失败放行）。
func (c *Counter) RecordViewIfNew(ctx context.Context, subjectID, visitor string) bool {
	if visitor == "" {
		metrics.ViewDedup.WithLabelValues("anonymous").Inc()
		return true
	}
	key := MarkKey(subjectID, visitor)

	seen, err := c.store.Exists(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "view dedup check failed", "subject", subjectID, "err", err)
		metrics.ViewDedup.WithLabelValues("degraded").Inc()
		return true
	}
	if seen {
		metrics.ViewDedup.WithLabelValues("duplicate").Inc()
		return false
	}

	if err := c.store.Set(ctx, key, []byte("1"), c.window); err != nil {
		slog.WarnContext(ctx, "view mark set failed", "subject", subjectID, "err", err)
		metrics.ViewDedup.WithLabelValues("degraded").Inc()
		return true
	}
	metrics.ViewDedup.WithLabelValues("new").Inc()
	return true
}

// MarkKey post-view:{subject}:{xxhash(visitor)}，访客标识（IP）不以明文落到 KV
func MarkKey(subjectID, visitor string) string {
	return keyPrefix + subjectID + ":" + strconv.FormatUint(xxhash.Sum64String(visitor), 16)
}

// NextCount 浏览数以十进制字符串持久化：解析、+1、再编码。无法解析时从 1 开始。
func NextCount(current string) string {
	n, err := strconv.ParseUint(strings.TrimSpace(current), 10, 64)
	if err != nil {
		return "1"
	}
	if n == math.MaxUint64 {
		return current
	}
	return strconv.FormatUint(n+1, 10)
}
