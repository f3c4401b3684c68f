package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// SlugFilter 已发布文章 slug 的布隆过滤器，挡住对不存在 slug 的详情请求。
// 预热完成之前 MightExist 总是返回 true；nil 的 SlugFilter 也总是返回 true。
// 文章删除或下线后 slug 仍留在过滤器里，只是多一次数据库查询。
type SlugFilter struct {
	mu            sync.RWMutex
	filter        *bloom.BloomFilter
	rebuilding    *bloom.BloomFilter // Warm 期间非空，Add 同时写入
	expectedItems uint
	fpRate        float64
	ready         atomic.Bool
	warmMu        sync.Mutex
}

// NewSlugFilter
// expectedItems: 预期文章数量
// fpRate: 误判率（建议 0.01 即 1%）
func NewSlugFilter(expectedItems uint, fpRate float64) *SlugFilter {
	return &SlugFilter{
		filter:        bloom.NewWithEstimates(expectedItems, fpRate),
		expectedItems: expectedItems,
		fpRate:        fpRate,
	}
}

func (f *SlugFilter) Add(slug string) {
	if f == nil || slug == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(slug)
	if f.rebuilding != nil {
		f.rebuilding.AddString(slug)
	}
}

// MightExist 返回 false 表示一定不存在
func (f *SlugFilter) MightExist(slug string) bool {
	if f == nil || !f.ready.Load() {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(slug)
}

// Count 估算的元素数量
func (f *SlugFilter) Count() uint32 {
	if f == nil {
		return 0
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.ApproximatedSize()
}

// Warm 用 source 遍历出的 slug 重建过滤器，完成后替换旧的，已删除文章的 slug 随之清掉。
// 重建期间通过 Add 加入的 slug 会同时写进新旧两个过滤器。
func (f *SlugFilter) Warm(ctx context.Context, source func(ctx context.Context, fn func(slug string)) error) error {
	f.warmMu.Lock()
	defer f.warmMu.Unlock()

	fresh := bloom.NewWithEstimates(f.expectedItems, f.fpRate)
	f.mu.Lock()
	f.rebuilding = fresh
	f.mu.Unlock()

	err := source(ctx, func(slug string) {
		f.mu.Lock()
		fresh.AddString(slug)
		f.mu.Unlock()
	})

	f.mu.Lock()
	f.rebuilding = nil
	if err == nil {
		f.filter = fresh
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}

	f.ready.Store(true)
	return nil
}

// Run 定期重建，多实例部署时用来收敛其他实例新增的 slug。ctx 取消时返回。
func (f *SlugFilter) Run(ctx context.Context, interval time.Duration, source func(ctx context.Context, fn func(slug string)) error) {
	if f == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.Warm(ctx, source); err != nil {
				slog.Warn("slug filter rebuild failed", "err", err)
				continue
			}
			slog.Debug("slug filter rebuilt", "approx_items", f.Count())
		}
	}
}
