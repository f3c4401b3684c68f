package kvstore

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Local 基于 ristretto 的进程内缓存，只用作 Tiered 的一级缓存。
// ristretto 不能遍历 key，DeletePrefix 只能清空整个本地层；
// 其他实例的本地条目靠短 TTL 过期。
type Local struct {
	cache  *ristretto.Cache
	maxTTL time.Duration
}

// NewLocal maxItems: 预估条目数；maxBytes: 内存上限（按 value 字节数计 cost）
func NewLocal(maxItems, maxBytes int64, maxTTL time.Duration) (*Local, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10, // 建议为条目数的 10 倍
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Local{cache: c, maxTTL: maxTTL}, nil
}

func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	return b, ok, nil
}

// Set 的 TTL 不会超过 maxTTL，多实例之间的不一致窗口因此有上限
func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > l.maxTTL {
		ttl = l.maxTTL
	}
	l.cache.SetWithTTL(key, value, int64(len(value))+1, ttl)
	return nil
}

func (l *Local) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		l.cache.Del(k)
	}
	return nil
}

func (l *Local) DeletePrefix(context.Context, string) error {
	l.cache.Clear()
	return nil
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, _ := l.Get(ctx, key)
	return ok, nil
}

func (l *Local) Ping(context.Context) error { return nil }

// Wait 等待写缓冲落地，测试用
func (l *Local) Wait() { l.cache.Wait() }

func (l *Local) Close() { l.cache.Close() }
