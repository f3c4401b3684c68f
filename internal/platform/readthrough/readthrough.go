// Package readthrough 读穿缓存：先查 KV，未命中时计算、写回、返回。
//
// KV 的任何失败都按未命中处理，计算结果照常返回。
// 同一个 key 并发未命中时每个请求都会各自计算一次（不做合并），
// 后写的结果覆盖先写的，两者都来自数据源，差异在 TTL 内收敛。
package readthrough

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"newsroom.local/internal/platform/kvstore"
	"newsroom.local/internal/platform/metrics"
)

// GetOrCompute 返回 key 对应的缓存值；未命中时调用 compute。
// compute 收到的 ctx 与请求取消解耦，请求被取消后计算仍会完成并写回缓存。
// compute 出错时不写缓存，错误原样返回。
func GetOrCompute[T any](ctx context.Context, store kvstore.Store, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	ns := namespaceOf(key)

	if raw, ok, err := store.Get(ctx, key); err != nil {
		slog.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		metrics.CacheOperations.WithLabelValues(ns, "error").Inc()
	} else if ok {
		var v T
		err := json.Unmarshal(raw, &v)
		if err == nil {
			metrics.CacheOperations.WithLabelValues(ns, "hit").Inc()
			return v, nil
		}
		// 解码失败当作未命中，下面重新计算并覆盖
		slog.WarnContext(ctx, "cache decode failed", "key", key, "err", err)
		metrics.CacheOperations.WithLabelValues(ns, "corrupt").Inc()
	} else {
		metrics.CacheOperations.WithLabelValues(ns, "miss").Inc()
	}

	computeCtx := context.WithoutCancel(ctx)
	v, err := compute(computeCtx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "cache encode failed", "key", key, "err", err)
		return v, nil
	}
	if err := store.Set(computeCtx, key, raw, ttl); err != nil {
		slog.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
	return v, nil
}

// namespaceOf 取 key 的前两段作为指标 label，例如 news:public:abcd -> news:public
func namespaceOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + ":" + parts[1]
}
