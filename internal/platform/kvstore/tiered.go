package kvstore

import (
	"context"
	"time"
)

// Tiered 本地缓存(L1) + 远端(L2)。
// 读：L1 -> L2，L2 命中后回填 L1；写和删除两层都做。
// 其他实例的 L1 不会被本实例的删除清掉，过期上限就是 L1 的 maxTTL。
type Tiered struct {
	l1 *Local
	l2 Store
}

func NewTiered(l1 *Local, l2 Store) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, _ := t.l1.Get(ctx, key); ok {
		return v, true, nil
	}
	v, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.l1.Set(ctx, key, v, t.l1.maxTTL)
	return v, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = t.l1.Set(ctx, key, value, ttl)
	return t.l2.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, keys ...string) error {
	_ = t.l1.Delete(ctx, keys...)
	return t.l2.Delete(ctx, keys...)
}

func (t *Tiered) DeletePrefix(ctx context.Context, prefix string) error {
	_ = t.l1.DeletePrefix(ctx, prefix)
	return t.l2.DeletePrefix(ctx, prefix)
}

func (t *Tiered) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := t.l1.Exists(ctx, key); ok {
		return true, nil
	}
	return t.l2.Exists(ctx, key)
}

func (t *Tiered) Ping(ctx context.Context) error {
	return t.l2.Ping(ctx)
}
