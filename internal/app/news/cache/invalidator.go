package cache

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"newsroom.local/internal/platform/kvstore"
	"newsroom.local/internal/platform/metrics"
)

// Target 一次写操作需要清理的缓存：Keys 精确删除，Prefixes 按前缀扫描删除。
// 精确 key 是必须清掉的（默认列表和详情）；前缀清理尽力而为，剩下的变体靠 TTL 过期。
type Target struct {
	Keys     []string
	Prefixes []string
}

func (t Target) merge(o Target) Target {
	keys := append(slices.Clone(t.Keys), o.Keys...)
	prefixes := append(slices.Clone(t.Prefixes), o.Prefixes...)
	slices.Sort(keys)
	slices.Sort(prefixes)
	return Target{Keys: slices.Compact(keys), Prefixes: slices.Compact(prefixes)}
}

// ArticleTargets 文章创建/更新/删除（以及给文章加评论）时要清理的缓存。
// actorID 与 ownerID 不同时（管理员代为修改），操作者自己的列表也一并清理。
func ArticleTargets(articleID, ownerID, actorID int64) Target {
	owner := MineNamespace(ownerID)
	t := Target{
		Keys:     []string{PublicNamespace, owner},
		Prefixes: []string{PublicNamespace + ":", owner + ":"},
	}
	if articleID > 0 {
		t.Keys = append(t.Keys, DetailKey(articleID))
	}
	if actorID > 0 && actorID != ownerID {
		actor := MineNamespace(actorID)
		t = t.merge(Target{Keys: []string{actor}, Prefixes: []string{actor + ":"}})
	}
	return t
}

// CategoryTargets 分类变化会影响分类列表以及所有带分类信息的文章列表
func CategoryTargets() Target {
	return Target{
		Keys:     []string{CategoriesKey, PublicNamespace},
		Prefixes: []string{PublicNamespace + ":", mineNamespace},
	}
}

type Invalidator struct {
	store kvstore.Store
}

func NewInvalidator(store kvstore.Store) *Invalidator {
	return &Invalidator{store: store}
}

// Invalidate 先删精确 key 再逐个前缀清理；某一项失败不影响其他项，错误合并返回。
func (inv *Invalidator) Invalidate(ctx context.Context, t Target) error {
	var errs []error

	if len(t.Keys) > 0 {
		err := inv.store.Delete(ctx, t.Keys...)
		record(ctx, "exact", t.Keys, err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	for _, prefix := range t.Prefixes {
		err := inv.store.DeletePrefix(ctx, prefix)
		record(ctx, "prefix", []string{prefix}, err)
		if err != nil && !errors.Is(err, kvstore.ErrPartialPurge) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func record(ctx context.Context, kind string, targets []string, err error) {
	switch {
	case err == nil:
		metrics.CacheInvalidations.WithLabelValues(kind, "ok").Inc()
	case errors.Is(err, kvstore.ErrPartialPurge):
		// 扫描预算用完，剩余的变体等 TTL 过期
		metrics.CacheInvalidations.WithLabelValues(kind, "partial").Inc()
		slog.InfoContext(ctx, "cache prefix purge incomplete", "targets", targets)
	default:
		metrics.CacheInvalidations.WithLabelValues(kind, "error").Inc()
		slog.WarnContext(ctx, "cache invalidation failed", "kind", kind, "targets", targets, "err", err)
	}
}
