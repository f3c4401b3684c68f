package httpapi

import (
	"context"
	"log/slog"

	newscache "newsroom.local/internal/app/news/cache"
	"newsroom.local/internal/platform/effects"
	"newsroom.local/internal/platform/fanout"
)

// 写操作提交后的副作用，顺序：清缓存 -> 通知所有者 -> 通知其他相关方 -> 更新 slug 过滤器。

func (d *Deps) runEffects(ctx context.Context, fx ...effects.Effect) {
	if d.Effects == nil {
		return
	}
	// 每一步的失败已经由 Runner 记录，这里只留一条汇总
	if err := d.Effects.Run(ctx, fx...); err != nil {
		slog.DebugContext(ctx, "post-commit effects finished with errors", "err", err)
	}
}

func (d *Deps) invalidate(t newscache.Target) effects.Effect {
	return effects.Effect{
		Name: "invalidate",
		Run: func(ctx context.Context) error {
			if d.Invalidator == nil {
				return nil
			}
			return d.Invalidator.Invalidate(ctx, t)
		},
	}
}

// notify 事件在副作用执行时才序列化；序列化失败算这一步失败
func (d *Deps) notify(name string, identities []string, subjectType, subjectID string, action fanout.Action, payload any) effects.Effect {
	return effects.Effect{
		Name: name,
		Run: func(context.Context) error {
			if d.Hub == nil || len(identities) == 0 {
				return nil
			}
			ev, err := fanout.NewEvent(subjectType, subjectID, action, payload)
			if err != nil {
				return err
			}
			d.Hub.PublishAll(identities, ev)
			return nil
		},
	}
}

func (d *Deps) rememberSlug(slug string) effects.Effect {
	return effects.Effect{
		Name: "slug_filter",
		Run: func(context.Context) error {
			d.Slugs.Add(slug)
			return nil
		},
	}
}

// others 去掉与 owner 相同的身份
func others(owner string, ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && id != owner {
			out = append(out, id)
		}
	}
	return out
}
