package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"newsroom.local/gee"
	"newsroom.local/internal/app/news"
	newscache "newsroom.local/internal/app/news/cache"
	"newsroom.local/internal/app/news/stats"
	"newsroom.local/internal/platform/httpmiddleware"
	"newsroom.local/internal/platform/readthrough"
	"newsroom.local/internal/platform/visits"
)

// cachedList 列表走读穿缓存，key 由规范化后的查询决定
func (d *Deps) cachedList(ctx context.Context, namespace string, q news.ListQuery) (ListPayload, error) {
	return readthrough.GetOrCompute(ctx, d.Cache, news.ListingKey(namespace, q), d.ListingTTL,
		func(ctx context.Context) (ListPayload, error) {
			return d.list(ctx, q)
		})
}

func (d *Deps) list(ctx context.Context, q news.ListQuery) (ListPayload, error) {
	items, total, err := d.Articles.List(ctx, q)
	if err != nil {
		return ListPayload{}, err
	}
	return toListPayload(items, news.NewPagination(q, total)), nil
}

func NewPublicListHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		q := news.ParseListQuery(ctx.Req.URL.Query()).ForPublic()
		payload, err := d.cachedList(ctx.Req.Context(), newscache.PublicNamespace, q)
		if err != nil {
			writeError(ctx, err, "list public news")
			return
		}
		ctx.Success(http.StatusOK, "List public news", payload)
	}
}

// NewPublicDetailHandler 已发布文章详情。同一访客在窗口期内只计一次浏览。
func NewPublicDetailHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		slug := strings.TrimSpace(ctx.Param("slug"))
		if slug == "" {
			ctx.AbortWithError(http.StatusBadRequest, "Invalid slug")
			return
		}
		// 过滤器说不存在就一定不存在，省掉一次数据库查询
		if !d.Slugs.MightExist(slug) {
			ctx.AbortWithError(http.StatusNotFound, "Not found")
			return
		}
		reqCtx := ctx.Req.Context()
		article, err := d.Articles.FindPublishedBySlug(reqCtx, slug)
		if err != nil {
			writeError(ctx, err, "load news detail")
			return
		}

		visitor := httpmiddleware.ClientIP(ctx.Req)
		counted := d.Views == nil || d.Views.RecordViewIfNew(reqCtx, idString(article.ID), visitor)
		if counted {
			next := visits.NextCount(article.Views)
			// 计数失败不影响返回详情
			if err := d.Articles.SetViews(reqCtx, article.ID, next); err != nil {
				slog.WarnContext(reqCtx, "update view count failed", "post_id", article.ID, "err", err)
			} else {
				article.Views = next
			}
		}

		if d.Collector != nil {
			d.Collector.Collect(stats.ViewEvent{
				PostID:    article.ID,
				ViewedAt:  time.Now(),
				IP:        visitor,
				UserAgent: ctx.Req.UserAgent(),
				Referer:   ctx.Req.Referer(),
				Counted:   counted,
			})
		}
		ctx.Success(http.StatusOK, "News detail", toArticleDTO(article))
	}
}

func NewCategoryListHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		items, err := readthrough.GetOrCompute(ctx.Req.Context(), d.Cache, newscache.CategoriesKey, d.ListingTTL,
			func(ctx context.Context) ([]CategoryDTO, error) {
				cats, err := d.Categories.ListActive(ctx)
				if err != nil {
					return nil, err
				}
				out := make([]CategoryDTO, 0, len(cats))
				for _, c := range cats {
					out = append(out, toCategoryDTO(c))
				}
				return out, nil
			})
		if err != nil {
			writeError(ctx, err, "list categories")
			return
		}
		ctx.Success(http.StatusOK, "List categories", items)
	}
}

func NewCategoryBySlugHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		slug := strings.TrimSpace(ctx.Param("slug"))
		if slug == "" {
			ctx.AbortWithError(http.StatusBadRequest, "Invalid slug")
			return
		}
		c, err := d.Categories.FindBySlug(ctx.Req.Context(), slug)
		if err != nil {
			writeError(ctx, err, "load category")
			return
		}
		ctx.Success(http.StatusOK, "Category detail", toCategoryDTO(c))
	}
}
