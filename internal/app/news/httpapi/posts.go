package httpapi

import (
	"context"
	"net/http"
	"strings"

	"newsroom.local/gee"
	"newsroom.local/internal/app/news"
	newscache "newsroom.local/internal/app/news/cache"
	"newsroom.local/internal/platform/fanout"
	"newsroom.local/internal/platform/readthrough"

	"github.com/google/uuid"
)

const subjectPost = "post"

// NewMineListHandler 当前用户自己的文章，按用户分命名空间缓存
func NewMineListHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		q := news.ParseListQuery(ctx.Req.URL.Query()).ForOwner(a.ID)
		payload, err := d.cachedList(ctx.Req.Context(), newscache.MineNamespace(a.ID), q)
		if err != nil {
			writeError(ctx, err, "list my news")
			return
		}
		ctx.Success(http.StatusOK, "List my news", payload)
	}
}

// NewFilteredListHandler 后台列表，过滤组合太多，不缓存
func NewFilteredListHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		q := news.ParseListQuery(ctx.Req.URL.Query()).ForActor(a.ID, a.Admin)
		payload, err := d.list(ctx.Req.Context(), q)
		if err != nil {
			writeError(ctx, err, "list posts")
			return
		}
		ctx.Success(http.StatusOK, "List posts", payload)
	}
}

func NewPostDetailHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx)
		if !ok {
			return
		}
		// 先取缓存再鉴权：缓存内容与请求者无关
		item, err := readthrough.GetOrCompute(ctx.Req.Context(), d.Cache, newscache.DetailKey(id), d.ListingTTL,
			func(ctx context.Context) (ArticleDTO, error) {
				article, err := d.Articles.FindByID(ctx, id)
				if err != nil {
					return ArticleDTO{}, err
				}
				return toArticleDTO(article), nil
			})
		if err != nil {
			writeError(ctx, err, "load news")
			return
		}
		if !a.canModify(&item.UserID) {
			ctx.AbortWithError(http.StatusForbidden, "Forbidden")
			return
		}
		ctx.Success(http.StatusOK, "News detail", item)
	}
}

type CreatePostRequest struct {
	Title        string `json:"title" validate:"required,max=255"`
	Content      string `json:"content" validate:"required"`
	Published    bool   `json:"published"`
	CategoryName string `json:"category_name" validate:"max=100"`
	Tags         string `json:"tags" validate:"max=500"`
}

func NewCreatePostHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		var req CreatePostRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		reqCtx := ctx.Req.Context()

		title := strings.TrimSpace(req.Title)
		if title == "" {
			ctx.AbortWithErrors(http.StatusUnprocessableEntity, "Validation error", gee.FieldErrors{"title": {"is required"}})
			return
		}
		categoryName := strings.TrimSpace(req.CategoryName)
		if categoryName == "" {
			categoryName = news.DefaultCategory
		}
		category, err := d.Categories.FindOrCreateByName(reqCtx, a.ID, categoryName)
		if err != nil {
			writeError(ctx, err, "resolve category")
			return
		}

		id := uuid.NewString()
		article, err := d.Articles.Create(reqCtx, news.Article{
			UUID:       id,
			UserID:     a.ID,
			CategoryID: &category.ID,
			Name:       title,
			Slug:       news.SuffixedSlug(title, id),
			Content:    req.Content,
			Tags:       normalizeTags(req.Tags),
			Status:     statusOf(req.Published),
			Views:      "0",
		})
		if err != nil {
			writeError(ctx, err, "create news")
			return
		}

		dto := toArticleDTO(article)
		owner := idString(article.UserID)
		d.runEffects(reqCtx,
			d.invalidate(newscache.ArticleTargets(article.ID, article.UserID, a.ID)),
			d.notify("notify_owner", []string{owner}, subjectPost, idString(article.ID), fanout.Created, dto),
			d.rememberSlug(article.Slug),
		)
		ctx.Success(http.StatusCreated, "News created", dto)
	}
}

type UpdatePostRequest struct {
	Title     *string `json:"title" validate:"omitnil,min=1,max=255"`
	Content   *string `json:"content" validate:"omitnil,min=1"`
	Published *bool   `json:"published"`
	Tags      *string `json:"tags" validate:"omitnil,max=500"`
}

// NewUpdatePostHandler 所有者或管理员可改。改标题会重新生成 slug，后缀仍取自文章自己的 uuid。
func NewUpdatePostHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx)
		if !ok {
			return
		}
		var req UpdatePostRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		reqCtx := ctx.Req.Context()

		existing, err := d.Articles.FindByID(reqCtx, id)
		if err != nil {
			writeError(ctx, err, "load news")
			return
		}
		if !a.canModify(&existing.UserID) {
			ctx.AbortWithError(http.StatusForbidden, "Forbidden")
			return
		}

		var patch news.ArticlePatch
		if title := trimmedOrNil(req.Title); title != nil && *title != "" {
			slug := news.SuffixedSlug(*title, existing.UUID)
			patch.Name, patch.Slug = title, &slug
		}
		patch.Content = req.Content
		if req.Published != nil {
			status := statusOf(*req.Published)
			patch.Status = &status
		}
		if req.Tags != nil {
			tags := normalizeTags(*req.Tags)
			patch.Tags = &tags
		}

		article, err := d.Articles.Update(reqCtx, id, patch)
		if err != nil {
			writeError(ctx, err, "update news")
			return
		}

		dto := toArticleDTO(article)
		owner := idString(article.UserID)
		d.runEffects(reqCtx,
			d.invalidate(newscache.ArticleTargets(article.ID, article.UserID, a.ID)),
			d.notify("notify_owner", []string{owner}, subjectPost, idString(article.ID), fanout.Updated, dto),
			d.notify("notify_actor", others(owner, idString(a.ID)), subjectPost, idString(article.ID), fanout.Updated, dto),
			d.rememberSlug(article.Slug),
		)
		ctx.Success(http.StatusOK, "News updated", dto)
	}
}

func NewDeletePostHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx)
		if !ok {
			return
		}
		reqCtx := ctx.Req.Context()

		existing, err := d.Articles.FindByID(reqCtx, id)
		if err != nil {
			writeError(ctx, err, "load news")
			return
		}
		if !a.canModify(&existing.UserID) {
			ctx.AbortWithError(http.StatusForbidden, "Forbidden")
			return
		}
		if err := d.Articles.Delete(reqCtx, id); err != nil {
			writeError(ctx, err, "delete news")
			return
		}

		// slug 留在过滤器里，下次重建时自然淘汰
		owner := idString(existing.UserID)
		payload := struct {
			ID int64 `json:"id,string"`
		}{ID: id}
		d.runEffects(reqCtx,
			d.invalidate(newscache.ArticleTargets(id, existing.UserID, a.ID)),
			d.notify("notify_owner", []string{owner}, subjectPost, idString(id), fanout.Deleted, payload),
			d.notify("notify_actor", others(owner, idString(a.ID)), subjectPost, idString(id), fanout.Deleted, payload),
		)
		ctx.Success(http.StatusOK, "News deleted", nil)
	}
}

// normalizeTags 逗号分隔，去掉首尾空白和空项，保留原有大小写和顺序
func normalizeTags(raw string) string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
