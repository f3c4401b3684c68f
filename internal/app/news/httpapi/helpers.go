package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"newsroom.local/gee"
	"newsroom.local/internal/app/news"
	"newsroom.local/internal/platform/auth"
)

// actor 当前登录用户
type actor struct {
	ID    int64
	Name  string
	Admin bool
}

// mustGetActor 从上下文中取当前用户，失败时已写入错误响应
func mustGetActor(ctx *gee.Context) (actor, bool) {
	identity, ok := auth.GetIdentity(ctx.Req.Context())
	if !ok {
		ctx.AbortWithError(http.StatusUnauthorized, "Unauthorized")
		return actor{}, false
	}
	userID, err := strconv.ParseInt(identity.UserID, 10, 64)
	if err != nil {
		ctx.AbortWithError(http.StatusUnauthorized, "Unauthorized")
		return actor{}, false
	}
	return actor{ID: userID, Name: identity.Name, Admin: identity.IsAdmin()}, true
}

// canModify 资源所有者或管理员
func (a actor) canModify(ownerID *int64) bool {
	return a.Admin || (ownerID != nil && *ownerID == a.ID)
}

// pathID 解析 :id，失败时已写入 400
func pathID(ctx *gee.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(ctx.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		ctx.AbortWithError(http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// writeError 领域错误映射为状态码；其他错误记日志并返回 500
func writeError(ctx *gee.Context, err error, what string) {
	switch {
	case errors.Is(err, news.ErrNotFound):
		ctx.AbortWithError(http.StatusNotFound, "Not found")
	case errors.Is(err, news.ErrForbidden):
		ctx.AbortWithError(http.StatusForbidden, "Forbidden")
	case errors.Is(err, news.ErrSlugTaken):
		ctx.AbortWithErrors(http.StatusConflict, "Slug already used", gee.FieldErrors{"name": {"produces a slug that is already used"}})
	default:
		slog.ErrorContext(ctx.Req.Context(), what+" failed", "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, "Internal server error")
	}
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func statusOf(published bool) string {
	if published {
		return news.StatusPublished
	}
	return news.StatusDraft
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
