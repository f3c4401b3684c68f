package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"newsroom.local/gee"
	"newsroom.local/internal/app/news"
	newscache "newsroom.local/internal/app/news/cache"
	"newsroom.local/internal/platform/fanout"

	"github.com/google/uuid"
)

const subjectComment = "comment"

// flexID 同时接受 12 和 "12"：客户端拿到的 id 都是字符串
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return errors.New("postId must be an integer")
	}
	*f = flexID(id)
	return nil
}

type CreateCommentRequest struct {
	PostID  flexID  `json:"postId" validate:"gt=0"`
	Content string  `json:"content" validate:"required"`
	Name    *string `json:"name" validate:"omitnil,max=100"`
	Email   *string `json:"email" validate:"omitnil,max=255"`
	Phone   *string `json:"phone" validate:"omitnil,max=50"`
	Media   *string `json:"media" validate:"omitnil,max=1000"`
}

type commentEvent struct {
	PostID  int64      `json:"postId,string"`
	Comment CommentDTO `json:"comment"`
}

// NewCreateCommentHandler 评论成功后通知文章作者和评论者本人
func NewCreateCommentHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		var req CreateCommentRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		reqCtx := ctx.Req.Context()
		postID := int64(req.PostID)

		post, err := d.Articles.FindByID(reqCtx, postID)
		if errors.Is(err, news.ErrNotFound) {
			ctx.AbortWithError(http.StatusNotFound, "Post not found")
			return
		}
		if err != nil {
			writeError(ctx, err, "load post")
			return
		}

		comment, err := d.Comments.Create(reqCtx, news.Comment{
			UUID:    uuid.NewString(),
			UserID:  a.ID,
			PostID:  postID,
			Content: req.Content,
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Media:   req.Media,
		})
		// 文章在两次查询之间被删除
		if errors.Is(err, news.ErrNotFound) {
			ctx.AbortWithError(http.StatusNotFound, "Post not found")
			return
		}
		if err != nil {
			writeError(ctx, err, "create comment")
			return
		}

		dto := toCommentDTO(comment)
		ev := commentEvent{PostID: postID, Comment: dto}
		owner := idString(post.UserID)
		d.runEffects(reqCtx,
			d.invalidate(newscache.ArticleTargets(postID, post.UserID, a.ID)),
			d.notify("notify_owner", []string{owner}, subjectComment, idString(comment.ID), fanout.Created, ev),
			d.notify("notify_commenter", others(owner, idString(a.ID)), subjectComment, idString(comment.ID), fanout.Created, ev),
		)
		ctx.Success(http.StatusCreated, "Comment created", dto)
	}
}

var _ json.Unmarshaler = (*flexID)(nil)
