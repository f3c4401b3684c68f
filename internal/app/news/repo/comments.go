package repo

import (
	"context"
	"errors"
	"log/slog"

	"newsroom.local/internal/app/news"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var commentColumns = []string{
	"cm.id", "cm.uuid::text", "cm.user_id", "cm.post_id", "cm.content",
	"cm.name", "cm.email", "cm.phone", "cm.media", "COALESCE(u.name, '')",
	"cm.created_at", "cm.updated_at",
}

type CommentsRepo struct {
	db DB
}

func NewCommentsRepo(db DB) *CommentsRepo {
	return &CommentsRepo{db: db}
}

// Create 文章不存在（外键冲突）时返回 news.ErrNotFound
func (r *CommentsRepo) Create(ctx context.Context, c news.Comment) (news.Comment, error) {
	id, err := uuid.Parse(c.UUID)
	if err != nil {
		return news.Comment{}, err
	}
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// CTE 插入后再 join users 取作者名
	const q = `WITH cm AS (
  INSERT INTO comments (uuid, user_id, post_id, content, name, email, phone, media)
  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
  RETURNING *
)
SELECT cm.id, cm.uuid::text, cm.user_id, cm.post_id, cm.content, cm.name, cm.email, cm.phone, cm.media,
  COALESCE(u.name, ''), cm.created_at, cm.updated_at
FROM cm LEFT JOIN users u ON u.id = cm.user_id`

	rows, err := r.db.Query(dbctx, q, id, c.UserID, c.PostID, c.Content, c.Name, c.Email, c.Phone, c.Media)
	if err != nil {
		slog.Error(err.Error())
		return news.Comment{}, err
	}
	out, err := pgx.CollectExactlyOneRow(rows, scanComment)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return news.Comment{}, news.ErrNotFound
		}
		slog.Error(err.Error())
		return news.Comment{}, err
	}
	return out, nil
}

func scanComment(row pgx.CollectableRow) (news.Comment, error) {
	var c news.Comment
	err := row.Scan(
		&c.ID, &c.UUID, &c.UserID, &c.PostID, &c.Content,
		&c.Name, &c.Email, &c.Phone, &c.Media, &c.AuthorName,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}
