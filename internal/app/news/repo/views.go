package repo

import (
	"context"
	"fmt"

	"newsroom.local/internal/app/news/stats"

	"github.com/jackc/pgx/v5"
)

// ViewLog 实现 stats.Sink
type ViewLog struct {
	db DB
}

func NewViewLog(db DB) *ViewLog {
	return &ViewLog{db: db}
}

// InsertViews 一个 batch 发送；文章已被删除的事件直接跳过，不让整批失败
func (v *ViewLog) InsertViews(ctx context.Context, events []stats.ViewEvent) error {
	if len(events) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, e := range events {
		b.Queue(`INSERT INTO post_views (post_id, viewed_at, ip, user_agent, referer, counted)
SELECT $1::bigint, $2::timestamptz, $3::text, $4::text, $5::text, $6::boolean
WHERE EXISTS (SELECT 1 FROM posts WHERE id = $1)`,
			e.PostID, e.ViewedAt, e.IP, e.UserAgent, e.Referer, e.Counted)
	}

	results := v.db.SendBatch(ctx, b)
	defer results.Close()
	for i := range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert view %d/%d: %w", i+1, len(events), err)
		}
	}
	return results.Close()
}
