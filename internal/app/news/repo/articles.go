package repo

import (
	"context"
	"errors"
	"log/slog"

	"newsroom.local/internal/app/news"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var articleColumns = []string{
	"p.id", "p.uuid::text", "p.user_id", "p.category_id", "p.name", "p.slug", "p.content",
	"COALESCE(p.tags, '')", "p.status", "p.views", "p.created_at", "p.updated_at",
	"COALESCE(u.name, '')", "c.id", "c.name", "c.slug",
}

type ArticlesRepo struct {
	db DB
}

func NewArticlesRepo(db DB) *ArticlesRepo {
	return &ArticlesRepo{db: db}
}

func (r *ArticlesRepo) base(columns ...string) sq.SelectBuilder {
	return qb().Select(columns...).
		From("posts p").
		LeftJoin("users u ON u.id = p.user_id").
		LeftJoin("categories c ON c.id = p.category_id")
}

func filters(q news.ListQuery) sq.And {
	where := sq.And{}
	if q.PublishedOnly {
		where = append(where, sq.Eq{"p.status": news.StatusPublished})
	}
	if q.OwnerID != nil {
		where = append(where, sq.Eq{"p.user_id": *q.OwnerID})
	}
	if q.UserID != nil {
		where = append(where, sq.Eq{"p.user_id": *q.UserID})
	}
	if q.UserName != "" {
		where = append(where, sq.ILike{"u.name": contains(q.UserName)})
	}
	if q.Title != "" {
		where = append(where, sq.ILike{"p.name": contains(q.Title)})
	}
	if q.Status != "" {
		where = append(where, sq.Eq{"p.status": q.Status})
	}
	if q.CategorySlug != "" {
		where = append(where, sq.Eq{"c.slug": q.CategorySlug})
	}
	if q.CreatedFrom != nil {
		where = append(where, sq.GtOrEq{"p.created_at": *q.CreatedFrom})
	}
	if q.CreatedTo != nil {
		where = append(where, sq.LtOrEq{"p.created_at": *q.CreatedTo})
	}
	if len(q.Tags) > 0 {
		// 任意一个标签命中即可
		anyTag := sq.Or{}
		for _, tag := range q.Tags {
			anyTag = append(anyTag, sq.ILike{"p.tags": contains(tag)})
		}
		where = append(where, anyTag)
	}
	return where
}

func (r *ArticlesRepo) List(ctx context.Context, q news.ListQuery) ([]news.Article, int, error) {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := filters(q)

	countSQL, countArgs, err := r.base("COUNT(*)").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRow(dbctx, countSQL, countArgs...).Scan(&total); err != nil {
		slog.Error(err.Error())
		return nil, 0, err
	}
	if total == 0 || q.Offset() >= total {
		return []news.Article{}, total, nil
	}

	sqlStr, args, err := r.base(articleColumns...).
		Where(where).
		OrderBy("p.created_at DESC", "p.id DESC").
		Limit(uint64(q.PageSize)).
		Offset(uint64(q.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(dbctx, sqlStr, args...)
	if err != nil {
		slog.Error(err.Error())
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, scanArticle)
	if err != nil {
		slog.Error(err.Error())
		return nil, 0, err
	}
	if err := r.attachComments(dbctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *ArticlesRepo) FindByID(ctx context.Context, id int64) (news.Article, error) {
	return r.findOne(ctx, sq.Eq{"p.id": id})
}

func (r *ArticlesRepo) FindPublishedBySlug(ctx context.Context, slug string) (news.Article, error) {
	return r.findOne(ctx, sq.And{sq.Eq{"p.slug": slug}, sq.Eq{"p.status": news.StatusPublished}})
}

func (r *ArticlesRepo) findOne(ctx context.Context, where sq.Sqlizer) (news.Article, error) {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sqlStr, args, err := r.base(articleColumns...).Where(where).Limit(1).ToSql()
	if err != nil {
		return news.Article{}, err
	}
	rows, err := r.db.Query(dbctx, sqlStr, args...)
	if err != nil {
		slog.Error(err.Error())
		return news.Article{}, err
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanArticle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return news.Article{}, news.ErrNotFound
		}
		slog.Error(err.Error())
		return news.Article{}, err
	}
	items := []news.Article{a}
	if err := r.attachComments(dbctx, items); err != nil {
		return news.Article{}, err
	}
	return items[0], nil
}

// attachComments 一次查出这一页文章的全部评论，按创建时间倒序挂到各自文章上
func (r *ArticlesRepo) attachComments(ctx context.Context, items []news.Article) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int64, len(items))
	index := make(map[int64]int, len(items))
	for i := range items {
		ids[i] = items[i].ID
		index[items[i].ID] = i
		items[i].Comments = []news.Comment{}
	}

	sqlStr, args, err := qb().Select(commentColumns...).
		From("comments cm").
		LeftJoin("users u ON u.id = cm.user_id").
		Where(sq.Eq{"cm.post_id": ids}).
		OrderBy("cm.created_at DESC", "cm.id DESC").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	comments, err := pgx.CollectRows(rows, scanComment)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	for _, c := range comments {
		if i, ok := index[c.PostID]; ok {
			items[i].Comments = append(items[i].Comments, c)
		}
	}
	return nil
}

func (r *ArticlesRepo) Create(ctx context.Context, a news.Article) (news.Article, error) {
	id, err := uuid.Parse(a.UUID)
	if err != nil {
		return news.Article{}, err
	}
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sqlStr, args, err := qb().Insert("posts").
		Columns("uuid", "user_id", "category_id", "name", "slug", "content", "tags", "status", "views").
		Values(id, a.UserID, a.CategoryID, a.Name, a.Slug, a.Content, nullIfEmpty(a.Tags), a.Status, "0").
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return news.Article{}, err
	}
	var newID int64
	if err := r.db.QueryRow(dbctx, sqlStr, args...).Scan(&newID); err != nil {
		if isUniqueViolation(err) {
			return news.Article{}, news.ErrSlugTaken
		}
		slog.Error(err.Error())
		return news.Article{}, err
	}
	return r.FindByID(ctx, newID)
}

func (r *ArticlesRepo) Update(ctx context.Context, id int64, patch news.ArticlePatch) (news.Article, error) {
	set := map[string]any{"updated_at": sq.Expr("NOW()")}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Slug != nil {
		set["slug"] = *patch.Slug
	}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Tags != nil {
		set["tags"] = nullIfEmpty(*patch.Tags)
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}

	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sqlStr, args, err := qb().Update("posts").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return news.Article{}, err
	}
	tag, err := r.db.Exec(dbctx, sqlStr, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return news.Article{}, news.ErrSlugTaken
		}
		slog.Error(err.Error())
		return news.Article{}, err
	}
	if tag.RowsAffected() == 0 {
		return news.Article{}, news.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *ArticlesRepo) Delete(ctx context.Context, id int64) error {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(dbctx, "DELETE FROM posts WHERE id=$1", id)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if tag.RowsAffected() == 0 {
		return news.ErrNotFound
	}
	return nil
}

// SetViews 不改 updated_at：浏览不算内容修改
func (r *ArticlesRepo) SetViews(ctx context.Context, id int64, views string) error {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.Exec(dbctx, "UPDATE posts SET views=$1 WHERE id=$2", views, id); err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}

func (r *ArticlesRepo) PublishedSlugs(ctx context.Context, fn func(slug string)) error {
	rows, err := r.db.Query(ctx, "SELECT slug FROM posts WHERE status=$1", news.StatusPublished)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return err
		}
		fn(slug)
	}
	return rows.Err()
}

func scanArticle(row pgx.CollectableRow) (news.Article, error) {
	var (
		a                news.Article
		catID            *int64
		catName, catSlug *string
	)
	err := row.Scan(
		&a.ID, &a.UUID, &a.UserID, &a.CategoryID, &a.Name, &a.Slug, &a.Content,
		&a.Tags, &a.Status, &a.Views, &a.CreatedAt, &a.UpdatedAt,
		&a.AuthorName, &catID, &catName, &catSlug,
	)
	if err != nil {
		return news.Article{}, err
	}
	if catID != nil {
		a.Category = &news.CategoryRef{ID: *catID}
		if catName != nil {
			a.Category.Name = *catName
		}
		if catSlug != nil {
			a.Category.Slug = *catSlug
		}
	}
	return a, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
