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

var categoryColumns = []string{
	"id", "uuid::text", "user_id", "name", "slug", "description", "status", "created_at", "updated_at",
}

type CategoriesRepo struct {
	db DB
}

func NewCategoriesRepo(db DB) *CategoriesRepo {
	return &CategoriesRepo{db: db}
}

func (r *CategoriesRepo) ListActive(ctx context.Context) ([]news.Category, error) {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sqlStr, args, err := qb().Select(categoryColumns...).
		From("categories").
		Where(sq.Eq{"status": news.CategoryActive}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(dbctx, sqlStr, args...)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	items, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return items, nil
}

func (r *CategoriesRepo) FindByID(ctx context.Context, id int64) (news.Category, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

func (r *CategoriesRepo) FindBySlug(ctx context.Context, slug string) (news.Category, error) {
	return r.findOne(ctx, sq.Eq{"slug": slug})
}

func (r *CategoriesRepo) findOne(ctx context.Context, where sq.Sqlizer) (news.Category, error) {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sqlStr, args, err := qb().Select(categoryColumns...).From("categories").Where(where).Limit(1).ToSql()
	if err != nil {
		return news.Category{}, err
	}
	rows, err := r.db.Query(dbctx, sqlStr, args...)
	if err != nil {
		slog.Error(err.Error())
		return news.Category{}, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return news.Category{}, news.ErrNotFound
		}
		slog.Error(err.Error())
		return news.Category{}, err
	}
	return c, nil
}

// FindOrCreateByName 名字精确匹配；并发创建同名分类时可能各建一条（slug 带随机后缀不会冲突）
func (r *CategoriesRepo) FindOrCreateByName(ctx context.Context, userID int64, name string) (news.Category, error) {
	c, err := r.findOne(ctx, sq.Eq{"name": name})
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, news.ErrNotFound) {
		return news.Category{}, err
	}
	id := uuid.NewString()
	return r.Create(ctx, news.Category{
		UUID:   id,
		UserID: &userID,
		Name:   name,
		Slug:   news.SuffixedSlug(name, id),
		Status: news.CategoryActive,
	})
}

func (r *CategoriesRepo) Create(ctx context.Context, c news.Category) (news.Category, error) {
	id, err := uuid.Parse(c.UUID)
	if err != nil {
		return news.Category{}, err
	}
	if c.Status == "" {
		c.Status = news.CategoryActive
	}
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sqlStr, args, err := qb().Insert("categories").
		Columns("uuid", "user_id", "name", "slug", "description", "status").
		Values(id, c.UserID, c.Name, c.Slug, c.Description, c.Status).
		Suffix("RETURNING " + joinColumns(categoryColumns)).
		ToSql()
	if err != nil {
		return news.Category{}, err
	}
	rows, err := r.db.Query(dbctx, sqlStr, args...)
	if err != nil {
		slog.Error(err.Error())
		return news.Category{}, err
	}
	out, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if isUniqueViolation(err) {
			return news.Category{}, news.ErrSlugTaken
		}
		slog.Error(err.Error())
		return news.Category{}, err
	}
	return out, nil
}

func (r *CategoriesRepo) Update(ctx context.Context, id int64, patch news.CategoryPatch) (news.Category, error) {
	set := map[string]any{"updated_at": sq.Expr("NOW()")}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Slug != nil {
		set["slug"] = *patch.Slug
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}

	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sqlStr, args, err := qb().Update("categories").
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(categoryColumns)).
		ToSql()
	if err != nil {
		return news.Category{}, err
	}
	rows, err := r.db.Query(dbctx, sqlStr, args...)
	if err != nil {
		slog.Error(err.Error())
		return news.Category{}, err
	}
	out, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return news.Category{}, news.ErrNotFound
		case isUniqueViolation(err):
			return news.Category{}, news.ErrSlugTaken
		}
		slog.Error(err.Error())
		return news.Category{}, err
	}
	return out, nil
}

// Delete 文章的 category_id 由外键置空
func (r *CategoriesRepo) Delete(ctx context.Context, id int64) error {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(dbctx, "DELETE FROM categories WHERE id=$1", id)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if tag.RowsAffected() == 0 {
		return news.ErrNotFound
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (news.Category, error) {
	var c news.Category
	err := row.Scan(&c.ID, &c.UUID, &c.UserID, &c.Name, &c.Slug, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
