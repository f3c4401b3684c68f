package news

import "context"

// 存储接口由 repo 包用 PostgreSQL 实现；HTTP 层只依赖接口，测试时用内存实现替换。

type ArticleStore interface {
	// List 按 q 过滤，按创建时间倒序分页，返回当前页和总数
	List(ctx context.Context, q ListQuery) ([]Article, int, error)
	FindByID(ctx context.Context, id int64) (Article, error)
	FindPublishedBySlug(ctx context.Context, slug string) (Article, error)
	Create(ctx context.Context, a Article) (Article, error)
	Update(ctx context.Context, id int64, patch ArticlePatch) (Article, error)
	Delete(ctx context.Context, id int64) error
	// SetViews 写回调用方算好的浏览数（读-改-写，不保证原子）
	SetViews(ctx context.Context, id int64, views string) error
	// PublishedSlugs 逐个回调所有已发布文章的 slug，用于预热 slug 过滤器
	PublishedSlugs(ctx context.Context, fn func(slug string)) error
}

type CategoryStore interface {
	ListActive(ctx context.Context) ([]Category, error)
	FindByID(ctx context.Context, id int64) (Category, error)
	FindBySlug(ctx context.Context, slug string) (Category, error)
	// FindOrCreateByName 按名字找分类，找不到时以 userID 的名义创建
	FindOrCreateByName(ctx context.Context, userID int64, name string) (Category, error)
	Create(ctx context.Context, c Category) (Category, error)
	Update(ctx context.Context, id int64, patch CategoryPatch) (Category, error)
	Delete(ctx context.Context, id int64) error
}

type CommentStore interface {
	Create(ctx context.Context, c Comment) (Comment, error)
}

type UserStore interface {
	Create(ctx context.Context, u User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
}
