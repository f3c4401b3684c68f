// Package news 是新闻内容的领域层：文章、分类、评论、用户以及列表查询的规范化。
//
// 领域对象不带 HTTP/DB 细节（状态码、SQL 字段、JSON tag），这些分别放在 httpapi 和 repo。
package news

import "time"

const (
	StatusPublished = "published"
	StatusDraft     = "draft"

	CategoryActive   = "active"
	CategoryInactive = "inactive"

	// DefaultCategory 创建文章时没有指定分类就归到这里，不存在时自动创建
	DefaultCategory = "General"
)

type Article struct {
	ID         int64
	UUID       string
	UserID     int64
	CategoryID *int64
	Name       string
	Slug       string
	Content    string
	Tags       string
	Status     string
	Views      string // 十进制字符串
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// 以下只在详情/列表查询时填充
	AuthorName string
	Category   *CategoryRef
	Comments   []Comment
}

func (a Article) Published() bool { return a.Status == StatusPublished }

// ArticlePatch 为 nil 的字段不修改
type ArticlePatch struct {
	Name    *string
	Slug    *string
	Content *string
	Tags    *string
	Status  *string
}

type CategoryRef struct {
	ID   int64
	Name string
	Slug string
}

type Category struct {
	ID          int64
	UUID        string
	UserID      *int64
	Name        string
	Slug        string
	Description *string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CategoryPatch struct {
	Name        *string
	Slug        *string
	Description *string
	Status      *string
}

type Comment struct {
	ID         int64
	UUID       string
	UserID     int64
	PostID     int64
	Content    string
	Name       *string
	Email      *string
	Phone      *string
	Media      *string
	AuthorName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type User struct {
	ID           int64
	UUID         string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Pagination totalPages = ceil(total / pageSize)，total 为 0 时是 0
type Pagination struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

func NewPagination(q ListQuery, total int) Pagination {
	p := Pagination{Page: q.Page, PageSize: q.PageSize, Total: total}
	if total > 0 && q.PageSize > 0 {
		p.TotalPages = (total + q.PageSize - 1) / q.PageSize
	}
	return p
}
