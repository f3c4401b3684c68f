package httpapi

import (
	"time"

	"newsroom.local/internal/app/news"
)

// 响应体与缓存里的 payload 用同一套 DTO：64 位 id 一律编码成十进制字符串。

type UserRef struct {
	Name string `json:"name"`
}

type CategoryRef struct {
	ID   int64  `json:"id,string"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type CommentDTO struct {
	ID        int64     `json:"id,string"`
	UUID      string    `json:"uuid"`
	UserID    int64     `json:"user_id,string"`
	PostID    int64     `json:"post_id,string"`
	Content   string    `json:"content"`
	Name      *string   `json:"name"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Media     *string   `json:"media"`
	User      UserRef   `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ArticleDTO struct {
	ID         int64        `json:"id,string"`
	UUID       string       `json:"uuid"`
	UserID     int64        `json:"user_id,string"`
	CategoryID *int64       `json:"category_id,string"`
	Name       string       `json:"name"`
	Slug       string       `json:"slug"`
	Content    string       `json:"content"`
	Tags       string       `json:"tags"`
	Status     string       `json:"status"`
	Views      string       `json:"views"`
	User       UserRef      `json:"user"`
	Category   *CategoryRef `json:"category"`
	Comments   []CommentDTO `json:"comments"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type PaginationDTO struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type ListPayload struct {
	Items      []ArticleDTO  `json:"items"`
	Pagination PaginationDTO `json:"pagination"`
}

type CategoryDTO struct {
	ID          int64     `json:"id,string"`
	UUID        string    `json:"uuid"`
	UserID      *int64    `json:"user_id,string"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type UserDTO struct {
	ID        int64     `json:"id,string"`
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCommentDTO(c news.Comment) CommentDTO {
	return CommentDTO{
		ID:        c.ID,
		UUID:      c.UUID,
		UserID:    c.UserID,
		PostID:    c.PostID,
		Content:   c.Content,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Media:     c.Media,
		User:      UserRef{Name: c.AuthorName},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toArticleDTO(a news.Article) ArticleDTO {
	out := ArticleDTO{
		ID:         a.ID,
		UUID:       a.UUID,
		UserID:     a.UserID,
		CategoryID: a.CategoryID,
		Name:       a.Name,
		Slug:       a.Slug,
		Content:    a.Content,
		Tags:       a.Tags,
		Status:     a.Status,
		Views:      a.Views,
		User:       UserRef{Name: a.AuthorName},
		Comments:   make([]CommentDTO, 0, len(a.Comments)),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.Category != nil {
		out.Category = &CategoryRef{ID: a.Category.ID, Name: a.Category.Name, Slug: a.Category.Slug}
	}
	for _, c := range a.Comments {
		out.Comments = append(out.Comments, toCommentDTO(c))
	}
	return out
}

func toListPayload(items []news.Article, p news.Pagination) ListPayload {
	out := ListPayload{
		Items: make([]ArticleDTO, 0, len(items)),
		Pagination: PaginationDTO{
			Page:       p.Page,
			PageSize:   p.PageSize,
			Total:      p.Total,
			TotalPages: p.TotalPages,
		},
	}
	for _, a := range items {
		out.Items = append(out.Items, toArticleDTO(a))
	}
	return out
}

func toCategoryDTO(c news.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		UUID:        c.UUID,
		UserID:      c.UserID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toUserDTO(u news.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		UUID:      u.UUID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
