package httpapi

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"newsroom.local/internal/app/news"
)

// memDB 四个存储接口的内存实现共用一份数据
type memDB struct {
	mu         sync.Mutex
	seq        int64
	articles   map[int64]news.Article
	categories map[int64]news.Category
	comments   []news.Comment
	users      map[int64]news.User

	listCalls int
}

func newMemDB() *memDB {
	return &memDB{
		articles:   map[int64]news.Article{},
		categories: map[int64]news.Category{},
		users:      map[int64]news.User{},
	}
}

func (m *memDB) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memDB) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *memDB) hydrate(a news.Article) news.Article {
	a.AuthorName = m.users[a.UserID].Name
	if a.CategoryID != nil {
		if c, ok := m.categories[*a.CategoryID]; ok {
			a.Category = &news.CategoryRef{ID: c.ID, Name: c.Name, Slug: c.Slug}
		}
	}
	a.Comments = nil
	for i := len(m.comments) - 1; i >= 0; i-- {
		if m.comments[i].PostID == a.ID {
			a.Comments = append(a.Comments, m.comments[i])
		}
	}
	return a
}

type fakeArticles struct{ *memDB }

func (f fakeArticles) List(_ context.Context, q news.ListQuery) ([]news.Article, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	var all []news.Article
	for _, a := range f.articles {
		if q.PublishedOnly && a.Status != news.StatusPublished {
			continue
		}
		if q.OwnerID != nil && a.UserID != *q.OwnerID {
			continue
		}
		if q.UserID != nil && a.UserID != *q.UserID {
			continue
		}
		if q.Title != "" && !strings.Contains(strings.ToLower(a.Name), q.Title) {
			continue
		}
		all = append(all, f.hydrate(a))
	}
	slices.SortFunc(all, func(a, b news.Article) int { return int(b.ID - a.ID) })

	total := len(all)
	start := min(q.Offset(), total)
	end := min(start+q.PageSize, total)
	return all[start:end], total, nil
}

func (f fakeArticles) FindByID(_ context.Context, id int64) (news.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[id]
	if !ok {
		return news.Article{}, news.ErrNotFound
	}
	return f.hydrate(a), nil
}

func (f fakeArticles) FindPublishedBySlug(_ context.Context, slug string) (news.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.articles {
		if a.Slug == slug && a.Status == news.StatusPublished {
			return f.hydrate(a), nil
		}
	}
	return news.Article{}, news.ErrNotFound
}

func (f fakeArticles) Create(_ context.Context, a news.Article) (news.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.articles {
		if existing.Slug == a.Slug {
			return news.Article{}, news.ErrSlugTaken
		}
	}
	a.ID = f.nextID()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.articles[a.ID] = a
	return f.hydrate(a), nil
}

func (f fakeArticles) Update(_ context.Context, id int64, p news.ArticlePatch) (news.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[id]
	if !ok {
		return news.Article{}, news.ErrNotFound
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Slug != nil {
		a.Slug = *p.Slug
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.Tags != nil {
		a.Tags = *p.Tags
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	a.UpdatedAt = time.Now()
	f.articles[id] = a
	return f.hydrate(a), nil
}

func (f fakeArticles) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.articles[id]; !ok {
		return news.ErrNotFound
	}
	delete(f.articles, id)
	return nil
}

func (f fakeArticles) SetViews(_ context.Context, id int64, views string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[id]
	if !ok {
		return news.ErrNotFound
	}
	a.Views = views
	f.articles[id] = a
	return nil
}

func (f fakeArticles) PublishedSlugs(_ context.Context, fn func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.articles {
		if a.Status == news.StatusPublished {
			fn(a.Slug)
		}
	}
	return nil
}

type fakeCategories struct{ *memDB }

func (f fakeCategories) ListActive(context.Context) ([]news.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []news.Category
	for _, c := range f.categories {
		if c.Status == news.CategoryActive {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b news.Category) int { return int(b.ID - a.ID) })
	return out, nil
}

func (f fakeCategories) FindByID(_ context.Context, id int64) (news.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return news.Category{}, news.ErrNotFound
	}
	return c, nil
}

func (f fakeCategories) FindBySlug(_ context.Context, slug string) (news.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return news.Category{}, news.ErrNotFound
}

func (f fakeCategories) FindOrCreateByName(ctx context.Context, userID int64, name string) (news.Category, error) {
	f.mu.Lock()
	for _, c := range f.categories {
		if c.Name == name {
			f.mu.Unlock()
			return c, nil
		}
	}
	f.mu.Unlock()
	return f.Create(ctx, news.Category{UUID: "00000000-0000-0000-0000-000000000000", UserID: &userID, Name: name, Slug: news.Slugify(name), Status: news.CategoryActive})
}

func (f fakeCategories) Create(_ context.Context, c news.Category) (news.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.categories {
		if existing.Slug == c.Slug {
			return news.Category{}, news.ErrSlugTaken
		}
	}
	c.ID = f.nextID()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.categories[c.ID] = c
	return c, nil
}

func (f fakeCategories) Update(_ context.Context, id int64, p news.CategoryPatch) (news.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return news.Category{}, news.ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Slug != nil {
		c.Slug = *p.Slug
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	f.categories[id] = c
	return c, nil
}

func (f fakeCategories) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return news.ErrNotFound
	}
	delete(f.categories, id)
	return nil
}

type fakeComments struct{ *memDB }

func (f fakeComments) Create(_ context.Context, c news.Comment) (news.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.articles[c.PostID]; !ok {
		return news.Comment{}, news.ErrNotFound
	}
	c.ID = f.nextID()
	c.AuthorName = f.users[c.UserID].Name
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.comments = append(f.comments, c)
	return c, nil
}

type fakeUsers struct{ *memDB }

func (f fakeUsers) Create(_ context.Context, u news.User) (news.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return news.User{}, news.ErrEmailTaken
		}
	}
	u.ID = f.nextID()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = u
	return u, nil
}

func (f fakeUsers) FindByEmail(_ context.Context, email string) (news.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return news.User{}, news.ErrNotFound
}

func (f fakeUsers) FindByID(_ context.Context, id int64) (news.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return news.User{}, news.ErrNotFound
	}
	return u, nil
}
