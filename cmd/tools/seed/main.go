package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"newsroom.local/internal/app/news"
	"newsroom.local/internal/app/news/repo"
	"newsroom.local/internal/platform/auth"
	"newsroom.local/internal/platform/config"
	"newsroom.local/internal/platform/db"
	"newsroom.local/internal/platform/migrate"

	"github.com/google/uuid"
)

const seedPassword = "password123"

type seedPost struct {
	title    string
	content  string
	author   int // 0 admin, 1 user
	category int
	comment  string
}

var posts = []seedPost{
	{"The Future of AI", "Artificial Intelligence is evolving rapidly...", 0, 0, "Great article!"},
	{"Healthy Living Tips", "Drinking water is essential...", 1, 1, "Nice tips, thanks!"},
}

func main() {
	hash := flag.String("hash", "", "print the bcrypt hash of the given password and exit")
	flag.Parse()
	if *hash != "" {
		h, err := auth.HashPassword(*hash)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(h)
		return
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := migrate.Up(ctx, cfg.DBDSN); err != nil {
		log.Fatal(err)
	}
	pool, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if err := seed(ctx, pool); err != nil {
		slog.Error("seed failed", "err", err)
		os.Exit(1)
	}
	slog.Info("seeding finished")
}

func seed(ctx context.Context, pool repo.DB) error {
	users := repo.NewUsersRepo(pool)
	categories := repo.NewCategoriesRepo(pool)
	articles := repo.NewArticlesRepo(pool)
	comments := repo.NewCommentsRepo(pool)

	admin, err := ensureUser(ctx, users, "Admin User", "admin@example.com", auth.RoleAdmin)
	if err != nil {
		return err
	}
	user, err := ensureUser(ctx, users, "Regular User", "user@example.com", "user")
	if err != nil {
		return err
	}
	authors := []news.User{admin, user}

	var cats []news.Category
	for _, name := range []string{"Technology", "Health", "Sports"} {
		c, err := categories.FindBySlug(ctx, news.Slugify(name))
		if errors.Is(err, news.ErrNotFound) {
			c, err = categories.Create(ctx, news.Category{
				UUID:   uuid.NewString(),
				UserID: &admin.ID,
				Name:   name,
				Slug:   news.Slugify(name),
				Status: news.CategoryActive,
			})
		}
		if err != nil {
			return fmt.Errorf("category %s: %w", name, err)
		}
		cats = append(cats, c)
		slog.Info("category ready", "name", c.Name, "id", c.ID)
	}

	for _, p := range posts {
		author := authors[p.author]
		existing, total, err := articles.List(ctx, news.ListQuery{
			Page:     1,
			PageSize: 1,
			Title:    strings.ToLower(p.title),
			OwnerID:  &author.ID,
		})
		if err != nil {
			return err
		}
		if total > 0 {
			slog.Info("post already exists", "name", existing[0].Name)
			continue
		}

		id := uuid.NewString()
		a, err := articles.Create(ctx, news.Article{
			UUID:       id,
			UserID:     author.ID,
			CategoryID: &cats[p.category].ID,
			Name:       p.title,
			Slug:       news.SuffixedSlug(p.title, id),
			Content:    p.content,
			Status:     news.StatusPublished,
			Views:      "0",
		})
		if err != nil {
			return fmt.Errorf("post %s: %w", p.title, err)
		}
		slog.Info("created post", "name", a.Name, "slug", a.Slug)

		// 评论来自另一个账号
		commenter := authors[1-p.author]
		if _, err := comments.Create(ctx, news.Comment{
			UUID:    uuid.NewString(),
			UserID:  commenter.ID,
			PostID:  a.ID,
			Content: p.comment,
		}); err != nil {
			return fmt.Errorf("comment on %s: %w", p.title, err)
		}
	}
	return nil
}

func ensureUser(ctx context.Context, users *repo.UsersRepo, name, email, role string) (news.User, error) {
	u, err := users.FindByEmail(ctx, email)
	if err == nil {
		slog.Info("user already exists", "email", email)
		return u, nil
	}
	if !errors.Is(err, news.ErrNotFound) {
		return news.User{}, err
	}
	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return news.User{}, err
	}
	u, err = users.Create(ctx, news.User{
		UUID:         uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return news.User{}, fmt.Errorf("user %s: %w", email, err)
	}
	slog.Info("created user", "email", email, "role", role)
	return u, nil
}
