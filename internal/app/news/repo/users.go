package repo

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"newsroom.local/internal/app/news"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UsersRepo struct {
	db DB
}

func NewUsersRepo(db DB) *UsersRepo {
	return &UsersRepo{db: db}
}

const userColumns = "id, uuid::text, name, email, password, role, created_at, updated_at"

// Create PasswordHash 由调用方生成；邮箱已存在返回 news.ErrEmailTaken
func (u *UsersRepo) Create(ctx context.Context, user news.User) (news.User, error) {
	id, err := uuid.Parse(user.UUID)
	if err != nil {
		return news.User{}, err
	}
	if user.Role == "" {
		user.Role = "user"
	}
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := u.db.QueryRow(dbctx,
		"INSERT INTO users (uuid, name, email, password, role) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (email) DO NOTHING RETURNING "+userColumns,
		id, strings.TrimSpace(user.Name), normalizeEmail(user.Email), user.PasswordHash, user.Role)
	out, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return news.User{}, news.ErrEmailTaken
		}
		slog.Error(err.Error())
		return news.User{}, err
	}
	return out, nil
}

func (u *UsersRepo) FindByEmail(ctx context.Context, email string) (news.User, error) {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := u.db.QueryRow(dbctx, "SELECT "+userColumns+" FROM users WHERE email=$1 LIMIT 1", normalizeEmail(email))
	out, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return news.User{}, news.ErrNotFound
		}
		slog.Error(err.Error())
		return news.User{}, err
	}
	return out, nil
}

func (u *UsersRepo) FindByID(ctx context.Context, id int64) (news.User, error) {
	dbctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out, err := scanUser(u.db.QueryRow(dbctx, "SELECT "+userColumns+" FROM users WHERE id=$1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return news.User{}, news.ErrNotFound
		}
		slog.Error(err.Error())
		return news.User{}, err
	}
	return out, nil
}

func scanUser(row pgx.Row) (news.User, error) {
	var user news.User
	err := row.Scan(&user.ID, &user.UUID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
