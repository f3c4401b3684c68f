// Package repo 是新闻领域存储接口的 PostgreSQL 实现（pgx + squirrel）。
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const queryTimeout = 3 * time.Second

// DB 是 *pgxpool.Pool 用到的子集
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// qb PostgreSQL 占位符 $1, $2 ...
func qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contains ILIKE 子串匹配的模式，转义用户输入里的通配符
func contains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
