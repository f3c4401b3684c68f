package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var embedded embed.FS

type Result struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Up 把内嵌的 SQL 迁移应用到最新版本。
// golang-migrate 需要 *sql.DB，这里用 pgx stdlib 单独开一个连接，和业务用的 pgxpool 互不影响。
func Up(ctx context.Context, dsn string) (*Result, error) {
	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration db: %w", err)
	}
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping migration db: %w", err)
	}

	driver, err := postgres.WithInstance(sqldb, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres driver: %w", err)
	}
	src, err := iofs.New(embedded, "migrations")
	if err != nil {
		return nil, fmt.Errorf("iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("new migrate: %w", err)
	}
	defer m.Close()

	// 进程收到退出信号时，在当前这条迁移执行完后停下
	stop := context.AfterFunc(ctx, func() { m.GracefulStop <- true })
	defer stop()

	res := &Result{Changed: true}
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		res.Changed = false
	}
	res.Version, res.Dirty, err = m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, err
	}
	slog.Info("migrations done", "version", res.Version, "changed", res.Changed, "dirty", res.Dirty)
	return res, nil
}
