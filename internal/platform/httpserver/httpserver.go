package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"newsroom.local/internal/platform/config"
)

// New 按配置创建 http.Server。onShutdown 在 Shutdown 开始时调用，
// 用来关闭 Shutdown 管不到的被劫持连接（websocket）。
func New(cfg config.Config, handler http.Handler, onShutdown ...func()) *http.Server {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		Addr:              cfg.Addr,
	}
	for _, fn := range onShutdown {
		srv.RegisterOnShutdown(fn)
	}
	return srv
}

// RunContext 监听直到 stopCtx 结束，然后在 shutdownTimeout 内优雅关闭
func RunContext(stopCtx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stopCtx.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}
