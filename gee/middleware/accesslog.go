package middleware

import (
	"log/slog"
	"time"

	"newsroom.local/gee"
)

// AccessLog 每个请求一行日志；5xx 记 Error，4xx 记 Warn
func AccessLog() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		start := time.Now()

		ctx.Next()

		status := ctx.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		route := ctx.RoutePattern
		if route == "" {
			route = "UNMATCHED"
		}
		slog.LogAttrs(ctx.Req.Context(), level, "access",
			slog.String("request_id", ctx.Req.Header.Get(requestIDHeader)),
			slog.String("method", ctx.Method),
			slog.String("path", ctx.Path),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Int("bytes", ctx.Writer.Size()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	}
}
