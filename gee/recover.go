package gee

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
)

// stack 返回 panic 现场的调用栈，跳过 runtime 与 Recovery 自身的帧
func stack(message string) string {
	var pcs [32]uintptr
	n := runtime.Callers(4, pcs[:])

	var str strings.Builder
	str.WriteString(message + "\nTraceback:")
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		str.WriteString(fmt.Sprintf("\n\t%s:%d", frame.File, frame.Line))
		if !more {
			break
		}
	}
	return str.String()
}

func Recovery() HandlerFunc {
	return func(ctx *Context) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				slog.Error("panic recovered",
					"request_id", ctx.Req.Header.Get("X-Request-ID"),
					"method", ctx.Method,
					"path", ctx.Path,
					"panic", fmt.Sprintf("%v", err),
					"stack", stack(fmt.Sprintf("%v", err)),
				)
				if ctx.Writer.Written() {
					ctx.Abort()
					return
				}
				ctx.AbortWithError(http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		ctx.Next()
	}
}
