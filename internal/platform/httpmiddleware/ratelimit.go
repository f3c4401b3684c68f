package httpmiddleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"newsroom.local/gee"
	"newsroom.local/internal/platform/ratelimit"
)

var rateLimitMemberSeq atomic.Uint64

// RateLimit 按客户端 IP 做滑动窗口限流；limiter 为 nil 或 Redis 故障时放行。
func RateLimit(limiter *ratelimit.Limiter, prefix string, limit int, window time.Duration) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if limiter == nil {
			ctx.Next()
			return
		}
		key := "rl:" + prefix + ":" + ClientIP(ctx.Req)

		// member 必须每次请求唯一，否则 ZADD 会覆盖同一个 member；纳秒时间可能重复，加序列号
		member := strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.FormatUint(rateLimitMemberSeq.Add(1), 10)
		rlCtx, cancel := context.WithTimeout(ctx.Req.Context(), 50*time.Millisecond)
		defer cancel()

		allowed, retryAfter, err := limiter.Allow(rlCtx, key, limit, window, member)
		if err != nil {
			slog.WarnContext(ctx.Req.Context(), "rate limit check failed", "prefix", prefix, "err", err)
			ctx.Next()
			return
		}
		if !allowed {
			if retryAfter > 0 {
				// Retry-After 单位是秒，向上取整
				secs := int64((retryAfter + time.Second - 1) / time.Second)
				ctx.SetHeader("Retry-After", strconv.FormatInt(secs, 10))
			}
			ctx.AbortWithError(http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		ctx.Next()
	}
}
