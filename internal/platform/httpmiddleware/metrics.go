package httpmiddleware

import (
	"strconv"
	"time"

	"newsroom.local/gee"
	"newsroom.local/internal/platform/metrics"
)

func Metrics() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		start := time.Now()
		metrics.HTTPInflightRequests.Inc()
		defer metrics.HTTPInflightRequests.Dec()

		defer func() {
			route := ctx.RoutePattern
			if route == "" {
				route = "UNMATCHED"
			}
			status := ctx.Writer.Status()
			metrics.HTTPRequestsTotal.WithLabelValues(ctx.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(ctx.Method, route).Observe(time.Since(start).Seconds())
		}()
		ctx.Next()
	}
}
