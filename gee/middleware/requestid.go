package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"newsroom.local/gee"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// ReqID 透传或生成 X-Request-ID，同时放进 request context，方便下游日志带上
func ReqID() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id := ctx.Req.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = GenerateReqID()
			ctx.Req.Header.Set(requestIDHeader, id)
		}
		ctx.SetHeader(requestIDHeader, id)
		ctx.Req = ctx.Req.WithContext(context.WithValue(ctx.Req.Context(), requestIDKey{}, id))

		ctx.Next()
	}
}

// RequestID 从 context 取出请求序号，没有时返回空串
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func GenerateReqID() string {
	src := make([]byte, 16)
	if _, err := rand.Read(src); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(src) // 32 个十六进制字符
}
