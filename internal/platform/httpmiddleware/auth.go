package httpmiddleware

import (
	"net/http"
	"strings"

	"newsroom.local/gee"
	"newsroom.local/internal/platform/auth"
)

// parseBearer 解析 Authorization header 中的 Bearer token
// 返回 token 字符串，如果格式不正确返回空字符串
func parseBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// BearerToken 先取 Authorization，没有时取 ?token=（浏览器的 websocket 无法带自定义头）
func BearerToken(req *http.Request, allowQuery bool) string {
	if h := req.Header.Get("Authorization"); h != "" {
		return parseBearer(h)
	}
	if allowQuery {
		return strings.TrimSpace(req.URL.Query().Get("token"))
	}
	return ""
}

// Authenticator 校验 access token，并检查是否已登出
type Authenticator struct {
	tokens  auth.TokenService
	revoker *auth.Revoker
}

func NewAuthenticator(ts auth.TokenService, revoker *auth.Revoker) *Authenticator {
	return &Authenticator{tokens: ts, revoker: revoker}
}

func (a *Authenticator) identify(req *http.Request, token string) (auth.Identity, error) {
	claim, err := a.tokens.Verify(token)
	if err != nil {
		return auth.Identity{}, err
	}
	if claim.Type != auth.AccessToken {
		return auth.Identity{}, auth.ErrWrongTokenType
	}
	if a.revoker.IsRevoked(req.Context(), claim.ID) {
		return auth.Identity{}, auth.ErrRevoked
	}
	return auth.Identity{
		UserID: claim.UserID,
		Role:   claim.Role,
		Name:   claim.Name,
		Token:  claim,
	}, nil
}

// Required 要求请求必须携带有效的 access token
func (a *Authenticator) Required() gee.HandlerFunc {
	return a.required(false)
}

// RequiredQuery 同 Required，但也接受 ?token=，只给 websocket 握手用
func (a *Authenticator) RequiredQuery() gee.HandlerFunc {
	return a.required(true)
}

func (a *Authenticator) required(allowQuery bool) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if ctx.Req.Header.Get("Authorization") == "" && (!allowQuery || ctx.Query("token") == "") {
			ctx.AbortWithError(http.StatusUnauthorized, "missing authorization header")
			return
		}
		token := BearerToken(ctx.Req, allowQuery)
		if token == "" {
			ctx.AbortWithError(http.StatusUnauthorized, "invalid authorization format")
			return
		}
		id, err := a.identify(ctx.Req, token)
		if err != nil {
			ctx.AbortWithError(http.StatusUnauthorized, "invalid token")
			return
		}
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), id))
		ctx.Next()
	}
}

// Optional 可选认证，有 token 则解析，无 token 或 token 无效则跳过
func (a *Authenticator) Optional() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		token := BearerToken(ctx.Req, false)
		if token == "" {
			ctx.Next()
			return
		}
		id, err := a.identify(ctx.Req, token)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), id))
		ctx.Next()
	}
}

// RequireRole 要求用户具有指定角色
func RequireRole(role string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := auth.GetIdentity(ctx.Req.Context())
		if !ok {
			ctx.AbortWithError(http.StatusUnauthorized, "unauthorized")
			return
		}
		if id.Role != role {
			ctx.AbortWithError(http.StatusForbidden, "forbidden")
			return
		}
		ctx.Next()
	}
}
