package auth

import "context"

const RoleAdmin = "admin"

type Identity struct {
	UserID string
	Role   string
	Name   string
	// 当前请求所用 token 的声明，登出时用来吊销
	Token Claims
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	v := ctx.Value(identityKey{})
	id, ok := v.(Identity)
	return id, ok
}
