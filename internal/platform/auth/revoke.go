package auth

import (
	"context"
	"log/slog"
	"time"

	"newsroom.local/internal/platform/kvstore"
)

const revokedPrefix = "auth:revoked:"

// Revoker 按 jti 记录已登出的 token，保存到 token 自然过期为止。
// KV 不可用时 IsRevoked 返回 false：登出在降级期间不生效，token 仍受过期时间约束。
type Revoker struct {
	store kvstore.Store
}

func NewRevoker(store kvstore.Store) *Revoker {
	return &Revoker{store: store}
}

func (r *Revoker) Revoke(ctx context.Context, c Claims) error {
	if c.ID == "" {
		return nil
	}
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.store.Set(ctx, revokedPrefix+c.ID, []byte("1"), ttl)
}

func (r *Revoker) IsRevoked(ctx context.Context, jti string) bool {
	if r == nil || jti == "" {
		return false
	}
	ok, err := r.store.Exists(ctx, revokedPrefix+jti)
	if err != nil {
		slog.WarnContext(ctx, "revocation check failed", "err", err)
		return false
	}
	return ok
}
