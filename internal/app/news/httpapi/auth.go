package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsroom.local/gee"
	"newsroom.local/internal/app/news"
	"newsroom.local/internal/platform/auth"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=4"`
}

type RegisterResponse struct {
	ID    int64  `json:"id,string"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewRegisterHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req RegisterRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			slog.ErrorContext(ctx.Req.Context(), "hash password failed", "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "Internal server error")
			return
		}
		user, err := d.Users.Create(ctx.Req.Context(), news.User{
			UUID:         uuid.NewString(),
			Name:         strings.TrimSpace(req.Name),
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: hash,
			Role:         "user",
		})
		if errors.Is(err, news.ErrEmailTaken) {
			ctx.AbortWithErrors(http.StatusConflict, "Email already used", []fieldError{{Field: "email", Message: "Email already used"}})
			return
		}
		if err != nil {
			writeError(ctx, err, "register")
			return
		}
		ctx.Success(http.StatusOK, "Registration successful", RegisterResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		})
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresIn    int64     `json:"expiresIn"` //秒
	ExpiresAt    time.Time `json:"expiresAt"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
}

func NewLoginHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req LoginRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		user, err := d.Users.FindByEmail(ctx.Req.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
		if errors.Is(err, news.ErrNotFound) {
			ctx.AbortWithErrors(http.StatusUnauthorized, "Email not registered", []fieldError{{Field: "email", Message: "Email not registered"}})
			return
		}
		if err != nil {
			writeError(ctx, err, "login")
			return
		}
		if !auth.CheckPassword(user.PasswordHash, req.Password) {
			ctx.AbortWithErrors(http.StatusUnauthorized, "Invalid credentials", []fieldError{{Field: "password", Message: "Invalid credentials"}})
			return
		}

		uid := idString(user.ID)
		access, err := d.Tokens.Issue(uid, user.Role, user.Name, auth.AccessToken)
		if err != nil {
			slog.ErrorContext(ctx.Req.Context(), "sign access token failed", "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "Internal server error")
			return
		}
		refresh, err := d.Tokens.Issue(uid, user.Role, user.Name, auth.RefreshToken)
		if err != nil {
			slog.ErrorContext(ctx.Req.Context(), "sign refresh token failed", "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "Internal server error")
			return
		}

		setAccessHeaders(ctx, access)
		ctx.Success(http.StatusOK, "Login successful", LoginResponse{
			Token:        access.Value,
			RefreshToken: refresh.Value,
			ExpiresIn:    expiresIn(access),
			ExpiresAt:    access.ExpiresAt.UTC(),
			Name:         user.Name,
			Role:         user.Role,
		})
	}
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type RefreshResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
}

// NewRefreshHandler 用 refresh token 换新的 access token，refresh token 本身不轮换
func NewRefreshHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req RefreshRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		claims, err := d.Tokens.Verify(req.RefreshToken)
		if err != nil || claims.Type != auth.RefreshToken || d.Revoker.IsRevoked(ctx.Req.Context(), claims.ID) {
			ctx.AbortWithError(http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		userID, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil {
			ctx.AbortWithError(http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		// 用户可能已被删除，角色和名字以数据库为准
		user, err := d.Users.FindByID(ctx.Req.Context(), userID)
		if errors.Is(err, news.ErrNotFound) {
			ctx.AbortWithError(http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		if err != nil {
			writeError(ctx, err, "refresh")
			return
		}

		access, err := d.Tokens.Issue(claims.UserID, user.Role, user.Name, auth.AccessToken)
		if err != nil {
			slog.ErrorContext(ctx.Req.Context(), "sign access token failed", "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "Internal server error")
			return
		}
		setAccessHeaders(ctx, access)
		ctx.Success(http.StatusOK, "Token refreshed", RefreshResponse{
			Token:     access.Value,
			ExpiresIn: expiresIn(access),
			ExpiresAt: access.ExpiresAt.UTC(),
			Name:      user.Name,
			Role:      user.Role,
		})
	}
}

// NewLogoutHandler 吊销当前 access token 的 jti，直到它自然过期。
func NewLogoutHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		identity, ok := auth.GetIdentity(ctx.Req.Context())
		if !ok {
			ctx.AbortWithError(http.StatusUnauthorized, "Unauthorized")
			return
		}
		// KV 不可用时登出不生效，token 仍受过期时间约束；不把存储故障暴露给客户端
		if err := d.Revoker.Revoke(ctx.Req.Context(), identity.Token); err != nil {
			slog.WarnContext(ctx.Req.Context(), "revoke token failed", "user_id", identity.UserID, "err", err)
		}
		ctx.Success(http.StatusOK, "Logged out successfully", nil)
	}
}

func NewMeHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		user, err := d.Users.FindByID(ctx.Req.Context(), a.ID)
		if errors.Is(err, news.ErrNotFound) {
			ctx.AbortWithError(http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			writeError(ctx, err, "load profile")
			return
		}
		ctx.Success(http.StatusOK, "User profile", toUserDTO(user))
	}
}

func setAccessHeaders(ctx *gee.Context, t auth.Token) {
	ctx.SetHeader("x-access-token", t.Value)
	ctx.SetHeader("x-access-expires-at", t.ExpiresAt.UTC().Format(time.RFC3339))
}

func expiresIn(t auth.Token) int64 {
	secs := int64(time.Until(t.ExpiresAt).Round(time.Second) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}
