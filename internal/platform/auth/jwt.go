package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrWrongTokenType = errors.New("wrong token type")
	ErrRevoked        = errors.New("token revoked")
)

type Claims struct {
	UserID    string
	Role      string
	Name      string
	Type      TokenType
	ID        string // jti，用于吊销
	ExpiresAt time.Time
}

// Token 签好的字符串及其声明
type Token struct {
	Value string
	Claims
}

type jwtClaims struct {
	Role string    `json:"role"`
	Name string    `json:"name,omitempty"`
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

type TokenService interface {
	Issue(userID, role, name string, typ TokenType) (Token, error)
	Verify(token string) (Claims, error)
}

func NewHS256Service(secret, issuer string, accessTTL, refreshTTL time.Duration) (TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if issuer == "" {
		return nil, errors.New("jwt issuer is empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("jwt ttl must be > 0")
	}
	return &hs256Service{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}
