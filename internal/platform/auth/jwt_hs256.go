package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type hs256Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (h *hs256Service) Issue(userID, role, name string, typ TokenType) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("empty user id")
	}
	ttl := h.accessTTL
	switch typ {
	case AccessToken:
	case RefreshToken:
		ttl = h.refreshTTL
	default:
		return Token{}, ErrWrongTokenType
	}
	now := time.Now()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := jwtClaims{
		Role: role,
		Name: name,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    h.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Value: signed,
		Claims: Claims{
			UserID:    userID,
			Role:      role,
			Name:      name,
			Type:      typ,
			ID:        jti,
			ExpiresAt: claims.ExpiresAt.Time,
		},
	}, nil
}

func (h *hs256Service) Verify(tokenString string) (Claims, error) {
	var parsed jwtClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.issuer),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected jwt signing method")
		}
		return h.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	typ := parsed.Type
	if typ == "" {
		typ = AccessToken
	}
	c := Claims{
		UserID: parsed.Subject,
		Role:   parsed.Role,
		Name:   parsed.Name,
		Type:   typ,
		ID:     parsed.ID,
	}
	if parsed.ExpiresAt != nil {
		c.ExpiresAt = parsed.ExpiresAt.Time
	}
	return c, nil
}
