package auth

import (
	"context"
	"testing"
	"time"

	"newsroom.local/internal/platform/kvstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) TokenService {
	t.Helper()
	ts, err := NewHS256Service("secret", "newsroom", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	return ts
}

func TestNewHS256ServiceValidates(t *testing.T) {
	_, err := NewHS256Service("", "iss", time.Hour, time.Hour)
	assert.Error(t, err)
	_, err = NewHS256Service("s", "", time.Hour, time.Hour)
	assert.Error(t, err)
	_, err = NewHS256Service("s", "iss", 0, time.Hour)
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	ts := newService(t)

	tok, err := ts.Issue("7", "admin", "Admin", AccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 2*time.Second)

	c, err := ts.Verify(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "7", c.UserID)
	assert.Equal(t, "admin", c.Role)
	assert.Equal(t, "Admin", c.Name)
	assert.Equal(t, AccessToken, c.Type)
	assert.Equal(t, tok.ID, c.ID)

	refresh, err := ts.Issue("7", "admin", "Admin", RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tok.ID, refresh.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), refresh.ExpiresAt, 2*time.Second)

	c, err = ts.Verify(refresh.Value)
	require.NoError(t, err)
	assert.Equal(t, RefreshToken, c.Type)
}

func TestIssueRejects(t *testing.T) {
	ts := newService(t)
	_, err := ts.Issue("", "user", "", AccessToken)
	assert.Error(t, err)
	_, err = ts.Issue("1", "user", "", TokenType("bogus"))
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	ts := newService(t)
	other, err := NewHS256Service("other-secret", "newsroom", time.Hour, time.Hour)
	require.NoError(t, err)
	tok, err := other.Issue("1", "user", "", AccessToken)
	require.NoError(t, err)

	_, err = ts.Verify(tok.Value)
	assert.Error(t, err)

	_, err = ts.Verify("not-a-jwt")
	assert.Error(t, err)
}

func TestRevoker(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRevoker(kvstore.NewRedis(client))

	c := Claims{ID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, r.IsRevoked(ctx, "jti-1"))
	require.NoError(t, r.Revoke(ctx, c))
	assert.True(t, r.IsRevoked(ctx, "jti-1"))

	ttl := mr.TTL(revokedPrefix + "jti-1")
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, ttl)

	// 已过期的 token 不需要记录
	require.NoError(t, r.Revoke(ctx, Claims{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.False(t, mr.Exists(revokedPrefix+"old"))

	mr.SetError("ERR down")
	assert.False(t, r.IsRevoked(ctx, "jti-1"))
}

func TestRevokerWithNop(t *testing.T) {
	r := NewRevoker(kvstore.Nop{})
	require.NoError(t, r.Revoke(context.Background(), Claims{ID: "x", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.False(t, r.IsRevoked(context.Background(), "x"))

	var nilRevoker *Revoker
	assert.False(t, nilRevoker.IsRevoked(context.Background(), "x"))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "password123"))
	assert.False(t, CheckPassword(hash, "password124"))
	assert.False(t, CheckPassword("not-a-hash", "password123"))
}

func TestIdentityContext(t *testing.T) {
	_, ok := GetIdentity(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "1", Role: RoleAdmin})
	id, ok := GetIdentity(ctx)
	require.True(t, ok)
	assert.True(t, id.IsAdmin())
}
