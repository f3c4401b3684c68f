package repo

import (
	"net/url"
	"testing"

	"newsroom.local/internal/app/news"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%go%", contains("go"))
	assert.Equal(t, `%50\%\_off\\%`, contains(`50%_off\`))
}

func TestPublicListFilters(t *testing.T) {
	v, err := url.ParseQuery("title=Go&tags=redis,cache&category_slug=tech&status=draft&user_id=3")
	require.NoError(t, err)
	q := news.ParseListQuery(v).ForPublic()

	sqlStr, args, err := (&ArticlesRepo{}).base("COUNT(*)").Where(filters(q)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sqlStr, "p.status = $1")
	assert.Contains(t, sqlStr, "p.name ILIKE $2")
	assert.Contains(t, sqlStr, "c.slug = $3")
	assert.Contains(t, sqlStr, "(p.tags ILIKE $4 OR p.tags ILIKE $5)")
	// 公开列表忽略 status / user_id
	assert.NotContains(t, sqlStr, "p.user_id")
	assert.Equal(t, []any{news.StatusPublished, "%go%", "tech", "%cache%", "%redis%"}, args)
}

func TestOwnerListFilters(t *testing.T) {
	v, err := url.ParseQuery("status=draft&created_from=2024-01-01&user_name=bob")
	require.NoError(t, err)
	q := news.ParseListQuery(v).ForActor(7, false)

	sqlStr, args, err := (&ArticlesRepo{}).base("p.id").Where(filters(q)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sqlStr, "p.user_id = $1")
	assert.Contains(t, sqlStr, "p.status = $2")
	assert.Contains(t, sqlStr, "p.created_at >= $3")
	assert.NotContains(t, sqlStr, "u.name ILIKE")
	require.Len(t, args, 3)
	assert.Equal(t, int64(7), args[0])
}

func TestAdminListFilters(t *testing.T) {
	v, err := url.ParseQuery("user_id=9&user_name=Bob")
	require.NoError(t, err)
	q := news.ParseListQuery(v).ForActor(1, true)

	sqlStr, args, err := (&ArticlesRepo{}).base("p.id").Where(filters(q)).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sqlStr, "p.user_id = $1")
	assert.Contains(t, sqlStr, "u.name ILIKE $2")
	assert.Equal(t, []any{int64(9), "%bob%"}, args)
}

func TestEmptyFiltersStillValid(t *testing.T) {
	sqlStr, args, err := (&ArticlesRepo{}).base("COUNT(*)").Where(filters(news.ListQuery{})).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sqlStr, "WHERE (1=1)")
	assert.Empty(t, args)
}
