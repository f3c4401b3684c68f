package news

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustValues(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestParseListQueryDefaults(t *testing.T) {
	q := ParseListQuery(url.Values{})
	assert.Equal(t, DefaultPage, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)
	assert.True(t, q.IsDefault())
	assert.Equal(t, 0, q.Offset())
}

func TestPaginationClamp(t *testing.T) {
	tests := []struct {
		raw      string
		page     int
		pageSize int
	}{
		{"page=0&pageSize=0", 1, 1},
		{"page=-3&pageSize=500", 1, 100},
		{"page=2.7&pageSize=20.9", 2, 20},
		{"page=abc&pageSize=xyz", 1, 10},
		{"page=NaN&pageSize=Inf", 1, 10},
		{"page=1e12", 1_000_000, 10},
		{"page=3&limit=5", 3, 5},
		{"page_size=7", 1, 7},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q := ParseListQuery(mustValues(t, tt.raw))
			assert.Equal(t, tt.page, q.Page)
			assert.Equal(t, tt.pageSize, q.PageSize)
		})
	}
}

func TestListingKeyDeterminism(t *testing.T) {
	equivalent := [][2]string{
		{"page=1", ""},
		{"page=1&pageSize=10", "pageSize=10"},
		{"tags=go,redis&title=Hello", "title=hello&tags=redis&tags=go"},
		{"tags=Go,,go&status=draft", "status=%20draft%20&tags=go"},
		{"created_from=2024-01-02", "created_from=2024-01-02T00:00:00Z"},
		{"page=2.4&pageSize=250", "pageSize=100&page=2"},
	}
	for _, pair := range equivalent {
		a := ParseListQuery(mustValues(t, pair[0]))
		b := ParseListQuery(mustValues(t, pair[1]))
		assert.Equal(t, ListingKey("news:public", a), ListingKey("news:public", b), "%q vs %q", pair[0], pair[1])
	}
}

func TestListingKeyDistinct(t *testing.T) {
	raws := []string{
		"",
		"page=2",
		"pageSize=20",
		"title=go",
		"tags=go",
		"tags=go,redis",
		"status=draft",
		"category_slug=tech",
		"user_id=3",
		"user_name=ana",
		"created_from=2024-01-01",
		"created_to=2024-01-01",
	}
	seen := make(map[string]string, len(raws))
	for _, raw := range raws {
		key := ListingKey("news:public", ParseListQuery(mustValues(t, raw)))
		if prev, ok := seen[key]; ok {
			t.Fatalf("key collision between %q and %q", prev, raw)
		}
		seen[key] = raw
	}
}

// 查询条件精确到亚秒，key 也必须区分
func TestListingKeySubSecondDates(t *testing.T) {
	a := ParseListQuery(mustValues(t, "created_from=2024-01-01T00:00:00.100Z")).ForOwner(7)
	b := ParseListQuery(mustValues(t, "created_from=2024-01-01T00:00:00.900Z")).ForOwner(7)
	require.NotNil(t, a.CreatedFrom)
	require.NotNil(t, b.CreatedFrom)
	require.False(t, a.CreatedFrom.Equal(*b.CreatedFrom))
	assert.NotEqual(t, ListingKey("news:mine:7", a), ListingKey("news:mine:7", b))

	c := ParseListQuery(mustValues(t, "created_to=2024-01-01T00:00:00.100Z"))
	d := ParseListQuery(mustValues(t, "created_to=2024-01-01T00:00:00.1Z"))
	assert.Equal(t, ListingKey("news:public", c), ListingKey("news:public", d))
}

func TestListingKeyDefaultIsNamespace(t *testing.T) {
	assert.Equal(t, "news:mine:7", ListingKey("news:mine:7", ParseListQuery(mustValues(t, "page=1"))))

	key := ListingKey("news:mine:7", ParseListQuery(mustValues(t, "page=2")))
	assert.Contains(t, key, "news:mine:7:")
	assert.Len(t, key, len("news:mine:7:")+64)
}

func TestScopes(t *testing.T) {
	q := ParseListQuery(mustValues(t, "status=draft&user_id=9&user_name=bob&title=x&category_slug=tech"))

	pub := q.ForPublic()
	assert.True(t, pub.PublishedOnly)
	assert.Empty(t, pub.Status)
	assert.Nil(t, pub.UserID)
	assert.Equal(t, "tech", pub.CategorySlug)

	mine := q.ForOwner(5)
	require.NotNil(t, mine.OwnerID)
	assert.Equal(t, int64(5), *mine.OwnerID)
	assert.Nil(t, mine.UserID)
	assert.Equal(t, "draft", mine.Status)

	user := q.ForActor(5, false)
	require.NotNil(t, user.OwnerID)
	assert.Nil(t, user.UserID)
	assert.Empty(t, user.UserName)

	admin := q.ForActor(1, true)
	assert.Nil(t, admin.OwnerID)
	require.NotNil(t, admin.UserID)
	assert.Equal(t, int64(9), *admin.UserID)
	assert.Equal(t, "bob", admin.UserName)
}

func TestInvalidDatesIgnored(t *testing.T) {
	q := ParseListQuery(mustValues(t, "created_from=yesterday&created_to=2024-13-45"))
	assert.Nil(t, q.CreatedFrom)
	assert.Nil(t, q.CreatedTo)
	assert.True(t, q.IsDefault())
}

func TestNewPagination(t *testing.T) {
	q := ListQuery{Page: 2, PageSize: 10}
	assert.Equal(t, Pagination{Page: 2, PageSize: 10, Total: 21, TotalPages: 3}, NewPagination(q, 21))
	assert.Equal(t, Pagination{Page: 2, PageSize: 10, Total: 20, TotalPages: 2}, NewPagination(q, 20))
	assert.Equal(t, 0, NewPagination(q, 0).TotalPages)
}
