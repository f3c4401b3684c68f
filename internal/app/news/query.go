package news

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxPage         = 1_000_000
)

// ListQuery 是规范化之后的列表查询。
// 同一个逻辑查询不论参数顺序、大小写、是否显式写默认值，规范化结果都相同，
// Canonical / ListingKey 依赖这一点。
type ListQuery struct {
	Page     int
	PageSize int

	Title        string // 小写，做 ILIKE 子串匹配
	Status       string
	CategorySlug string
	Tags         []string // 小写、去重、排序；任意一个命中即可
	CreatedFrom  *time.Time
	CreatedTo    *time.Time

	// 仅管理员可用的过滤条件
	UserID   *int64
	UserName string

	// 由 handler 强制设置，不来自查询参数
	OwnerID       *int64
	PublishedOnly bool
}

// ParseListQuery 从 URL 参数解析。非法值不报错，退回默认值或忽略。
func ParseListQuery(v url.Values) ListQuery {
	q := ListQuery{
		Page:         parsePage(v.Get("page")),
		PageSize:     parsePageSize(firstNonEmpty(v.Get("pageSize"), v.Get("page_size"), v.Get("limit"))),
		Title:        strings.ToLower(strings.TrimSpace(v.Get("title"))),
		Status:       strings.ToLower(strings.TrimSpace(v.Get("status"))),
		CategorySlug: strings.ToLower(strings.TrimSpace(v.Get("category_slug"))),
		Tags:         parseTags(v["tags"]),
		CreatedFrom:  parseDate(v.Get("created_from")),
		CreatedTo:    parseDate(v.Get("created_to")),
		UserName:     strings.ToLower(strings.TrimSpace(v.Get("user_name"))),
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(v.Get("user_id")), 10, 64); err == nil && id > 0 {
		q.UserID = &id
	}
	return q
}

// ForPublic 公开列表：只看已发布，忽略 status/用户/日期过滤
func (q ListQuery) ForPublic() ListQuery {
	return ListQuery{
		Page:          q.Page,
		PageSize:      q.PageSize,
		Title:         q.Title,
		CategorySlug:  q.CategorySlug,
		Tags:          q.Tags,
		PublishedOnly: true,
	}
}

// ForOwner 我的列表：强制 owner，忽略管理员过滤
func (q ListQuery) ForOwner(userID int64) ListQuery {
	return ListQuery{
		Page:        q.Page,
		PageSize:    q.PageSize,
		Title:       q.Title,
		Status:      q.Status,
		Tags:        q.Tags,
		CreatedFrom: q.CreatedFrom,
		CreatedTo:   q.CreatedTo,
		OwnerID:     &userID,
	}
}

// ForActor 管理后台列表：非管理员只能看到自己的文章，且不能按作者过滤
func (q ListQuery) ForActor(userID int64, admin bool) ListQuery {
	out := q
	out.PublishedOnly = false
	out.CategorySlug = ""
	if !admin {
		out.UserID = nil
		out.UserName = ""
		out.OwnerID = &userID
	}
	return out
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// IsDefault 没有任何过滤条件并且是默认分页
func (q ListQuery) IsDefault() bool {
	return q.Page == DefaultPage && q.PageSize == DefaultPageSize &&
		q.Title == "" && q.Status == "" && q.CategorySlug == "" && len(q.Tags) == 0 &&
		q.CreatedFrom == nil && q.CreatedTo == nil && q.UserID == nil && q.UserName == ""
}

// Canonical 稳定的文本编码，url.Values.Encode 按 key 排序。
// OwnerID/PublishedOnly 不参与编码：它们已经体现在命名空间里。
func (q ListQuery) Canonical() string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.Title != "" {
		v.Set("title", q.Title)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.CategorySlug != "" {
		v.Set("category_slug", q.CategorySlug)
	}
	if len(q.Tags) > 0 {
		v.Set("tags", strings.Join(q.Tags, ","))
	}
	if q.CreatedFrom != nil {
		v.Set("created_from", q.CreatedFrom.UTC().Format(time.RFC3339Nano))
	}
	if q.CreatedTo != nil {
		v.Set("created_to", q.CreatedTo.UTC().Format(time.RFC3339Nano))
	}
	if q.UserID != nil {
		v.Set("user_id", strconv.FormatInt(*q.UserID, 10))
	}
	if q.UserName != "" {
		v.Set("user_name", q.UserName)
	}
	return v.Encode()
}

// ListingKey 默认查询直接用命名空间本身作为 key，写操作可以精确删除；
// 其余组合是 ns + ":" + sha256(canonical)，只能靠前缀清理或 TTL 过期。
func ListingKey(namespace string, q ListQuery) string {
	if q.IsDefault() {
		return namespace
	}
	sum := sha256.Sum256([]byte(q.Canonical()))
	return namespace + ":" + hex.EncodeToString(sum[:])
}

func parsePage(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPage
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultPage
	}
	f = math.Floor(f)
	if f < 1 {
		return DefaultPage
	}
	if f > maxPage {
		return maxPage
	}
	return int(f)
}

func parsePageSize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPageSize
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultPageSize
	}
	f = math.Floor(f)
	switch {
	case f < 1:
		return 1
	case f > MaxPageSize:
		return MaxPageSize
	}
	return int(f)
}

// parseTags 同时支持 ?tags=a,b 和 ?tags=a&tags=b
func parseTags(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, tag := range strings.Split(item, ",") {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" {
				out = append(out, tag)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
