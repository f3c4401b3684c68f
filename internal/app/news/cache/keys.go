// Package cache 新闻领域的缓存 key、写操作的失效目标和 slug 过滤器。
package cache

import "strconv"

// 命名空间：默认查询的 key 就是命名空间本身，其余查询是 {ns}:{sha256}
const (
	PublicNamespace = "news:public"
	mineNamespace   = "news:mine:"
	detailPrefix    = "news:detail:"

	CategoriesKey = "categories:active"
)

func MineNamespace(userID int64) string {
	return mineNamespace + strconv.FormatInt(userID, 10)
}

// DetailKey 按 id 的文章详情（管理端 GET /api/posts/:id）
func DetailKey(articleID int64) string {
	return detailPrefix + strconv.FormatInt(articleID, 10)
}
