package gee

import "strings"

type HandlerFunc func(*Context)

// chiPattern 把 gee 风格的路由（/p/:lang/*filepath）翻译成 chi 的写法（/p/{lang}/*）。
// 第二个返回值是通配参数名，chi 内部统一叫 "*"。
func chiPattern(pattern string) (string, string) {
	parts := strings.Split(pattern, "/")
	out := make([]string, 0, len(parts))
	wildcard := ""
	for _, part := range parts {
		if part != "" && part[0] == '*' {
			wildcard = part[1:]
			out = append(out, "*")
			break // 通配段之后的内容没有意义
		}
		if part != "" && part[0] == ':' {
			part = "{" + part[1:] + "}"
		}
		out = append(out, part)
	}
	return strings.Join(out, "/"), wildcard
}
