package httpmiddleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP 获取“真实客户端 IP”（用于限流和浏览去重）。
//
// 只有当请求来自可信代理（同机反代 / 内网 / docker bridge）时才信任转发头，
// 否则客户端可以伪造 X-Forwarded-For 绕过按 IP 的限流，或者刷浏览数。
func ClientIP(req *http.Request) string {
	remoteHost, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		remoteHost = req.RemoteAddr
	}
	remoteIP := net.ParseIP(remoteHost)
	if remoteIP == nil || !isTrustedProxy(remoteIP) {
		return remoteHost
	}

	if cf := strings.TrimSpace(req.Header.Get("CF-Connecting-IP")); net.ParseIP(cf) != nil {
		return cf
	}

	// 第一个 IP 是原始客户端，后面是经过的代理
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if xrip := strings.TrimSpace(req.Header.Get("X-Real-IP")); net.ParseIP(xrip) != nil {
		return xrip
	}

	return remoteHost
}

func isTrustedProxy(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate()
}
