package gee

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Engine 是对外的 http.Handler。路由匹配交给 chi，gee 只负责分组、中间件链和 Context。
type Engine struct {
	*RouterGroup
	mux      *chi.Mux
	noMethod []HandlerFunc
	noRoute  []HandlerFunc
}

type RouterGroup struct {
	prefix      string
	middlewares []HandlerFunc
	parent      *RouterGroup
	engine      *Engine
}

func New() *Engine {
	engine := &Engine{
		mux: chi.NewRouter(),
	}
	engine.noRoute = []HandlerFunc{func(ctx *Context) { ctx.AbortWithError(http.StatusNotFound, "Not found") }}
	engine.noMethod = []HandlerFunc{func(ctx *Context) { ctx.AbortWithError(http.StatusMethodNotAllowed, "Method not allowed") }}
	engine.RouterGroup = &RouterGroup{engine: engine}

	engine.mux.NotFound(engine.fallback(func() []HandlerFunc { return engine.noRoute }))
	engine.mux.MethodNotAllowed(engine.fallback(func() []HandlerFunc { return engine.noMethod }))
	return engine
}

func Default() *Engine {
	engine := New()
	engine.Use(Recovery())
	return engine
}

func (e *Engine) NoRoute(handlers ...HandlerFunc) {
	e.noRoute = handlers
}

func (e *Engine) NoMethod(handlers ...HandlerFunc) {
	e.noMethod = handlers
}

// fallback 未命中路由时只跑根分组的中间件（日志、指标、recover 仍然生效）。
func (e *Engine) fallback(handlers func() []HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := newContext(w, req, e)
		ctx.handlers = append(e.RouterGroup.chain(), handlers()...)
		ctx.Next()
	}
}

func (group *RouterGroup) Group(prefix string) *RouterGroup {
	return &RouterGroup{
		prefix: group.prefix + prefix,
		parent: group,
		engine: group.engine,
	}
}

// Use 添加中间件，对本分组及其子分组生效
func (group *RouterGroup) Use(middlewares ...HandlerFunc) {
	group.middlewares = append(group.middlewares, middlewares...)
}

// chain 从根分组开始收集中间件。每次返回新切片，避免并发请求共享底层数组。
func (group *RouterGroup) chain() []HandlerFunc {
	var groups []*RouterGroup
	n := 0
	for g := group; g != nil; g = g.parent {
		groups = append(groups, g)
		n += len(g.middlewares)
	}
	out := make([]HandlerFunc, 0, n+4)
	for i := len(groups) - 1; i >= 0; i-- {
		out = append(out, groups[i].middlewares...)
	}
	return out
}

func (group *RouterGroup) addRoute(method string, comp string, handlers ...HandlerFunc) {
	if len(handlers) == 0 {
		panic("gee: addRoute requires at least one handler")
	}
	pattern := group.prefix + comp
	if pattern == "" {
		pattern = "/"
	}
	route, wildcard := chiPattern(pattern)
	hs := append([]HandlerFunc(nil), handlers...)

	slog.Debug("route registered", "method", method, "pattern", pattern)
	group.engine.mux.MethodFunc(method, route, func(w http.ResponseWriter, req *http.Request) {
		ctx := newContext(w, req, group.engine)
		ctx.RoutePattern = pattern
		ctx.wildcard = wildcard
		ctx.handlers = append(group.chain(), hs...)
		ctx.Next()
	})
}

// GET defines the method to add GET request
func (group *RouterGroup) GET(pattern string, handlers ...HandlerFunc) {
	group.addRoute(http.MethodGet, pattern, handlers...)
}

// POST defines the method to add POST request
func (group *RouterGroup) POST(pattern string, handlers ...HandlerFunc) {
	group.addRoute(http.MethodPost, pattern, handlers...)
}

func (group *RouterGroup) PUT(pattern string, handlers ...HandlerFunc) {
	group.addRoute(http.MethodPut, pattern, handlers...)
}

func (group *RouterGroup) PATCH(pattern string, handlers ...HandlerFunc) {
	group.addRoute(http.MethodPatch, pattern, handlers...)
}

// DELETE defines the method to add DELETE request
func (group *RouterGroup) DELETE(pattern string, handlers ...HandlerFunc) {
	group.addRoute(http.MethodDelete, pattern, handlers...)
}

// ServeHTTP implements http.Handler interface
func (e *Engine) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	e.mux.ServeHTTP(w, req)
}

// Run starts the HTTP server
func (e *Engine) Run(addr string) error {
	return http.ListenAndServe(addr, e)
}
