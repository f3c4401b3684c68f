package httpapi

import (
	"time"

	"newsroom.local/gee"
	"newsroom.local/internal/app/news"
	newscache "newsroom.local/internal/app/news/cache"
	"newsroom.local/internal/app/news/realtime"
	"newsroom.local/internal/app/news/stats"
	"newsroom.local/internal/platform/auth"
	"newsroom.local/internal/platform/effects"
	"newsroom.local/internal/platform/fanout"
	"newsroom.local/internal/platform/httpmiddleware"
	"newsroom.local/internal/platform/kvstore"
	"newsroom.local/internal/platform/ratelimit"
	"newsroom.local/internal/platform/visits"
)

// Deps 由 cmd/api 组装。Cache 不可用时传 kvstore.Nop{}，Limiter/Slugs/Realtime 可以为 nil。
type Deps struct {
	Articles   news.ArticleStore
	Categories news.CategoryStore
	Comments   news.CommentStore
	Users      news.UserStore

	Cache       kvstore.Store
	ListingTTL  time.Duration
	Invalidator *newscache.Invalidator
	Slugs       *newscache.SlugFilter
	Views       *visits.Counter
	Collector   stats.Collector

	Hub     *fanout.Hub
	Effects *effects.Runner

	Tokens   auth.TokenService
	Revoker  *auth.Revoker
	Limiter  *ratelimit.Limiter
	Realtime *realtime.Server
}

// Register 在 /api 分组下挂载全部新闻相关路由。
//
// cmd/api 只负责组装依赖，路由定义留在本包，避免散落在 main.go。
// 路径不带结尾斜杠：chi 区分 /api/posts 和 /api/posts/。
func Register(api *gee.RouterGroup, d *Deps) {
	authn := httpmiddleware.NewAuthenticator(d.Tokens, d.Revoker)

	// 公开接口
	public := api.Group("/public")
	public.GET("/posts", NewPublicListHandler(d))
	public.GET("/posts/:slug", NewPublicDetailHandler(d))
	public.GET("/categories", NewCategoryListHandler(d))
	public.GET("/categories/:slug", NewCategoryBySlugHandler(d))

	// 认证：注册 3 次/分钟，登录 5 次/分钟
	authGroup := api.Group("/auth")
	authGroup.POST("/register", httpmiddleware.RateLimit(d.Limiter, "register", 3, time.Minute), NewRegisterHandler(d))
	authGroup.POST("/login", httpmiddleware.RateLimit(d.Limiter, "login", 5, time.Minute), NewLoginHandler(d))
	authGroup.POST("/refresh", httpmiddleware.RateLimit(d.Limiter, "refresh", 20, time.Minute), NewRefreshHandler(d))
	authGroup.POST("/logout", authn.Required(), NewLogoutHandler(d))
	authGroup.GET("/me", authn.Required(), NewMeHandler(d))

	// 文章管理，需要登录；静态路由 /mine 优先于 /:id
	posts := api.Group("/posts")
	posts.Use(authn.Required())
	posts.GET("/mine", NewMineListHandler(d))
	posts.GET("", NewFilteredListHandler(d))
	posts.GET("/:id", NewPostDetailHandler(d))
	posts.POST("", NewCreatePostHandler(d))
	posts.PUT("/:id", NewUpdatePostHandler(d))
	posts.DELETE("/:id", NewDeletePostHandler(d))

	// 分类：读公开，写需要登录
	categories := api.Group("/categories")
	categories.GET("", NewCategoryListHandler(d))
	categories.GET("/:id", NewCategoryByIDHandler(d))
	categories.POST("", authn.Required(), NewCreateCategoryHandler(d))
	categories.PUT("/:id", authn.Required(), NewUpdateCategoryHandler(d))
	categories.DELETE("/:id", authn.Required(), NewDeleteCategoryHandler(d))

	// 评论 30 次/分钟
	api.POST("/comments", authn.Required(), httpmiddleware.RateLimit(d.Limiter, "comment", 30, time.Minute), NewCreateCommentHandler(d))

	// 实时推送：浏览器 websocket 只能通过 ?token= 传 token
	if d.Realtime != nil {
		api.GET("/realtime", authn.RequiredQuery(), d.Realtime.Handle)
	}
}
