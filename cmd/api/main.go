package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"syscall"
	"time"

	"newsroom.local/gee"
	"newsroom.local/gee/middleware"
	newscache "newsroom.local/internal/app/news/cache"
	newshttpapi "newsroom.local/internal/app/news/httpapi"
	"newsroom.local/internal/app/news/realtime"
	"newsroom.local/internal/app/news/repo"
	"newsroom.local/internal/app/news/stats"
	"newsroom.local/internal/platform/auth"
	platformcache "newsroom.local/internal/platform/cache"
	"newsroom.local/internal/platform/config"
	"newsroom.local/internal/platform/db"
	"newsroom.local/internal/platform/effects"
	"newsroom.local/internal/platform/fanout"
	"newsroom.local/internal/platform/httpmiddleware"
	"newsroom.local/internal/platform/httpserver"
	"newsroom.local/internal/platform/kvstore"
	"newsroom.local/internal/platform/metrics"
	"newsroom.local/internal/platform/migrate"
	"newsroom.local/internal/platform/ratelimit"
	"newsroom.local/internal/platform/trace"
	"newsroom.local/internal/platform/visits"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h).With("service", cfg.ServiceName))

	metrics.Init()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown := trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName)
		if shutdown == nil {
			slog.Error("Trace init failed")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error(err.Error())
				}
			}()
		}
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	//DB
	if cfg.MigrateOnStart {
		migrateCtx, cancel := context.WithTimeout(stopCtx, time.Minute)
		_, err := migrate.Up(migrateCtx, cfg.DBDSN)
		cancel()
		if err != nil {
			log.Fatal(err)
		}
	}
	dbCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	dbPool, errDB := db.New(dbCtx, cfg.DBDSN)
	if errDB != nil {
		log.Fatal(errDB)
	}
	defer dbPool.Close()
	if err := dbPool.Ping(dbCtx); err != nil {
		log.Fatal(err)
	}
	slog.Info("数据库连接成功")

	//Redis：连不上就降级为无缓存模式，服务照常启动
	var redisClient *redis.Client
	var shared kvstore.Store = kvstore.Nop{}
	if cfg.RedisEnabled {
		client, err := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Warn("Redis unavailable, running without cache", "addr", cfg.RedisAddr, "err", err)
		} else {
			redisClient = client
			defer redisClient.Close()
			shared = kvstore.NewRedis(redisClient, kvstore.WithOpTimeout(cfg.CacheOpTimeout))
		}
	} else {
		slog.Warn("Redis disabled by config", "REDIS_ENABLED", false)
	}

	// 列表缓存可以加一层进程内 L1；去重标记和吊销名单必须只看共享存储
	listingStore := shared
	if cfg.CacheLocalEnabled && redisClient != nil {
		local, err := kvstore.NewLocal(100_000, 1<<24, cfg.CacheLocalTTL) // 10万条目，16MB
		if err != nil {
			log.Fatal(err)
		}
		defer local.Close()
		listingStore = kvstore.NewTiered(local, shared)
	}

	//限流器
	var limiter *ratelimit.Limiter
	switch {
	case !cfg.RateLimitEnabled:
		slog.Warn("RateLimit disabled by config", "RATELIMIT_ENABLED", false)
	case redisClient == nil:
		slog.Warn("RateLimit disabled: no redis")
	default:
		limiter = ratelimit.NewLimiter(redisClient)
	}

	articles := repo.NewArticlesRepo(dbPool)

	var slugs *newscache.SlugFilter
	if cfg.SlugFilterEnabled {
		// 预期 100 万篇文章，1% 误判率；预热完成前全部放行
		slugs = newscache.NewSlugFilter(1_000_000, 0.01)
		go func() {
			if err := slugs.Warm(stopCtx, articles.PublishedSlugs); err != nil {
				slog.Warn("slug filter warm failed", "err", err)
			} else {
				slog.Info("slug filter ready", "approx_items", slugs.Count())
			}
			slugs.Run(stopCtx, cfg.SlugFilterRefresh, articles.PublishedSlugs)
		}()
	}

	//浏览日志（根据配置选择 Channel 或 Kafka）
	viewLog := repo.NewViewLog(dbPool)
	var collector stats.Collector
	var kafkaConsumer *stats.KafkaConsumer
	var channelConsumer *stats.Consumer
	if cfg.KafkaEnabled {
		slog.Info("使用 Kafka 收集浏览日志", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		collector = stats.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaTopic)
		kafkaConsumer = stats.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, viewLog)
	} else {
		slog.Info("使用 Channel 收集浏览日志")
		channelCollector := stats.NewChannelCollector(10000)
		collector = channelCollector
		channelConsumer = stats.NewConsumer(viewLog, channelCollector)
	}

	// JWT
	ts, jwtErr := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, cfg.JWTRefreshTTL)
	if jwtErr != nil {
		log.Fatal(jwtErr)
	}

	hub := fanout.NewHub(cfg.FanoutBuffer)
	rt := realtime.NewServer(hub, realtime.WithCheckOrigin(originAllowed(cfg.CORSOrigins)))

	deps := &newshttpapi.Deps{
		Articles:    articles,
		Categories:  repo.NewCategoriesRepo(dbPool),
		Comments:    repo.NewCommentsRepo(dbPool),
		Users:       repo.NewUsersRepo(dbPool),
		Cache:       listingStore,
		ListingTTL:  cfg.CacheListingTTL,
		Invalidator: newscache.NewInvalidator(listingStore),
		Slugs:       slugs,
		Views:       visits.NewCounter(shared, cfg.ViewWindow),
		Collector:   collector,
		Hub:         hub,
		Effects:     effects.NewRunner(time.Second),
		Tokens:      ts,
		Revoker:     auth.NewRevoker(shared),
		Limiter:     limiter,
		Realtime:    rt,
	}

	// 对外业务
	r := gee.New()
	r.Use(gee.Recovery(), middleware.ReqID(), middleware.AccessLog(), httpmiddleware.Metrics(), httpmiddleware.TraceName())
	newshttpapi.Register(r.Group("/api"), deps)
	r.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	publicHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"x-access-token", "x-access-expires-at", "X-Request-ID"},
		MaxAge:         300,
	})(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(publicHandler, "http")
	}
	// websocket 连接被劫持，Shutdown 管不到，需要单独关闭
	publicSrv := httpserver.New(cfg, publicHandler, hub.Close, rt.CloseAll)

	// 仅本机/内网
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	// 数据库不可用算未就绪；Redis 不可用只是降级
	adminMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("DB Ping Err"))
			return
		}
		if err := shared.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("DB ready, cache degraded"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("DB ready"))
	})

	adminMux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name": cfg.ServiceName,
			"version":      version,
			"commit":       commit,
			"build_time":   buildTime,
			"go_version":   runtime.Version(),
		})
	})

	if cfg.PprofEnabled {
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	adminSrv := &http.Server{
		Addr:              cfg.AdminAddr, // 推荐：127.0.0.1:6060
		Handler:           adminMux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errch := make(chan error, 2)
	go func() {
		errch <- httpserver.RunContext(stopCtx, publicSrv, cfg.ShutdownTimeout)
	}()
	go func() {
		errch <- httpserver.RunContext(stopCtx, adminSrv, cfg.ShutdownTimeout)
	}()

	// 消费者不跟随 stopCtx：HTTP 服务优雅退出期间仍会产生浏览事件。
	// 两个服务都返回后 defer 里先关 collector，channel 消费者读完剩余事件自然退出。
	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	consumersDone := make(chan struct{})
	go func() {
		defer close(consumersDone)
		switch {
		case kafkaConsumer != nil:
			kafkaConsumer.Run(consumerCtx)
		case channelConsumer != nil:
			channelConsumer.Run(consumerCtx)
		}
	}()
	defer func() {
		collector.Close()
		// Kafka 消费者没有结束信号，未读的消息留给下次启动
		if kafkaConsumer != nil {
			cancelConsumers()
		}
		select {
		case <-consumersDone:
		case <-time.After(cfg.ShutdownTimeout):
			slog.Warn("view log consumer did not finish in time")
		}
		cancelConsumers()
		if kafkaConsumer != nil {
			kafkaConsumer.Close()
		}
	}()

	err := <-errch
	if err != nil {
		stop()
		select {
		case <-errch:
		case <-time.After(cfg.ShutdownTimeout + time.Second):
		}
		slog.Error("server exited", "err", err)
		return
	}

	stop()
	<-errch
}

// originAllowed websocket 握手沿用 CORS 白名单
func originAllowed(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
