package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/inkwelldev/inkwell/internal/auth"
	"github.com/inkwelldev/inkwell/internal/cache"
	"github.com/inkwelldev/inkwell/internal/config"
	"github.com/inkwelldev/inkwell/internal/http/handlers"
	"github.com/inkwelldev/inkwell/internal/http/middlewares"
	"github.com/inkwelldev/inkwell/internal/observability"
	"github.com/inkwelldev/inkwell/internal/repo/postgres"
)

const maxBodyBytes = 1 << 20 // posts carry rich-text bodies, keep some headroom

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	slog.SetDefault(log)

	// a registry per router keeps test instances from colliding
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(prom.GinHandleMiddleware())
	r.Use(otelgin.Middleware("inkwell"))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// listing cache: redis when configured, in-process otherwise
	var store cache.Store

	if cfg.RedisAddr != "" {
		store = cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      cfg.CacheTTL,
		})
	} else {
		store = cache.New(cfg.CacheTTL)
	}

	// wire up repositories
	postsRepo := postgres.NewPostsRepo(pool)
	usersRepo := postgres.NewUsersRepo(pool)
	refreshRepo := postgres.NewRefreshTokensRepo(pool)

	jwtManager := auth.NewManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLDays)*24*time.Hour,
	)
	googleClient := auth.NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	authMiddleware := middlewares.NewAuthMiddleware(jwtManager)

	// wire up handlers
	postsHandler := handlers.NewPostsHandler(postsRepo, store, prom)
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, googleClient, refreshRepo, cfg)

	// auth endpoints are the obvious brute-force target
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)

	authGroup := r.Group("/auth")
	authGroup.Use(authLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/logout-all", authHandler.LogoutAll)
		authGroup.GET("/google", authHandler.GoogleRedirect)
		authGroup.GET("/google/callback", authHandler.GoogleCallback)
	}

	writeLimiter := middlewares.NewRateLimiter(60, time.Minute)

	// public reads
	r.GET("/posts", postsHandler.ListPublished)
	r.GET("/posts/:slug", postsHandler.GetBySlug)

	// authenticated post management
	authed := r.Group("/")
	authed.Use(authMiddleware.RequireAuth())
	authed.Use(writeLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	{
		authed.POST("/posts", postsHandler.CreatePost)
		authed.PUT("/posts/:id", postsHandler.UpdatePost)
		authed.DELETE("/posts/:id", postsHandler.DeletePost)
		authed.POST("/posts/:id/publish", postsHandler.PublishPost)
		authed.POST("/posts/:id/unpublish", postsHandler.UnpublishPost)
		authed.GET("/me/posts", postsHandler.ListMine)
	}

	return r
}
