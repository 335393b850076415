package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/domain"
	"github.com/FACorreiaa/citcs-portal/internal/app/domain/auth"
	"github.com/FACorreiaa/citcs-portal/internal/app/domain/content"
	"github.com/FACorreiaa/citcs-portal/internal/app/domain/profiles"
	"github.com/FACorreiaa/citcs-portal/internal/app/domain/roleassign"
	"github.com/FACorreiaa/citcs-portal/internal/app/domain/roles"
	"github.com/FACorreiaa/citcs-portal/internal/app/guard"
	"github.com/FACorreiaa/citcs-portal/internal/app/middleware"
	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/renderer"
	"github.com/FACorreiaa/citcs-portal/internal/app/session"
	"github.com/FACorreiaa/citcs-portal/internal/app/views"
	database "github.com/FACorreiaa/citcs-portal/internal/db"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/config"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/events"
)

// Dependencies are the long lived resources owned by the server.
type Dependencies struct {
	Pool        database.Pool
	Broadcaster events.Broadcaster
	Uploader    content.Uploader
	Config      *config.Config
}

type AppHandlers struct {
	Auth      *auth.AuthHandlers
	Content   *content.ContentHandlers
	Users     *roleassign.Handlers
	Guard     *guard.Guard
	Health    gin.HandlerFunc
	// AuthLimit throttles credential submissions per client IP.
	AuthLimit gin.HandlerFunc
}

// Setup wires repositories, services and handlers onto r. The returned
// registry owns every browser session and must be closed on shutdown.
func Setup(r *gin.Engine, deps Dependencies, log *zap.Logger) (*session.Registry, error) {
	r.HTMLRender = &renderer.HTMLTemplRenderer{FallbackHTMLRenderer: r.HTMLRender}

	h, reg, err := setupDependencies(deps, log)
	if err != nil {
		return nil, err
	}

	setupRouter(r, h, reg, log)
	return reg, nil
}

func setupDependencies(deps Dependencies, log *zap.Logger) (*AppHandlers, *session.Registry, error) {
	cfg := deps.Config

	authRepo := auth.NewPostgresAuthRepo(deps.Pool, log)
	authService := auth.NewAuthService(authRepo, cfg, log)
	roleRepo := roles.NewPostgresRoleRepo(deps.Pool, log)
	profileRepo := profiles.NewPostgresProfileRepo(deps.Pool, log)
	contentRepo := content.NewPostgresContentRepo(deps.Pool, log)

	newClient := func(refreshToken string) session.Client {
		return auth.NewClient(authService, refreshToken, log)
	}
	reg, err := session.NewRegistry(newClient, roleRepo, deps.Broadcaster, cfg.Session.IdleTTL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session registry: %w", err)
	}

	base := domain.NewBaseHandler(log)
	handlers := &AppHandlers{
		Auth:    auth.NewAuthHandlers(log, cfg.Session.SettleWait),
		Content: content.NewContentHandlers(content.NewService(contentRepo, deps.Uploader, log), log, base),
		Users: roleassign.NewHandlers(
			roleassign.NewService(roleRepo, profileRepo, deps.Broadcaster, log),
			cfg.Session.IdleTTL, log, base,
		),
		Guard:     guard.New(log, cfg.Session.SettleWait),
		Health:    healthHandler(deps.Pool, log),
		AuthLimit: middleware.RateLimit(middleware.NewRateLimiter(log, cfg.AuthLimit.Attempts, cfg.AuthLimit.Window)),
	}

	return handlers, reg, nil
}

func setupRouter(r *gin.Engine, h *AppHandlers, reg *session.Registry, log *zap.Logger) {
	r.GET("/healthz", h.Health)

	public := r.Group("/")
	{
		public.GET("/", h.Content.Home)
		public.GET("/contact", h.Content.Contact)
		for _, info := range models.Entities {
			public.GET(info.PublicPath, h.Content.Public(info))
		}
	}

	withSession := session.Middleware(reg, log)

	authGroup := r.Group("/auth", middleware.NoStore(), withSession)
	{
		authGroup.GET("", h.Auth.ShowAuthPage)
		authGroup.POST("/signin", h.AuthLimit, h.Auth.SignIn)
		authGroup.POST("/signup", h.AuthLimit, h.Auth.SignUp)
		authGroup.POST("/signout", h.Auth.SignOut)
	}

	// Polled by the loading placeholder, so it must not sit behind the shell.
	r.GET("/admin/session", middleware.NoStore(), withSession, guard.Status)

	admin := r.Group("/admin", middleware.NoStore(), withSession, h.Guard.Shell())
	{
		admin.GET("", h.Content.Dashboard)

		admin.GET("/users", h.Users.ShowUsers)
		admin.POST("/users/assign", h.Users.AssignRole)
		admin.POST("/users/:id/delete", h.Users.RemoveRole)

		for _, info := range models.Entities {
			g := admin.Group("/" + string(info.Entity))
			g.GET("", h.Content.List(info))
			g.POST("", h.Content.Create(info))
			g.GET("/new", h.Content.New(info))
			g.POST("/upload", h.Content.Upload(info))
			g.GET("/:id", h.Content.Edit(info))
			g.POST("/:id", h.Content.Update(info))
			g.POST("/:id/delete", h.Content.Delete(info))
		}
	}

	r.NoRoute(func(c *gin.Context) {
		log.Debug("Route not found", zap.String("path", c.Request.URL.Path))
		renderer.HTML(c, http.StatusNotFound, "Not found", views.ErrorPage(http.StatusNotFound, "Page not found."))
	})
}

func healthHandler(pool database.Querier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		var one int
		if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
