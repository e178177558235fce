// Package gateway serves the Essence front-end over HTTP: session routes,
// blog pages as JSON, a websocket stream of session changes, and metrics.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"essence/internal/api"
	"essence/internal/blog"
	"essence/internal/session"
)

// SessionService is the session as seen by HTTP handlers
type SessionService interface {
	Current() session.Snapshot
	Login(ctx context.Context, username, password string) (*session.UserProfile, error)
	Logout(ctx context.Context)
	Subscribe() (<-chan session.Snapshot, func())
}

// BlogService builds pages and performs user actions
type BlogService interface {
	Home(ctx context.Context) (*blog.HomePage, error)
	Article(ctx context.Context, id string) (*blog.ArticlePage, error)
	Categories(ctx context.Context) ([]api.Category, error)
	Write(ctx context.Context, in blog.WriteInput) (*api.Article, error)
	Comment(ctx context.Context, articleID, text string) (*api.Comment, error)
	Like(ctx context.Context, articleID string) error
	Register(ctx context.Context, in blog.RegisterInput) error
	Dashboard(ctx context.Context) (*session.UserProfile, error)
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Deps are the components the router serves
type Deps struct {
	Sessions       SessionService
	Blog           BlogService
	Observer       RequestObserver
	Metrics        http.Handler
	Logger         *slog.Logger
	AllowedOrigins []string
	// Checks are reported by GET /health under their key
	Checks map[string]HealthCheck
}

// SetupRouter configures and returns the gateway router
func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(deps.Logger))
	if deps.Observer != nil {
		r.Use(MetricsMiddleware(deps.Observer))
	}
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := NewHandler(deps.Sessions, deps.Blog, deps.Logger, deps.AllowedOrigins)
	if obs, ok := deps.Observer.(StreamObserver); ok {
		h.streams = obs
	}
	h.checks = deps.Checks

	r.GET("/health", h.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	sess := r.Group("/session")
	{
		sess.GET("", h.CurrentSession)
		sess.POST("/login", h.Login)
		sess.POST("/logout", h.Logout)
		sess.GET("/events", h.SessionEvents)
	}

	r.GET("/articles", h.Home)
	r.GET("/articles/:id", h.Article)
	r.GET("/categories", h.Categories)
	r.POST("/register", h.Register)

	authed := r.Group("")
	authed.Use(RequireSession(deps.Sessions))
	{
		authed.POST("/articles", h.Write)
		authed.POST("/articles/:id/like", h.Like)
		authed.POST("/articles/:id/comments", h.Comment)
		authed.GET("/dashboard", h.Dashboard)
	}

	return r
}
