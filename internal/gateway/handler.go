package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"essence/internal/blog"
	"essence/internal/session"
)

// StreamObserver counts open session event streams
type StreamObserver interface {
	StreamOpened()
	StreamClosed()
}

// Handler serves the gateway routes
type Handler struct {
	sessions SessionService
	blog     BlogService
	streams  StreamObserver
	checks   map[string]HealthCheck
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new gateway handler. Websocket upgrades are accepted
// from allowedOrigins only; "*" accepts any origin.
func NewHandler(sessions SessionService, blogSvc BlogService, logger *slog.Logger, allowedOrigins []string) *Handler {
	return &Handler{
		sessions: sessions,
		blog:     blogSvc,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

const healthCheckTimeout = 2 * time.Second

// Health reports liveness, whether a user is logged in, and the state of
// each registered dependency. A failing dependency degrades the status but
// the gateway stays up.
func (h *Handler) Health(c *gin.Context) {
	response := gin.H{
		"status":           "ok",
		"is_authenticated": h.sessions.Current().Authenticated,
	}

	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()

		dep := map[string]string{"status": "up"}
		if err != nil {
			dep["status"] = "down"
			dep["error"] = err.Error()
			response["status"] = "degraded"
		}
		response[name] = dep
	}

	c.JSON(http.StatusOK, response)
}

// CurrentSession returns the session snapshot
func (h *Handler) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Current())
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates against the backend and persists the session. A
// rejected login and an unreachable backend get the same answer; only
// local storage trouble is reported apart.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, session.ErrStorageUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session storage unavailable"})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "login failed, please try again"})
		}
		return
	}

	c.JSON(http.StatusOK, session.Snapshot{Authenticated: true, User: user})
}

// Logout ends the session; it always succeeds
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context())
	c.JSON(http.StatusOK, h.sessions.Current())
}

// Home lists every article with its category name
func (h *Handler) Home(c *gin.Context) {
	page, err := h.blog.Home(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Article returns one article with comments and related articles
func (h *Handler) Article(c *gin.Context) {
	page, err := h.blog.Article(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) Categories(c *gin.Context) {
	categories, err := h.blog.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// Write publishes an article as the session user
func (h *Handler) Write(c *gin.Context) {
	var in blog.WriteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	article, err := h.blog.Write(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

// Like records a like with an optimistic count update
func (h *Handler) Like(c *gin.Context) {
	if err := h.blog.Like(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true})
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) Comment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	comment, err := h.blog.Comment(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Register creates an account from JSON or a multipart form. A multipart
// request may carry the avatar as profile_image.
func (h *Handler) Register(c *gin.Context) {
	var in blog.RegisterInput
	if c.ContentType() == "multipart/form-data" {
		in = blog.RegisterInput{
			Username:  c.PostForm("username"),
			Password:  c.PostForm("password"),
			Email:     c.PostForm("email"),
			FirstName: c.PostForm("first_name"),
			LastName:  c.PostForm("last_name"),
			Bio:       c.PostForm("bio"),
		}
		if fh, err := c.FormFile("profile_image"); err == nil {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read profile image"})
				return
			}
			defer f.Close()
			in.Avatar = &blog.Avatar{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Body:        f,
			}
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.blog.Register(c.Request.Context(), in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "account created, please log in"})
}

// Dashboard returns the full profile of the session user
func (h *Handler) Dashboard(c *gin.Context) {
	user, err := h.blog.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
