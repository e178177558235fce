// Package blog assembles the pages of the Essence front-end from backend
// calls and the current session.
package blog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"essence/internal/api"
	"essence/internal/optimistic"
	"essence/internal/session"
)

const (
	// RelatedLimit is how many related articles an article page shows
	RelatedLimit = 3
	// Uncategorized labels articles whose category is unknown
	Uncategorized = "Uncategorized"
)

var (
	ErrAuthRequired      = errors.New("authentication required")
	ErrArticleNotFound   = errors.New("article not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyLiked      = errors.New("article already liked")
	ErrAvatarUnsupported = errors.New("avatar upload is not configured")
)

// Backend is the subset of *api.Client the service calls
type Backend interface {
	Articles(ctx context.Context) ([]api.Article, error)
	Article(ctx context.Context, id string) (*api.Article, error)
	CreateArticle(ctx context.Context, req api.CreateArticleRequest) (*api.Article, error)
	LikeArticle(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]api.Category, error)
	Comments(ctx context.Context) ([]api.Comment, error)
	PostComment(ctx context.Context, req api.PostCommentRequest) (*api.Comment, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	UserInfo(ctx context.Context) (*session.UserProfile, error)
}

// Sessions yields the current session snapshot
type Sessions interface {
	Current() session.Snapshot
}

// AvatarStore uploads profile images
type AvatarStore interface {
	UploadAvatar(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error)
}

// Service builds pages and performs user actions.
type Service struct {
	backend  Backend
	sessions Sessions
	cache    *Cache
	avatars  AvatarStore
	logger   *slog.Logger

	onRollback func(error)

	likesMu sync.Mutex
	likes   map[likeKey]*optimistic.Value[likeState]
}

// Option configures a Service
type Option func(*Service)

// WithCache enables the redis read cache
func WithCache(c *Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithAvatars enables avatar upload on registration
func WithAvatars(a AvatarStore) Option {
	return func(s *Service) { s.avatars = a }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRollbackHook is called whenever an optimistic update is reverted
func WithRollbackHook(fn func(error)) Option {
	return func(s *Service) { s.onRollback = fn }
}

// NewService creates a Service. backend must already carry the session token.
func NewService(backend Backend, sessions Sessions, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		sessions: sessions,
		logger:   slog.Default(),
		likes:    make(map[likeKey]*optimistic.Value[likeState]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ArticleCard is an article with its resolved category name
type ArticleCard struct {
	api.Article
	CategoryName string `json:"category_name"`
	Liked        bool   `json:"liked"`
}

// HomePage is the landing page
type HomePage struct {
	Featured   *ArticleCard   `json:"featured,omitempty"`
	Articles   []ArticleCard  `json:"articles"`
	Categories []api.Category `json:"categories"`
}

// ArticlePage is one article with its discussion
type ArticlePage struct {
	Article  ArticleCard   `json:"article"`
	Comments []api.Comment `json:"comments"`
	Related  []ArticleCard `json:"related"`
}

// Home lists every article with its category; the first one is featured.
func (s *Service) Home(ctx context.Context) (*HomePage, error) {
	articles, err := s.articles(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}

	page := &HomePage{
		Articles:   s.cards(articles, categories),
		Categories: categories,
	}
	if len(page.Articles) > 0 {
		featured := page.Articles[0]
		page.Featured = &featured
	}
	return page, nil
}

// Categories lists every category
func (s *Service) Categories(ctx context.Context) ([]api.Category, error) {
	return s.categories(ctx)
}

// Article builds the page for one article.
func (s *Service) Article(ctx context.Context, id string) (*ArticlePage, error) {
	article, err := s.backend.Article(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, id)
		}
		return nil, err
	}

	categories, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}

	comments, err := s.backend.Comments(ctx)
	if err != nil {
		return nil, err
	}
	own := make([]api.Comment, 0)
	for _, c := range comments {
		if c.ArticleID == article.ID {
			own = append(own, c)
		}
	}

	// related articles are a nice-to-have; the page still renders without them
	var related []api.Article
	if all, err := s.articles(ctx); err != nil {
		s.logger.Warn("Failed to load related articles", "article_id", id, "error", err)
	} else {
		related = Related(all, article.ID, article.CategoryID, RelatedLimit)
	}

	return &ArticlePage{
		Article:  s.cards([]api.Article{*article}, categories)[0],
		Comments: own,
		Related:  s.cards(related, categories),
	}, nil
}

// WriteInput is the form of the write page
type WriteInput struct {
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	CategoryID session.ID `json:"categoryId"`
}

// Write publishes an article authored by the session user.
func (s *Service) Write(ctx context.Context, in WriteInput) (*api.Article, error) {
	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}

	req := api.CreateArticleRequest{
		Title:      strings.TrimSpace(in.Title),
		Content:    strings.TrimSpace(in.Content),
		CategoryID: session.ID(strings.TrimSpace(string(in.CategoryID))),
		AuthorID:   user.ID,
	}
	switch {
	case req.Title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case req.Content == "":
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	case req.CategoryID == "":
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}

	article, err := s.backend.CreateArticle(ctx, req)
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, articlesCacheKey)
	s.logger.Info("Article published", "article_id", article.ID, "author_id", user.ID)
	return article, nil
}

// Comment adds a comment by the session user to an article.
func (s *Service) Comment(ctx context.Context, articleID, text string) (*api.Comment, error) {
	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: comment cannot be empty", ErrInvalidInput)
	}
	if articleID == "" {
		return nil, fmt.Errorf("%w: article id is required", ErrInvalidInput)
	}

	return s.backend.PostComment(ctx, api.PostCommentRequest{
		ArticleID: session.ID(articleID),
		Text:      text,
		AuthorID:  user.ID,
	})
}

// Avatar is an uploaded profile image
type Avatar struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// RegisterInput is the form of the register page
type RegisterInput struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Bio       string  `json:"bio"`
	Avatar    *Avatar `json:"-"`
}

// Register creates an account. The avatar, if any, is uploaded first and
// its URL sent as the profile image. Registering does not log in.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	req := api.RegisterRequest{
		Username:  strings.TrimSpace(in.Username),
		Password:  in.Password,
		Email:     strings.TrimSpace(in.Email),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Bio:       strings.TrimSpace(in.Bio),
	}
	switch {
	case req.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	case req.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}

	if in.Avatar != nil {
		if s.avatars == nil {
			return ErrAvatarUnsupported
		}
		url, err := s.avatars.UploadAvatar(ctx, in.Avatar.Filename, in.Avatar.ContentType, in.Avatar.Body, in.Avatar.Size)
		if err != nil {
			return fmt.Errorf("upload avatar: %w", err)
		}
		req.ProfileImage = &url
	}

	if err := s.backend.Register(ctx, req); err != nil {
		return err
	}
	s.logger.Info("Account registered", "username", req.Username)
	return nil
}

// Dashboard fetches the session user's full profile from the backend.
func (s *Service) Dashboard(ctx context.Context) (*session.UserProfile, error) {
	if _, err := s.requireUser(); err != nil {
		return nil, err
	}
	return s.backend.UserInfo(ctx)
}

func (s *Service) requireUser() (*session.UserProfile, error) {
	snap := s.sessions.Current()
	if !snap.Authenticated || snap.User == nil {
		return nil, ErrAuthRequired
	}
	return snap.User, nil
}

func (s *Service) articles(ctx context.Context) ([]api.Article, error) {
	var out []api.Article
	if s.cache.get(ctx, articlesCacheKey, &out) {
		return out, nil
	}
	out, err := s.backend.Articles(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, articlesCacheKey, out)
	return out, nil
}

func (s *Service) categories(ctx context.Context) ([]api.Category, error) {
	var out []api.Category
	if s.cache.get(ctx, categoriesCacheKey, &out) {
		return out, nil
	}
	out, err := s.backend.Categories(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, categoriesCacheKey, out)
	return out, nil
}

func (s *Service) cards(articles []api.Article, categories []api.Category) []ArticleCard {
	names := make(map[session.ID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	viewer, _ := s.requireUser()
	cards := make([]ArticleCard, 0, len(articles))
	for _, a := range articles {
		name, ok := names[a.CategoryID]
		if !ok || a.CategoryID == "" {
			name = Uncategorized
		}
		st := s.likeStateOf(viewer, a.ID)
		a.Likes += st.Pending
		cards = append(cards, ArticleCard{Article: a, CategoryName: name, Liked: st.Liked})
	}
	return cards
}
