package api

import (
	"context"
	"net/http"
	"net/url"

	"essence/internal/session"
)

// Login exchanges credentials for a token and user profile.
// It satisfies session.Authenticator.
func (c *Client) Login(ctx context.Context, username, password string) (*session.Credentials, error) {
	var creds session.Credentials
	err := c.do(ctx, http.MethodPost, "/user-info", LoginRequest{
		Username: username,
		Password: password,
	}, &creds)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

// Register creates an account. The backend does not log the new user in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/register", req, nil)
}

// UserInfo fetches the authenticated user's profile
func (c *Client) UserInfo(ctx context.Context) (*session.UserProfile, error) {
	var user session.UserProfile
	if err := c.do(ctx, http.MethodGet, "/user-info", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Articles lists every article
func (c *Client) Articles(ctx context.Context) ([]Article, error) {
	var out []Article
	if err := c.do(ctx, http.MethodGet, "/article", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Article fetches one article
func (c *Client) Article(ctx context.Context, id string) (*Article, error) {
	var out Article
	if err := c.do(ctx, http.MethodGet, "/article/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateArticle publishes a new article
func (c *Client) CreateArticle(ctx context.Context, req CreateArticleRequest) (*Article, error) {
	var out Article
	if err := c.do(ctx, http.MethodPost, "/article", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LikeArticle records a like for the current user
func (c *Client) LikeArticle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/article/"+url.PathEscape(id)+"/like", nil, nil)
}

// Categories lists every category
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.do(ctx, http.MethodGet, "/category", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Comments lists every comment of every article
func (c *Client) Comments(ctx context.Context) ([]Comment, error) {
	var out []Comment
	if err := c.do(ctx, http.MethodGet, "/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostComment adds a comment to an article
func (c *Client) PostComment(ctx context.Context, req PostCommentRequest) (*Comment, error) {
	var out Comment
	if err := c.do(ctx, http.MethodPost, "/comments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
