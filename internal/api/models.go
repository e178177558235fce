package api

import (
	"time"

	"essence/internal/session"
)

// Author is the embedded author of an article or comment
type Author struct {
	Name         string `json:"name,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Article as served by GET /article
type Article struct {
	ID         session.ID `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	CategoryID session.ID `json:"categoryId,omitempty"`
	Image      string     `json:"image,omitempty"`
	Author     *Author    `json:"author,omitempty"`
	Likes      int        `json:"likes,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Category as served by GET /category
type Category struct {
	ID   session.ID `json:"id"`
	Name string     `json:"name"`
}

// Comment as served by GET /comments
type Comment struct {
	ID        session.ID `json:"id"`
	Text      string     `json:"text"`
	ArticleID session.ID `json:"articleId"`
	AuthorID  session.ID `json:"authorId,omitempty"`
	Author    *Author    `json:"author,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CreateArticleRequest is the body of POST /article
type CreateArticleRequest struct {
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	CategoryID session.ID `json:"categoryId"`
	AuthorID   session.ID `json:"authorId,omitempty"`
}

// PostCommentRequest is the body of POST /comments
type PostCommentRequest struct {
	ArticleID session.ID `json:"articleId"`
	Text      string     `json:"text"`
	AuthorID  session.ID `json:"authorId,omitempty"`
}

// LoginRequest is the body of POST /user-info
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Username     string  `json:"username"`
	Password     string  `json:"password"`
	Email        string  `json:"email"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Bio          string  `json:"bio"`
	ProfileImage *string `json:"profile_image"`
}
