package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"essence/internal/api"
	"essence/internal/blog"
	"essence/internal/session"
	"essence/internal/storage"
)

// fakeBlog implements BlogService; unset funcs fail the call
type fakeBlog struct {
	homeFunc      func(ctx context.Context) (*blog.HomePage, error)
	articleFunc   func(ctx context.Context, id string) (*blog.ArticlePage, error)
	writeFunc     func(ctx context.Context, in blog.WriteInput) (*api.Article, error)
	commentFunc   func(ctx context.Context, articleID, text string) (*api.Comment, error)
	likeFunc      func(ctx context.Context, articleID string) error
	registerFunc  func(ctx context.Context, in blog.RegisterInput) error
	dashboardFunc func(ctx context.Context) (*session.UserProfile, error)
}

var errUnexpected = errors.New("unexpected call")

func (f *fakeBlog) Home(ctx context.Context) (*blog.HomePage, error) {
	if f.homeFunc != nil {
		return f.homeFunc(ctx)
	}
	return nil, errUnexpected
}

func (f *fakeBlog) Article(ctx context.Context, id string) (*blog.ArticlePage, error) {
	if f.articleFunc != nil {
		return f.articleFunc(ctx, id)
	}
	return nil, errUnexpected
}

func (f *fakeBlog) Categories(context.Context) ([]api.Category, error) {
	return []api.Category{{ID: "1", Name: "Tech"}}, nil
}

func (f *fakeBlog) Write(ctx context.Context, in blog.WriteInput) (*api.Article, error) {
	if f.writeFunc != nil {
		return f.writeFunc(ctx, in)
	}
	return nil, errUnexpected
}

func (f *fakeBlog) Comment(ctx context.Context, articleID, text string) (*api.Comment, error) {
	if f.commentFunc != nil {
		return f.commentFunc(ctx, articleID, text)
	}
	return nil, errUnexpected
}

func (f *fakeBlog) Like(ctx context.Context, articleID string) error {
	if f.likeFunc != nil {
		return f.likeFunc(ctx, articleID)
	}
	return errUnexpected
}

func (f *fakeBlog) Register(ctx context.Context, in blog.RegisterInput) error {
	if f.registerFunc != nil {
		return f.registerFunc(ctx, in)
	}
	return errUnexpected
}

func (f *fakeBlog) Dashboard(ctx context.Context) (*session.UserProfile, error) {
	if f.dashboardFunc != nil {
		return f.dashboardFunc(ctx)
	}
	return nil, errUnexpected
}

func newTestRouter(sessions SessionService, b BlogService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(Deps{
		Sessions:       sessions,
		Blog:           b,
		Logger:         quietLogger(),
		AllowedOrigins: []string{"http://localhost:5173"},
	})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", w.Body.String(), err)
	}
	return body["error"]
}

func TestHealth(t *testing.T) {
	r := newTestRouter(loggedIn("bob"), &fakeBlog{})

	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"is_authenticated":true`) {
		t.Errorf("Expected session state in health body, got %s", w.Body.String())
	}
}

func TestHealth_DependencyDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(Deps{
		Sessions: &fakeSessions{},
		Blog:     &fakeBlog{},
		Logger:   quietLogger(),
		Checks: map[string]HealthCheck{
			"storage": func(context.Context) error { return errors.New("bucket missing") },
		},
	})

	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var body struct {
		Status  string            `json:"status"`
		Storage map[string]string `json:"storage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.Storage["status"] != "down" || body.Storage["error"] != "bucket missing" {
		t.Errorf("Unexpected health body %s", w.Body.String())
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		loginErr   error
		wantStatus int
		wantError  string
	}{
		{"success", `{"username":"bob","password":"pw"}`, nil, http.StatusOK, ""},
		{"missing password", `{"username":"bob"}`, nil, http.StatusBadRequest, "username and password are required"},
		{"rejected", `{"username":"bob","password":"bad"}`, fmt.Errorf("login: %w", api.ErrRejected), http.StatusUnauthorized, "login failed, please try again"},
		{"backend down", `{"username":"bob","password":"pw"}`, fmt.Errorf("login: %w", api.ErrTransport), http.StatusUnauthorized, "login failed, please try again"},
		{"storage down", `{"username":"bob","password":"pw"}`, fmt.Errorf("persist session: %w", session.ErrStorageUnavailable), http.StatusServiceUnavailable, "session storage unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{
				loginFunc: func(_ context.Context, username, _ string) (*session.UserProfile, error) {
					if tt.loginErr != nil {
						return nil, tt.loginErr
					}
					return &session.UserProfile{ID: "1", Username: username}, nil
				},
			}
			r := newTestRouter(sessions, &fakeBlog{})

			w := do(r, http.MethodPost, "/session/login", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantError != "" {
				if got := errorBody(t, w); got != tt.wantError {
					t.Errorf("Expected error %q, got %q", tt.wantError, got)
				}
				return
			}

			var snap session.Snapshot
			if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
				t.Fatal(err)
			}
			if !snap.Authenticated || snap.User.Username != "bob" {
				t.Errorf("Unexpected snapshot %+v", snap)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	sessions := loggedIn("bob")
	r := newTestRouter(sessions, &fakeBlog{})

	w := do(r, http.MethodPost, "/session/logout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if sessions.logouts != 1 {
		t.Errorf("Expected one logout, got %d", sessions.logouts)
	}
	if !strings.Contains(w.Body.String(), `"is_authenticated":false`) {
		t.Errorf("Expected anonymous snapshot, got %s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/session", "")
	if !strings.Contains(w.Body.String(), `"user":null`) {
		t.Errorf("Expected no user after logout, got %s", w.Body.String())
	}
}

func TestHome(t *testing.T) {
	b := &fakeBlog{
		homeFunc: func(context.Context) (*blog.HomePage, error) {
			return &blog.HomePage{Articles: []blog.ArticleCard{{
				Article:      api.Article{ID: "1", Title: "Hello"},
				CategoryName: "Tech",
			}}}, nil
		},
	}
	r := newTestRouter(&fakeSessions{}, b)

	w := do(r, http.MethodGet, "/articles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Hello") || !strings.Contains(w.Body.String(), "Tech") {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestArticle_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", blog.ErrArticleNotFound, http.StatusNotFound},
		{"backend down", fmt.Errorf("fetch article: %w", api.ErrTransport), http.StatusBadGateway},
		{"backend rejected", &api.StatusError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			b := &fakeBlog{
				articleFunc: func(_ context.Context, id string) (*blog.ArticlePage, error) {
					gotID = id
					return nil, tt.err
				},
			}
			r := newTestRouter(&fakeSessions{}, b)

			w := do(r, http.MethodGet, "/articles/42", "")
			if gotID != "42" {
				t.Errorf("Expected id 42, got %q", gotID)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if strings.Contains(w.Body.String(), "boom") {
				t.Error("Internal error details leaked into the response")
			}
		})
	}
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	r := newTestRouter(&fakeSessions{}, &fakeBlog{})

	for _, route := range []struct{ method, path, body string }{
		{http.MethodPost, "/articles", `{"title":"t","content":"c","categoryId":"1"}`},
		{http.MethodPost, "/articles/1/like", ""},
		{http.MethodPost, "/articles/1/comments", `{"text":"hi"}`},
		{http.MethodGet, "/dashboard", ""},
	} {
		w := do(r, route.method, route.path, route.body)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.path, w.Code)
		}
	}
}

func TestWrite(t *testing.T) {
	var got blog.WriteInput
	b := &fakeBlog{
		writeFunc: func(_ context.Context, in blog.WriteInput) (*api.Article, error) {
			got = in
			if in.Title == "" {
				return nil, fmt.Errorf("%w: title is required", blog.ErrInvalidInput)
			}
			return &api.Article{ID: "9", Title: in.Title}, nil
		},
	}
	r := newTestRouter(loggedIn("bob"), b)

	w := do(r, http.MethodPost, "/articles", `{"title":"Go","content":"body","categoryId":"2"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if got.Title != "Go" || got.CategoryID != "2" {
		t.Errorf("Unexpected input %+v", got)
	}

	w = do(r, http.MethodPost, "/articles", `{"content":"body"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if msg := errorBody(t, w); !strings.Contains(msg, "title is required") {
		t.Errorf("Expected validation message, got %q", msg)
	}

	w = do(r, http.MethodPost, "/articles", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad JSON, got %d", w.Code)
	}
}

func TestLike(t *testing.T) {
	calls := 0
	b := &fakeBlog{
		likeFunc: func(_ context.Context, id string) error {
			calls++
			if calls > 1 {
				return blog.ErrAlreadyLiked
			}
			return nil
		},
	}
	r := newTestRouter(loggedIn("bob"), b)

	w := do(r, http.MethodPost, "/articles/3/like", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"liked":true`) {
		t.Fatalf("Unexpected response %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/articles/3/like", "")
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 on second like, got %d", w.Code)
	}
}

func TestComment(t *testing.T) {
	b := &fakeBlog{
		commentFunc: func(_ context.Context, articleID, text string) (*api.Comment, error) {
			return &api.Comment{ID: "c1", ArticleID: session.ID(articleID), Text: text}, nil
		},
	}
	r := newTestRouter(loggedIn("bob"), b)

	w := do(r, http.MethodPost, "/articles/5/comments", `{"text":"nice"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "nice") {
		t.Errorf("Unexpected body %s", w.Body.String())
	}

	w = do(r, http.MethodPost, "/articles/5/comments", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty comment, got %d", w.Code)
	}
}

func TestDashboard(t *testing.T) {
	b := &fakeBlog{
		dashboardFunc: func(context.Context) (*session.UserProfile, error) {
			return &session.UserProfile{ID: "7", Username: "bob", Email: "bob@example.com"}, nil
		},
	}
	r := newTestRouter(loggedIn("bob"), b)

	w := do(r, http.MethodGet, "/dashboard", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bob@example.com") {
		t.Errorf("Unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestRegister_JSON(t *testing.T) {
	var got blog.RegisterInput
	b := &fakeBlog{
		registerFunc: func(_ context.Context, in blog.RegisterInput) error {
			got = in
			return nil
		},
	}
	r := newTestRouter(&fakeSessions{}, b)

	w := do(r, http.MethodPost, "/register", `{"username":"amy","password":"pw","email":"amy@example.com","first_name":"Amy"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if got.Username != "amy" || got.FirstName != "Amy" || got.Avatar != nil {
		t.Errorf("Unexpected input %+v", got)
	}
}

func TestRegister_MultipartWithAvatar(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("username", "amy")
	_ = mw.WriteField("password", "pw")
	_ = mw.WriteField("email", "amy@example.com")
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="profile_image"; filename="me.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("png-bytes"))
	mw.Close()

	var got blog.RegisterInput
	var avatar []byte
	b := &fakeBlog{
		registerFunc: func(_ context.Context, in blog.RegisterInput) error {
			got = in
			if in.Avatar != nil {
				avatar, _ = io.ReadAll(in.Avatar.Body)
			}
			return nil
		},
	}
	r := newTestRouter(&fakeSessions{}, b)

	req := httptest.NewRequest(http.MethodPost, "/register", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if got.Username != "amy" || got.Avatar == nil {
		t.Fatalf("Unexpected input %+v", got)
	}
	if got.Avatar.Filename != "me.png" || got.Avatar.ContentType != "image/png" || got.Avatar.Size != 9 {
		t.Errorf("Unexpected avatar %+v", got.Avatar)
	}
	if string(avatar) != "png-bytes" {
		t.Errorf("Unexpected avatar body %q", avatar)
	}
}

func TestRegister_ErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{fmt.Errorf("%w: a valid email is required", blog.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("upload avatar: %w", fmt.Errorf("%w: content type text/plain is not allowed", storage.ErrInvalidFile)), http.StatusBadRequest},
		{blog.ErrAvatarUnsupported, http.StatusNotImplemented},
		{&api.StatusError{StatusCode: http.StatusConflict}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		b := &fakeBlog{registerFunc: func(context.Context, blog.RegisterInput) error { return tt.err }}
		r := newTestRouter(&fakeSessions{}, b)

		w := do(r, http.MethodPost, "/register", `{"username":"amy"}`)
		if w.Code != tt.wantStatus {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.wantStatus, w.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	r := newTestRouter(&fakeSessions{}, &fakeBlog{})

	req := httptest.NewRequest(http.MethodOptions, "/articles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("Expected CORS Allow-Origin header")
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("Expected CORS Allow-Credentials header")
	}
}
