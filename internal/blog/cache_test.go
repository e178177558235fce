package blog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"essence/internal/api"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cache := NewCache(context.Background(), rdb, time.Minute, quietLogger())
	if cache == nil {
		t.Fatal("Expected cache to connect to miniredis")
	}
	return cache, mr
}

func TestCache_HomeServedFromCache(t *testing.T) {
	cache, _ := newTestCache(t)
	backend := &fakeBackend{
		articlesFunc:   func(context.Context) ([]api.Article, error) { return sampleArticles(), nil },
		categoriesFunc: func(context.Context) ([]api.Category, error) { return sampleCategories(), nil },
	}
	svc := NewService(backend, loggedIn(), WithLogger(quietLogger()), WithCache(cache))

	for i := 0; i < 3; i++ {
		if _, err := svc.Home(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if n := backend.articleCalls.Load(); n != 1 {
		t.Errorf("Expected one backend call, got %d", n)
	}

	// publishing invalidates the list
	if _, err := svc.Write(context.Background(), WriteInput{Title: "t", Content: "c", CategoryID: "10"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Home(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := backend.articleCalls.Load(); n != 2 {
		t.Errorf("Expected refetch after write, got %d calls", n)
	}
}

func TestCache_Expiry(t *testing.T) {
	cache, mr := newTestCache(t)
	backend := &fakeBackend{articlesFunc: func(context.Context) ([]api.Article, error) { return sampleArticles(), nil }}
	svc := NewService(backend, loggedIn(), WithLogger(quietLogger()), WithCache(cache))

	_, _ = svc.Home(context.Background())
	mr.FastForward(2 * time.Minute)
	_, _ = svc.Home(context.Background())

	if n := backend.articleCalls.Load(); n != 2 {
		t.Errorf("Expected refetch after TTL, got %d calls", n)
	}
}

func TestCache_CorruptEntryDropped(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Set(articlesCacheKey, "{not json")

	backend := &fakeBackend{articlesFunc: func(context.Context) ([]api.Article, error) { return sampleArticles(), nil }}
	svc := NewService(backend, loggedIn(), WithLogger(quietLogger()), WithCache(cache))

	page, err := svc.Home(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Articles) != 4 {
		t.Errorf("Expected articles from backend, got %d", len(page.Articles))
	}
}

func TestNewCache_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	if c := NewCache(context.Background(), rdb, time.Minute, quietLogger()); c != nil {
		t.Error("Expected nil cache for unreachable redis")
	}
	if c := NewCache(context.Background(), nil, time.Minute, quietLogger()); c != nil {
		t.Error("Expected nil cache for nil client")
	}
}
