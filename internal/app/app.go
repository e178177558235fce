// Package app wires the session, the backend client and the blog service
// from configuration. Both the gateway and the CLI start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"essence/internal/api"
	"essence/internal/blog"
	"essence/internal/config"
	"essence/internal/consul"
	"essence/internal/kafka"
	"essence/internal/metrics"
	"essence/internal/session"
	"essence/internal/storage"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Session  *session.Manager
	Client   *api.Client
	Blog     *blog.Service
	Metrics  *metrics.Metrics
	Consul   *consul.Client
	Avatars  *storage.Avatars
	Registry *prometheus.Registry

	store   session.Store
	closers []func()
}

// Option overrides a component, mostly for tests
type Option func(*options)

type options struct {
	store      session.Store
	kafkaSinks bool
}

// WithStore uses store instead of the configured backend
func WithStore(store session.Store) Option {
	return func(o *options) { o.store = store }
}

// WithoutKafka skips the Kafka sink even when KAFKA_BROKERS is set
func WithoutKafka() Option {
	return func(o *options) { o.kafkaSinks = false }
}

// New builds the application and restores the persisted session. A storage
// read failure at startup leaves the session anonymous and is logged, not
// returned; the application keeps running.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{kafkaSinks: true}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	store := o.store
	if store == nil {
		var err error
		if store, err = openStore(ctx, cfg); err != nil {
			return nil, err
		}
	}
	a.store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	resolver, err := a.resolver(cfg)
	if err != nil {
		return nil, err
	}
	client := api.NewClient(resolver,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger.With("component", "api")),
	)

	sinks := []session.EventSink{a.Metrics}
	if o.kafkaSinks {
		if sink := a.kafkaSink(logger); sink != nil {
			sinks = append(sinks, sink)
		}
	}

	a.Session = session.NewManager(store, client,
		session.WithLogger(logger.With("component", "session")),
		session.WithProfile(cfg.Session.Profile),
		session.WithTTL(cfg.Session.TTL),
		session.WithLoginTimeout(cfg.Session.LoginTimeout),
		session.WithSinks(sinks...),
	)
	a.Client = client.WithTokens(a.Session)

	blogOpts := []blog.Option{
		blog.WithLogger(logger.With("component", "blog")),
		blog.WithRollbackHook(a.Metrics.Rollback),
	}
	if cfg.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if cache := blog.NewCache(ctx, rdb, cfg.Cache.TTL, logger); cache != nil {
			blogOpts = append(blogOpts, blog.WithCache(cache))
		}
	}
	if cfg.S3.Endpoint != "" {
		avatars, err := storage.New(ctx, storage.Config{
			Endpoint:       cfg.S3.Endpoint,
			PublicEndpoint: cfg.S3.PublicEndpoint,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			UseSSL:         cfg.S3.UseSSL,
		}, logger.With("component", "storage"))
		if err != nil {
			return nil, fmt.Errorf("avatar storage: %w", err)
		}
		a.Avatars = avatars
		blogOpts = append(blogOpts, blog.WithAvatars(avatars))
	}
	a.Blog = blog.NewService(a.Client, a.Session, blogOpts...)

	if err := a.Session.Initialize(ctx); err != nil {
		logger.Warn("Session storage unavailable at startup, continuing anonymous", "error", err)
	}

	ok = true
	return a, nil
}

// HealthChecks lists the dependencies worth probing from a health endpoint
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"session_store": a.store.Ping,
	}
	if a.Avatars != nil {
		checks["storage"] = a.Avatars.Health
	}
	return checks
}

// Close releases every resource in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) resolver(cfg *config.Config) (api.Resolver, error) {
	if cfg.API.Service == "" {
		return api.StaticURL(cfg.API.URL), nil
	}
	c, err := consul.NewClient(cfg.Consul.Addr, cfg.Consul.Token)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	a.Consul = c
	return consul.NewBackendResolver(c, cfg.API.Service, "/def", cfg.API.URL,
		a.Logger.With("component", "consul")), nil
}

func (a *App) kafkaSink(logger *slog.Logger) session.EventSink {
	kcfg, err := kafka.LoadConfig()
	if errors.Is(err, kafka.ErrDisabled) {
		return nil
	}
	if err != nil {
		logger.Warn("Invalid Kafka configuration, session events not published", "error", err)
		return nil
	}
	producer, err := kafka.NewProducer(kcfg, logger.With("component", "kafka"))
	if err != nil {
		logger.Warn("Kafka producer unavailable, session events not published", "error", err)
		return nil
	}
	a.closers = append(a.closers, producer.Close)
	return kafka.NewSessionSink(producer, kcfg.SessionEventsTopic, logger)
}

func openStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemoryStore(), nil
	case config.BackendRedis:
		return session.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), nil
	case config.BackendPostgres:
		return session.NewPostgresStore(ctx, cfg.Postgres.DSN)
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.Session.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create session directory: %w", err)
			}
		}
		return session.NewSQLiteStore(cfg.Session.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
