package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"essence/internal/app"
	"essence/internal/config"
	"essence/internal/consul"
	"essence/internal/gateway"
	"essence/internal/logger"
	"essence/internal/server"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
)

const serviceName = "essence-gateway"

func main() {
	log := logger.New(serviceName)
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting Essence gateway",
		"port", cfg.Gateway.Port,
		"api_url", cfg.API.URL,
		"api_service", cfg.API.Service,
		"session_backend", cfg.Session.Backend,
	)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		slog.Error("Failed to start application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	checks := make(map[string]gateway.HealthCheck)
	for name, check := range a.HealthChecks() {
		checks[name] = check
	}

	router := gateway.SetupRouter(gateway.Deps{
		Sessions:       a.Session,
		Blog:           a.Blog,
		Observer:       a.Metrics,
		Metrics:        a.Metrics.Handler(),
		Logger:         log.With("component", "gateway"),
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
		Checks:         checks,
	})

	srv := server.New(server.Config{
		Port:         cfg.Gateway.Port,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
		IdleTimeout:  cfg.Gateway.IdleTimeout,
	}, router)

	deregister := register(cfg, a)
	err = server.ListenAndRun(ctx, srv, cfg.Gateway.ShutdownTimeout, log)
	deregister()
	if err != nil {
		slog.Error("Gateway stopped with error", "error", err)
		a.Close()
		os.Exit(1)
	}

	slog.Info("Gateway stopped")
}

// register announces the gateway in Consul when CONSUL_REGISTER is set and
// returns the matching cleanup
func register(cfg *config.Config, a *app.App) func() {
	noop := func() {}
	if !cfg.Gateway.Register {
		return noop
	}

	client := a.Consul
	if client == nil {
		c, err := consul.NewClient(cfg.Consul.Addr, cfg.Consul.Token)
		if err != nil {
			slog.Warn("Consul unavailable, gateway not registered", "error", err)
			return noop
		}
		client = c
	}

	port, err := strconv.Atoi(cfg.Gateway.Port)
	if err != nil {
		slog.Warn("Gateway port is not numeric, gateway not registered", "port", cfg.Gateway.Port)
		return noop
	}

	id := fmt.Sprintf("%s-%s-%d", serviceName, cfg.Gateway.AdvertiseAddr, port)
	err = client.Register(&consul.ServiceConfig{
		ID:      id,
		Name:    serviceName,
		Address: cfg.Gateway.AdvertiseAddr,
		Port:    port,
		Tags:    []string{"http", "gateway"},
		Check: &consul.HealthCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", cfg.Gateway.AdvertiseAddr, port),
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "1m",
		},
	})
	if err != nil {
		slog.Warn("Failed to register gateway in Consul", "error", err)
		return noop
	}
	slog.Info("Registered gateway in Consul", "service_id", id)

	return func() {
		if err := client.Deregister(id); err != nil {
			slog.Warn("Failed to deregister gateway", "error", err)
		}
	}
}
