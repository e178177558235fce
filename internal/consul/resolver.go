package consul

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// BackendResolver yields the base URL of a healthy backend instance for each
// request. It satisfies api.Resolver.
type BackendResolver struct {
	discovery ServiceDiscovery
	service   string
	scheme    string
	path      string
	fallback  string
	logger    *slog.Logger
}

// NewBackendResolver resolves service through discovery. path is appended
// to the instance address (the backend serves under "/def"). When discovery
// fails and fallback is non-empty, fallback is used instead.
func NewBackendResolver(discovery ServiceDiscovery, service, path, fallback string, logger *slog.Logger) *BackendResolver {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &BackendResolver{
		discovery: discovery,
		service:   service,
		scheme:    "http",
		path:      strings.TrimRight(path, "/"),
		fallback:  strings.TrimRight(fallback, "/"),
		logger:    logger,
	}
}

// BaseURL picks an instance and returns its URL
func (r *BackendResolver) BaseURL(ctx context.Context) (string, error) {
	instance, err := r.discovery.DiscoverOne(ctx, r.service)
	if err != nil {
		if r.fallback != "" {
			r.logger.Warn("Backend discovery failed, using fallback URL",
				"service", r.service,
				"fallback", r.fallback,
				"error", err,
			)
			return r.fallback, nil
		}
		return "", err
	}

	scheme := r.scheme
	for _, tag := range instance.Tags {
		if tag == "https" {
			scheme = "https"
		}
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, instance.Address, instance.Port, r.path), nil
}
