package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern; "*" matches one segment, a trailing "/" matches a prefix
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// NewConfig builds the limiter configuration from the rate-limit config section.
func NewConfig(cfg config.RateLimitConfig) *Config {
	if !cfg.Enabled {
		return &Config{
			Enabled: false,
		}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    cfg.DefaultLimit,
		DefaultWindow:   cfg.DefaultWindow,
		CleanupInterval: cfg.CleanupInterval,
		Whitelist:       toSet(cfg.Whitelist),
		Blacklist:       toSet(cfg.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	expensive := func(path string) EndpointConfig {
		return EndpointConfig{Path: path, Method: http.MethodPost, Limit: 30, Window: time.Hour, Burst: 5}
	}
	write := func(method string) EndpointConfig {
		return EndpointConfig{Path: "/api/", Method: method, Limit: 100, Window: time.Minute, Burst: 10}
	}

	return []EndpointConfig{
		// Tier 1: scoring runs (strictest limits)
		expensive("/api/matches/calculate"),
		expensive("/api/matches/job/*/calculate-all"),

		// Tier 2: write operations
		write(http.MethodPost),
		write(http.MethodPatch),
		write(http.MethodDelete),

		// Tier 3: Read operations (more lenient) - handled by default limit
		// Tier 4: Health check (unlimited) - handled by special case in matcher
	}
}

// toSet turns a list of client identifiers into a lookup set.
func toSet(list []string) map[string]bool {
	result := make(map[string]bool, len(list))
	for _, ip := range list {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}
	return result
}
