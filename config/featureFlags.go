package config

import (
	"os"
	"strings"
)

// EnvBool reads a boolean toggle. "1", "true", "yes", "y" and "on" are true,
// "0", "false", "no", "n" and "off" are false, anything else is def.
func EnvBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// CandidateCacheEnabled turns on the shared redis cache of image search results.
//
// Set via env:
// - CANDIDATE_CACHE_ENABLED=true (default)
func CandidateCacheEnabled() bool {
	return EnvBool("CANDIDATE_CACHE_ENABLED", true)
}

// ExportEventsEnabled publishes a message for every finished zip export.
// Requires EXPORT_EVENTS_TOPIC.
func ExportEventsEnabled() bool {
	return EnvBool("EXPORT_EVENTS_ENABLED", false) && strings.TrimSpace(os.Getenv("EXPORT_EVENTS_TOPIC")) != ""
}

func RateLimitEnabled() bool {
	return EnvBool("RATE_LIMIT_ENABLED", false)
}

// ProxyEndpointEnabled exposes GET /proxy for browser clients that cannot
// reach the image search API directly.
func ProxyEndpointEnabled() bool {
	return EnvBool("PROXY_ENDPOINT_ENABLED", true)
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}
