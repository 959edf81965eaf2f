package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort            = "8080"
	DefaultCarsXEEndpoint  = "https://api.carsxe.com/images"
	DefaultMaxImageWidth   = 430
	DefaultProxyAllowHosts = "api.carsxe.com"
)

// Settings is the process configuration, read once from the environment.
type Settings struct {
	Port               string
	CorsAllowedOrigins []string

	// ProxyURL routes remote CSV and image search requests. The CSV is
	// fetched from ProxyURL+CSVURL, searches from ProxyURL?url=<target>.
	ProxyURL string
	CSVURL   string

	CarsXEKey         string
	CarsXEEndpoint    string
	CarsXERatePerMin  int
	CandidateCacheTTL time.Duration
	HTTPClientTimeout time.Duration
	BackendBaseURL    string
	PlaceholderImage  string
	ImageProxyURL     string
	MaxImageWidth     int
	SessionTTL        time.Duration
	ExportStorage     string
	ExportURLExpiry   time.Duration
	ProxyAllowedHosts []string
	RateLimitRequests int64
	RateLimitWindow   time.Duration
	ExportEventsTopic string
	CreateEventsTopic bool
}

func init() {
	// Load env from .env
	godotenv.Load()
}

func Load() Settings {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = DefaultPort
	}
	return Settings{
		Port:               port,
		CorsAllowedOrigins: SplitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		ProxyURL:           strings.TrimSpace(os.Getenv("PROXY_URL")),
		CSVURL:             strings.TrimSpace(os.Getenv("CSV_URL")),
		CarsXEKey:          strings.TrimSpace(os.Getenv("CARSXE_KEY")),
		CarsXEEndpoint:     envString("CARSXE_ENDPOINT", DefaultCarsXEEndpoint),
		CarsXERatePerMin:   int(envInt("CARSXE_RATE_LIMIT_PER_MIN", 60)),
		CandidateCacheTTL:  time.Duration(envInt("CANDIDATE_CACHE_HOURS", 24)) * time.Hour,
		HTTPClientTimeout:  time.Duration(envInt("HTTP_CLIENT_TIMEOUT_SECONDS", 30)) * time.Second,
		BackendBaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_BASE_URL")), "/"),
		PlaceholderImage:   strings.TrimSpace(os.Getenv("PLACEHOLDER_IMAGE_PATH")),
		ImageProxyURL:      strings.TrimSpace(os.Getenv("IMAGE_PROXY_URL")),
		MaxImageWidth:      int(envInt("MAX_IMAGE_WIDTH", DefaultMaxImageWidth)),
		SessionTTL:         time.Duration(envInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
		ExportStorage:      strings.ToLower(envString("EXPORT_STORAGE", "memory")),
		ExportURLExpiry:    time.Duration(envInt("EXPORT_URL_EXPIRY_MINUTES", 15)) * time.Minute,
		ProxyAllowedHosts:  SplitAndTrim(envString("PROXY_ALLOWED_HOSTS", DefaultProxyAllowHosts)),
		RateLimitRequests:  envInt("RATE_LIMIT_MAX_REQUESTS", 600),
		RateLimitWindow:    time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		ExportEventsTopic:  strings.TrimSpace(os.Getenv("EXPORT_EVENTS_TOPIC")),
		CreateEventsTopic:  EnvBool("EXPORT_EVENTS_CREATE_TOPIC", false),
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns def for missing, malformed or non-positive values.
func envInt(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
