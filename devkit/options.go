package devkit

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultCacheExpireAfter = time.Minute
	DefaultCacheMaxEntries  = 10_000
)

// Options configures a Resolver. Only APIKey is required, and only when
// Backend is nil.
type Options struct {
	// APIKey is sent as a bearer token on every request.
	APIKey string
	// BaseURL of the DevKit service. Default DefaultBaseURL.
	BaseURL string
	// Timeout bounds each request. Default DefaultTimeout.
	Timeout time.Duration

	// EnableCache turns the TTL cache on or off. nil means on.
	EnableCache *bool
	// CacheExpireAfter is the TTL shared by all entries. Default one minute.
	CacheExpireAfter time.Duration
	// CacheMaxEntries caps the cache. Default DefaultCacheMaxEntries; negative
	// means unbounded.
	CacheMaxEntries int

	// EncryptionKey is the Base64 256-bit key. It wins over KeySource and
	// over the DEVKIT_ENCRYPTION_KEY environment variable.
	EncryptionKey string
	// KeySource is consulted once at construction when EncryptionKey is empty.
	KeySource KeySource

	// Backend replaces the REST API backend, e.g. with a GormStore.
	Backend Backend
	// HTTPClient is used by the default REST backend.
	HTTPClient *http.Client

	Logger        *slog.Logger
	MeterProvider metric.MeterProvider

	// now overrides the cache clock in tests.
	now func() time.Time
}

// Bool returns a pointer to b, for Options.EnableCache.
func Bool(b bool) *bool { return &b }

func (o Options) cacheEnabled() bool {
	return o.EnableCache == nil || *o.EnableCache
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.CacheExpireAfter <= 0 {
		o.CacheExpireAfter = DefaultCacheExpireAfter
	}
	if o.CacheMaxEntries == 0 {
		o.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.now == nil {
		o.now = time.Now
	}
}

// OptionsFromEnv reads Options from DEVKIT_* environment variables, after
// loading the nearest .env file found from the working directory upward.
// The encryption key is left empty here: New falls back to
// DEVKIT_ENCRYPTION_KEY by itself.
func OptionsFromEnv() Options {
	loadDotEnv()
	return Options{
		APIKey:           env.GetString("DEVKIT_API_KEY", ""),
		BaseURL:          env.GetString("DEVKIT_BASE_URL", DefaultBaseURL),
		Timeout:          env.GetDuration("DEVKIT_TIMEOUT_MS", 10_000, time.Millisecond),
		EnableCache:      Bool(env.GetBool("DEVKIT_CACHE_ENABLED", true)),
		CacheExpireAfter: env.GetDuration("DEVKIT_CACHE_TTL_MS", 60_000, time.Millisecond),
		CacheMaxEntries:  env.GetInt("DEVKIT_CACHE_MAX_ENTRIES", DefaultCacheMaxEntries),
	}
}

func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
