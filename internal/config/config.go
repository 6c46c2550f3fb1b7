package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// BGGSessionCookie is sent on the retry after BGG answers 401/403
	BGGSessionCookie string
	// LLMAPIKey enables description enrichment and AI extraction when set
	LLMAPIKey string
	// FirecrawlAPIKey is the API key for the page-rendering service
	FirecrawlAPIKey string
	// ProxyAPIKey is the API key for the text-extraction proxy
	ProxyAPIKey string
)

// Settings is a typed snapshot of the resolved configuration, used when
// wiring clients.
type Settings struct {
	BGGSessionCookie string
	BGGAPIToken      string
	BGGRateLimit     float64

	ProxyBaseURL string
	ProxyAPIKey  string

	FirecrawlBaseURL string
	FirecrawlAPIKey  string
	BrowserEnabled   bool

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	WebhookURL   string
	WebhookToken string
	NotifyURLs   []string

	DatastoreFile string
	CacheFile     string
	CacheTTL      time.Duration

	ServerAddr   string
	RefreshToken string
	HTTPTimeout  time.Duration
}

// SetDefaults registers default values and environment lookup.
func SetDefaults() {
	viper.SetDefault("bgg.rate_limit", 2.0)
	viper.SetDefault("proxy.base_url", "https://r.jina.ai")
	viper.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev")
	viper.SetDefault("browser.enabled", false)
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("datastore.dbfile", "./gameshelf.db")
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("http.timeout", "15s")

	viper.SetEnvPrefix("GAMESHELF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// InitConfig initializes the global configuration
func InitConfig() {
	BGGSessionCookie = viper.GetString("bgg.session_cookie")
	LLMAPIKey = viper.GetString("llm.api_key")
	FirecrawlAPIKey = viper.GetString("firecrawl.api_key")
	ProxyAPIKey = viper.GetString("proxy.api_key")
}

// Load returns the current configuration. Globals set by InitConfig or by
// tests take precedence over viper for the secrets they cover.
func Load() Settings {
	s := Settings{
		BGGSessionCookie: firstNonEmpty(BGGSessionCookie, viper.GetString("bgg.session_cookie")),
		BGGAPIToken:      viper.GetString("bgg.api_token"),
		BGGRateLimit:     viper.GetFloat64("bgg.rate_limit"),
		ProxyBaseURL:     viper.GetString("proxy.base_url"),
		ProxyAPIKey:      firstNonEmpty(ProxyAPIKey, viper.GetString("proxy.api_key")),
		FirecrawlBaseURL: viper.GetString("firecrawl.base_url"),
		FirecrawlAPIKey:  firstNonEmpty(FirecrawlAPIKey, viper.GetString("firecrawl.api_key")),
		BrowserEnabled:   viper.GetBool("browser.enabled"),
		LLMBaseURL:       viper.GetString("llm.base_url"),
		LLMAPIKey:        firstNonEmpty(LLMAPIKey, viper.GetString("llm.api_key")),
		LLMModel:         viper.GetString("llm.model"),
		WebhookURL:       viper.GetString("notify.webhook_url"),
		WebhookToken:     viper.GetString("notify.webhook_token"),
		NotifyURLs:       viper.GetStringSlice("notify.urls"),
		DatastoreFile:    viper.GetString("datastore.dbfile"),
		CacheFile:        viper.GetString("cache.dbfile"),
		CacheTTL:         parseDuration(viper.GetString("cache.ttl"), 720*time.Hour),
		ServerAddr:       viper.GetString("server.addr"),
		RefreshToken:     viper.GetString("server.refresh_token"),
		HTTPTimeout:      parseDuration(viper.GetString("http.timeout"), 15*time.Second),
	}
	if s.BGGRateLimit <= 0 {
		s.BGGRateLimit = 2
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
