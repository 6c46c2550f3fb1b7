package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	BGGSessionCookie, LLMAPIKey, FirecrawlAPIKey, ProxyAPIKey = "", "", "", ""
	t.Cleanup(func() {
		viper.Reset()
		BGGSessionCookie, LLMAPIKey, FirecrawlAPIKey, ProxyAPIKey = "", "", "", ""
	})
}

func TestLoadDefaults(t *testing.T) {
	resetConfig(t)
	SetDefaults()

	s := Load()
	assert.Equal(t, 2.0, s.BGGRateLimit)
	assert.Equal(t, "https://r.jina.ai", s.ProxyBaseURL)
	assert.Equal(t, "./gameshelf.db", s.DatastoreFile)
	assert.Equal(t, 720*time.Hour, s.CacheTTL)
	assert.Equal(t, 15*time.Second, s.HTTPTimeout)
	assert.Equal(t, ":8080", s.ServerAddr)
	assert.False(t, s.BrowserEnabled)
}

func TestInitConfigPopulatesGlobals(t *testing.T) {
	resetConfig(t)
	viper.Set("bgg.session_cookie", "SessionID=abc")
	viper.Set("llm.api_key", "sk-test")

	InitConfig()

	assert.Equal(t, "SessionID=abc", BGGSessionCookie)
	assert.Equal(t, "sk-test", LLMAPIKey)
	assert.Equal(t, "sk-test", Load().LLMAPIKey)
}

func TestLoadGlobalsOverrideViper(t *testing.T) {
	resetConfig(t)
	viper.Set("firecrawl.api_key", "from-viper")
	FirecrawlAPIKey = "from-flag"

	assert.Equal(t, "from-flag", Load().FirecrawlAPIKey)
}

func TestLoadEnvironment(t *testing.T) {
	resetConfig(t)
	t.Setenv("GAMESHELF_LLM_MODEL", "llama3")
	t.Setenv("GAMESHELF_HTTP_TIMEOUT", "3s")
	SetDefaults()

	s := Load()
	assert.Equal(t, "llama3", s.LLMModel)
	assert.Equal(t, 3*time.Second, s.HTTPTimeout)
}

func TestLoadInvalidDurationsFallBack(t *testing.T) {
	resetConfig(t)
	viper.Set("cache.ttl", "forever")
	viper.Set("http.timeout", "-1s")
	viper.Set("bgg.rate_limit", 0)

	s := Load()
	assert.Equal(t, 720*time.Hour, s.CacheTTL)
	assert.Equal(t, 15*time.Second, s.HTTPTimeout)
	assert.Equal(t, 2.0, s.BGGRateLimit)
}
