package testutil

import (
	"testing"

	"github.com/lepinkainen/gameshelf/internal/config"
	"github.com/spf13/viper"
)

// ConfigState holds the state of the config package variables.
type ConfigState struct {
	BGGSessionCookie string
	LLMAPIKey        string
	FirecrawlAPIKey  string
	ProxyAPIKey      string
}

// SaveConfigState captures the current state of config package variables.
func SaveConfigState() ConfigState {
	return ConfigState{
		BGGSessionCookie: config.BGGSessionCookie,
		LLMAPIKey:        config.LLMAPIKey,
		FirecrawlAPIKey:  config.FirecrawlAPIKey,
		ProxyAPIKey:      config.ProxyAPIKey,
	}
}

// RestoreConfigState restores the config package variables to a saved state.
func RestoreConfigState(state ConfigState) {
	config.BGGSessionCookie = state.BGGSessionCookie
	config.LLMAPIKey = state.LLMAPIKey
	config.FirecrawlAPIKey = state.FirecrawlAPIKey
	config.ProxyAPIKey = state.ProxyAPIKey
}

// ResetConfig clears viper and the config globals, restoring both when the
// test completes. No credentials are left configured, so nothing reaches
// a real upstream.
func ResetConfig(t *testing.T) {
	t.Helper()

	state := SaveConfigState()
	viper.Reset()
	RestoreConfigState(ConfigState{})

	t.Cleanup(func() {
		RestoreConfigState(state)
		viper.Reset()
	})
}

// SetViperValue sets a viper configuration value and schedules cleanup.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)
	viper.Set(key, value)

	t.Cleanup(func() {
		// viper has no Unset, so an unset key is restored as nil
		if hadValue {
			viper.Set(key, oldValue)
		} else {
			viper.Set(key, nil)
		}
	})
}

// SetupTestCache points the persistent cache at a file inside env.
func SetupTestCache(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("cache.db")
	SetViperValue(t, "cache.dbfile", dbPath)
	SetViperValue(t, "cache.ttl", "24h")
	return dbPath
}

// SetupTestDatastore points the datastore at a file inside env.
func SetupTestDatastore(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("gameshelf.db")
	SetViperValue(t, "datastore.dbfile", dbPath)
	return dbPath
}
