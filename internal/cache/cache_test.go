package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/gameshelf/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

const testTable = "gallery_cache"

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()

	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)

	cache, err := NewCacheDB(env.Path("test_cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	for _, schema := range AllCacheSchemas {
		require.NoError(t, cache.CreateTable(schema))
	}

	viper.Set("cache.ttl", "1h")
	return cache
}

func withGlobalCache(t *testing.T, cache *CacheDB) {
	t.Helper()

	oldCache := globalCache
	globalCache = cache
	globalCacheOnce = sync.Once{}
	globalCacheOnce.Do(func() {})

	t.Cleanup(func() {
		globalCache = oldCache
		globalCacheOnce = sync.Once{}
	})
}

// advance moves the cache clock forward by d.
func advance(cache *CacheDB, d time.Duration) {
	base := cache.now()
	cache.now = func() time.Time { return base.Add(d) }
}

func TestSetAndGet(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.Set(testTable, "13", `{"id":13}`, time.Hour))

	data, found, err := cache.Get(testTable, "13")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":13}`, data)

	_, found, err = cache.Get(testTable, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetExpired(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.Set(testTable, "13", "{}", time.Hour))
	assert.True(t, cache.exists(testTable, "13"))

	advance(cache, 2*time.Hour)
	assert.False(t, cache.exists(testTable, "13"))
}

func TestPerEntryTTL(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.Set(testTable, "short", "{}", time.Hour))
	require.NoError(t, cache.Set(testTable, "long", "{}", 48*time.Hour))

	advance(cache, 24*time.Hour)
	assert.False(t, cache.exists(testTable, "short"))
	assert.True(t, cache.exists(testTable, "long"))
}

func TestInvalidTableName(t *testing.T) {
	cache := setupTestCache(t)

	_, _, err := cache.Get("users; DROP TABLE games", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cache table name")

	require.Error(t, cache.Set("nope", "k", "{}", time.Hour))
	_, err = cache.InvalidateSource("nope")
	require.Error(t, err)
	_, err = cache.ClearExpired("nope")
	require.Error(t, err)
}

func TestInvalidateSource(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.Set("enrichment_cache", "a", "{}", time.Hour))
	require.NoError(t, cache.Set("enrichment_cache", "b", "{}", time.Hour))
	require.NoError(t, cache.Set(testTable, "c", "{}", time.Hour))

	rows, err := cache.InvalidateSource("enrichment_cache")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.True(t, cache.exists(testTable, "c"))
}

func TestClearExpired(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.Set(testTable, "old", "{}", time.Hour))
	require.NoError(t, cache.Set(testTable, "fresh", "{}", 72*time.Hour))
	advance(cache, 2*time.Hour)

	rows, err := cache.ClearExpired(testTable)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.True(t, cache.exists(testTable, "fresh"))
}

func TestGetOrFetch(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	calls := 0
	fetch := func() (TestData, error) {
		calls++
		return TestData{ID: 1, Name: "Catan"}, nil
	}

	got, fromCache, err := getOrFetch(testTable, "k", fetch, nil, nil)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "Catan", got.Name)

	got, fromCache, err = getOrFetch(testTable, "k", fetch, nil, nil)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 1, got.ID)
	assert.Equal(t, 1, calls)
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	_, _, err := getOrFetch(testTable, "k", func() (TestData, error) {
		return TestData{}, errors.New("upstream down")
	}, nil, nil)
	require.Error(t, err)
	assert.False(t, cache.exists(testTable, "k"))
}

func TestGetOrFetchWithPolicy(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	skipEmpty := func(d TestData) bool { return d.Name != "" }

	_, _, err := GetOrFetchWithPolicy(testTable, "empty", func() (TestData, error) {
		return TestData{ID: 2}, nil
	}, skipEmpty)
	require.NoError(t, err)
	assert.False(t, cache.exists(testTable, "empty"))

	_, _, err = GetOrFetchWithPolicy(testTable, "full", func() (TestData, error) {
		return TestData{ID: 3, Name: "Azul"}, nil
	}, skipEmpty)
	require.NoError(t, err)
	assert.True(t, cache.exists(testTable, "full"))
}

func TestGetOrFetchWithTTLNegative(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	selector := SelectNegativeCacheTTL(func(d TestData) bool { return d.Name == "" })

	_, _, err := GetOrFetchWithTTL(testTable, "none", func() (TestData, error) { return TestData{}, nil }, selector)
	require.NoError(t, err)
	_, _, err = GetOrFetchWithTTL(testTable, "some", func() (TestData, error) { return TestData{Name: "x"}, nil }, selector)
	require.NoError(t, err)

	advance(cache, NegativeCacheTTL+time.Hour)
	assert.False(t, cache.exists(testTable, "none"))
	assert.True(t, cache.exists(testTable, "some"))
}

func TestConfiguredTTL(t *testing.T) {
	testutil.ResetConfig(t)

	assert.Equal(t, DefaultCacheTTL, ConfiguredTTL())
	viper.Set("cache.ttl", "2h")
	assert.Equal(t, 2*time.Hour, ConfiguredTTL())
	viper.Set("cache.ttl", "bogus")
	assert.Equal(t, DefaultCacheTTL, ConfiguredTTL())
}

func TestGetGlobalCacheUsesConfiguredPath(t *testing.T) {
	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	testutil.SetupTestCache(t, env)

	require.NoError(t, ResetGlobalCache())
	t.Cleanup(func() { _ = ResetGlobalCache() })

	c, err := GetGlobalCache()
	require.NoError(t, err)
	require.NoError(t, c.Set("enrichment_cache", "k", "{}", time.Hour))
	assert.True(t, env.FileExists("cache.db"))
}

func TestInvalidateCacheCmd(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	require.NoError(t, cache.Set("gallery_cache", "13", "{}", time.Hour))

	require.NoError(t, (&InvalidateCacheCmd{Source: "gallery"}).Run())
	assert.False(t, cache.exists("gallery_cache", "13"))

	err := (&InvalidateCacheCmd{Source: "tmdb"}).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrichment, gallery")
}

func TestClearExpiredCmd(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	require.NoError(t, cache.Set("enrichment_cache", "a", "{}", time.Minute))
	advance(cache, time.Hour)

	require.NoError(t, (&ClearExpiredCmd{}).Run())
	_, found, err := cache.Get("enrichment_cache", "a")
	require.NoError(t, err)
	assert.False(t, found)
}
