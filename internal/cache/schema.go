package cache

// SQL schemas for cache tables.
// All cache tables use "cache_key" as the primary key and store Unix-second
// timestamps, so each row carries its own expiry.

// EnrichmentCacheSchema caches LLM-enriched descriptions keyed by a hash of
// title and raw description
const EnrichmentCacheSchema = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_enrichment_expires_at ON enrichment_cache(expires_at);
`

// GalleryCacheSchema caches ranked BGG gallery images keyed by BGG id
const GalleryCacheSchema = `
CREATE TABLE IF NOT EXISTS gallery_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_gallery_expires_at ON gallery_cache(expires_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	EnrichmentCacheSchema,
	GalleryCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	"enrichment_cache": true,
	"gallery_cache":    true,
}

// Sources maps the user-facing source names to cache tables.
var Sources = map[string]string{
	"enrichment": "enrichment_cache",
	"gallery":    "gallery_cache",
}
