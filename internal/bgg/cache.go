package bgg

import (
	"github.com/lepinkainen/gameshelf/internal/cache"
)

// CachedGallery is the gallery_cache payload. Empty galleries are cached
// with the shorter negative TTL.
type CachedGallery struct {
	Images []string `json:"images"`
}

func cachedGallery(id string, fetch func() ([]string, error)) ([]string, error) {
	result, _, err := cache.GetOrFetchWithTTL("gallery_cache", id, func() (*CachedGallery, error) {
		images, err := fetch()
		if err != nil {
			return nil, err
		}
		return &CachedGallery{Images: images}, nil
	}, cache.SelectNegativeCacheTTL(func(r *CachedGallery) bool {
		return len(r.Images) == 0
	}))
	if err != nil {
		return nil, err
	}
	return result.Images, nil
}
