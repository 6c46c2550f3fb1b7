package bgg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/ratelimit"
)

const defaultGalleryBaseURL = "https://api.geekdo.com/api/images"

// Gallery buckets, best first. Box art ranks last because the main image
// already is the box.
const (
	bucketGameplay = iota
	bucketComponent
	bucketCustom
	bucketMisc
	bucketOther
	bucketBoxArt
)

// GalleryImage is one entry of the geekdo image gallery response.
type GalleryImage struct {
	ImageID    string `json:"imageid"`
	ImageURL   string `json:"imageurl"`
	ImageURLLg string `json:"imageurl_lg"`
	Caption    string `json:"caption"`
	Href       string `json:"href"`
}

type galleryResponse struct {
	Images []GalleryImage `json:"images"`
}

// GalleryClient fetches supplementary images for a game.
type GalleryClient struct {
	baseURL     string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
	useCache    bool
}

// GalleryOption configures a GalleryClient.
type GalleryOption func(*GalleryClient)

// WithGalleryBaseURL sets a custom gallery endpoint.
func WithGalleryBaseURL(base string) GalleryOption {
	return func(c *GalleryClient) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithGalleryHTTPClient sets a custom HTTP client.
func WithGalleryHTTPClient(doer HTTPDoer) GalleryOption {
	return func(c *GalleryClient) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

// WithGalleryRateLimiter shares a rate limiter with the other BGG clients.
func WithGalleryRateLimiter(limiter *ratelimit.Limiter) GalleryOption {
	return func(c *GalleryClient) {
		c.rateLimiter = limiter
	}
}

// WithGalleryCache stores gallery results in the gallery_cache table.
func WithGalleryCache() GalleryOption {
	return func(c *GalleryClient) {
		c.useCache = true
	}
}

// NewGalleryClient creates a gallery client.
func NewGalleryClient(opts ...GalleryOption) *GalleryClient {
	c := &GalleryClient{
		baseURL:    defaultGalleryBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchImages returns up to five ranked image URLs for the game.
func (c *GalleryClient) FetchImages(ctx context.Context, id string) ([]string, error) {
	if !c.useCache {
		return c.fetchImages(ctx, id)
	}
	return cachedGallery(id, func() ([]string, error) {
		return c.fetchImages(ctx, id)
	})
}

func (c *GalleryClient) fetchImages(ctx context.Context, id string) ([]string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ajax", "1")
	params.Set("gallery", "all")
	params.Set("nosession", "1")
	params.Set("objectid", id)
	params.Set("objecttype", "thing")
	params.Set("pageid", "1")
	params.Set("showcount", "36")
	params.Set("size", "original")
	params.Set("sort", "hot")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bgg gallery: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload galleryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("bgg gallery: decode: %w", err)
	}

	return RankGallery(payload.Images), nil
}

// RankGallery orders gallery images by bucket, keeping gallery order within
// a bucket, and returns the URLs of the best five.
func RankGallery(images []GalleryImage) []string {
	type ranked struct {
		url    string
		bucket int
	}

	seen := make(map[string]bool)
	var candidates []ranked
	for _, img := range images {
		u := img.ImageURLLg
		if u == "" {
			u = img.ImageURL
		}
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		candidates = append(candidates, ranked{url: u, bucket: galleryBucket(img)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].bucket < candidates[j].bucket
	})

	urls := make([]string, 0, game.MaxAdditionalImages)
	for _, c := range candidates {
		if len(urls) == game.MaxAdditionalImages {
			break
		}
		urls = append(urls, c.url)
	}
	return urls
}

func galleryBucket(img GalleryImage) int {
	text := strings.ToLower(img.Caption + " " + img.Href)

	switch {
	case strings.Contains(text, "gameplay") || strings.Contains(text, "game play") ||
		strings.Contains(text, "in play") || strings.Contains(text, "in-play"):
		return bucketGameplay
	case strings.Contains(text, "component"):
		return bucketComponent
	case strings.Contains(text, "custom"):
		return bucketCustom
	case strings.Contains(text, "misc"):
		return bucketMisc
	case strings.Contains(text, "box") || strings.Contains(text, "cover"):
		return bucketBoxArt
	default:
		return bucketOther
	}
}
