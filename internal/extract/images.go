package extract

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/gameshelf/internal/bgg"
)

const (
	rankBoxArt = iota
	rankFullSize
	rankOriginal
	rankNumeric
	rankOther
)

var (
	excludedImage = regexp.MustCompile(`(?i)(thumb|avatar|__micro|__square|__small|__mt|_mt\.|_t\.|_sq\.|favicon|sprite|/icons?/|logo|spacer|pixel\.gif|\.svg($|\?))`)
	boxArtImage   = regexp.MustCompile(`(?i)(box[-_ ]?art|box[-_]?front|box[-_]?cover|__itemrep|__imagepage/)`)
	fullSizeImage = regexp.MustCompile(`(?i)(__imagepagezoom|__large|_lg\.|/large/|/full/|fit-in/\d{3,4}x\d{3,4})`)
	originalImage = regexp.MustCompile(`(?i)(__original|/original/|_original\.)`)
	numericImage  = regexp.MustCompile(`/pic\d+\.`)
)

// RankImages collects candidate image URLs from html, resolves them against
// base and orders them box art first. Thumbnails and avatars are dropped.
func RankImages(html, base string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	baseURL, _ := url.Parse(base)

	var candidates []string
	doc.Find(`meta[property="og:image"], meta[name="twitter:image"]`).Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, s.AttrOr("content", ""))
	})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, s.AttrOr("src", ""), s.AttrOr("data-src", ""))
		for _, part := range strings.Split(s.AttrOr("srcset", ""), ",") {
			if fields := strings.Fields(part); len(fields) > 0 {
				candidates = append(candidates, fields[0])
			}
		}
	})

	type ranked struct {
		url  string
		rank int
	}
	seen := make(map[string]bool)
	var images []ranked
	for _, c := range candidates {
		abs := resolveImage(baseURL, c)
		if abs == "" || seen[abs] || excludedImage.MatchString(abs) || bgg.IsSocialCardImage(abs) {
			continue
		}
		seen[abs] = true
		images = append(images, ranked{url: abs, rank: imageRank(abs)})
	}

	sort.SliceStable(images, func(i, j int) bool { return images[i].rank < images[j].rank })

	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.url
	}
	return out
}

func imageRank(u string) int {
	switch {
	case boxArtImage.MatchString(u):
		return rankBoxArt
	case fullSizeImage.MatchString(u):
		return rankFullSize
	case originalImage.MatchString(u):
		return rankOriginal
	case numericImage.MatchString(u):
		return rankNumeric
	default:
		return rankOther
	}
}

func resolveImage(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
