package bgg

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	gserrors "github.com/lepinkainen/gameshelf/internal/errors"
)

// Messages returned to the caller for URLs this importer cannot handle.
const (
	MsgInvalidURL    = "Invalid URL. Please provide a full http(s) link to a game page."
	MsgCollectionURL = "This looks like a BoardGameGeek collection or profile link. " +
		"Use the collection import to add a whole collection; this importer handles one game at a time."
)

var (
	thingPath      = regexp.MustCompile(`^/(?:boardgame|boardgameexpansion|boardgameaccessory|thing)/(\d+)(?:/([^/?#]+))?`)
	collectionPath = regexp.MustCompile(`^/(?:collection|user|profile|geeklist)(?:/|$)`)
)

// Target describes the page an import was requested for.
type Target struct {
	URL string
	// ID is the BGG thing id, empty for non-BGG pages
	ID string
	// Slug is the name fragment from a BGG game URL, if present
	Slug string
}

// IsBGG reports whether the target points at a BoardGameGeek game page.
func (t Target) IsBGG() bool {
	return t.ID != ""
}

// CanonicalURL returns the canonical BGG game page URL, or the requested
// URL for non-BGG targets.
func (t Target) CanonicalURL() string {
	if !t.IsBGG() {
		return t.URL
	}
	return GamePageURL(t.ID)
}

// GamePageURL returns the canonical game page URL for a BGG id.
func GamePageURL(id string) string {
	return "https://boardgamegeek.com/boardgame/" + id
}

// ParseURL validates rawURL and extracts the BGG id when it points at a
// single BGG game. Collection and profile links are rejected.
func ParseURL(rawURL string) (Target, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return Target{}, gserrors.NewValidationError(MsgInvalidURL)
	}

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Target{}, gserrors.NewValidationError(MsgInvalidURL)
	}

	target := Target{URL: trimmed}
	if !IsBGGHost(u.Hostname()) {
		return target, nil
	}

	if collectionPath.MatchString(u.Path) {
		return Target{}, gserrors.NewValidationError(MsgCollectionURL)
	}

	if m := thingPath.FindStringSubmatch(u.Path); m != nil {
		target.ID = m[1]
		target.Slug = m[2]
	}

	return target, nil
}

// IsBGGHost reports whether host belongs to BoardGameGeek.
func IsBGGHost(host string) bool {
	host = strings.ToLower(host)
	return host == "boardgamegeek.com" || strings.HasSuffix(host, ".boardgamegeek.com")
}

// TitleFromSlug turns a URL name fragment such as "ticket-to-ride" into a
// display title. It is the last resort when no source returns a title.
func TitleFromSlug(slug string) string {
	slug, _ = url.PathUnescape(slug)
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
