// Package game holds the intermediate game record produced by the import
// sources before it is persisted.
package game

import (
	"regexp"
	"strings"

	"github.com/lepinkainen/gameshelf/internal/normalize"
)

// MaxAdditionalImages is the number of supplementary images kept per game.
const MaxAdditionalImages = 5

// Defaults applied to partially fetched records.
const (
	DefaultDifficulty   = normalize.DifficultyMedium
	DefaultPlayTime     = normalize.PlayTime45To60
	DefaultMinPlayers   = 1
	DefaultMaxPlayers   = 4
	DefaultSuggestedAge = "10+"
	DefaultGameType     = normalize.GameTypeBoard
)

// Fields ApplyDefaults can fill.
const (
	FieldDifficulty   = "difficulty"
	FieldPlayTime     = "play_time"
	FieldGameType     = "game_type"
	FieldMinPlayers   = "min_players"
	FieldMaxPlayers   = "max_players"
	FieldSuggestedAge = "suggested_age"
)

// Record is the merged view of a game assembled from one or more sources.
type Record struct {
	ExternalID       string   `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	SourceURL        string   `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Title            string   `json:"title" yaml:"title"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`
	ImageURL         string   `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	AdditionalImages []string `json:"additional_images,omitempty" yaml:"additional_images,omitempty"`
	MinPlayers       *int     `json:"min_players,omitempty" yaml:"min_players,omitempty"`
	MaxPlayers       *int     `json:"max_players,omitempty" yaml:"max_players,omitempty"`
	SuggestedAge     string   `json:"suggested_age,omitempty" yaml:"suggested_age,omitempty"`
	PlayTime         string   `json:"play_time,omitempty" yaml:"play_time,omitempty"`
	Difficulty       string   `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	GameType         string   `json:"game_type,omitempty" yaml:"game_type,omitempty"`
	Mechanics        []string `json:"mechanics,omitempty" yaml:"mechanics,omitempty"`
	Designers        []string `json:"designers,omitempty" yaml:"designers,omitempty"`
	Artists          []string `json:"artists,omitempty" yaml:"artists,omitempty"`
	Publisher        string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	IsExpansion      bool     `json:"is_expansion" yaml:"is_expansion"`
	BaseGameTitle    string   `json:"base_game_title,omitempty" yaml:"base_game_title,omitempty"`
	CommunityRating  *float64 `json:"community_rating,omitempty" yaml:"community_rating,omitempty"`

	// Source names the step that produced the record
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Defaulted holds the fields ApplyDefaults filled in rather than a source
	Defaulted map[string]bool `json:"-" yaml:"-"`
}

// IsDefaulted reports whether field holds a default instead of fetched data.
func (r *Record) IsDefaulted(field string) bool {
	return r.Defaulted[field]
}

// Usable reports whether the record carries a title. Records without one
// may only fill gaps in other records.
func (r *Record) Usable() bool {
	return r != nil && strings.TrimSpace(r.Title) != ""
}

// FillGaps copies every field from other that is empty on r.
// IsExpansion is only ever switched on, never off.
func (r *Record) FillGaps(other *Record) {
	if other == nil {
		return
	}

	fillString(&r.ExternalID, other.ExternalID)
	fillString(&r.SourceURL, other.SourceURL)
	fillString(&r.Title, other.Title)
	fillString(&r.Description, other.Description)
	fillString(&r.ImageURL, other.ImageURL)
	fillString(&r.SuggestedAge, other.SuggestedAge)
	fillString(&r.PlayTime, other.PlayTime)
	fillString(&r.Difficulty, other.Difficulty)
	fillString(&r.GameType, other.GameType)
	fillString(&r.Publisher, other.Publisher)
	fillString(&r.BaseGameTitle, other.BaseGameTitle)

	if len(r.AdditionalImages) == 0 && len(other.AdditionalImages) > 0 {
		r.AdditionalImages = append([]string(nil), other.AdditionalImages...)
	}
	if len(r.Mechanics) == 0 {
		r.Mechanics = append([]string(nil), other.Mechanics...)
	}
	if len(r.Designers) == 0 {
		r.Designers = append([]string(nil), other.Designers...)
	}
	if len(r.Artists) == 0 {
		r.Artists = append([]string(nil), other.Artists...)
	}

	if r.MinPlayers == nil && other.MinPlayers != nil {
		r.MinPlayers = intPtr(*other.MinPlayers)
	}
	if r.MaxPlayers == nil && other.MaxPlayers != nil {
		r.MaxPlayers = intPtr(*other.MaxPlayers)
	}
	if r.CommunityRating == nil && other.CommunityRating != nil {
		rating := *other.CommunityRating
		r.CommunityRating = &rating
	}

	r.IsExpansion = r.IsExpansion || other.IsExpansion
}

// ApplyDefaults fills the fields every persisted game must carry and
// drops values outside the canonical enumerations. Filled fields are
// recorded in Defaulted.
func (r *Record) ApplyDefaults() {
	r.Defaulted = make(map[string]bool)

	if d, ok := normalize.Difficulty(r.Difficulty); ok {
		r.Difficulty = d
	} else {
		r.Difficulty = DefaultDifficulty
		r.Defaulted[FieldDifficulty] = true
	}
	if p, ok := normalize.PlayTime(r.PlayTime); ok {
		r.PlayTime = p
	} else {
		r.PlayTime = DefaultPlayTime
		r.Defaulted[FieldPlayTime] = true
	}
	if g, ok := normalize.GameType(r.GameType); ok {
		r.GameType = g
	} else {
		r.GameType = DefaultGameType
		r.Defaulted[FieldGameType] = true
	}

	if r.MinPlayers == nil || *r.MinPlayers < 1 {
		r.MinPlayers = intPtr(DefaultMinPlayers)
		r.Defaulted[FieldMinPlayers] = true
	}
	if r.MaxPlayers == nil || *r.MaxPlayers < *r.MinPlayers {
		r.MaxPlayers = intPtr(max(DefaultMaxPlayers, *r.MinPlayers))
		r.Defaulted[FieldMaxPlayers] = true
	}
	if strings.TrimSpace(r.SuggestedAge) == "" {
		r.SuggestedAge = DefaultSuggestedAge
		r.Defaulted[FieldSuggestedAge] = true
	}

	if len(r.AdditionalImages) > MaxAdditionalImages {
		r.AdditionalImages = r.AdditionalImages[:MaxAdditionalImages]
	}
}

var (
	expansionWord   = regexp.MustCompile(`(?i)\bexpansion\b`)
	baseTitleSplit  = regexp.MustCompile(`\s*(:|\s[–—-]\s)\s*`)
	trailingExpWord = regexp.MustCompile(`(?i)\s*[-–—:]?\s*(the\s+)?expansion(\s+pack)?\s*$`)
)

// TitleSuggestsExpansion reports whether the title itself names the game as
// an expansion.
func TitleSuggestsExpansion(title string) bool {
	return expansionWord.MatchString(title)
}

// BaseTitle returns the title of the base game an expansion belongs to.
func (r *Record) BaseTitle() string {
	if strings.TrimSpace(r.BaseGameTitle) != "" {
		return strings.TrimSpace(r.BaseGameTitle)
	}

	title := strings.TrimSpace(r.Title)
	if loc := baseTitleSplit.FindStringIndex(title); loc != nil && loc[0] > 0 {
		return strings.TrimSpace(title[:loc[0]])
	}

	return strings.TrimSpace(trailingExpWord.ReplaceAllString(title, ""))
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return intPtr(v)
}

func intPtr(v int) *int {
	return &v
}

func fillString(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
		*dst = src
	}
}
