package bgg

import (
	"encoding/xml"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"

	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/normalize"
)

type thingResponse struct {
	XMLName xml.Name    `xml:"items"`
	Items   []thingItem `xml:"item"`
}

type thingItem struct {
	ID          string      `xml:"id,attr"`
	Type        string      `xml:"type,attr"`
	Thumbnail   string      `xml:"thumbnail"`
	Image       string      `xml:"image"`
	Names       []thingName `xml:"name"`
	Description string      `xml:"description"`
	MinPlayers  intValue    `xml:"minplayers"`
	MaxPlayers  intValue    `xml:"maxplayers"`
	PlayingTime intValue    `xml:"playingtime"`
	MaxPlayTime intValue    `xml:"maxplaytime"`
	MinAge      intValue    `xml:"minage"`
	Links       []thingLink `xml:"link"`
	Statistics  struct {
		Ratings struct {
			Average       floatValue `xml:"average"`
			AverageWeight floatValue `xml:"averageweight"`
		} `xml:"ratings"`
	} `xml:"statistics"`
}

type thingName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type thingLink struct {
	Type    string `xml:"type,attr"`
	ID      string `xml:"id,attr"`
	Value   string `xml:"value,attr"`
	Inbound bool   `xml:"inbound,attr"`
}

type intValue struct {
	Value string `xml:"value,attr"`
}

func (v intValue) Int() int {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return 0
	}
	return n
}

type floatValue struct {
	Value string `xml:"value,attr"`
}

func (v floatValue) Float() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return 0
	}
	return f
}

// categoryGameTypes maps BGG categories onto game types. The first matching
// category wins; anything else is a board game.
var categoryGameTypes = []struct {
	category string
	gameType string
}{
	{"Wargame", normalize.GameTypeWar},
	{"Miniatures", normalize.GameTypeMiniatures},
	{"Party Game", normalize.GameTypeParty},
	{"Card Game", normalize.GameTypeCard},
	{"Dice", normalize.GameTypeDice},
}

// ParseThing decodes an XML API2 thing response into a game record.
func ParseThing(body []byte, id string) (*game.Record, error) {
	var resp thingResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode thing xml: %v", ErrMalformed, err)
	}
	if len(resp.Items) == 0 {
		return nil, ErrNoItem
	}

	item := resp.Items[0]
	for _, candidate := range resp.Items {
		if candidate.ID == id {
			item = candidate
			break
		}
	}

	return item.toRecord(), nil
}

func (item thingItem) toRecord() *game.Record {
	record := &game.Record{
		ExternalID:  item.ID,
		SourceURL:   GamePageURL(item.ID),
		Title:       item.primaryName(),
		Description: strings.TrimSpace(html.UnescapeString(item.Description)),
		ImageURL:    strings.TrimSpace(item.Image),
		IsExpansion: item.Type == "boardgameexpansion",
		GameType:    normalize.GameTypeBoard,
	}

	if n := item.MinPlayers.Int(); n > 0 {
		record.MinPlayers = game.IntPtr(n)
	}
	if n := item.MaxPlayers.Int(); n > 0 {
		record.MaxPlayers = game.IntPtr(n)
	}
	if age := item.MinAge.Int(); age > 0 {
		record.SuggestedAge = fmt.Sprintf("%d+", age)
	}

	minutes := item.PlayingTime.Int()
	if minutes <= 0 {
		minutes = item.MaxPlayTime.Int()
	}
	if minutes > 0 {
		record.PlayTime = normalize.MinutesToPlayTime(minutes)
	}

	if weight := item.Statistics.Ratings.AverageWeight.Float(); weight > 0 {
		record.Difficulty = normalize.WeightToDifficulty(weight)
	}
	if rating := item.Statistics.Ratings.Average.Float(); rating > 0 {
		record.CommunityRating = &rating
	}

	var categories []string
	for _, link := range item.Links {
		name := strings.TrimSpace(html.UnescapeString(link.Value))
		if name == "" {
			continue
		}

		switch link.Type {
		case "boardgamemechanic":
			record.Mechanics = append(record.Mechanics, name)
		case "boardgamedesigner":
			if !isPlaceholderCredit(name) {
				record.Designers = append(record.Designers, name)
			}
		case "boardgameartist":
			if !isPlaceholderCredit(name) {
				record.Artists = append(record.Artists, name)
			}
		case "boardgamepublisher":
			if record.Publisher == "" && !isPlaceholderCredit(name) {
				record.Publisher = name
			}
		case "boardgamecategory":
			categories = append(categories, name)
		case "boardgameexpansion":
			// on an expansion, the inbound link points at its base game
			if record.IsExpansion && link.Inbound && record.BaseGameTitle == "" {
				record.BaseGameTitle = name
			}
		}
	}

	for _, mapping := range categoryGameTypes {
		if slices.Contains(categories, mapping.category) {
			record.GameType = mapping.gameType
			break
		}
	}

	return record
}

func (item thingItem) primaryName() string {
	for _, name := range item.Names {
		if name.Type == "primary" {
			return strings.TrimSpace(html.UnescapeString(name.Value))
		}
	}
	if len(item.Names) > 0 {
		return strings.TrimSpace(html.UnescapeString(item.Names[0].Value))
	}
	return ""
}

// isPlaceholderCredit filters BGG's "(Uncredited)" style entries.
func isPlaceholderCredit(name string) bool {
	return strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")")
}
