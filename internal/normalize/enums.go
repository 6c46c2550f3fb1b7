// Package normalize maps raw and legacy field values onto the canonical
// enumerations shared by every deployment generation.
package normalize

// Difficulty bands, lightest first.
const (
	DifficultyLight       = "1 - Light"
	DifficultyMediumLight = "2 - Medium Light"
	DifficultyMedium      = "3 - Medium"
	DifficultyMediumHeavy = "4 - Medium Heavy"
	DifficultyHeavy       = "5 - Heavy"
)

// Play time bands, shortest first.
const (
	PlayTime0To15  = "0-15 Minutes"
	PlayTime15To30 = "15-30 Minutes"
	PlayTime30To45 = "30-45 Minutes"
	PlayTime45To60 = "45-60 Minutes"
	PlayTime60Plus = "60+ Minutes"
	PlayTime2Hours = "2+ Hours"
	PlayTime3Hours = "3+ Hours"
)

// Game type categories.
const (
	GameTypeBoard      = "Board Game"
	GameTypeCard       = "Card Game"
	GameTypeDice       = "Dice Game"
	GameTypeParty      = "Party Game"
	GameTypeWar        = "War Game"
	GameTypeMiniatures = "Miniatures"
	GameTypeRPG        = "RPG"
	GameTypeOther      = "Other"
)

// SaleConditionNewSealed replaces the legacy "New" sale condition.
const SaleConditionNewSealed = "New/Sealed"

var difficulties = []string{
	DifficultyLight,
	DifficultyMediumLight,
	DifficultyMedium,
	DifficultyMediumHeavy,
	DifficultyHeavy,
}

var playTimes = []string{
	PlayTime0To15,
	PlayTime15To30,
	PlayTime30To45,
	PlayTime45To60,
	PlayTime60Plus,
	PlayTime2Hours,
	PlayTime3Hours,
}

var gameTypes = []string{
	GameTypeBoard,
	GameTypeCard,
	GameTypeDice,
	GameTypeParty,
	GameTypeWar,
	GameTypeMiniatures,
	GameTypeRPG,
	GameTypeOther,
}

var legacyPlayTimes = map[string]string{
	"Under 30 Minutes": PlayTime15To30,
	"30-60 Minutes":    PlayTime45To60,
	"1-2 Hours":        PlayTime60Plus,
	"2-3 Hours":        PlayTime2Hours,
}

var legacyGameTypes = map[string]string{
	"Miniatures Game":   GameTypeMiniatures,
	"Role-Playing Game": GameTypeRPG,
	"Deck Building":     GameTypeCard,
	"Wargame":           GameTypeWar,
	"Abstract Strategy": GameTypeOther,
	"Puzzle":            GameTypeOther,
	"Trivia":            GameTypeOther,
}

// Representative continuous values stored next to the categorical ones.
var difficultyWeights = map[string]float64{
	DifficultyLight:       1.25,
	DifficultyMediumLight: 1.88,
	DifficultyMedium:      2.63,
	DifficultyMediumHeavy: 3.38,
	DifficultyHeavy:       4.38,
}

var playTimeMinutes = map[string]int{
	PlayTime0To15:  15,
	PlayTime15To30: 30,
	PlayTime30To45: 45,
	PlayTime45To60: 60,
	PlayTime60Plus: 90,
	PlayTime2Hours: 150,
	PlayTime3Hours: 210,
}

// Difficulties returns the canonical difficulty values in order.
func Difficulties() []string { return append([]string(nil), difficulties...) }

// PlayTimes returns the canonical play time values in order.
func PlayTimes() []string { return append([]string(nil), playTimes...) }

// GameTypes returns the canonical game type values.
func GameTypes() []string { return append([]string(nil), gameTypes...) }
