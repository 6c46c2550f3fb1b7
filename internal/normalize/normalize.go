package normalize

import (
	"slices"
	"strings"
	"unicode"
)

// Difficulty returns raw if it is a canonical difficulty value.
func Difficulty(raw string) (string, bool) {
	if slices.Contains(difficulties, raw) {
		return raw, true
	}
	return "", false
}

// PlayTime returns the canonical play time for raw, remapping legacy values.
func PlayTime(raw string) (string, bool) {
	if slices.Contains(playTimes, raw) {
		return raw, true
	}
	if mapped, ok := legacyPlayTimes[raw]; ok {
		return mapped, true
	}
	return "", false
}

// GameType returns the canonical game type for raw, remapping legacy values.
func GameType(raw string) (string, bool) {
	if slices.Contains(gameTypes, raw) {
		return raw, true
	}
	if mapped, ok := legacyGameTypes[raw]; ok {
		return mapped, true
	}
	return "", false
}

// SaleCondition renames the legacy "New" condition; other values pass through.
func SaleCondition(raw string) (string, bool) {
	switch raw {
	case "":
		return "", false
	case "New":
		return SaleConditionNewSealed, true
	default:
		return raw, true
	}
}

// WeightToDifficulty maps a BGG average weight (1-5) onto a difficulty band.
func WeightToDifficulty(weight float64) string {
	switch {
	case weight < 1.5:
		return DifficultyLight
	case weight < 2.25:
		return DifficultyMediumLight
	case weight < 3.0:
		return DifficultyMedium
	case weight < 3.75:
		return DifficultyMediumHeavy
	default:
		return DifficultyHeavy
	}
}

// MinutesToPlayTime maps a playing time in minutes onto a play time band.
func MinutesToPlayTime(minutes int) string {
	switch {
	case minutes <= 15:
		return PlayTime0To15
	case minutes <= 30:
		return PlayTime15To30
	case minutes <= 45:
		return PlayTime30To45
	case minutes <= 60:
		return PlayTime45To60
	case minutes <= 120:
		return PlayTime60Plus
	case minutes <= 180:
		return PlayTime2Hours
	default:
		return PlayTime3Hours
	}
}

// DifficultyWeight returns the representative weight for a difficulty band.
func DifficultyWeight(difficulty string) (float64, bool) {
	w, ok := difficultyWeights[difficulty]
	return w, ok
}

// PlayTimeMinutes returns the representative minutes for a play time band.
func PlayTimeMinutes(playTime string) (int, bool) {
	m, ok := playTimeMinutes[playTime]
	return m, ok
}

// Slug derives the per-library dedup key from a title: lowercased, anything
// that is not a letter, digit or space dropped, whitespace runs collapsed to
// a single hyphen.
func Slug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}
