package enrichment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply  string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	return f.reply, f.err
}

const enrichedSample = `Build, trade and settle your way across a contested island.

## Quick Gameplay Overview

- **Goal:** Reach 10 victory points first.
- **On Your Turn:** Roll for resources, trade, then build.
- **End Game:** The game ends as soon as a player reaches 10 points.
- **Winner:** The first player to 10 points wins.

A classic for families and new gamers alike.`

func TestEnrichWithoutProviderReturnsRaw(t *testing.T) {
	e := NewEnricher(nil)
	got, outcome := e.Enrich(context.Background(), "Catan", "raw text", Context{})

	assert.Equal(t, "raw text", got)
	assert.Equal(t, OutcomeDisabled, outcome)
	assert.False(t, e.Enabled())

	var nilEnricher *Enricher
	got, _ = nilEnricher.Enrich(context.Background(), "Catan", "raw text", Context{})
	assert.Equal(t, "raw text", got)
}

func TestEnrichSkipsAlreadyEnriched(t *testing.T) {
	fake := &fakeCompleter{reply: "should not be used"}
	got, outcome := NewEnricher(fake).Enrich(context.Background(), "Catan", enrichedSample, Context{})

	assert.Equal(t, enrichedSample, got)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, fake.calls)
}

func TestEnrichRewritesDescription(t *testing.T) {
	fake := &fakeCompleter{reply: "```markdown\n" + enrichedSample + "\n```"}
	raw := "In CATAN, players try to be the dominant force on the island."

	got, outcome := NewEnricher(fake).Enrich(context.Background(), "Catan", raw, Context{
		MinPlayers:  3,
		MaxPlayers:  4,
		Mechanics:   []string{"Dice Rolling", "Trading"},
		Difficulty:  "3 - Medium",
		PlayTime:    "60+ Minutes",
		IsExpansion: true,
	})

	assert.Equal(t, OutcomeEnriched, outcome)
	assert.Equal(t, enrichedSample, got)
	assert.True(t, HasMarker(got))

	assert.Contains(t, fake.system, "## Quick Gameplay Overview")
	assert.Contains(t, fake.system, "150 to 200 words")
	assert.Contains(t, fake.user, "Game: Catan")
	assert.Contains(t, fake.user, "Players: 3-4")
	assert.Contains(t, fake.user, "Mechanics: Dice Rolling, Trading")
	assert.Contains(t, fake.user, "Difficulty: 3 - Medium")
	assert.Contains(t, fake.user, "Play time: 60+ Minutes")
	assert.Contains(t, fake.user, "expansion")
	assert.Contains(t, fake.user, raw)
}

func TestEnrichFallsBackOnDegenerateOutput(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeCompleter
	}{
		{"error", &fakeCompleter{err: errors.New("provider down")}},
		{"empty", &fakeCompleter{reply: ""}},
		{"too short", &fakeCompleter{reply: "A fun game."}},
		{"fenced but short", &fakeCompleter{reply: "```\nok\n```"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := NewEnricher(tt.fake).Enrich(context.Background(), "Catan", "the raw description", Context{})
			assert.Equal(t, "the raw description", got)
			assert.Equal(t, OutcomeFallback, outcome)
		})
	}
}

func TestBuildUserMessageTruncatesInput(t *testing.T) {
	raw := strings.Repeat("é", maxInputChars+500)
	msg := buildUserMessage("Long", raw, Context{})

	require.Contains(t, msg, "Original description:\n")
	body := msg[strings.Index(msg, "Original description:\n")+len("Original description:\n"):]
	assert.Equal(t, maxInputChars, len([]rune(body)))
	assert.NotContains(t, msg, "Players:")
}

func TestCacheKeyIsStable(t *testing.T) {
	assert.Equal(t, cacheKey("a", "b"), cacheKey("a", "b"))
	assert.NotEqual(t, cacheKey("a", "b"), cacheKey("ab", ""))
}
