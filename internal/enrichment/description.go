// Package enrichment rewrites raw game descriptions into the house
// markdown format using a language model.
package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/lepinkainen/gameshelf/internal/cache"
	"github.com/lepinkainen/gameshelf/internal/llm"
)

const (
	maxInputChars  = 3000
	minOutputChars = 50
)

const systemPrompt = `You write board game descriptions for a game library catalog.
Rewrite the provided description using exactly this markdown structure:

<one engaging hook paragraph of two or three sentences>

## ` + Marker + `

- **Goal:** <what players are trying to achieve>
- **On Your Turn:** <the core actions available on a turn>
- **End Game:** <what triggers the end of the game>
- **Winner:** <how the winner is determined>

<one closing sentence about who will enjoy the game>

Rules:
- 150 to 200 words in total.
- Use only facts present in the input. Do not invent components, numbers or awards.
- Output only the markdown. No code fences, no preamble.`

// Completer sends a single system/user exchange to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Context is the structured game data passed alongside the raw description.
type Context struct {
	MinPlayers  int
	MaxPlayers  int
	Mechanics   []string
	Difficulty  string
	PlayTime    string
	IsExpansion bool
}

// Outcome says what Enrich did with a description.
type Outcome string

const (
	OutcomeDisabled Outcome = "disabled"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeEnriched Outcome = "enriched"
	OutcomeFallback Outcome = "fallback"
	OutcomeCached   Outcome = "cached"
)

// Enricher rewrites descriptions. A nil Completer makes it a no-op.
type Enricher struct {
	completer Completer
	useCache  bool
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithCache stores results in the enrichment_cache table so the same raw
// description is never paid for twice.
func WithCache() Option {
	return func(e *Enricher) {
		e.useCache = true
	}
}

// NewEnricher creates an enricher around completer, which may be nil.
func NewEnricher(completer Completer, opts ...Option) *Enricher {
	e := &Enricher{completer: completer}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled reports whether a provider is configured.
func (e *Enricher) Enabled() bool {
	return e != nil && e.completer != nil
}

// Enrich returns the enriched description, or raw unchanged when no provider
// is configured, raw is already enriched, or the model output is unusable.
func (e *Enricher) Enrich(ctx context.Context, title, raw string, gameCtx Context) (string, Outcome) {
	if !e.Enabled() {
		return raw, OutcomeDisabled
	}
	if strings.TrimSpace(raw) == "" || HasMarker(raw) {
		return raw, OutcomeSkipped
	}

	generate := func() (*CachedDescription, error) {
		out, err := e.completer.Complete(ctx, systemPrompt, buildUserMessage(title, raw, gameCtx))
		if err != nil {
			return nil, err
		}
		return &CachedDescription{Description: llm.StripCodeFence(out)}, nil
	}

	var (
		result    *CachedDescription
		fromCache bool
		err       error
	)
	if e.useCache {
		result, fromCache, err = cache.GetOrFetchWithPolicy("enrichment_cache", cacheKey(title, raw), generate,
			func(r *CachedDescription) bool { return usable(r.Description) })
	} else {
		result, err = generate()
	}
	if err != nil {
		slog.Warn("Description enrichment failed, keeping raw description", "title", title, "error", err)
		return raw, OutcomeFallback
	}

	if !usable(result.Description) {
		slog.Warn("Enriched description too short, keeping raw description",
			"title", title, "length", utf8.RuneCountInString(result.Description))
		return raw, OutcomeFallback
	}

	if fromCache {
		return result.Description, OutcomeCached
	}
	return result.Description, OutcomeEnriched
}

// CachedDescription is the enrichment_cache payload.
type CachedDescription struct {
	Description string `json:"description"`
}

func usable(description string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(description)) >= minOutputChars
}

func buildUserMessage(title, raw string, gameCtx Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game: %s\n", title)
	if gameCtx.MinPlayers > 0 || gameCtx.MaxPlayers > 0 {
		fmt.Fprintf(&b, "Players: %d-%d\n", gameCtx.MinPlayers, gameCtx.MaxPlayers)
	}
	if len(gameCtx.Mechanics) > 0 {
		fmt.Fprintf(&b, "Mechanics: %s\n", strings.Join(gameCtx.Mechanics, ", "))
	}
	if gameCtx.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", gameCtx.Difficulty)
	}
	if gameCtx.PlayTime != "" {
		fmt.Fprintf(&b, "Play time: %s\n", gameCtx.PlayTime)
	}
	if gameCtx.IsExpansion {
		b.WriteString("This is an expansion and requires the base game.\n")
	}
	b.WriteString("\nOriginal description:\n")
	b.WriteString(truncate(strings.TrimSpace(raw), maxInputChars))
	return b.String()
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func cacheKey(title, raw string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + raw))
	return hex.EncodeToString(sum[:])
}
