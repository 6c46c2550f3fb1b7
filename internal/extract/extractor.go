package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/k3a/html2text"

	"github.com/lepinkainen/gameshelf/internal/bgg"
	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/llm"
	"github.com/lepinkainen/gameshelf/internal/normalize"
)

const (
	toolName = "extract_game"
	// MsgNoTitle is the caller-facing message for a page without a game title.
	MsgNoTitle = "Could not find game title on the page"

	maxContentRunes = 12000
	maxPromptImages = 10
)

// ErrNoTitle is returned when a page rendered but no title could be extracted.
var ErrNoTitle = errors.New("no game title found on page")

// ToolCaller is the LLM capability the extractor needs.
type ToolCaller interface {
	CallTool(ctx context.Context, system, user string, tool llm.ToolDefinition) (json.RawMessage, error)
}

const systemPrompt = `You extract board game metadata from web pages.
Call the extract_game tool exactly once. Only report facts present on the page.
Use the enumerated values exactly as given; leave a field out when the page does not support it.
Choose image URLs only from the candidate list.`

// Extractor runs the generic scrape and AI extraction step.
type Extractor struct {
	renderer Renderer
	llm      ToolCaller
}

// NewExtractor creates an extractor. A nil llm falls back to Open Graph
// metadata from the rendered HTML.
func NewExtractor(renderer Renderer, caller ToolCaller) *Extractor {
	return &Extractor{renderer: renderer, llm: caller}
}

// Tool returns the extraction tool definition, constrained to the
// canonical enumerations.
func Tool() llm.ToolDefinition {
	str := func(desc string) llm.ParameterProperty {
		return llm.ParameterProperty{Type: "string", Description: desc}
	}
	list := func(desc string) llm.ParameterProperty {
		return llm.ParameterProperty{Type: "array", Description: desc, Items: &llm.ParameterProperty{Type: "string"}}
	}

	return llm.NewToolDefinition(toolName, "Report the board game described on the page.",
		map[string]llm.ParameterProperty{
			"title":                 str("Game title without site name"),
			"description":           str("Plain-text description of the game"),
			"image_url":             str("Best box-art image URL"),
			"additional_image_urls": list("Up to 5 further image URLs"),
			"min_players":           {Type: "integer", Description: "Minimum player count"},
			"max_players":           {Type: "integer", Description: "Maximum player count"},
			"suggested_age":         str(`Minimum age such as "10+"`),
			"play_time":             {Type: "string", Enum: normalize.PlayTimes()},
			"difficulty":            {Type: "string", Enum: normalize.Difficulties()},
			"game_type":             {Type: "string", Enum: normalize.GameTypes()},
			"mechanics":             list("Game mechanics"),
			"publisher":             str("Publisher name"),
			"designers":             list("Designer names"),
			"artists":               list("Artist names"),
			"is_expansion":          {Type: "boolean", Description: "True only if the page describes an expansion"},
			"base_game_title":       str("Title of the base game when this is an expansion"),
		},
		[]string{"title"})
}

type extraction struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ImageURL         string   `json:"image_url"`
	AdditionalImages []string `json:"additional_image_urls"`
	MinPlayers       *int     `json:"min_players"`
	MaxPlayers       *int     `json:"max_players"`
	SuggestedAge     string   `json:"suggested_age"`
	PlayTime         string   `json:"play_time"`
	Difficulty       string   `json:"difficulty"`
	GameType         string   `json:"game_type"`
	Mechanics        []string `json:"mechanics"`
	Publisher        string   `json:"publisher"`
	Designers        []string `json:"designers"`
	Artists          []string `json:"artists"`
	IsExpansion      bool     `json:"is_expansion"`
	BaseGameTitle    string   `json:"base_game_title"`
}

// Extract renders pageURL and extracts a record from it. It returns an
// error wrapping ErrRenderFailed when the page could not be fetched and
// ErrNoTitle when it was fetched but carried no title.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*game.Record, error) {
	page, err := e.renderer.Render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if page.Renderer == "" {
		page.Renderer = e.renderer.Name()
	}
	images := RankImages(page.HTML, pageURL)

	var rec *game.Record
	if e.llm == nil {
		rec, err = openGraph(page)
	} else {
		rec, err = e.callLLM(ctx, page, images)
	}
	if err != nil {
		return nil, err
	}

	rec.SourceURL = pageURL
	rec.Source = "generic:" + page.Renderer
	attachImages(rec, images)

	slog.Info("Extracted game from page", "url", pageURL, "title", rec.Title, "renderer", page.Renderer)
	return rec, nil
}

func (e *Extractor) callLLM(ctx context.Context, page *Page, images []string) (*game.Record, error) {
	raw, err := e.llm.CallTool(ctx, systemPrompt, buildUserMessage(page, images), Tool())
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	var out extraction
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrNoToolCall, err)
	}
	if strings.TrimSpace(out.Title) == "" {
		return nil, ErrNoTitle
	}

	rec := &game.Record{
		Title:            strings.TrimSpace(out.Title),
		Description:      strings.TrimSpace(out.Description),
		ImageURL:         strings.TrimSpace(out.ImageURL),
		AdditionalImages: out.AdditionalImages,
		MinPlayers:       positive(out.MinPlayers),
		MaxPlayers:       positive(out.MaxPlayers),
		SuggestedAge:     strings.TrimSpace(out.SuggestedAge),
		Mechanics:        out.Mechanics,
		Publisher:        strings.TrimSpace(out.Publisher),
		Designers:        out.Designers,
		Artists:          out.Artists,
		IsExpansion:      out.IsExpansion,
		BaseGameTitle:    strings.TrimSpace(out.BaseGameTitle),
	}
	rec.PlayTime, _ = normalize.PlayTime(out.PlayTime)
	rec.Difficulty, _ = normalize.Difficulty(out.Difficulty)
	rec.GameType, _ = normalize.GameType(out.GameType)
	return rec, nil
}

func openGraph(page *Page) (*game.Record, error) {
	rec, err := bgg.ParsePage([]byte(page.HTML), page.URL)
	if err != nil {
		return nil, err
	}
	if !rec.Usable() {
		return nil, ErrNoTitle
	}
	// external ids only come from BGG sources
	rec.ExternalID = ""
	return rec, nil
}

// attachImages fills the main and additional images from the ranked
// candidates where the extraction left them empty.
func attachImages(rec *game.Record, ranked []string) {
	if rec.ImageURL == "" && len(ranked) > 0 {
		rec.ImageURL = ranked[0]
	}

	var extra []string
	seen := map[string]bool{rec.ImageURL: true}
	for _, u := range append(append([]string(nil), rec.AdditionalImages...), ranked...) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] || excludedImage.MatchString(u) {
			continue
		}
		seen[u] = true
		extra = append(extra, u)
		if len(extra) == game.MaxAdditionalImages {
			break
		}
	}
	rec.AdditionalImages = extra
}

func buildUserMessage(page *Page, images []string) string {
	content := page.Markdown
	if content == "" {
		content = html2text.HTML2Text(page.HTML)
	}
	if r := []rune(content); len(r) > maxContentRunes {
		content = string(r[:maxContentRunes])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n\n", page.URL)
	if len(images) > 0 {
		b.WriteString("Candidate images (best first):\n")
		for i, img := range images {
			if i == maxPromptImages {
				break
			}
			fmt.Fprintf(&b, "- %s\n", img)
		}
		b.WriteString("\n")
	}
	b.WriteString("Page content:\n")
	b.WriteString(content)
	return b.String()
}

func positive(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
