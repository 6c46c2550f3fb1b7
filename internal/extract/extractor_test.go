package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/gameshelf/internal/llm"
	"github.com/lepinkainen/gameshelf/internal/normalize"
)

type fakeToolCaller struct {
	response string
	err      error
	user     string
	tool     llm.ToolDefinition
}

func (f *fakeToolCaller) CallTool(_ context.Context, _, user string, tool llm.ToolDefinition) (json.RawMessage, error) {
	f.user = user
	f.tool = tool
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

const azulPage = `<html><head>
<meta property="og:title" content="Azul">
<meta property="og:description" content="Tile drafting for 2-4 players.">
</head><body>
<img src="https://shop.example.com/azul-box-art.jpg">
<img src="https://shop.example.com/pic100.jpg">
<img src="https://shop.example.com/avatar/me.jpg">
</body></html>`

func azulRenderer() *fakeRenderer {
	return &fakeRenderer{name: "firecrawl", page: &Page{Markdown: "# Azul\nTile drafting.", HTML: azulPage}}
}

func TestExtractWithLLM(t *testing.T) {
	caller := &fakeToolCaller{response: `{
		"title": "Azul",
		"description": "Tile drafting.",
		"min_players": 2, "max_players": 4,
		"play_time": "30-45 Minutes",
		"difficulty": "2 - Medium Light",
		"game_type": "Abstract Strategy",
		"mechanics": ["Tile Placement"],
		"publisher": "Plan B Games"
	}`}

	rec, err := NewExtractor(azulRenderer(), caller).Extract(context.Background(), "https://shop.example.com/azul")
	require.NoError(t, err)

	assert.Equal(t, "Azul", rec.Title)
	assert.Equal(t, 2, *rec.MinPlayers)
	assert.Equal(t, "30-45 Minutes", rec.PlayTime)
	assert.Equal(t, "Other", rec.GameType)
	assert.Equal(t, "https://shop.example.com/azul-box-art.jpg", rec.ImageURL)
	assert.Equal(t, []string{"https://shop.example.com/pic100.jpg"}, rec.AdditionalImages)
	assert.Equal(t, "generic:firecrawl", rec.Source)
	assert.Equal(t, "https://shop.example.com/azul", rec.SourceURL)
	assert.Empty(t, rec.ExternalID)

	assert.Contains(t, caller.user, "https://shop.example.com/azul-box-art.jpg")
	assert.Contains(t, caller.user, "Tile drafting.")
	assert.Equal(t, "extract_game", caller.tool.Name)
}

func TestExtractDropsNonCanonicalEnums(t *testing.T) {
	caller := &fakeToolCaller{response: `{"title":"Azul","difficulty":"Easy","play_time":"Under 30 Minutes","min_players":0}`}

	rec, err := NewExtractor(azulRenderer(), caller).Extract(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, rec.Difficulty)
	assert.Equal(t, "15-30 Minutes", rec.PlayTime)
	assert.Nil(t, rec.MinPlayers)
}

func TestExtractMissingTitle(t *testing.T) {
	caller := &fakeToolCaller{response: `{"description":"A page about tiles"}`}

	_, err := NewExtractor(azulRenderer(), caller).Extract(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrNoTitle)
}

func TestExtractMalformedToolCall(t *testing.T) {
	caller := &fakeToolCaller{response: `{"title": 42}`}

	_, err := NewExtractor(azulRenderer(), caller).Extract(context.Background(), "https://example.com")
	require.ErrorIs(t, err, llm.ErrNoToolCall)
}

func TestExtractLLMFailure(t *testing.T) {
	caller := &fakeToolCaller{err: llm.ErrNoToolCall}

	_, err := NewExtractor(azulRenderer(), caller).Extract(context.Background(), "https://example.com")
	require.ErrorIs(t, err, llm.ErrNoToolCall)
	assert.NotErrorIs(t, err, ErrNoTitle)
}

func TestExtractRenderFailure(t *testing.T) {
	r := Chain{&fakeRenderer{name: "firecrawl", err: errors.New("down")}}

	_, err := NewExtractor(r, &fakeToolCaller{}).Extract(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrRenderFailed)
}

func TestExtractOpenGraphFallback(t *testing.T) {
	rec, err := NewExtractor(azulRenderer(), nil).Extract(context.Background(), "https://shop.example.com/azul")
	require.NoError(t, err)
	assert.Equal(t, "Azul", rec.Title)
	assert.Equal(t, "Tile drafting for 2-4 players.", rec.Description)
	assert.Equal(t, "https://shop.example.com/azul-box-art.jpg", rec.ImageURL)

	bare := &fakeRenderer{name: "reader", page: &Page{HTML: "<html><body><p>nothing</p></body></html>"}}
	_, err = NewExtractor(bare, nil).Extract(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrNoTitle)
}

func TestToolSchemaUsesCanonicalEnums(t *testing.T) {
	tool := Tool()
	props := tool.Parameters["properties"].(map[string]any)

	difficulty := props["difficulty"].(map[string]any)
	assert.Equal(t, normalize.Difficulties(), difficulty["enum"])
	gameType := props["game_type"].(map[string]any)
	assert.Equal(t, normalize.GameTypes(), gameType["enum"])
	assert.Equal(t, []string{"title"}, tool.Parameters["required"])
}
