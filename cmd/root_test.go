package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/gameshelf/internal/bgg"
	"github.com/lepinkainen/gameshelf/internal/config"
	"github.com/lepinkainen/gameshelf/internal/datastore"
	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/importer"
	"github.com/lepinkainen/gameshelf/internal/metrics"
	"github.com/lepinkainen/gameshelf/internal/server"
	"github.com/lepinkainen/gameshelf/internal/testutil"
)

func resetCmdState(t *testing.T) {
	t.Helper()
	testutil.ResetConfig(t)
}

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	originalArgs := os.Args
	os.Args = append([]string{"gameshelf"}, args...)
	t.Cleanup(func() { os.Args = originalArgs })

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("gameshelf"),
		kong.Description("Imports board game data from BoardGameGeek and other sites into game libraries."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)

	return cli, ctx
}

type stubSource struct {
	rec *game.Record
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Applies(bgg.Target) bool { return true }

func (s *stubSource) Fetch(context.Context, bgg.Target) (*game.Record, error) {
	c := *s.rec
	return &c, nil
}

// useTestPipeline replaces the wired pipeline with one backed by a temp
// store and a stub source.
func useTestPipeline(t *testing.T) (*datastore.SQLiteStore, *bytes.Buffer) {
	t.Helper()

	env := testutil.NewTestEnv(t)
	store, err := datastore.Open(context.Background(), env.Path("gameshelf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m, err := metrics.New()
	require.NoError(t, err)

	src := &stubSource{rec: &game.Record{Title: "Azul", Publisher: "Next Move Games"}}
	// The store is left out so Close does not shut it before assertions.
	p := &pipeline{
		importer: importer.New(store, []importer.Source{src}, importer.WithMetrics(m)),
		metrics:  m,
	}

	origOpen := openPipeline
	openPipeline = func(context.Context, config.Settings) (*pipeline, error) { return p, nil }

	out := &bytes.Buffer{}
	origStdout := stdout
	stdout = out

	t.Cleanup(func() {
		openPipeline = origOpen
		stdout = origStdout
	})
	return store, out
}

func TestCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, ctx := parseCLI(t, "--datastore-db", "/tmp/g.db", "import", "https://boardgamegeek.com/boardgame/230802/azul",
		"--library", "lib-1", "--expansion", "no")

	assert.Equal(t, "import <url>", ctx.Command())
	assert.Equal(t, "/tmp/g.db", cli.DatastoreDB)
	assert.Equal(t, "https://boardgamegeek.com/boardgame/230802/azul", cli.Import.URL)
	assert.Equal(t, "lib-1", cli.Import.Library)
	assert.Equal(t, "no", cli.Import.Expansion)

	cli, ctx = parseCLI(t, "refresh")
	assert.Equal(t, "refresh", ctx.Command())
	assert.Equal(t, 10, cli.Refresh.Limit)

	cli, ctx = parseCLI(t, "cache", "invalidate", "gallery")
	assert.Equal(t, "cache invalidate <source>", ctx.Command())
	assert.Equal(t, "gallery", cli.Cache.Invalidate.Source)

	_, ctx = parseCLI(t, "serve", "--addr", ":9090")
	assert.Equal(t, "serve", ctx.Command())
}

func TestUpdateGlobalConfig(t *testing.T) {
	resetCmdState(t)
	config.SetDefaults()

	updateGlobalConfig(&CLI{CacheDBFile: "/tmp/cache.db", CacheTTL: "12h"})

	assert.Equal(t, "/tmp/cache.db", viper.GetString("cache.dbfile"))
	assert.Equal(t, "12h", viper.GetString("cache.ttl"))
	assert.Equal(t, "./gameshelf.db", viper.GetString("datastore.dbfile"), "unset flags keep the configured value")
}

func TestInitConfigReadsFile(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)
	env.WriteFileString("gameshelf.yaml", "bgg:\n  session_cookie: abc\nserver:\n  addr: \":9999\"\n")

	require.NoError(t, initConfig(env.Path("gameshelf.yaml")))

	assert.Equal(t, "abc", config.BGGSessionCookie)
	assert.Equal(t, ":9999", config.Load().ServerAddr)
}

func TestInitConfigMissingExplicitFile(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)

	assert.Error(t, initConfig(env.Path("missing.yaml")))
}

func TestInitLogging(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		require.NotPanics(t, func() {
			initLogging(verbose)
		})
	}
}

func TestExpansionFlag(t *testing.T) {
	assert.Nil(t, expansionFlag("auto"))
	require.NotNil(t, expansionFlag("yes"))
	assert.True(t, *expansionFlag("yes"))
	require.NotNil(t, expansionFlag("no"))
	assert.False(t, *expansionFlag("no"))
}

func TestImportCmdRun(t *testing.T) {
	resetCmdState(t)
	store, out := useTestPipeline(t)
	ctx := context.Background()

	cmd := &ImportCmd{URL: "https://shop.example.com/azul", Library: "lib-1", Expansion: "auto"}
	require.NoError(t, cmd.Run(ctx))
	assert.Contains(t, out.String(), `created "Azul"`)

	id, err := store.FindExisting(ctx, datastore.Candidate{URL: "https://shop.example.com/azul"}, "lib-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestFetchCmdPrintsYAML(t *testing.T) {
	resetCmdState(t)
	_, out := useTestPipeline(t)

	cmd := &FetchCmd{URL: "https://shop.example.com/azul"}
	require.NoError(t, cmd.Run(context.Background()))

	var rec game.Record
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "Azul", rec.Title)
	assert.Equal(t, game.DefaultGameType, rec.GameType)
}

func TestFetchCmdRejectsBadURL(t *testing.T) {
	resetCmdState(t)
	useTestPipeline(t)

	cmd := &FetchCmd{URL: "not a url"}
	assert.Error(t, cmd.Run(context.Background()))
}

func TestRefreshCmdRun(t *testing.T) {
	resetCmdState(t)
	_, out := useTestPipeline(t)

	cmd := &RefreshCmd{Limit: 5}
	require.NoError(t, cmd.Run(context.Background()))
	assert.Equal(t, "checked 0, refreshed 0, failed 0\n", out.String())
}

func TestServeCmdRun(t *testing.T) {
	resetCmdState(t)
	useTestPipeline(t)

	var started *server.Server
	orig := runServer
	runServer = func(_ context.Context, s *server.Server) error {
		started = s
		return nil
	}
	t.Cleanup(func() { runServer = orig })

	cmd := &ServeCmd{Addr: "127.0.0.1:0"}
	require.NoError(t, cmd.Run(context.Background()))
	assert.NotNil(t, started)
}
