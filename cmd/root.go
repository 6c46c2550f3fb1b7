package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/gameshelf/internal/cache"
	"github.com/lepinkainen/gameshelf/internal/config"
)

// CLI represents the complete command structure for the gameshelf application
type CLI struct {
	// Global flags
	Config  string `help:"Path to config file" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	// Storage flags
	DatastoreDB string `help:"Path to the game database file (default ./gameshelf.db)"`
	CacheDBFile string `help:"Path to cache SQLite database file (default ./cache.db)"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`

	Serve   ServeCmd   `cmd:"" help:"Run the import HTTP API"`
	Import  ImportCmd  `cmd:"" help:"Import a game into a library"`
	Fetch   FetchCmd   `cmd:"" help:"Resolve a game URL and print the record without saving"`
	Refresh RefreshCmd `cmd:"" help:"Refresh catalog entries that lack an enriched description"`
	Cache   CacheCmd   `cmd:"" help:"Manage the response cache"`
}

// CacheCmd groups the cache maintenance commands
type CacheCmd struct {
	Invalidate   cache.InvalidateCacheCmd `cmd:"" help:"Drop every cached entry of a source"`
	ClearExpired cache.ClearExpiredCmd    `cmd:"" help:"Delete expired cache entries"`
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("gameshelf"),
		kong.Description("Imports board game data from BoardGameGeek and other sites into game libraries."),
		kong.UsageOnError(),
	)

	initLogging(cli.Verbose)
	if err := initConfig(cli.Config); err != nil {
		slog.Error("Fatal error config file", "error", err)
		os.Exit(1)
	}
	updateGlobalConfig(&cli)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx.BindTo(runCtx, (*context.Context)(nil))

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// initConfig reads the optional config file and registers defaults. A
// missing config file is not an error; environment variables and flags
// cover every setting.
func initConfig(path string) error {
	config.SetDefaults()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		slog.Debug("Config file not found, using defaults and environment")
	}

	config.InitConfig()
	return nil
}

// updateGlobalConfig lets flags that were given override the config file.
func updateGlobalConfig(cli *CLI) {
	overrides := map[string]string{
		"datastore.dbfile": cli.DatastoreDB,
		"cache.dbfile":     cli.CacheDBFile,
		"cache.ttl":        cli.CacheTTL,
	}
	for key, value := range overrides {
		if value != "" {
			viper.Set(key, value)
		}
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose || strings.EqualFold(os.Getenv("GAMESHELF_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
