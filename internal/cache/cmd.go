package cache

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: enrichment, gallery" required:""`
}

func (i *InvalidateCacheCmd) Run() error {
	tableName, ok := Sources[i.Source]
	if !ok {
		valid := slices.Sorted(maps.Keys(Sources))
		return fmt.Errorf("invalid cache source '%s'; valid sources are: %s", i.Source, strings.Join(valid, ", "))
	}

	slog.Info("Invalidating cache", "source", i.Source, "database", viper.GetString("cache.dbfile"))

	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	rowsDeleted, err := cacheInstance.InvalidateSource(tableName)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return nil
}

// ClearExpiredCmd removes expired rows from every cache table
type ClearExpiredCmd struct{}

func (c *ClearExpiredCmd) Run() error {
	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	for _, source := range slices.Sorted(maps.Keys(Sources)) {
		rows, err := cacheInstance.ClearExpired(Sources[source])
		if err != nil {
			return err
		}
		slog.Info("Expired cache entries removed", "source", source, "rows_deleted", rows)
	}
	return nil
}
