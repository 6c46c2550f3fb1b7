package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/gameshelf/internal/config"
	"github.com/lepinkainen/gameshelf/internal/importer"
	"github.com/lepinkainen/gameshelf/internal/server"
)

// stdout is where command results are printed.
var stdout io.Writer = os.Stdout

// runServer is swapped out in tests.
var runServer = func(ctx context.Context, s *server.Server) error {
	return s.Start(ctx)
}

// ServeCmd runs the HTTP API
type ServeCmd struct {
	Addr string `help:"Listen address (default from server.addr)"`
}

// ImportCmd imports a single game URL
type ImportCmd struct {
	URL          string `arg:"" help:"Game page URL (BoardGameGeek or any shop/publisher page)"`
	Library      string `short:"l" help:"Target library id" required:""`
	Expansion    string `help:"Expansion flag: auto detects it from the source and title" enum:"auto,yes,no" default:"auto"`
	ParentGameID string `help:"Parent game id for expansions"`
}

// FetchCmd resolves a URL without writing anything
type FetchCmd struct {
	URL string `arg:"" help:"Game page URL"`
}

// RefreshCmd re-enriches catalog entries
type RefreshCmd struct {
	Limit int `help:"Maximum number of catalog entries to refresh" default:"10"`
}

func (s *ServeCmd) Run(ctx context.Context) error {
	settings := config.Load()
	p, err := openPipeline(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	addr := s.Addr
	if addr == "" {
		addr = settings.ServerAddr
	}

	srv := server.New(p.importer,
		server.WithAddr(addr),
		server.WithMetrics(p.metrics),
		server.WithRefreshToken(settings.RefreshToken),
	)
	return runServer(ctx, srv)
}

func (i *ImportCmd) Run(ctx context.Context) error {
	p, err := openPipeline(ctx, config.Load())
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	req := importer.Request{
		URL:         i.URL,
		LibraryID:   i.Library,
		IsExpansion: expansionFlag(i.Expansion),
	}
	req.Extra.ParentGameID = i.ParentGameID

	res, err := p.importer.Import(ctx, req)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout, "%s %q (id %s)\n", res.Action, res.Game.Title, res.Game.ID)
	return err
}

func expansionFlag(v string) *bool {
	switch v {
	case "yes":
		b := true
		return &b
	case "no":
		b := false
		return &b
	default:
		return nil
	}
}

func (f *FetchCmd) Run(ctx context.Context) error {
	p, err := openPipeline(ctx, config.Load())
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	rec, err := p.importer.Resolve(ctx, f.URL)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return enc.Close()
}

func (r *RefreshCmd) Run(ctx context.Context) error {
	p, err := openPipeline(ctx, config.Load())
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	report, err := p.importer.Refresh(ctx, r.Limit)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout, "checked %d, refreshed %d, failed %d\n",
		report.Checked, report.Refreshed, report.Failed)
	return err
}
