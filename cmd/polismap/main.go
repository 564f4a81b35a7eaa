// Command polismap loads a game world's public data feeds and serves filter
// queries over the joined town graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"polismap/internal/api"
	"polismap/internal/feed"
	"polismap/internal/fetch"
	"polismap/internal/selection"
	"polismap/internal/storage"
)

func main() {
	var (
		server     = flag.String("server", "", "world server code to fetch (e.g. de99)")
		snapshot   = flag.String("snapshot", "", "snapshot file to load instead of fetching")
		selections = flag.String("selections", "", "YAML selections file to evaluate at startup")
		dataDir    = flag.String("data-dir", "data", "snapshot directory")
		listen     = flag.Int("listen", 8080, "HTTP API port")
		save       = flag.Bool("save", false, "snapshot the fetched world to the data directory")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	client := fetch.NewClient()
	loader := fetch.NewLoader(client, feed.DefaultOffsets())

	// ── Initial world ─────────────────────────────────────────────────
	switch {
	case *snapshot != "":
		raw, err := storage.Load(*snapshot)
		if err != nil {
			slog.Error("failed to load snapshot", "path", *snapshot, "error", err)
			os.Exit(1)
		}
		if _, err := loader.LoadRaw(raw); err != nil {
			slog.Error("failed to build world from snapshot", "path", *snapshot, "error", err)
			os.Exit(1)
		}
	case *server != "":
		raw, err := client.FetchWorld(context.Background(), *server)
		if err != nil {
			slog.Error("failed to fetch world", "server", *server, "error", err)
			os.Exit(1)
		}
		if _, err := loader.LoadRaw(raw); err != nil {
			slog.Error("failed to build world", "server", *server, "error", err)
			os.Exit(1)
		}
		if *save {
			path, err := storage.Save(*dataDir, raw)
			if err != nil {
				slog.Error("failed to save snapshot", "error", err)
				os.Exit(1)
			}
			slog.Info("snapshot saved", "path", path)
		}
	default:
		slog.Warn("no -server or -snapshot given, starting without a world (use POST /api/v1/reload)")
	}

	if store := loader.Current(); store != nil {
		towns, players, alliances, islands := store.Counts()
		fmt.Printf("World %s: %s towns, %s players, %s alliances, %s islands.\n",
			store.Server(),
			humanize.Comma(int64(towns)),
			humanize.Comma(int64(players)),
			humanize.Comma(int64(alliances)),
			humanize.Comma(int64(islands)),
		)
	}

	// ── Startup selections ────────────────────────────────────────────
	if *selections != "" {
		store := loader.Current()
		if store == nil {
			slog.Error("-selections needs a loaded world")
			os.Exit(1)
		}
		text, err := os.ReadFile(*selections)
		if err != nil {
			slog.Error("failed to read selections file", "path", *selections, "error", err)
			os.Exit(1)
		}
		imported, err := selection.Import(string(text))
		if err != nil {
			slog.Error("failed to import selections", "path", *selections, "error", err)
			os.Exit(1)
		}

		var all []*selection.Selection
		for _, entry := range imported {
			if entry.Err != nil {
				slog.Warn("skipping selection", "error", entry.Err)
				continue
			}
			all = append(all, entry.Selection)
		}
		for _, sel := range all {
			towns, err := store.MatchingTowns(sel, all)
			if err != nil {
				slog.Error("selection failed", "name", sel.Name, "error", err)
				continue
			}
			sel.Finish()
			fmt.Printf("  %-20s %s towns\n", sel.Name, humanize.Comma(int64(len(towns))))
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("POLISMAP_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("POLISMAP_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Loader:   loader,
		Client:   client,
		DataDir:  *dataDir,
		Port:     *listen,
		AdminKey: adminKey,
	}
	apiServer.Start()

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", *listen)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}
