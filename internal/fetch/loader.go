package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"polismap/internal/feed"
	"polismap/internal/world"
)

// Loader turns feed fetches into installed world stores. Loads may overlap;
// each load takes a generation number before fetching, and only the load
// holding the newest generation installs its result. Slower superseded loads
// finish normally but their stores are dropped.
type Loader struct {
	client  *Client
	offsets map[feed.OffsetKey]feed.Offset

	generation atomic.Int64
	installMu  sync.Mutex
	current    atomic.Pointer[world.Store]
}

// NewLoader creates a loader fetching with client and linking towns against
// the given slot-offset table (feed.DefaultOffsets for the built-in one).
func NewLoader(client *Client, offsets map[feed.OffsetKey]feed.Offset) *Loader {
	return &Loader{client: client, offsets: offsets}
}

// Current returns the most recently installed store, or nil before the first
// successful load.
func (l *Loader) Current() *world.Store {
	return l.current.Load()
}

// Load fetches, parses and builds the given world, then installs the store
// unless a newer load started in the meantime. The built store is returned
// either way; check Current to see which load won.
func (l *Loader) Load(ctx context.Context, server string) (*world.Store, error) {
	gen := l.generation.Add(1)

	raw, err := l.client.FetchWorld(ctx, server)
	if err != nil {
		return nil, err
	}
	return l.install(gen, raw)
}

// LoadRaw builds and installs a store from already fetched feeds, typically a
// snapshot read back from disk. It participates in the same generation race
// as Load.
func (l *Loader) LoadRaw(raw feed.Raw) (*world.Store, error) {
	return l.install(l.generation.Add(1), raw)
}

func (l *Loader) install(gen int64, raw feed.Raw) (*world.Store, error) {
	data, err := feed.Parse(raw, l.offsets)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", raw.Server, err)
	}
	store := world.Build(data, raw.Server)

	l.installMu.Lock()
	defer l.installMu.Unlock()
	if gen != l.generation.Load() {
		slog.Info("dropping superseded world load",
			"server", raw.Server,
			"generation", gen,
			"newest", l.generation.Load(),
		)
		return store, nil
	}
	l.current.Store(store)

	towns, players, alliances, islands := store.Counts()
	slog.Info("world loaded",
		"server", raw.Server,
		"towns", towns,
		"players", players,
		"alliances", alliances,
		"islands", islands,
	)
	return store, nil
}
