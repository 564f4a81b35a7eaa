// Package storage saves fetched worlds as SQLite snapshot files and reads
// them back. A snapshot holds the parsed feed rows, so saving validates the
// feeds and loading reconstitutes byte-equivalent feed text.
package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"polismap/internal/feed"
)

// nameLayout is the timestamp format used in snapshot file names.
const nameLayout = "2006-01-02-15-04-05"

// Snapshot describes one snapshot file on disk.
type Snapshot struct {
	Path      string
	Server    string
	Timestamp time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS players (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	alliance_id INTEGER,
	points INTEGER NOT NULL,
	rank INTEGER NOT NULL,
	towns INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS alliances (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	points INTEGER NOT NULL,
	towns INTEGER NOT NULL,
	members INTEGER NOT NULL,
	rank INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS towns (
	id INTEGER PRIMARY KEY,
	player_id INTEGER,
	name TEXT NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	slot INTEGER NOT NULL,
	points INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS islands (
	id INTEGER PRIMARY KEY,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	type INTEGER NOT NULL,
	towns INTEGER NOT NULL,
	ressource_plus TEXT NOT NULL,
	ressource_minus TEXT NOT NULL
);
`

// Save validates the raw feeds and writes them as a snapshot file named
// <server>-<timestamp>.sqlite under dir. It returns the file path.
func Save(dir string, raw feed.Raw) (string, error) {
	players, err := feed.ParsePlayers(raw.Players)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", raw.Server, err)
	}
	alliances, err := feed.ParseAlliances(raw.Alliances)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", raw.Server, err)
	}
	towns, err := feed.ParseTowns(raw.Towns)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", raw.Server, err)
	}
	islands, err := feed.ParseIslands(raw.Islands)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", raw.Server, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot dir: %w", err)
	}

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.sqlite", raw.Server, ts.Format(nameLayout)))

	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return "", fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return "", fmt.Errorf("migrate snapshot: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('server', ?), ('timestamp', ?)",
		raw.Server, ts.Format(time.RFC3339)); err != nil {
		return "", fmt.Errorf("write meta: %w", err)
	}

	for _, p := range players {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO players (id, name, alliance_id, points, rank, towns) VALUES (?, ?, ?, ?, ?, ?)",
			p.ID, p.Name, p.AllianceID, p.Points, p.Rank, p.Towns,
		); err != nil {
			return "", fmt.Errorf("insert player %d: %w", p.ID, err)
		}
	}
	for _, a := range alliances {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO alliances (id, name, points, towns, members, rank) VALUES (?, ?, ?, ?, ?, ?)",
			a.ID, a.Name, a.Points, a.Towns, a.Members, a.Rank,
		); err != nil {
			return "", fmt.Errorf("insert alliance %d: %w", a.ID, err)
		}
	}
	for _, t := range towns {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO towns (id, player_id, name, x, y, slot, points) VALUES (?, ?, ?, ?, ?, ?, ?)",
			t.ID, t.PlayerID, t.Name, t.X, t.Y, t.Slot, t.Points,
		); err != nil {
			return "", fmt.Errorf("insert town %d: %w", t.ID, err)
		}
	}
	for _, is := range islands {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO islands (id, x, y, type, towns, ressource_plus, ressource_minus) VALUES (?, ?, ?, ?, ?, ?, ?)",
			is.ID, is.X, is.Y, is.Type, is.Towns, is.ResPlus, is.ResMinus,
		); err != nil {
			return "", fmt.Errorf("insert island %d: %w", is.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}
	return path, nil
}

// Load reads a snapshot file back into raw feed form. Names are re-encoded
// the way the live feeds encode them, so the result parses exactly like a
// fresh fetch.
func Load(path string) (feed.Raw, error) {
	db, err := sqlx.Open("sqlite", path+"?_busy_timeout=5000")
	if err != nil {
		return feed.Raw{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	raw := feed.Raw{}
	if err := db.Get(&raw.Server, "SELECT value FROM meta WHERE key = 'server'"); err != nil {
		return feed.Raw{}, fmt.Errorf("read meta: %w", err)
	}
	var tsText string
	if err := db.Get(&tsText, "SELECT value FROM meta WHERE key = 'timestamp'"); err != nil {
		return feed.Raw{}, fmt.Errorf("read meta: %w", err)
	}
	if raw.Timestamp, err = time.Parse(time.RFC3339, tsText); err != nil {
		return feed.Raw{}, fmt.Errorf("read meta: %w", err)
	}

	var playerRows []struct {
		ID         int           `db:"id"`
		Name       string        `db:"name"`
		AllianceID sql.NullInt64 `db:"alliance_id"`
		Points     int           `db:"points"`
		Rank       int           `db:"rank"`
		Towns      int           `db:"towns"`
	}
	if err := db.Select(&playerRows, "SELECT * FROM players ORDER BY id"); err != nil {
		return feed.Raw{}, fmt.Errorf("read players: %w", err)
	}
	var b strings.Builder
	for _, p := range playerRows {
		fmt.Fprintf(&b, "%d,%s,%s,%d,%d,%d\n",
			p.ID, url.QueryEscape(p.Name), nullable(p.AllianceID), p.Points, p.Rank, p.Towns)
	}
	raw.Players = b.String()

	var allianceRows []struct {
		ID      int    `db:"id"`
		Name    string `db:"name"`
		Points  int    `db:"points"`
		Towns   int    `db:"towns"`
		Members int    `db:"members"`
		Rank    int    `db:"rank"`
	}
	if err := db.Select(&allianceRows, "SELECT * FROM alliances ORDER BY id"); err != nil {
		return feed.Raw{}, fmt.Errorf("read alliances: %w", err)
	}
	b.Reset()
	for _, a := range allianceRows {
		fmt.Fprintf(&b, "%d,%s,%d,%d,%d,%d\n",
			a.ID, url.QueryEscape(a.Name), a.Points, a.Towns, a.Members, a.Rank)
	}
	raw.Alliances = b.String()

	var townRows []struct {
		ID       int           `db:"id"`
		PlayerID sql.NullInt64 `db:"player_id"`
		Name     string        `db:"name"`
		X        int           `db:"x"`
		Y        int           `db:"y"`
		Slot     int           `db:"slot"`
		Points   int           `db:"points"`
	}
	if err := db.Select(&townRows, "SELECT * FROM towns ORDER BY id"); err != nil {
		return feed.Raw{}, fmt.Errorf("read towns: %w", err)
	}
	b.Reset()
	for _, t := range townRows {
		fmt.Fprintf(&b, "%d,%s,%s,%d,%d,%d,%d\n",
			t.ID, nullable(t.PlayerID), url.QueryEscape(t.Name), t.X, t.Y, t.Slot, t.Points)
	}
	raw.Towns = b.String()

	var islandRows []struct {
		ID       int    `db:"id"`
		X        int    `db:"x"`
		Y        int    `db:"y"`
		Type     int    `db:"type"`
		Towns    int    `db:"towns"`
		ResPlus  string `db:"ressource_plus"`
		ResMinus string `db:"ressource_minus"`
	}
	if err := db.Select(&islandRows, "SELECT * FROM islands ORDER BY id"); err != nil {
		return feed.Raw{}, fmt.Errorf("read islands: %w", err)
	}
	b.Reset()
	for _, is := range islandRows {
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%s,%s\n",
			is.ID, is.X, is.Y, is.Type, is.Towns, is.ResPlus, is.ResMinus)
	}
	raw.Islands = b.String()

	return raw, nil
}

// List returns the snapshots under dir, newest first. Files that do not
// match the snapshot naming scheme are ignored.
func List(dir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sqlite") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".sqlite")
		parts := strings.SplitN(base, "-", 2)
		if len(parts) != 2 {
			continue
		}
		ts, err := time.Parse(nameLayout, parts[1])
		if err != nil {
			continue
		}
		out = append(out, Snapshot{
			Path:      filepath.Join(dir, e.Name()),
			Server:    parts[0],
			Timestamp: ts,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func nullable(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return fmt.Sprintf("%d", v.Int64)
}
