// Package feed parses the four flat text feeds of one game world (players,
// alliances, towns, islands) plus the static slot-offset table, and joins
// them into cross-referenced town records. Parsing is strict and
// all-or-nothing per table; linking follows documented fallback policies for
// feeds with data quality issues.
package feed

import "time"

// Raw holds the four feed blobs of one load, as fetched.
type Raw struct {
	Server    string
	Timestamp time.Time

	Players   string
	Alliances string
	Towns     string
	Islands   string
}

// Player is one row of the players feed.
type Player struct {
	ID         int
	Name       string
	AllianceID *int // nil when the player is allianceless
	Points     int
	Rank       int
	Towns      int
}

// Alliance is one row of the alliances feed.
type Alliance struct {
	ID      int
	Name    string
	Points  int
	Towns   int
	Members int
	Rank    int
}

// Island is one row of the islands feed. Islands are looked up by grid
// coordinate, not id.
type Island struct {
	ID       int
	X, Y     int
	Type     int
	Towns    int
	ResPlus  string
	ResMinus string
}

// IslandKey is the natural lookup key of an island.
type IslandKey struct {
	X, Y int
}

// Offset is one row of the static offsets table: the sub-grid position of a
// town slot on an island of the given type. Sub-grid resolution is 1/125th
// of a world tile.
type Offset struct {
	Type int
	X, Y int
	Slot int
}

// OffsetKey is the natural lookup key of an offset.
type OffsetKey struct {
	Type int
	Slot int
}

// Town is one row of the towns feed.
type Town struct {
	ID       int
	PlayerID *int // nil marks a ghost town
	Name     string
	X, Y     int // island grid coordinate
	Slot     int
	Points   int
}

// JoinedTown is a town with its foreign keys resolved. Player and Alliance
// are nil for ghost towns and allianceless owners; Island and Offset are
// always set (via the fallback policy if need be).
type JoinedTown struct {
	Town
	Player   *Player
	Alliance *Alliance
	Island   *Island
	Offset   *Offset
}

// ActualX returns the town's display x coordinate: island grid position plus
// the slot's sub-grid offset.
func (t *JoinedTown) ActualX() float64 {
	return float64(t.X) + float64(t.Offset.X)/125.0
}

// ActualY returns the town's display y coordinate.
func (t *JoinedTown) ActualY() float64 {
	return float64(t.Y) + float64(t.Offset.Y)/125.0
}

// Data is the parsed and linked form of one world load. Maps are keyed by
// the entities' natural keys; duplicate keys in a feed silently overwrite
// (last one wins).
type Data struct {
	Players   map[int]Player
	Alliances map[int]Alliance
	Islands   map[IslandKey]Island
	Offsets   map[OffsetKey]Offset
	Towns     []JoinedTown
}
