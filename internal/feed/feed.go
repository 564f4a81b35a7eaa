package feed

import (
	"fmt"
	"log/slog"
)

// Parse parses all four feed blobs against the given offsets table and links
// the towns. Tables are parsed in dependency order (alliances, players,
// islands, towns); any parse error aborts the whole load.
//
// Link policy, by design rather than error:
//   - a player whose alliance id is unknown is allianceless
//   - a town whose player id is unknown is a ghost town
//   - a town whose island (x,y) or offset (type,slot) is missing falls back
//     to an arbitrary existing island/offset; feeds with such holes are a
//     known data quality issue and should still load
//
// The fallback needs at least one island and one offset to exist; a town
// feed over empty island or offset tables fails the load.
func Parse(raw Raw, offsets map[OffsetKey]Offset) (*Data, error) {
	alliances, err := ParseAlliances(raw.Alliances)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", raw.Server, err)
	}
	players, err := ParsePlayers(raw.Players)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", raw.Server, err)
	}
	islands, err := ParseIslands(raw.Islands)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", raw.Server, err)
	}
	towns, err := ParseTowns(raw.Towns)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", raw.Server, err)
	}

	data := &Data{
		Players:   players,
		Alliances: alliances,
		Islands:   islands,
		Offsets:   offsets,
		Towns:     make([]JoinedTown, 0, len(towns)),
	}
	for _, t := range towns {
		joined, err := data.link(t)
		if err != nil {
			return nil, fmt.Errorf("world %s: %w", raw.Server, err)
		}
		data.Towns = append(data.Towns, joined)
	}
	return data, nil
}

// link resolves one town's foreign keys.
func (d *Data) link(t Town) (JoinedTown, error) {
	joined := JoinedTown{Town: t}

	if t.PlayerID != nil {
		if p, ok := d.Players[*t.PlayerID]; ok {
			joined.Player = &p
			if p.AllianceID != nil {
				if a, ok := d.Alliances[*p.AllianceID]; ok {
					joined.Alliance = &a
				}
				// Unknown alliance id: the player is treated as allianceless.
			}
		}
		// Unknown player id: the town is a ghost town.
	}

	island, ok := d.Islands[IslandKey{X: t.X, Y: t.Y}]
	if !ok {
		island, ok = anyValue(d.Islands)
		if !ok {
			return JoinedTown{}, fmt.Errorf("town %d at (%d,%d): no islands to fall back to", t.ID, t.X, t.Y)
		}
		slog.Debug("town island missing, substituting", "town", t.ID, "x", t.X, "y", t.Y)
	}
	joined.Island = &island

	offset, ok := d.Offsets[OffsetKey{Type: island.Type, Slot: t.Slot}]
	if !ok {
		offset, ok = anyValue(d.Offsets)
		if !ok {
			return JoinedTown{}, fmt.Errorf("town %d slot %d on island type %d: no offsets to fall back to", t.ID, t.Slot, island.Type)
		}
		slog.Debug("town offset missing, substituting", "town", t.ID, "type", island.Type, "slot", t.Slot)
	}
	joined.Offset = &offset

	return joined, nil
}

func anyValue[K comparable, V any](m map[K]V) (V, bool) {
	for _, v := range m {
		return v, true
	}
	var zero V
	return zero, false
}
