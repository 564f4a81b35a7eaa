// Package world owns the finished entity graph of one loaded game world and
// answers read-only filter queries over it. A Store is built once per load
// and is immutable afterwards; a new load replaces the whole store. Queries
// are pure functions of (graph, constraints) and are memoized by the store's
// query cache.
package world

import (
	"fmt"
	"strconv"
	"time"

	"polismap/internal/feed"
	"polismap/internal/selection"
)

// TownInfo is the externally visible town view: plain values only, safe to
// hand across API boundaries. Player and alliance fields are only meaningful
// when the Has flags are set.
type TownInfo struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Points int     `json:"points"`
	Slot   int     `json:"slot"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`

	HasPlayer    bool   `json:"has_player"`
	Player       string `json:"player,omitempty"`
	PlayerPoints int    `json:"player_points,omitempty"`
	PlayerRank   int    `json:"player_rank,omitempty"`
	PlayerTowns  int    `json:"player_towns,omitempty"`

	HasAlliance     bool   `json:"has_alliance"`
	Alliance        string `json:"alliance,omitempty"`
	AlliancePoints  int    `json:"alliance_points,omitempty"`
	AllianceTowns   int    `json:"alliance_towns,omitempty"`
	AllianceMembers int    `json:"alliance_members,omitempty"`
	AllianceRank    int    `json:"alliance_rank,omitempty"`

	IslandX        int    `json:"island_x"`
	IslandY        int    `json:"island_y"`
	IslandTowns    int    `json:"island_towns"`
	IslandResPlus  string `json:"island_res_plus"`
	IslandResMinus string `json:"island_res_minus"`
}

// Ghost reports whether the town has no resolvable owning player.
func (t *TownInfo) Ghost() bool { return !t.HasPlayer }

// Store holds one world's entity graph. Read-only after Build; safe for
// concurrent queries. The query cache is the only mutable part and handles
// its own locking.
type Store struct {
	server  string
	builtAt time.Time
	data    *feed.Data
	towns   []TownInfo
	cache   *queryCache
}

// Build assembles a store from parsed feed data.
func Build(data *feed.Data, server string) *Store {
	s := &Store{
		server:  server,
		builtAt: time.Now(),
		data:    data,
		towns:   make([]TownInfo, 0, len(data.Towns)),
		cache:   newQueryCache(),
	}
	for i := range data.Towns {
		s.towns = append(s.towns, townView(&data.Towns[i]))
	}
	return s
}

func townView(t *feed.JoinedTown) TownInfo {
	info := TownInfo{
		ID:             t.ID,
		Name:           t.Name,
		Points:         t.Points,
		Slot:           t.Slot,
		X:              t.ActualX(),
		Y:              t.ActualY(),
		IslandX:        t.Island.X,
		IslandY:        t.Island.Y,
		IslandTowns:    t.Island.Towns,
		IslandResPlus:  t.Island.ResPlus,
		IslandResMinus: t.Island.ResMinus,
	}
	if t.Player != nil {
		info.HasPlayer = true
		info.Player = t.Player.Name
		info.PlayerPoints = t.Player.Points
		info.PlayerRank = t.Player.Rank
		info.PlayerTowns = t.Player.Towns
	}
	if t.Alliance != nil {
		info.HasAlliance = true
		info.Alliance = t.Alliance.Name
		info.AlliancePoints = t.Alliance.Points
		info.AllianceTowns = t.Alliance.Towns
		info.AllianceMembers = t.Alliance.Members
		info.AllianceRank = t.Alliance.Rank
	}
	return info
}

// Server returns the world code this store was loaded for.
func (s *Store) Server() string { return s.server }

// BuiltAt returns the store's construction time.
func (s *Store) BuiltAt() time.Time { return s.builtAt }

// Counts returns entity totals for status reporting.
func (s *Store) Counts() (towns, players, alliances, islands int) {
	return len(s.towns), len(s.data.Players), len(s.data.Alliances), len(s.data.Islands)
}

// Computes reports how many from-scratch query computations the store has
// run. It exists so tests can verify the cache contract.
func (s *Store) Computes() int64 { return s.cache.Computes() }

// AllTowns returns every town.
func (s *Store) AllTowns() []TownInfo {
	out, _ := s.cache.townsFor("towns\x1eall", func() ([]TownInfo, error) {
		return cloneTowns(s.towns), nil
	})
	return cloneTowns(out)
}

// GhostTowns returns the towns with no resolvable player. Together with the
// owned towns they partition AllTowns.
func (s *Store) GhostTowns() []TownInfo {
	out, _ := s.cache.townsFor("towns\x1eghosts", func() ([]TownInfo, error) {
		var ghosts []TownInfo
		for i := range s.towns {
			if s.towns[i].Ghost() {
				ghosts = append(ghosts, s.towns[i])
			}
		}
		return ghosts, nil
	})
	return cloneTowns(out)
}

// MatchingTowns returns the towns matched by sel's constraints under its
// join mode. The empty (or all-neutral) constraint list matches nothing, by
// policy. Membership constraints are resolved against all; the full
// reference closure is checked for cycles before anything is evaluated.
func (s *Store) MatchingTowns(sel *selection.Selection, all []*selection.Selection) ([]TownInfo, error) {
	closure, err := selection.Closure(sel, all)
	if err != nil {
		return nil, err
	}

	key := matchKey(sel, closure)
	out, err := s.cache.townsFor(key, func() ([]TownInfo, error) {
		return s.computeMatching(sel, all)
	})
	if err != nil {
		return nil, err
	}
	return cloneTowns(out), nil
}

// DistinctValues returns the distinct renderings of field across the towns
// matching the constraints (across all towns when the effective constraint
// list is empty). Duplicates collapse; the result is sorted by the field's
// natural order.
func (s *Store) DistinctValues(field selection.Field, cons []selection.Constraint, all []*selection.Selection) ([]string, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("distinct values: invalid field %d", int(field))
	}

	// Constraint filtering for drop-down value lists always joins with AND.
	probe := &selection.Selection{Join: selection.JoinAnd, Constraints: cons}
	closure, err := selection.Closure(probe, all)
	if err != nil {
		return nil, err
	}

	key := distinctKey(field, probe, closure)
	out, err := s.cache.valuesFor(key, func() ([]string, error) {
		base := s.towns
		if !allNeutral(cons) {
			matched, err := s.computeMatching(probe, all)
			if err != nil {
				return nil, err
			}
			base = matched
		}

		seen := make(map[string]struct{})
		var values []string
		for i := range base {
			v, ok := render(&base[i], field)
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
		sortValues(values, field)
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), out...), nil
}

func allNeutral(cons []selection.Constraint) bool {
	for _, c := range cons {
		if !c.Neutral() {
			return false
		}
	}
	return true
}

func cloneTowns(ts []TownInfo) []TownInfo {
	out := make([]TownInfo, len(ts))
	copy(out, ts)
	return out
}

func itoa(v int) string { return strconv.Itoa(v) }
