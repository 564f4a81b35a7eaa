package feed

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseError is a fatal feed parse failure. Line numbers are 1-based;
// Field names the offending column. A single ParseError aborts the entire
// table (no partial import).
type ParseError struct {
	Table string
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s line %d, field %q: %v", e.Table, e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// record is one feed line under scrutiny.
type record struct {
	table string
	line  int
	cols  []string
}

func (r record) errf(field, format string, args ...any) error {
	return &ParseError{Table: r.table, Line: r.line, Field: field, Err: fmt.Errorf(format, args...)}
}

func (r record) int(i int, field string) (int, error) {
	v, err := strconv.Atoi(r.cols[i])
	if err != nil {
		return 0, r.errf(field, "%q is not an integer", r.cols[i])
	}
	return v, nil
}

// optInt parses a column that may be empty (an absent foreign key).
func (r record) optInt(i int, field string) (*int, error) {
	if r.cols[i] == "" {
		return nil, nil
	}
	v, err := r.int(i, field)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// text percent-decodes a text column ('+' decodes as space).
func (r record) text(i int, field string) (string, error) {
	v, err := url.QueryUnescape(r.cols[i])
	if err != nil {
		return "", r.errf(field, "%q is not percent-decodable: %v", r.cols[i], err)
	}
	return v, nil
}

// eachRecord splits text into comma-separated records and calls fn for each
// non-blank line, enforcing the column count. The first error aborts.
func eachRecord(table, text string, columns int, fn func(record) error) error {
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		cols := strings.Split(line, ",")
		if len(cols) != columns {
			return &ParseError{
				Table: table,
				Line:  i + 1,
				Field: "",
				Err:   fmt.Errorf("want %d columns, got %d", columns, len(cols)),
			}
		}
		if err := fn(record{table: table, line: i + 1, cols: cols}); err != nil {
			return err
		}
	}
	return nil
}

// ParseAlliances parses the alliances feed: id,name,points,towns,members,rank.
func ParseAlliances(text string) (map[int]Alliance, error) {
	out := make(map[int]Alliance)
	err := eachRecord("alliances", text, 6, func(r record) error {
		var (
			a   Alliance
			err error
		)
		if a.ID, err = r.int(0, "id"); err != nil {
			return err
		}
		if a.Name, err = r.text(1, "name"); err != nil {
			return err
		}
		if a.Points, err = r.int(2, "points"); err != nil {
			return err
		}
		if a.Towns, err = r.int(3, "towns"); err != nil {
			return err
		}
		if a.Members, err = r.int(4, "members"); err != nil {
			return err
		}
		if a.Rank, err = r.int(5, "rank"); err != nil {
			return err
		}
		out[a.ID] = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParsePlayers parses the players feed: id,name,alliance_id,points,rank,towns.
// The alliance id column may be empty.
func ParsePlayers(text string) (map[int]Player, error) {
	out := make(map[int]Player)
	err := eachRecord("players", text, 6, func(r record) error {
		var (
			p   Player
			err error
		)
		if p.ID, err = r.int(0, "id"); err != nil {
			return err
		}
		if p.Name, err = r.text(1, "name"); err != nil {
			return err
		}
		if p.AllianceID, err = r.optInt(2, "alliance_id"); err != nil {
			return err
		}
		if p.Points, err = r.int(3, "points"); err != nil {
			return err
		}
		if p.Rank, err = r.int(4, "rank"); err != nil {
			return err
		}
		if p.Towns, err = r.int(5, "towns"); err != nil {
			return err
		}
		out[p.ID] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseIslands parses the islands feed:
// id,x,y,type,towns,resource_plus,resource_minus. The result is keyed by
// grid coordinate, the key towns are linked through.
func ParseIslands(text string) (map[IslandKey]Island, error) {
	out := make(map[IslandKey]Island)
	err := eachRecord("islands", text, 7, func(r record) error {
		var (
			is  Island
			err error
		)
		if is.ID, err = r.int(0, "id"); err != nil {
			return err
		}
		if is.X, err = r.int(1, "x"); err != nil {
			return err
		}
		if is.Y, err = r.int(2, "y"); err != nil {
			return err
		}
		if is.Type, err = r.int(3, "type"); err != nil {
			return err
		}
		if is.Towns, err = r.int(4, "towns"); err != nil {
			return err
		}
		if is.ResPlus, err = r.text(5, "resource_plus"); err != nil {
			return err
		}
		if is.ResMinus, err = r.text(6, "resource_minus"); err != nil {
			return err
		}
		out[IslandKey{X: is.X, Y: is.Y}] = is
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseTowns parses the towns feed: id,player_id,name,x,y,slot_number,points.
// The player id column may be empty (a ghost town).
func ParseTowns(text string) ([]Town, error) {
	byID := make(map[int]int) // town id -> index, for last-one-wins
	var out []Town
	err := eachRecord("towns", text, 7, func(r record) error {
		var (
			t   Town
			err error
		)
		if t.ID, err = r.int(0, "id"); err != nil {
			return err
		}
		if t.PlayerID, err = r.optInt(1, "player_id"); err != nil {
			return err
		}
		if t.Name, err = r.text(2, "name"); err != nil {
			return err
		}
		if t.X, err = r.int(3, "x"); err != nil {
			return err
		}
		if t.Y, err = r.int(4, "y"); err != nil {
			return err
		}
		if t.Slot, err = r.int(5, "slot_number"); err != nil {
			return err
		}
		if t.Points, err = r.int(6, "points"); err != nil {
			return err
		}
		if i, seen := byID[t.ID]; seen {
			out[i] = t
		} else {
			byID[t.ID] = len(out)
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseOffsets parses the static offsets table: type,x,y,slot_number.
func ParseOffsets(text string) (map[OffsetKey]Offset, error) {
	out := make(map[OffsetKey]Offset)
	err := eachRecord("offsets", text, 4, func(r record) error {
		var (
			o   Offset
			err error
		)
		if o.Type, err = r.int(0, "type"); err != nil {
			return err
		}
		if o.X, err = r.int(1, "x"); err != nil {
			return err
		}
		if o.Y, err = r.int(2, "y"); err != nil {
			return err
		}
		if o.Slot, err = r.int(3, "slot_number"); err != nil {
			return err
		}
		out[OffsetKey{Type: o.Type, Slot: o.Slot}] = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
