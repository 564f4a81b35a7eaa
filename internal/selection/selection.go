package selection

import (
	"fmt"

	"github.com/google/uuid"
)

// JoinMode says how a selection combines its constraints.
type JoinMode int

const (
	// JoinAnd matches towns for which every constraint holds.
	JoinAnd JoinMode = iota
	// JoinOr matches towns for which any constraint holds.
	JoinOr
)

// JoinModeByIdent resolves "AND" or "OR".
func JoinModeByIdent(ident string) (JoinMode, bool) {
	switch ident {
	case "AND":
		return JoinAnd, true
	case "OR":
		return JoinOr, true
	}
	return JoinAnd, false
}

func (m JoinMode) String() string {
	if m == JoinOr {
		return "OR"
	}
	return "AND"
}

// State tracks a selection's refresh progress. It drives UI repaints only;
// store correctness never depends on it.
type State int

const (
	NewlyCreated State = iota
	Loading
	Finished
)

func (s State) String() string {
	switch s {
	case Loading:
		return "Loading"
	case Finished:
		return "Finished"
	}
	return "NewlyCreated"
}

// RGBA is a selection's display color. Alpha 0 means the selection is hidden
// on the map.
type RGBA [4]uint8

// DefaultColor is the green new selections start with.
var DefaultColor = RGBA{0, 255, 0, 255}

// Hidden reports whether the color is fully transparent.
func (c RGBA) Hidden() bool { return c[3] == 0 }

// Selection is a named, ordered group of constraints combined by a join
// mode. Selections may reference other selections by name through membership
// constraints; names are unique within the active selection set.
type Selection struct {
	// hiddenID survives renames so UI rows keep their identity. It is never
	// serialized.
	hiddenID string

	Name        string
	Color       RGBA
	Join        JoinMode
	Constraints []Constraint
	State       State
}

// New creates a selection with a random six-character name, the default
// constraint and the default color.
func New() *Selection {
	id := uuid.NewString()
	return &Selection{
		hiddenID:    id,
		Name:        id[:6],
		Color:       DefaultColor,
		Constraints: []Constraint{DefaultConstraint()},
	}
}

// ID returns the selection's hidden identity.
func (s *Selection) ID() string {
	if s.hiddenID == "" {
		s.hiddenID = uuid.NewString()
	}
	return s.hiddenID
}

// Touch records a constraint edit: results are stale until recomputed.
func (s *Selection) Touch() { s.State = Loading }

// Finish records that results for the current constraints are in hand.
func (s *Selection) Finish() { s.State = Finished }

// ReferencedNames returns the names of all selections directly referenced by
// membership constraints, in constraint order.
func (s *Selection) ReferencedNames() []string {
	var names []string
	for _, c := range s.Constraints {
		if name, ok := c.ReferencedSelection(); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Clone returns a deep copy. The copy shares the hidden identity.
func (s *Selection) Clone() *Selection {
	dup := *s
	dup.Constraints = append([]Constraint(nil), s.Constraints...)
	return &dup
}

func (s *Selection) String() string {
	return fmt.Sprintf("Selection(%s, %d constraints, %s)", s.Name, len(s.Constraints), s.Join)
}

// FindByName returns the first selection with the given name, or nil.
func FindByName(all []*Selection, name string) *Selection {
	for _, s := range all {
		if s.Name == name {
			return s
		}
	}
	return nil
}
