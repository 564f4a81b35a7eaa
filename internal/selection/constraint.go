package selection

import (
	"fmt"
	"strconv"
)

// Constraint is a single predicate (field, comparator, value) over a town.
// The value is always carried as text; numeric fields parse it at evaluation
// time.
type Constraint struct {
	Field      Field
	Comparator Comparator
	Value      string
}

// DefaultConstraint is the constraint a freshly created selection starts
// with: PlayerName = "".
func DefaultConstraint() Constraint {
	return Constraint{Field: PlayerName, Comparator: Equal}
}

func (c Constraint) String() string {
	return fmt.Sprintf("Constraint(%s %s %s)", c.Field, c.Comparator, c.Value)
}

// ReferencedSelection returns the name of the selection a membership
// constraint points at, and whether there is one.
func (c Constraint) ReferencedSelection() (string, bool) {
	if c.Comparator.Membership() {
		return c.Value, true
	}
	return "", false
}

// Neutral reports whether the constraint cannot restrict anything: its value
// is empty, or its field is numeric and the value does not parse as a number.
// A neutral constraint matches everything under an AND join and nothing under
// an OR join, so it never changes the joined result. Membership constraints
// are never neutral; an unknown referenced name has defined fallback
// semantics instead.
func (c Constraint) Neutral() bool {
	if c.Comparator.Membership() {
		return c.Value == ""
	}
	if c.Value == "" {
		return true
	}
	if c.Field.Numeric() {
		_, err := strconv.ParseFloat(c.Value, 64)
		return err != nil
	}
	return false
}

// NumericValue parses the constraint value for comparison against a numeric
// field. Callers must have checked Neutral first.
func (c Constraint) NumericValue() (float64, bool) {
	v, err := strconv.ParseFloat(c.Value, 64)
	return v, err == nil
}
