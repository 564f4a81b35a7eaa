package selection

// Comparator is the comparison half of a constraint. The four relational
// comparators compare a town's field rendering against the constraint value;
// the two membership comparators treat the value as the name of another
// selection.
type Comparator int

const (
	LessOrEqual Comparator = iota
	Equal
	GreaterOrEqual
	NotEqual
	InSelection
	NotInSelection

	numComparators
)

type comparatorSpec struct {
	ident  string
	symbol string
}

var comparatorTable = [numComparators]comparatorSpec{
	LessOrEqual:    {"LessOrEqual", "<="},
	Equal:          {"Equal", "="},
	GreaterOrEqual: {"GreaterOrEqual", ">="},
	NotEqual:       {"NotEqual", "<>"},
	InSelection:    {"InSelection", "in"},
	NotInSelection: {"NotInSelection", "not in"},
}

var comparatorsByIdent = func() map[string]Comparator {
	m := make(map[string]Comparator, numComparators)
	for c := Comparator(0); c < numComparators; c++ {
		m[comparatorTable[c].ident] = c
	}
	return m
}()

// Comparators returns every comparator in declaration order.
func Comparators() []Comparator {
	cs := make([]Comparator, numComparators)
	for i := range cs {
		cs[i] = Comparator(i)
	}
	return cs
}

// ComparatorByIdent resolves a comparator identifier as it appears in the
// wire format.
func ComparatorByIdent(ident string) (Comparator, bool) {
	c, ok := comparatorsByIdent[ident]
	return c, ok
}

// Valid reports whether c is one of the declared comparators.
func (c Comparator) Valid() bool { return c >= 0 && c < numComparators }

// Ident returns the comparator's wire identifier.
func (c Comparator) Ident() string {
	if !c.Valid() {
		return "Comparator(?)"
	}
	return comparatorTable[c].ident
}

// String returns the display symbol (<=, =, >=, <>, in, not in).
func (c Comparator) String() string {
	if !c.Valid() {
		return "Comparator(?)"
	}
	return comparatorTable[c].symbol
}

// Relational reports whether c compares field renderings directly.
func (c Comparator) Relational() bool { return c >= LessOrEqual && c <= NotEqual }

// Membership reports whether c resolves the value as a selection name.
func (c Comparator) Membership() bool { return c == InSelection || c == NotInSelection }

// CompareNumbers evaluates a relational comparator over two numbers.
// Membership comparators never reach this; callers resolve them one level up.
func (c Comparator) CompareNumbers(a, b float64) bool {
	switch c {
	case LessOrEqual:
		return a <= b
	case Equal:
		return a == b
	case GreaterOrEqual:
		return a >= b
	case NotEqual:
		return a != b
	}
	return false
}

// CompareStrings evaluates a relational comparator lexicographically.
func (c Comparator) CompareStrings(a, b string) bool {
	switch c {
	case LessOrEqual:
		return a <= b
	case Equal:
		return a == b
	case GreaterOrEqual:
		return a >= b
	case NotEqual:
		return a != b
	}
	return false
}
