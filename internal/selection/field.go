// Package selection models user-authored town filters: typed constraints,
// named ordered constraint groups with an AND/OR join mode, references from
// one selection to another, and the wire codec used for clipboard/file
// round-tripping.
package selection

// Field identifies one filterable town property, resolved through a fixed
// (table, property) lookup. The 16 members and their identifiers are part of
// the persisted selection format and must not change.
type Field int

const (
	PlayerName Field = iota
	PlayerPoints
	PlayerRank
	PlayerTowns
	AllianceName
	AlliancePoints
	AllianceTowns
	AllianceMembers
	AllianceRank
	TownName
	TownPoints
	IslandX
	IslandY
	IslandTowns
	IslandResMore
	IslandResLess

	numFields
)

// fieldSpec pins a Field to its source table and property, and fixes whether
// relational comparators treat its rendered value as a number. The flag is
// static per field, never inferred from the data.
type fieldSpec struct {
	name     string
	table    string
	property string
	numeric  bool
}

var fieldTable = [numFields]fieldSpec{
	PlayerName:      {"PlayerName", "players", "name", false},
	PlayerPoints:    {"PlayerPoints", "players", "points", true},
	PlayerRank:      {"PlayerRank", "players", "rank", true},
	PlayerTowns:     {"PlayerTowns", "players", "towns", true},
	AllianceName:    {"AllianceName", "alliances", "name", false},
	AlliancePoints:  {"AlliancePoints", "alliances", "points", true},
	AllianceTowns:   {"AllianceTowns", "alliances", "towns", true},
	AllianceMembers: {"AllianceMembers", "alliances", "members", true},
	AllianceRank:    {"AllianceRank", "alliances", "rank", true},
	TownName:        {"TownName", "towns", "name", false},
	TownPoints:      {"TownPoints", "towns", "points", true},
	IslandX:         {"IslandX", "islands", "x", true},
	IslandY:         {"IslandY", "islands", "y", true},
	IslandTowns:     {"IslandTowns", "islands", "towns", true},
	IslandResMore:   {"IslandResMore", "islands", "resource_plus", false},
	IslandResLess:   {"IslandResLess", "islands", "resource_minus", false},
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, numFields)
	for f := Field(0); f < numFields; f++ {
		m[fieldTable[f].name] = f
	}
	return m
}()

// Fields returns every field in declaration order.
func Fields() []Field {
	fs := make([]Field, numFields)
	for i := range fs {
		fs[i] = Field(i)
	}
	return fs
}

// FieldByName resolves a field identifier as it appears in the wire format.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// Valid reports whether f is one of the declared fields.
func (f Field) Valid() bool { return f >= 0 && f < numFields }

// String returns the field's wire identifier.
func (f Field) String() string {
	if !f.Valid() {
		return "Field(?)"
	}
	return fieldTable[f].name
}

// Table names the feed table the field reads from.
func (f Field) Table() string { return fieldTable[f].table }

// Property names the column within the field's table.
func (f Field) Property() string { return fieldTable[f].property }

// Numeric reports whether relational comparators compare this field as a
// number rather than lexicographically.
func (f Field) Numeric() bool { return fieldTable[f].numeric }
