package feed

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOffsets is a minimal offsets table: island type 1, slots 0 and 1.
const testOffsetsData = "1,10,20,0\n1,40,60,1\n"

func testOffsets(t *testing.T) map[OffsetKey]Offset {
	t.Helper()
	offsets, err := ParseOffsets(testOffsetsData)
	require.NoError(t, err)
	return offsets
}

func TestParsePlayers(t *testing.T) {
	players, err := ParsePlayers("1,Alice,,100,5,3\n2,Bob%20the%20Builder,7,250,2,8\n")
	require.NoError(t, err)
	require.Len(t, players, 2)

	alice := players[1]
	assert.Equal(t, "Alice", alice.Name)
	assert.Nil(t, alice.AllianceID, "empty alliance column means allianceless")
	assert.Equal(t, 100, alice.Points)

	bob := players[2]
	assert.Equal(t, "Bob the Builder", bob.Name, "percent-decoded")
	require.NotNil(t, bob.AllianceID)
	assert.Equal(t, 7, *bob.AllianceID)
}

func TestParseAlliances(t *testing.T) {
	alliances, err := ParseAlliances("7,The%20Wolves,9000,42,12,1\n")
	require.NoError(t, err)
	want := map[int]Alliance{
		7: {ID: 7, Name: "The Wolves", Points: 9000, Towns: 42, Members: 12, Rank: 1},
	}
	if diff := cmp.Diff(want, alliances); diff != "" {
		t.Errorf("alliances mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIslandsKeyedByCoordinate(t *testing.T) {
	islands, err := ParseIslands("5,10,20,1,14,wood,iron\n")
	require.NoError(t, err)
	is, ok := islands[IslandKey{X: 10, Y: 20}]
	require.True(t, ok)
	assert.Equal(t, 5, is.ID)
	assert.Equal(t, "wood", is.ResPlus)
	assert.Equal(t, "iron", is.ResMinus)
}

func TestParseAbortsOnMalformedLine(t *testing.T) {
	// Second line has a bad points column; nothing must be imported.
	_, err := ParsePlayers("1,Alice,,100,5,3\n2,Bob,,notanumber,2,8\n")
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "players", parseErr.Table)
	assert.Equal(t, 2, parseErr.Line)
	assert.Equal(t, "points", parseErr.Field)
}

func TestParseAbortsOnColumnCount(t *testing.T) {
	_, err := ParseAlliances("7,TheWolves,9000,42\n")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, parseErr.Line)
}

func TestParseSkipsBlankLines(t *testing.T) {
	players, err := ParsePlayers("1,Alice,,100,5,3\n\n2,Bob,,250,2,8\n")
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestDuplicateKeyLastOneWins(t *testing.T) {
	players, err := ParsePlayers("1,First,,100,5,3\n1,Second,,200,4,6\n")
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Second", players[1].Name)

	towns, err := ParseTowns("1,,First,10,20,0,50\n1,,Second,10,20,1,60\n")
	require.NoError(t, err)
	require.Len(t, towns, 1)
	assert.Equal(t, "Second", towns[0].Name)
}

func worldRaw(players, towns string) Raw {
	return Raw{
		Server:    "de99",
		Players:   players,
		Alliances: "",
		Towns:     towns,
		Islands:   "5,10,20,1,14,wood,iron\n",
	}
}

func TestParseEndToEnd(t *testing.T) {
	data, err := Parse(worldRaw("1,Alice,,100,5,3\n", "1,1,MyTown,10,20,0,50\n"), testOffsets(t))
	require.NoError(t, err)
	require.Len(t, data.Towns, 1)

	town := data.Towns[0]
	assert.Equal(t, "MyTown", town.Name)
	require.NotNil(t, town.Player)
	assert.Equal(t, "Alice", town.Player.Name)
	assert.Nil(t, town.Alliance)
	require.NotNil(t, town.Island)
	assert.Equal(t, 5, town.Island.ID)

	// actual = grid + sub/125
	assert.InDelta(t, 10.0+10.0/125.0, town.ActualX(), 1e-9)
	assert.InDelta(t, 20.0+20.0/125.0, town.ActualY(), 1e-9)
}

func TestParseGhostTown(t *testing.T) {
	// No players feed at all: the town has no resolvable owner.
	data, err := Parse(worldRaw("", "1,1,MyTown,10,20,0,50\n"), testOffsets(t))
	require.NoError(t, err)
	require.Len(t, data.Towns, 1)
	assert.Nil(t, data.Towns[0].Player, "unknown player id makes a ghost town, not an error")
}

func TestParseUnknownAllianceIsAllianceless(t *testing.T) {
	data, err := Parse(worldRaw("1,Alice,99,100,5,3\n", "1,1,MyTown,10,20,0,50\n"), testOffsets(t))
	require.NoError(t, err)
	require.NotNil(t, data.Towns[0].Player)
	assert.Nil(t, data.Towns[0].Alliance)
}

func TestParseDanglingIslandFallsBack(t *testing.T) {
	// Town sits at (99,99), which has no island; it must be substituted with
	// the one existing island rather than failing the load.
	data, err := Parse(worldRaw("", "1,,Lost,99,99,0,50\n"), testOffsets(t))
	require.NoError(t, err)
	require.NotNil(t, data.Towns[0].Island)
	assert.Equal(t, 5, data.Towns[0].Island.ID)
}

func TestParseDanglingOffsetFallsBack(t *testing.T) {
	// Slot 9 has no offset for island type 1.
	data, err := Parse(worldRaw("", "1,,Lost,10,20,9,50\n"), testOffsets(t))
	require.NoError(t, err)
	require.NotNil(t, data.Towns[0].Offset)
}

func TestParseNoIslandsAtAllFails(t *testing.T) {
	raw := worldRaw("", "1,,Lost,10,20,0,50\n")
	raw.Islands = ""
	_, err := Parse(raw, testOffsets(t))
	require.Error(t, err)
}

func TestParsePropagatesTableError(t *testing.T) {
	raw := worldRaw("1,Alice,,100,x,3\n", "")
	_, err := Parse(raw, testOffsets(t))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "players", parseErr.Table)
	assert.Equal(t, "rank", parseErr.Field)
}

func TestDefaultOffsetsParse(t *testing.T) {
	offsets := DefaultOffsets()
	require.NotEmpty(t, offsets)
	// Every common island type has a first slot.
	for typ := 1; typ <= 10; typ++ {
		_, ok := offsets[OffsetKey{Type: typ, Slot: 1}]
		assert.True(t, ok, "type %d slot 1", typ)
	}
}
