package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polismap/internal/feed"
	"polismap/internal/selection"
)

// buildStore assembles a small fixed world:
//
//	Alice (alliance Wolves, 100 pts) owns Alpha (120 pts) and Beta (80 pts)
//	Bob   (no alliance,      10 pts) owns Gamma (10 pts)
//	Carol (alliance Wolves,  50 pts) owns Delta (60 pts)
//	GhostTown (5 pts) has no owner
func buildStore(t *testing.T) *Store {
	t.Helper()
	raw := feed.Raw{
		Server:    "de99",
		Alliances: "1,Wolves,9000,3,2,1\n",
		Players:   "1,Alice,1,100,5,2\n2,Bob,,10,9,1\n3,Carol,1,50,7,1\n",
		Islands:   "1,10,20,1,4,wood,iron\n2,30,40,1,2,stone,wood\n",
		Towns: "1,1,Alpha,10,20,1,120\n" +
			"2,1,Beta,10,20,2,80\n" +
			"3,2,Gamma,30,40,1,10\n" +
			"4,,GhostTown,10,20,3,5\n" +
			"5,3,Delta,30,40,2,60\n",
	}
	data, err := feed.Parse(raw, feed.DefaultOffsets())
	require.NoError(t, err)
	return Build(data, raw.Server)
}

func names(towns []TownInfo) []string {
	out := make([]string, len(towns))
	for i, t := range towns {
		out[i] = t.Name
	}
	return out
}

func con(f selection.Field, c selection.Comparator, v string) selection.Constraint {
	return selection.Constraint{Field: f, Comparator: c, Value: v}
}

func sel(name string, join selection.JoinMode, cons ...selection.Constraint) *selection.Selection {
	return &selection.Selection{Name: name, Join: join, Constraints: cons}
}

func TestGhostTownsPartitionAllTowns(t *testing.T) {
	s := buildStore(t)

	all := s.AllTowns()
	ghosts := s.GhostTowns()
	require.Len(t, all, 5)
	require.Len(t, ghosts, 1)
	assert.Equal(t, "GhostTown", ghosts[0].Name)

	owned := 0
	for _, town := range all {
		if !town.Ghost() {
			owned++
		}
	}
	assert.Equal(t, len(all), owned+len(ghosts))
}

func TestMatchingEmptyConstraintsMatchesNothing(t *testing.T) {
	s := buildStore(t)

	got, err := s.MatchingTowns(sel("empty", selection.JoinAnd), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	// All-neutral is the same as empty: a default constraint with an empty
	// value restricts nothing and must not widen to "match all".
	got, err = s.MatchingTowns(sel("neutral", selection.JoinAnd, selection.DefaultConstraint()), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchingNumericComparison(t *testing.T) {
	s := buildStore(t)

	// 10 >= 9 numerically even though "10" < "9" lexicographically.
	got, err := s.MatchingTowns(sel("q", selection.JoinAnd,
		con(selection.PlayerPoints, selection.GreaterOrEqual, "9")), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Gamma", "Delta"}, names(got))

	got, err = s.MatchingTowns(sel("q2", selection.JoinAnd,
		con(selection.PlayerPoints, selection.GreaterOrEqual, "50")), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Delta"}, names(got))
}

func TestMatchingTextualComparison(t *testing.T) {
	s := buildStore(t)

	got, err := s.MatchingTowns(sel("q", selection.JoinAnd,
		con(selection.PlayerName, selection.LessOrEqual, "Bob")), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Gamma"}, names(got))
}

func TestMatchingGhostNeverMatchesPlayerFields(t *testing.T) {
	s := buildStore(t)

	// <> on a player field still requires a player to compare against.
	got, err := s.MatchingTowns(sel("q", selection.JoinAnd,
		con(selection.PlayerName, selection.NotEqual, "Nobody")), nil)
	require.NoError(t, err)
	for _, town := range got {
		assert.False(t, town.Ghost(), "ghost town %s matched a player constraint", town.Name)
	}
	assert.Len(t, got, 4)
}

func TestMatchingJoinModes(t *testing.T) {
	s := buildStore(t)

	and, err := s.MatchingTowns(sel("and", selection.JoinAnd,
		con(selection.AllianceName, selection.Equal, "Wolves"),
		con(selection.TownPoints, selection.GreaterOrEqual, "100")), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha"}, names(and))

	or, err := s.MatchingTowns(sel("or", selection.JoinOr,
		con(selection.AllianceName, selection.Equal, "Wolves"),
		con(selection.TownPoints, selection.GreaterOrEqual, "100")), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Delta"}, names(or))
}

func TestMatchingNeutralTakesJoinIdentity(t *testing.T) {
	s := buildStore(t)

	// Under AND a neutral constraint must not block the others.
	got, err := s.MatchingTowns(sel("and", selection.JoinAnd,
		con(selection.PlayerName, selection.Equal, ""),
		con(selection.AllianceName, selection.Equal, "Wolves")), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Delta"}, names(got))

	// Under OR a neutral constraint must not match everything.
	got, err = s.MatchingTowns(sel("or", selection.JoinOr,
		con(selection.PlayerName, selection.Equal, ""),
		con(selection.AllianceName, selection.Equal, "Wolves")), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Delta"}, names(got))

	// An unparsable value on a numeric field is neutral too.
	got, err = s.MatchingTowns(sel("bad", selection.JoinAnd,
		con(selection.PlayerPoints, selection.GreaterOrEqual, "lots"),
		con(selection.AllianceName, selection.Equal, "Wolves")), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Delta"}, names(got))
}

func TestMatchingMembership(t *testing.T) {
	s := buildStore(t)

	wolves := sel("wolves", selection.JoinAnd,
		con(selection.AllianceName, selection.Equal, "Wolves"))
	all := []*selection.Selection{wolves}

	in, err := s.MatchingTowns(sel("in", selection.JoinAnd,
		con(selection.PlayerName, selection.InSelection, "wolves")), all)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Delta"}, names(in))

	notIn, err := s.MatchingTowns(sel("notin", selection.JoinAnd,
		con(selection.PlayerName, selection.NotInSelection, "wolves")), all)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Gamma", "GhostTown"}, names(notIn))
}

func TestMatchingDanglingSelectionReference(t *testing.T) {
	s := buildStore(t)

	in, err := s.MatchingTowns(sel("in", selection.JoinAnd,
		con(selection.PlayerName, selection.InSelection, "no-such")), nil)
	require.NoError(t, err)
	assert.Empty(t, in, "in a missing selection matches nothing")

	notIn, err := s.MatchingTowns(sel("notin", selection.JoinAnd,
		con(selection.PlayerName, selection.NotInSelection, "no-such")), nil)
	require.NoError(t, err)
	assert.Len(t, notIn, 5, "not in a missing selection matches everything")
}

func TestMatchingCycleIsAnError(t *testing.T) {
	s := buildStore(t)

	a := sel("A", selection.JoinAnd, con(selection.PlayerName, selection.InSelection, "B"))
	b := sel("B", selection.JoinAnd, con(selection.PlayerName, selection.InSelection, "A"))
	all := []*selection.Selection{a, b}

	_, err := s.MatchingTowns(a, all)
	require.Error(t, err)
	var cycleErr *selection.CycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestQueryCacheComputesOnce(t *testing.T) {
	s := buildStore(t)
	q := sel("q", selection.JoinAnd, con(selection.AllianceName, selection.Equal, "Wolves"))

	first, err := s.MatchingTowns(q, nil)
	require.NoError(t, err)
	after := s.Computes()

	second, err := s.MatchingTowns(q, nil)
	require.NoError(t, err)
	assert.Equal(t, after, s.Computes(), "identical query must be served from cache")
	assert.Equal(t, names(first), names(second))
}

func TestQueryCacheResultsAreIsolated(t *testing.T) {
	s := buildStore(t)
	q := sel("q", selection.JoinAnd, con(selection.AllianceName, selection.Equal, "Wolves"))

	first, err := s.MatchingTowns(q, nil)
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := s.MatchingTowns(q, nil)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Name, "callers must not see each other's mutations")
}

func TestQueryCacheReorderedConstraintsRecompute(t *testing.T) {
	s := buildStore(t)
	c1 := con(selection.AllianceName, selection.Equal, "Wolves")
	c2 := con(selection.TownPoints, selection.GreaterOrEqual, "100")

	_, err := s.MatchingTowns(sel("a", selection.JoinAnd, c1, c2), nil)
	require.NoError(t, err)
	after := s.Computes()

	// Same constraints, different order: semantically equal, but keyed by the
	// literal vector, so it computes again.
	_, err = s.MatchingTowns(sel("b", selection.JoinAnd, c2, c1), nil)
	require.NoError(t, err)
	assert.Equal(t, after+1, s.Computes())
}

func TestQueryCacheKeyTracksReferencedSelections(t *testing.T) {
	s := buildStore(t)

	ref := sel("ref", selection.JoinAnd, con(selection.AllianceName, selection.Equal, "Wolves"))
	q := sel("q", selection.JoinAnd, con(selection.PlayerName, selection.InSelection, "ref"))
	all := []*selection.Selection{ref}

	first, err := s.MatchingTowns(q, all)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	// Editing the referenced selection must not serve the stale result.
	ref.Constraints = []selection.Constraint{con(selection.PlayerName, selection.Equal, "Bob")}
	second, err := s.MatchingTowns(q, all)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Gamma"}, names(second))
}

func TestDistinctValuesUnconstrained(t *testing.T) {
	s := buildStore(t)

	players, err := s.DistinctValues(selection.PlayerName, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, players, "ghosts render no player name")

	// Numeric fields sort numerically, not lexicographically.
	points, err := s.DistinctValues(selection.TownPoints, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "10", "60", "80", "120"}, points)
}

func TestDistinctValuesConstrained(t *testing.T) {
	s := buildStore(t)

	cons := []selection.Constraint{con(selection.PlayerPoints, selection.GreaterOrEqual, "50")}
	got, err := s.DistinctValues(selection.AllianceName, cons, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Wolves"}, got)
}

func TestDistinctValuesCollapsesDuplicates(t *testing.T) {
	s := buildStore(t)

	got, err := s.DistinctValues(selection.AllianceName, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Wolves"}, got, "one value per alliance, not one per town")
}

func TestDistinctValuesInvalidField(t *testing.T) {
	s := buildStore(t)
	_, err := s.DistinctValues(selection.Field(999), nil, nil)
	require.Error(t, err)
}
