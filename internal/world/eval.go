package world

import (
	"sort"
	"strconv"
	"strings"

	"polismap/internal/selection"
)

// render returns the town's string rendering of a field. ok is false when
// the field is not resolvable for this town (player fields of a ghost town,
// alliance fields of an allianceless owner); such towns never match a
// relational constraint on the field.
func render(t *TownInfo, f selection.Field) (string, bool) {
	switch f {
	case selection.PlayerName:
		return t.Player, t.HasPlayer
	case selection.PlayerPoints:
		return itoa(t.PlayerPoints), t.HasPlayer
	case selection.PlayerRank:
		return itoa(t.PlayerRank), t.HasPlayer
	case selection.PlayerTowns:
		return itoa(t.PlayerTowns), t.HasPlayer
	case selection.AllianceName:
		return t.Alliance, t.HasAlliance
	case selection.AlliancePoints:
		return itoa(t.AlliancePoints), t.HasAlliance
	case selection.AllianceTowns:
		return itoa(t.AllianceTowns), t.HasAlliance
	case selection.AllianceMembers:
		return itoa(t.AllianceMembers), t.HasAlliance
	case selection.AllianceRank:
		return itoa(t.AllianceRank), t.HasAlliance
	case selection.TownName:
		return t.Name, true
	case selection.TownPoints:
		return itoa(t.Points), true
	case selection.IslandX:
		return itoa(t.IslandX), true
	case selection.IslandY:
		return itoa(t.IslandY), true
	case selection.IslandTowns:
		return itoa(t.IslandTowns), true
	case selection.IslandResMore:
		return t.IslandResPlus, true
	case selection.IslandResLess:
		return t.IslandResMinus, true
	}
	return "", false
}

// matches evaluates one relational constraint against one town. Numeric
// fields compare as numbers, textual fields lexicographically; the flag is
// fixed per field.
func matches(t *TownInfo, c selection.Constraint) bool {
	rendered, ok := render(t, c.Field)
	if !ok {
		return false
	}
	if c.Field.Numeric() {
		want, ok := c.NumericValue()
		if !ok {
			return false
		}
		have, err := strconv.ParseFloat(rendered, 64)
		if err != nil {
			return false
		}
		return c.Comparator.CompareNumbers(have, want)
	}
	return c.Comparator.CompareStrings(rendered, c.Value)
}

// computeMatching is the uncached evaluation of a selection. Callers must
// have run cycle detection on sel's reference closure first.
func (s *Store) computeMatching(sel *selection.Selection, all []*selection.Selection) ([]TownInfo, error) {
	if allNeutral(sel.Constraints) && !hasMembership(sel.Constraints) {
		// No constraint can restrict anything: empty result by policy, never
		// "match all".
		return nil, nil
	}

	// Resolve membership sets once per referenced name.
	members := make(map[string]map[int]struct{})
	for _, c := range sel.Constraints {
		name, ok := c.ReferencedSelection()
		if !ok {
			continue
		}
		if _, done := members[name]; done {
			continue
		}
		ref := selection.FindByName(all, name)
		if ref == nil {
			// Dangling selection name: InSelection matches nothing,
			// NotInSelection matches everything. A nil set gives exactly
			// that below.
			members[name] = nil
			continue
		}
		matched, err := s.MatchingTowns(ref, all)
		if err != nil {
			return nil, err
		}
		set := make(map[int]struct{}, len(matched))
		for i := range matched {
			set[matched[i].ID] = struct{}{}
		}
		members[name] = set
	}

	var out []TownInfo
	for i := range s.towns {
		t := &s.towns[i]
		if s.townMatches(t, sel, members) {
			out = append(out, *t)
		}
	}
	return out, nil
}

// townMatches joins the constraint verdicts under the selection's join mode.
// Neutral constraints take the join's identity element: true under AND,
// false under OR, so they never change the joined result.
func (s *Store) townMatches(t *TownInfo, sel *selection.Selection, members map[string]map[int]struct{}) bool {
	and := sel.Join == selection.JoinAnd
	for _, c := range sel.Constraints {
		var verdict bool
		switch {
		case c.Comparator.Membership():
			set := members[c.Value]
			_, in := set[t.ID]
			if c.Comparator == selection.InSelection {
				verdict = in
			} else {
				verdict = !in
			}
		case c.Neutral():
			verdict = and
		default:
			verdict = matches(t, c)
		}

		if and && !verdict {
			return false
		}
		if !and && verdict {
			return true
		}
	}
	return and
}

func hasMembership(cons []selection.Constraint) bool {
	for _, c := range cons {
		if c.Comparator.Membership() {
			return true
		}
	}
	return false
}

// sortValues orders a distinct-value list: numerically for numeric fields,
// case-insensitively for textual ones.
func sortValues(values []string, field selection.Field) {
	if field.Numeric() {
		sort.Slice(values, func(i, j int) bool {
			a, errA := strconv.ParseFloat(values[i], 64)
			b, errB := strconv.ParseFloat(values[j], 64)
			if errA != nil || errB != nil {
				return values[i] < values[j]
			}
			return a < b
		})
		return
	}
	sort.Slice(values, func(i, j int) bool {
		return strings.ToLower(values[i]) < strings.ToLower(values[j])
	})
}
