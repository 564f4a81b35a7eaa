package world

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"polismap/internal/selection"
)

// queryCache memoizes query results for the lifetime of one Store. Keys are
// the literal ordered constraint vectors (plus join mode and, for membership
// constraints, the encoded reference closure); reordering the same
// constraints is a cache miss by design, not a bug to fix silently.
//
// Entries are computed lazily on first request. singleflight gives
// at-most-once computation per key even under concurrent identical queries;
// readers never observe a partially computed entry because results are
// published only after the compute function returns.
type queryCache struct {
	mu     sync.Mutex
	towns  map[string][]TownInfo
	values map[string][]string

	flight   singleflight.Group
	computes atomic.Int64
}

func newQueryCache() *queryCache {
	return &queryCache{
		towns:  make(map[string][]TownInfo),
		values: make(map[string][]string),
	}
}

// Computes returns the number of from-scratch computations so far.
func (c *queryCache) Computes() int64 { return c.computes.Load() }

func (c *queryCache) townsFor(key string, compute func() ([]TownInfo, error)) ([]TownInfo, error) {
	c.mu.Lock()
	if cached, ok := c.towns[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// Re-check: a previous flight may have landed between the unlock
		// above and this Do.
		c.mu.Lock()
		if cached, ok := c.towns[key]; ok {
			c.mu.Unlock()
			return cached, nil
		}
		c.mu.Unlock()

		c.computes.Add(1)
		out, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.towns[key] = out
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TownInfo), nil
}

func (c *queryCache) valuesFor(key string, compute func() ([]string, error)) ([]string, error) {
	c.mu.Lock()
	if cached, ok := c.values[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(key, func() (any, error) {
		c.mu.Lock()
		if cached, ok := c.values[key]; ok {
			c.mu.Unlock()
			return cached, nil
		}
		c.mu.Unlock()

		c.computes.Add(1)
		out, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = out
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Cache keys. \x1f separates the parts of one constraint, \x1e separates
// constraints and sections; neither occurs in feed data or user input lines.

func encodeConstraintList(join selection.JoinMode, cons []selection.Constraint) string {
	var b strings.Builder
	b.WriteString(join.String())
	for _, c := range cons {
		b.WriteByte(0x1e)
		b.WriteString(c.Field.String())
		b.WriteByte(0x1f)
		b.WriteString(c.Comparator.Ident())
		b.WriteByte(0x1f)
		b.WriteString(c.Value)
	}
	return b.String()
}

// matchKey builds the cache key of a MatchingTowns query. Membership
// constraints make results depend on the referenced selections' contents,
// so the key appends the encoded constraint lists of the full reference
// closure: editing a referenced selection changes the key rather than
// returning stale towns.
func matchKey(sel *selection.Selection, closure []*selection.Selection) string {
	var b strings.Builder
	b.WriteString("match\x1e")
	b.WriteString(encodeConstraintList(sel.Join, sel.Constraints))
	for _, ref := range sortedByName(closure) {
		b.WriteString("\x1e@")
		b.WriteString(ref.Name)
		b.WriteByte(0x1f)
		b.WriteString(encodeConstraintList(ref.Join, ref.Constraints))
	}
	return b.String()
}

// distinctKey additionally carries the target field.
func distinctKey(field selection.Field, probe *selection.Selection, closure []*selection.Selection) string {
	return "distinct\x1e" + field.String() + "\x1e" + matchKey(probe, closure)
}

func sortedByName(sels []*selection.Selection) []*selection.Selection {
	out := append([]*selection.Selection(nil), sels...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
