package selection

import (
	"fmt"
	"strings"
)

// CycleError reports a circular selection reference. Path holds the names
// along the cycle, ending with the name that closed it.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular selection reference: %s", strings.Join(e.Path, " -> "))
}

// Closure resolves the full reference closure of root: the transitive set of
// selections reachable through membership constraints, excluding root itself.
// It must run before a selection is evaluated, so membership matching can
// never recurse unboundedly.
//
// The traversal is a depth-first search over the named-selection graph with
// an explicit visited stack. Revisiting a name already on the stack fails
// with a CycleError naming the cycle. Names that resolve to no selection are
// skipped; they fall back to matches-nothing / matches-everything at
// evaluation time.
func Closure(root *Selection, all []*Selection) ([]*Selection, error) {
	var (
		closure []*Selection
		done    = make(map[string]bool)
		onStack = make(map[string]bool)
		stack   []string
	)

	var visit func(s *Selection) error
	visit = func(s *Selection) error {
		onStack[s.Name] = true
		stack = append(stack, s.Name)

		for _, name := range s.ReferencedNames() {
			if onStack[name] {
				cycle := append(append([]string(nil), stack...), name)
				return &CycleError{Path: cycle}
			}
			if done[name] {
				continue
			}
			ref := FindByName(all, name)
			if ref == nil {
				// Dangling reference, resolved at evaluation time.
				continue
			}
			done[name] = true
			closure = append(closure, ref)
			if err := visit(ref); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		onStack[s.Name] = false
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return closure, nil
}

// HasCycle reports whether root's reference graph contains a cycle.
func HasCycle(root *Selection, all []*Selection) bool {
	_, err := Closure(root, all)
	return err != nil
}
