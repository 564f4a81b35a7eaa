package selection

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Wire format, shared by clipboard, file and URL round-tripping: a selection
// document carries a name, a color, a join mode and one line per constraint.
// A constraint line is exactly three space-separated parts,
//
//	<FieldIdent> <ComparatorIdent> <scalar-encoded value>
//
// where the value is a YAML scalar (quoted when it contains spaces or
// special characters). Decoding splits on the first two spaces; a line that
// does not yield three parts is a format error.

// document is the serialized shape of one selection.
type document struct {
	Name        string   `yaml:"name"`
	Color       [4]uint8 `yaml:"color"`
	Join        string   `yaml:"join,omitempty"`
	Constraints []string `yaml:"constraints"`
}

// EncodeConstraint renders a constraint as one wire-format line.
func EncodeConstraint(c Constraint) (string, error) {
	if !c.Field.Valid() {
		return "", fmt.Errorf("encode constraint: invalid field %d", int(c.Field))
	}
	if !c.Comparator.Valid() {
		return "", fmt.Errorf("encode constraint: invalid comparator %d", int(c.Comparator))
	}
	value, err := encodeScalar(c.Value)
	if err != nil {
		return "", fmt.Errorf("encode constraint value %q: %w", c.Value, err)
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Comparator.Ident(), value), nil
}

// DecodeConstraint parses one wire-format line.
func DecodeConstraint(line string) (Constraint, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return Constraint{}, fmt.Errorf("constraint %q: want 3 space-separated parts, got %d", line, len(parts))
	}

	field, ok := FieldByName(parts[0])
	if !ok {
		return Constraint{}, fmt.Errorf("constraint %q: unknown field %q", line, parts[0])
	}
	comparator, ok := ComparatorByIdent(parts[1])
	if !ok {
		return Constraint{}, fmt.Errorf("constraint %q: unknown comparator %q", line, parts[1])
	}
	value, err := decodeScalar(parts[2])
	if err != nil {
		return Constraint{}, fmt.Errorf("constraint %q: bad value: %w", line, err)
	}

	return Constraint{Field: field, Comparator: comparator, Value: value}, nil
}

// encodeScalar renders s as a single-line YAML scalar.
func encodeScalar(s string) (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}

func decodeScalar(s string) (string, error) {
	var out string
	if err := yaml.Unmarshal([]byte(s), &out); err != nil {
		return "", err
	}
	return out, nil
}

func (s *Selection) document() (document, error) {
	doc := document{
		Name:        s.Name,
		Color:       [4]uint8(s.Color),
		Join:        s.Join.String(),
		Constraints: make([]string, 0, len(s.Constraints)),
	}
	for _, c := range s.Constraints {
		line, err := EncodeConstraint(c)
		if err != nil {
			return document{}, err
		}
		doc.Constraints = append(doc.Constraints, line)
	}
	return doc, nil
}

func fromDocument(doc document) (*Selection, error) {
	sel := New()
	sel.Name = doc.Name
	sel.Color = RGBA(doc.Color)
	sel.Constraints = sel.Constraints[:0]

	if doc.Join != "" {
		join, ok := JoinModeByIdent(doc.Join)
		if !ok {
			return nil, fmt.Errorf("selection %q: unknown join mode %q", doc.Name, doc.Join)
		}
		sel.Join = join
	}

	for _, line := range doc.Constraints {
		c, err := DecodeConstraint(line)
		if err != nil {
			return nil, fmt.Errorf("selection %q: %w", doc.Name, err)
		}
		sel.Constraints = append(sel.Constraints, c)
	}
	if len(sel.Constraints) == 0 {
		sel.Constraints = append(sel.Constraints, DefaultConstraint())
	}
	return sel, nil
}

// Export serializes selections as a YAML list of selection documents.
func Export(sels []*Selection) (string, error) {
	docs := make([]document, 0, len(sels))
	for _, s := range sels {
		doc, err := s.document()
		if err != nil {
			return "", fmt.Errorf("export selection %q: %w", s.Name, err)
		}
		docs = append(docs, doc)
	}
	out, err := yaml.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("export selections: %w", err)
	}
	return string(out), nil
}

// ImportResult is the outcome for one entry of an import. Entries succeed or
// fail independently; the caller decides what to do with partial success.
type ImportResult struct {
	Selection *Selection
	Err       error
}

// Import parses text as a YAML list of selection documents, or as a single
// document, and reports success or failure per entry.
func Import(text string) ([]ImportResult, error) {
	var nodes []yaml.Node
	if err := yaml.Unmarshal([]byte(text), &nodes); err != nil {
		// Not a list; try a single selection document.
		var node yaml.Node
		if errSingle := yaml.Unmarshal([]byte(text), &node); errSingle != nil || node.Kind == 0 {
			return nil, fmt.Errorf("import: text is neither a selection list nor a single selection: %w", err)
		}
		nodes = []yaml.Node{node}
	}

	results := make([]ImportResult, 0, len(nodes))
	for i, node := range nodes {
		var doc document
		if err := node.Decode(&doc); err != nil {
			results = append(results, ImportResult{Err: fmt.Errorf("import entry %d: %w", i, err)})
			continue
		}
		sel, err := fromDocument(doc)
		if err != nil {
			results = append(results, ImportResult{Err: fmt.Errorf("import entry %d: %w", i, err)})
			continue
		}
		results = append(results, ImportResult{Selection: sel})
	}
	return results, nil
}
