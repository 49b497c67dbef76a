package tablemap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// Query describes an index-scoped range query. The caller supplies
// human attribute values; the engine composes the physical partition
// and sort values with the same rules used on the write path, so query
// values are byte-identical to stored values.
type Query struct {
	// Index targets "table", "lsiN", or "gsiN". When empty, the first
	// index whose partition composition matches the supplied attributes
	// is selected, preferring the table index.
	Index string

	// Partition maps the human attribute names of the target partition
	// composition to their values.
	Partition map[string]any

	// Sort optionally constrains the composed sort key value.
	Sort *SortCondition

	// Limit bounds the query to a single page of at most Limit items.
	// When zero, the result iterator pages through every match.
	Limit int

	// StartCursor resumes a bounded query from a cursor produced by
	// Records.Cursor.
	StartCursor string

	// SortDescending reverses the scan direction.
	SortDescending bool
}

type sortOp int

const (
	sortEqual sortOp = iota
	sortBeginsWith
	sortPrefix
	sortBetween
)

// SortCondition constrains the composed sort key of a query.
type SortCondition struct {
	op         sortOp
	components []any
	raw        string
	lo, hi     []any
}

// SortEqual matches the sort value composed from every component of
// the slot's composition, in declared order.
func SortEqual(components ...any) *SortCondition {
	return &SortCondition{op: sortEqual, components: components}
}

// SortBeginsWith matches sort values whose leading components equal the
// given values. Supplying fewer components than the composition
// declares pins the trailing delimiter, so matches never bleed across
// a token boundary.
func SortBeginsWith(components ...any) *SortCondition {
	return &SortCondition{op: sortBeginsWith, components: components}
}

// SortPrefix matches sort values beginning with the raw composed
// prefix. Unlike SortBeginsWith this permits partial-token prefixes,
// e.g. "u1~2020" against values composed from userId and date.
func SortPrefix(prefix string) *SortCondition {
	return &SortCondition{op: sortPrefix, raw: prefix}
}

// SortBetween matches sort values within the inclusive range composed
// from the lo and hi component lists.
func SortBetween(lo, hi []any) *SortCondition {
	return &SortCondition{op: sortBetween, lo: lo, hi: hi}
}

// composePositional builds a sort key value from positional component
// values. Exact compositions require every component; partial ones may
// stop early, in which case the trailing delimiter is appended to keep
// the prefix token-aligned.
func composePositional(comp KeyComposition, values []any, partial bool) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("tablemap: sort condition has no components")
	}
	if len(values) > len(comp.Attributes) {
		return nil, fmt.Errorf("tablemap: sort condition has %d components, composition declares %d",
			len(values), len(comp.Attributes))
	}
	if !partial && len(values) < len(comp.Attributes) {
		return nil, fmt.Errorf("tablemap: sort condition requires all %d components", len(comp.Attributes))
	}

	if !comp.joined() {
		return values[0], nil
	}

	parts := make([]string, len(values))
	for i, v := range values {
		s, ok := keyString(v)
		if !ok {
			return nil, fmt.Errorf("tablemap: sort component %d is not a scalar", i)
		}
		parts[i] = s
	}
	composed := strings.Join(parts, comp.delimiter())
	if len(values) < len(comp.Attributes) {
		composed += comp.delimiter()
	}
	return composed, nil
}

// keyCondition renders the sort condition against the slot's physical
// attribute using its composition rules.
func (sc *SortCondition) keyCondition(comp KeyComposition, attribute string) (expression.KeyConditionBuilder, error) {
	key := expression.Key(attribute)
	switch sc.op {
	case sortEqual:
		value, err := composePositional(comp, sc.components, false)
		if err != nil {
			return expression.KeyConditionBuilder{}, err
		}
		return key.Equal(expression.Value(value)), nil
	case sortBeginsWith:
		value, err := composePositional(comp, sc.components, true)
		if err != nil {
			return expression.KeyConditionBuilder{}, err
		}
		prefix, ok := keyString(value)
		if !ok {
			return expression.KeyConditionBuilder{}, fmt.Errorf("tablemap: sort prefix is not a scalar")
		}
		return key.BeginsWith(prefix), nil
	case sortPrefix:
		return key.BeginsWith(sc.raw), nil
	case sortBetween:
		lo, err := composePositional(comp, sc.lo, false)
		if err != nil {
			return expression.KeyConditionBuilder{}, err
		}
		hi, err := composePositional(comp, sc.hi, false)
		if err != nil {
			return expression.KeyConditionBuilder{}, err
		}
		return key.Between(expression.Value(lo), expression.Value(hi)), nil
	default:
		return expression.KeyConditionBuilder{}, fmt.Errorf("tablemap: unknown sort operator")
	}
}

// selectIndex picks the index whose partition composition is satisfied
// by exactly the supplied attribute names. The table index wins over
// secondary indexes; local indexes win over global ones.
func (s *Schema) selectIndex(partition map[string]any) (string, bool) {
	candidates := make([]string, 0, 1+MaxLSIs+MaxGSIs)
	candidates = append(candidates, TableIndexName)
	for n := 0; n < MaxLSIs; n++ {
		candidates = append(candidates, fmt.Sprintf("lsi%d", n))
	}
	for n := 0; n < MaxGSIs; n++ {
		candidates = append(candidates, fmt.Sprintf("gsi%d", n))
	}

	for _, index := range candidates {
		pk, _, ok := s.indexKeys(index)
		if !ok {
			continue
		}
		if matchesAttributes(pk.Composition, partition) {
			return index, true
		}
	}
	return "", false
}

func matchesAttributes(comp KeyComposition, partition map[string]any) bool {
	if len(comp.Attributes) != len(partition) {
		return false
	}
	for _, name := range comp.Attributes {
		if _, ok := partition[name]; !ok {
			return false
		}
	}
	return true
}
