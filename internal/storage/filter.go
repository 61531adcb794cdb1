package storage

import (
	"fmt"
	"sort"
	"strings"
)

// Predicate holds the per-field comparison operators of a filter. A nil
// operator field is not applied; all set operators must hold for the
// predicate to match.
type Predicate struct {
	Eq  any
	Ne  any
	Gt  any
	Gte any
	Lt  any
	Lte any
	In  []any
	Nin []any
}

// Filter maps document field names to predicates. All entries must match.
type Filter map[string]Predicate

// Eq is shorthand for a single-field equality filter.
func Eq(field string, value any) Filter {
	return Filter{field: {Eq: value}}
}

// ByID filters on the document id field.
func ByID(id fmt.Stringer) Filter {
	return Eq("id", id.String())
}

// SortOrder is the direction of a sort field.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SortField pairs a document field with a sort direction.
type SortField struct {
	Field string
	Order SortOrder
}

// FindOptions bundles pagination and ordering for Find.
type FindOptions struct {
	Limit int
	Skip  int
	Sort  []SortField
}

// Matches reports whether doc satisfies every predicate in the filter.
func (f Filter) Matches(doc Document) bool {
	for field, pred := range f {
		if !pred.matches(doc[field]) {
			return false
		}
	}
	return true
}

func (p Predicate) matches(value any) bool {
	if p.Eq != nil && !valuesEqual(value, p.Eq) {
		return false
	}
	if p.Ne != nil && valuesEqual(value, p.Ne) {
		return false
	}
	if p.Gt != nil {
		c, ok := compareValues(value, p.Gt)
		if !ok || c <= 0 {
			return false
		}
	}
	if p.Gte != nil {
		c, ok := compareValues(value, p.Gte)
		if !ok || c < 0 {
			return false
		}
	}
	if p.Lt != nil {
		c, ok := compareValues(value, p.Lt)
		if !ok || c >= 0 {
			return false
		}
	}
	if p.Lte != nil {
		c, ok := compareValues(value, p.Lte)
		if !ok || c > 0 {
			return false
		}
	}
	if p.In != nil {
		found := false
		for _, candidate := range p.In {
			if valuesEqual(value, candidate) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.Nin != nil {
		for _, candidate := range p.Nin {
			if valuesEqual(value, candidate) {
				return false
			}
		}
	}
	return true
}

// valuesEqual compares two document values, coercing numeric kinds so that
// an int written in-process equals the float64 it becomes after a JSON
// round-trip.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

// compareValues orders two document values. Numbers and strings are
// ordered; bools order false before true. Returns ok=false for
// incomparable kinds, which makes range predicates fail closed.
func compareValues(a, b any) (int, bool) {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	switch at := a.(type) {
	case string:
		bt, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(at, bt), true
	case bool:
		bt, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case at == bt:
			return 0, true
		case !at:
			return -1, true
		default:
			return 1, true
		}
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// sortDocuments orders docs in place by the given sort fields, applying
// each subsequent field as a tie-break. The sort is stable so insertion
// order survives for fully tied documents.
func sortDocuments(docs []Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, sf := range fields {
			c, ok := compareValues(docs[i][sf.Field], docs[j][sf.Field])
			if !ok || c == 0 {
				continue
			}
			if sf.Order == Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// applyWindow slices docs according to skip and limit.
func applyWindow(docs []Document, opts *FindOptions) []Document {
	if opts == nil {
		return docs
	}

	if opts.Skip > 0 {
		if opts.Skip >= len(docs) {
			return nil
		}
		docs = docs[opts.Skip:]
	}

	if opts.Limit > 0 && opts.Limit < len(docs) {
		docs = docs[:opts.Limit]
	}

	return docs
}
