package conj

import "sort"

// Row is a snapshot of one database row: column name to value.
// A nil value is SQL NULL.
type Row map[string]any

// RowSource is implemented by model instances that can snapshot themselves.
type RowSource interface {
	Row() Row
}

// Args flattens the encodable columns of r into field, value pairs (both
// escaped), sorted by field. Columns that cannot be encoded are omitted and
// therefore match any value during invalidation.
func (r Row) Args() []string {
	fields := make([]string, 0, len(r))
	for f := range r {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]string, 0, 2*len(fields))
	for _, f := range fields {
		v, ok := Encode(r[f])
		if !ok {
			continue
		}
		out = append(out, escape(f), v)
	}
	return out
}

// Matches evaluates the conjunction against r the same way the invalidation
// script does: a test on a column absent from r is satisfied.
func (c Conjunction) Matches(r Row) bool {
	for _, eq := range c.Eqs {
		want, ok := Encode(eq.Value)
		if !ok {
			continue
		}
		raw, present := r[eq.Column]
		if !present {
			continue
		}
		got, ok := Encode(raw)
		if !ok {
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}
