package conj

import "strings"

// Condition is one leaf of a compiled WHERE clause, as handed over by the
// query compiler.
type Condition struct {
	Column string
	// Op is the lookup: "=", "exact", "iexact", "in", "isnull", "<" ...
	Op    string
	Value any
	// Deferred columns are not loaded with the row, so a snapshot can't test them.
	Deferred bool
}

// FromConditions keeps the equality conditions that a row snapshot can
// evaluate and drops the rest.
func FromConditions(table string, conds []Condition) Conjunction {
	c := Conjunction{Table: table}
	for _, cond := range conds {
		if cond.Deferred {
			continue
		}
		switch strings.ToLower(cond.Op) {
		case "=", "==", "eq", "exact":
			if _, ok := Encode(cond.Value); !ok {
				continue
			}
			c.Eqs = append(c.Eqs, Eq{Column: cond.Column, Value: cond.Value})
		case "isnull":
			if b, ok := cond.Value.(bool); ok && b {
				c.Eqs = append(c.Eqs, Eq{Column: cond.Column, Value: nil})
			}
		}
	}
	return c
}
