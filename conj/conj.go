package conj

import (
	"sort"
	"strings"
)

// KeyPrefix is the keyspace owned by the invalidation index.
const KeyPrefix = "conj:"

// Eq is one equality test: Column = Value. A nil Value means IS NULL.
type Eq struct {
	Column string
	Value  any
}

// Conjunction is an AND of equality tests over a single table.
type Conjunction struct {
	Table string
	Eqs   []Eq
}

// Describer is implemented by compiled queries that can list their predicates.
type Describer interface {
	DescribePredicates() []Conjunction
}

// New builds a conjunction over table.
func New(table string, eqs ...Eq) Conjunction {
	return Conjunction{Table: table, Eqs: eqs}
}

// Key returns the conjunction key. Tests whose value cannot be encoded are
// left out of the key.
func (c Conjunction) Key() string {
	parts := make([]string, 0, len(c.Eqs))
	for _, eq := range c.Eqs {
		v, ok := Encode(eq.Value)
		if !ok {
			continue
		}
		parts = append(parts, escape(eq.Column)+"="+v)
	}
	sort.Strings(parts)
	return TablePrefix(c.Table) + strings.Join(parts, "&")
}

// Keys returns the distinct conjunction keys of conjs in sorted order.
func Keys(conjs []Conjunction) []string {
	seen := make(map[string]struct{}, len(conjs))
	out := make([]string, 0, len(conjs))
	for _, c := range conjs {
		k := c.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TablePrefix is the common prefix of every conjunction key of table.
func TablePrefix(table string) string {
	return KeyPrefix + table + ":"
}

// TablePattern is a KEYS/SCAN glob matching every conjunction key of table.
func TablePattern(table string) string {
	return globEscaper.Replace(TablePrefix(table)) + "*"
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)
