package rowcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/rowcache/conj"
	"github.com/unkn0wn-root/rowcache/profile"
)

// TestTargetedInvalidation: a changed row drops the queries it satisfies.
func TestTargetedInvalidation(t *testing.T) {
	ctx := context.Background()
	cc, _, hooks := newTestCache(t, nil)
	var calls atomic.Int32

	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))
	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))

	if err := cc.InvalidateRow(ctx, order, conj.Row{"id": 7, "status": "paid"}); err != nil {
		t.Fatalf("InvalidateRow: %v", err)
	}
	if got := mustFetch(t, cc, orderByID(7), countingBuild("C", &calls)); got != "C" {
		t.Fatalf("third read = %q, want rebuilt value", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("builds = %d, want 2", calls.Load())
	}
	if hooks.invalidated["shop_order"] != 1 {
		t.Fatalf("invalidated = %v", hooks.invalidated)
	}
}

// TestOrthogonalRowKeepsEntry: a row outside the query's conjunctions changes nothing.
func TestOrthogonalRowKeepsEntry(t *testing.T) {
	ctx := context.Background()
	cc, _, _ := newTestCache(t, nil)
	var calls atomic.Int32

	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))
	if err := cc.InvalidateRow(ctx, order, conj.Row{"id": 8, "status": "new"}); err != nil {
		t.Fatalf("InvalidateRow: %v", err)
	}
	if got := mustFetch(t, cc, orderByID(7), countingBuild("C", &calls)); got != "B" {
		t.Fatalf("third read = %q, want cached B", got)
	}
}

func TestInvalidateRowIdempotent(t *testing.T) {
	ctx := context.Background()
	cc, m, _ := newTestCache(t, nil)
	var calls atomic.Int32

	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))
	mustFetch(t, cc, orderByID(8), countingBuild("B8", &calls))

	row := conj.Row{"id": 7}
	if err := cc.InvalidateRow(ctx, order, row); err != nil {
		t.Fatal(err)
	}
	after := m.Keys()
	if err := cc.InvalidateRow(ctx, order, row); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(after) != fmt.Sprint(m.Keys()) {
		t.Fatalf("second invalidation changed the store: %v -> %v", after, m.Keys())
	}
}

// TestMTIParentInvalidatesChild: a Person row change reaches Employee queries.
func TestMTIParentInvalidatesChild(t *testing.T) {
	ctx := context.Background()
	cc, _, _ := newTestCache(t, nil)
	var calls atomic.Int32

	rnd := Query{
		Model: employee,
		Op:    profile.Get,
		SQL:   "SELECT * FROM hr_employee WHERE dept = ?",
		Args:  []any{"R&D"},
		Conjs: []conj.Conjunction{conj.New("hr_employee", conj.Eq{Column: "dept", Value: "R&D"})},
	}
	mustFetch(t, cc, rnd, countingBuild("rnd", &calls))

	if err := cc.InvalidateRow(ctx, person, conj.Row{"id": 5}); err != nil {
		t.Fatalf("InvalidateRow: %v", err)
	}
	mustFetch(t, cc, rnd, countingBuild("rnd", &calls))
	if calls.Load() != 2 {
		t.Fatalf("employee query survived a person change; builds = %d", calls.Load())
	}
}

func TestMTIChildInvalidatesParent(t *testing.T) {
	ctx := context.Background()
	cc, _, hooks := newTestCache(t, nil)
	var calls atomic.Int32

	byName := Query{
		Model: person,
		Op:    profile.Get,
		SQL:   "SELECT * FROM hr_person WHERE name = ?",
		Args:  []any{"Ada"},
		Conjs: []conj.Conjunction{conj.New("hr_person", conj.Eq{Column: "name", Value: "Ada"})},
	}
	mustFetch(t, cc, byName, countingBuild("ada", &calls))

	// the employee snapshot carries only its own columns
	if err := cc.InvalidateRow(ctx, employee, conj.Row{"id": 5, "dept": "R&D"}); err != nil {
		t.Fatal(err)
	}
	mustFetch(t, cc, byName, countingBuild("ada", &calls))
	if calls.Load() != 2 {
		t.Fatalf("person query survived an employee change")
	}
	if _, ok := hooks.invalidated["hr_employee"]; !ok {
		t.Fatalf("employee table not visited: %v", hooks.invalidated)
	}
}

func TestModelTables(t *testing.T) {
	base := NewModel("a", "base", "t_base")
	mid := NewModel("a", "mid", "t_mid").Inherit(base)
	leaf := NewModel("a", "leaf", "t_leaf").Inherit(mid)
	other := NewModel("a", "other", "t_other").Inherit(base)
	proxy := NewModel("a", "midproxy", "").ProxyOf(mid)

	if got := fmt.Sprint(mid.tables()); got != "[t_mid t_leaf t_base]" {
		t.Fatalf("mid family = %s", got)
	}
	if got := fmt.Sprint(proxy.tables()); got != "[t_mid t_leaf t_base]" {
		t.Fatalf("proxy family = %s", got)
	}
	if got := fmt.Sprint(base.tables()); got != "[t_base t_mid t_leaf t_other]" {
		t.Fatalf("base family = %s", got)
	}
	if got := fmt.Sprint(leaf.tables()); got != "[t_leaf t_mid t_base]" {
		t.Fatalf("leaf family = %s", got)
	}
	if proxy.Table != "t_mid" || proxy.Concrete() != mid {
		t.Fatalf("proxy must resolve to its concrete model")
	}
	_ = other
}

func TestProxyInvalidatesConcreteTable(t *testing.T) {
	ctx := context.Background()
	cc, _, _ := newTestCache(t, nil)
	var calls atomic.Int32
	paid := NewModel("shop", "paidorder", "").ProxyOf(order)

	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))
	if err := cc.InvalidateRow(ctx, paid, conj.Row{"id": 7}); err != nil {
		t.Fatal(err)
	}
	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))
	if calls.Load() != 2 {
		t.Fatalf("proxy invalidation missed the concrete table")
	}
}

type orderRow struct {
	ID     int
	Status string
}

func (o orderRow) Row() conj.Row { return conj.Row{"id": o.ID, "status": o.Status} }

func TestInvalidateObject(t *testing.T) {
	ctx := context.Background()
	cc, _, _ := newTestCache(t, nil)
	var calls atomic.Int32

	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))
	if err := cc.InvalidateObject(ctx, order, orderRow{ID: 7, Status: "paid"}); err != nil {
		t.Fatal(err)
	}
	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))
	if calls.Load() != 2 {
		t.Fatalf("builds = %d", calls.Load())
	}
}

func TestNullConjunction(t *testing.T) {
	ctx := context.Background()
	cc, _, _ := newTestCache(t, nil)
	var calls atomic.Int32

	unshipped := Query{
		Model: order,
		Op:    profile.Get,
		SQL:   "SELECT * FROM shop_order WHERE shipped_at IS NULL",
		Conjs: []conj.Conjunction{conj.New("shop_order", conj.Eq{Column: "shipped_at", Value: nil})},
	}
	mustFetch(t, cc, unshipped, countingBuild("open", &calls))

	if err := cc.InvalidateRow(ctx, order, conj.Row{"id": 1, "shipped_at": "2024-01-01"}); err != nil {
		t.Fatal(err)
	}
	mustFetch(t, cc, unshipped, countingBuild("open", &calls))
	if calls.Load() != 1 {
		t.Fatalf("a shipped row must not touch IS NULL queries")
	}

	if err := cc.InvalidateRow(ctx, order, conj.Row{"id": 2, "shipped_at": nil}); err != nil {
		t.Fatal(err)
	}
	mustFetch(t, cc, unshipped, countingBuild("open", &calls))
	if calls.Load() != 2 {
		t.Fatalf("an unshipped row must invalidate IS NULL queries")
	}
}

// TestQueryWithoutConjunctions: a query with no equality tests depends on every row.
func TestQueryWithoutConjunctions(t *testing.T) {
	ctx := context.Background()
	cc, m, _ := newTestCache(t, nil)
	var calls atomic.Int32

	all := Query{Model: order, Op: profile.Get, SQL: "SELECT * FROM shop_order WHERE total > 10"}
	mustFetch(t, cc, all, countingBuild("all", &calls))
	if !m.Exists("conj:shop_order:") {
		t.Fatalf("expected the empty conjunction key, got %v", m.Keys())
	}
	if err := cc.InvalidateRow(ctx, order, conj.Row{"id": 99}); err != nil {
		t.Fatal(err)
	}
	mustFetch(t, cc, all, countingBuild("all", &calls))
	if calls.Load() != 2 {
		t.Fatalf("any row change must invalidate a table-wide query")
	}
}

type predicates []conj.Conjunction

func (p predicates) DescribePredicates() []conj.Conjunction { return p }

// TestOrQueryIndexedPerBranch: an OR query is one conjunction per branch.
func TestOrQueryIndexedPerBranch(t *testing.T) {
	ctx := context.Background()
	cc, _, _ := newTestCache(t, nil)
	var calls atomic.Int32

	q := Query{
		Model: order,
		Op:    profile.Get,
		SQL:   "SELECT * FROM shop_order WHERE id = ? OR status = ?",
		Args:  []any{1, "new"},
		Predicates: predicates{
			conj.New("shop_order", conj.Eq{Column: "id", Value: 1}),
			conj.New("shop_order", conj.Eq{Column: "status", Value: "new"}),
		},
	}
	mustFetch(t, cc, q, countingBuild("x", &calls))
	if err := cc.InvalidateRow(ctx, order, conj.Row{"id": 5, "status": "new"}); err != nil {
		t.Fatal(err)
	}
	mustFetch(t, cc, q, countingBuild("x", &calls))
	if calls.Load() != 2 {
		t.Fatalf("second branch did not invalidate")
	}
}

// TestInvalidationSoundness checks every (query, row) pair of a small grid:
// an entry survives exactly when its conjunction rejects the row.
func TestInvalidationSoundness(t *testing.T) {
	ctx := context.Background()
	ids := []int{1, 2}
	statuses := []string{"new", "paid"}

	type cached struct {
		q Query
		c conj.Conjunction
	}
	var queries []cached
	for _, id := range ids {
		for _, st := range statuses {
			c := conj.New("shop_order", conj.Eq{Column: "id", Value: id}, conj.Eq{Column: "status", Value: st})
			queries = append(queries, cached{
				q: Query{Model: order, Op: profile.Get, SQL: "byIDStatus", Args: []any{id, st}, Conjs: []conj.Conjunction{c}},
				c: c,
			})
		}
		c := conj.New("shop_order", conj.Eq{Column: "id", Value: id})
		queries = append(queries, cached{q: orderByID(id), c: c})
	}

	rows := []conj.Row{
		{"id": 1, "status": "new"},
		{"id": 2, "status": "paid"},
		{"id": 1},
		{"status": "paid"},
		{"id": 3, "status": "new"},
	}

	for ri, row := range rows {
		cc, m, _ := newTestCache(t, nil)
		var calls atomic.Int32
		for _, c := range queries {
			mustFetch(t, cc, c.q, countingBuild("v", &calls))
		}
		if err := cc.InvalidateRow(ctx, order, row); err != nil {
			t.Fatalf("row %d: %v", ri, err)
		}
		for qi, c := range queries {
			key := cc.Key(c.q, cc.Profile(order))
			want := !c.c.Matches(row)
			if got := m.Exists(key); got != want {
				t.Fatalf("row %d %v, query %d %s: present=%v want %v", ri, row, qi, c.c.Key(), got, want)
			}
		}
	}
}

func TestInvalidateModel(t *testing.T) {
	ctx := context.Background()
	cc, m, hooks := newTestCache(t, nil)
	var calls atomic.Int32

	mustFetch(t, cc, orderByID(1), countingBuild("1", &calls))
	mustFetch(t, cc, orderByID(2), countingBuild("2", &calls))
	byName := Query{
		Model: person, Op: profile.Get, SQL: "byName", Args: []any{"Ada"},
		Conjs: []conj.Conjunction{conj.New("hr_person", conj.Eq{Column: "name", Value: "Ada"})},
	}
	mustFetch(t, cc, byName, countingBuild("ada", &calls))

	if err := cc.InvalidateModel(ctx, order); err != nil {
		t.Fatalf("InvalidateModel: %v", err)
	}
	for _, k := range m.Keys() {
		if k == "conj:shop_order:id=1" || k == "conj:shop_order:id=2" {
			t.Fatalf("%s survived", k)
		}
	}
	if !m.Exists("conj:hr_person:name=Ada") || !m.Exists(cc.Key(byName, cc.Profile(person))) {
		t.Fatalf("other tables must be untouched")
	}
	if hooks.invalidated["shop_order"] != 2 {
		t.Fatalf("invalidated = %v", hooks.invalidated)
	}
}

func TestInvalidateAll(t *testing.T) {
	ctx := context.Background()
	cc, m, _ := newTestCache(t, nil)
	var calls atomic.Int32

	mustFetch(t, cc, orderByID(1), countingBuild("1", &calls))
	if err := cc.InvalidateAll(ctx); err != nil {
		t.Fatal(err)
	}
	if len(m.Keys()) != 0 {
		t.Fatalf("flush left %v", m.Keys())
	}
}
