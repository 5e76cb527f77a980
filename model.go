package rowcache

// Model identifies a cached model and its table. Inheritance and proxy links
// must be declared before the model is shared between goroutines.
type Model struct {
	App   string
	Name  string
	Table string

	parents  []*Model
	children []*Model
	proxyOf  *Model
}

func NewModel(app, name, table string) *Model {
	return &Model{App: app, Name: name, Table: table}
}

// Label is the "app.name" identity profiles are matched against.
func (m *Model) Label() string { return m.App + "." + m.Name }

// Inherit declares m a multi-table child of parents. Returns m.
func (m *Model) Inherit(parents ...*Model) *Model {
	for _, p := range parents {
		p = p.Concrete()
		m.parents = append(m.parents, p)
		p.children = append(p.children, m)
	}
	return m
}

// ProxyOf declares m a proxy of concrete: same table, own profile. Returns m.
func (m *Model) ProxyOf(concrete *Model) *Model {
	m.proxyOf = concrete
	if m.Table == "" {
		m.Table = concrete.Concrete().Table
	}
	return m
}

// Concrete follows proxy links to the model that owns the table.
func (m *Model) Concrete() *Model {
	for m.proxyOf != nil {
		m = m.proxyOf
	}
	return m
}

// tables lists the concrete model's table, then every descendant's, then
// every ancestor's, each once.
func (m *Model) tables() []string {
	root := m.Concrete()
	seen := map[*Model]bool{}
	var out []string
	add := func(x *Model) bool {
		if seen[x] {
			return false
		}
		seen[x] = true
		out = append(out, x.Table)
		return true
	}

	add(root)
	var down func(*Model)
	down = func(x *Model) {
		for _, c := range x.children {
			if add(c) {
				down(c)
			}
		}
	}
	down(root)

	var up func(*Model)
	up = func(x *Model) {
		for _, p := range x.parents {
			if add(p) {
				up(p)
			}
		}
	}
	up(root)

	return dedupe(out)
}

func dedupe(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
