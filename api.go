package rowcache

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rowcache/conj"
	"github.com/unkn0wn-root/rowcache/profile"
	pr "github.com/unkn0wn-root/rowcache/provider"
)

// SetCostFunc weighs an entry written to the local tier.
type SetCostFunc func(key string, raw []byte) int64

// BuildFunc produces the serialized result of a query on a miss.
type BuildFunc func(ctx context.Context) ([]byte, error)

// Options configure a Cache. Only Client is required; nothing is cached
// until Profiles.Overrides matches a model.
type Options struct {
	// Required
	Client goredis.UniversalClient

	Profiles         profile.Config
	LRU              bool          // no TTLs on writes; the store's eviction policy bounds memory
	DegradeOnFailure bool          // connection failures become misses and no-ops
	LockTimeout      time.Duration // 0 => 60s
	CloseClient      bool          // Close also closes Client

	Local          pr.Provider // local_get tier; nil disables it
	ComputeSetCost SetCostFunc // local tier cost; default 1

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// Query describes one cacheable read as produced by the query compiler.
type Query struct {
	Model *Model
	Op    profile.Op
	SQL   string
	Args  []any
	DB    string // connection alias; ignored by db-agnostic profiles

	// Conjs are the equality conjunctions the result depends on. Predicates,
	// when set, contributes more. A query with none depends on the whole table.
	Conjs      []conj.Conjunction
	Predicates conj.Describer
}

func (q Query) conjunctions() []conj.Conjunction {
	out := append([]conj.Conjunction(nil), q.Conjs...)
	if q.Predicates != nil {
		out = append(out, q.Predicates.DescribePredicates()...)
	}
	return withTableFallback(q.Model, out)
}

// withTableFallback indexes a result without conjunctions under the empty
// conjunction of m's table, which every row of that table satisfies.
func withTableFallback(m *Model, conjs []conj.Conjunction) []conj.Conjunction {
	if len(conjs) == 0 && m != nil {
		return []conj.Conjunction{conj.New(m.Concrete().Table)}
	}
	return conjs
}

func New(opts Options) (*Cache, error) {
	return newCache(opts)
}
