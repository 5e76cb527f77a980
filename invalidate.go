package rowcache

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/unkn0wn-root/rowcache/conj"
	"github.com/unkn0wn-root/rowcache/store"
)

const delBatch = 500

// InvalidateRow drops every cached query whose conjunctions row satisfies,
// on m's table and on every table of its inheritance family. Columns absent
// from row match anything. Each table is one atomic script run.
func (c *Cache) InvalidateRow(ctx context.Context, m *Model, row conj.Row) error {
	if c.suppressed(ctx, "invalidate_row") {
		return nil
	}
	args := row.Args()
	tables := m.tables()
	c.gens.Bump(tables...)

	var result *multierror.Error
	for _, table := range tables {
		argv := make([]any, 0, 2+len(args))
		argv = append(argv, conj.TablePrefix(table), conj.TablePattern(table))
		for _, a := range args {
			argv = append(argv, a)
		}

		res, err := c.store.Eval(ctx, store.ScriptInvalidate, nil, argv...)
		if err != nil {
			result = multierror.Append(result, &InvalidateError{Op: "invalidate_row", Table: table, Err: err})
			continue
		}
		n, _ := res.(int64)
		c.invalidated(table, int(n))
	}
	return result.ErrorOrNil()
}

// InvalidateObject is InvalidateRow over obj's snapshot.
func (c *Cache) InvalidateObject(ctx context.Context, m *Model, obj conj.RowSource) error {
	return c.InvalidateRow(ctx, m, obj.Row())
}

// InvalidateModel drops everything cached against m's inheritance family.
// It walks the whole conjunction keyspace of each table: use sparingly.
func (c *Cache) InvalidateModel(ctx context.Context, m *Model) error {
	if c.suppressed(ctx, "invalidate_model") {
		return nil
	}
	tables := m.tables()
	c.gens.Bump(tables...)

	var result *multierror.Error
	for _, table := range tables {
		n, err := c.invalidateTable(ctx, table)
		if err != nil {
			result = multierror.Append(result, &InvalidateError{Op: "invalidate_model", Table: table, Err: err})
			continue
		}
		c.invalidated(table, n)
	}
	return result.ErrorOrNil()
}

func (c *Cache) invalidateTable(ctx context.Context, table string) (int, error) {
	conjKeys, err := c.store.Keys(ctx, conj.TablePattern(table))
	if err != nil || len(conjKeys) == 0 {
		return 0, err
	}
	cacheKeys, err := c.store.SUnion(ctx, conjKeys...)
	if err != nil {
		return 0, err
	}
	doomed := append(cacheKeys, conjKeys...)
	for len(doomed) > 0 {
		n := min(len(doomed), delBatch)
		if err := c.store.Del(ctx, doomed[:n]...); err != nil {
			return 0, err
		}
		doomed = doomed[n:]
	}
	return len(cacheKeys), nil
}

// InvalidateAll flushes the store's logical database and retires this
// process's local entries.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c.suppressed(ctx, "invalidate_all") {
		return nil
	}
	c.gens.BumpAll()
	if err := c.store.FlushDB(ctx); err != nil {
		return err
	}
	c.log.Info("cache flushed", nil)
	return nil
}

func (c *Cache) suppressed(ctx context.Context, op string) bool {
	if !Suppressed(ctx) {
		return false
	}
	c.log.Debug("invalidation suppressed", Fields{"op": op})
	c.hooks.InvalidationSuppressed(op)
	return true
}

func (c *Cache) invalidated(table string, keys int) {
	c.log.Debug("invalidated", Fields{"table": table, "keys": keys})
	c.hooks.Invalidated(table, keys)
}
