// Package rowcache caches query results in Redis and invalidates them per
// row. Every cached result is indexed under the equality conjunctions of its
// query; a changed row deletes exactly the results whose conjunctions it
// satisfies, in one server-side script.
//
// Components:
//   - store: Redis facade, Lua scripts, failure policy and the dogpile lock.
//   - conj: conjunction keys and row snapshots.
//   - profile: per-model caching policy ("app.model" -> "app.*" -> "*.*").
//   - Provider: optional in-process tier for profiles with local_get.
//   - Codec[V]: (de)serializes V <-> []byte for Typed.
//
// Keys:
//
//	q:<fingerprint>          cached entries
//	q:<fingerprint>:signal   build lock release signals
//	conj:<table>:<f=v&...>   sets of cache keys per conjunction
//
// Read pattern:
//
//	b, tok, err := cache.Read(ctx, Order, key, ttl, conjs, true)
//	if tok != nil {
//		b, err = buildFromDB()
//		if err != nil { _ = cache.Abort(ctx, tok) } else { _ = cache.Commit(ctx, tok, b) }
//	}
//
// Write pattern (after the DB commit):
//
//	_ = cache.InvalidateRow(ctx, Order, conj.Row{"id": 7, "status": "paid"})
package rowcache
