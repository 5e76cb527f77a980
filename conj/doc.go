// Package conj models the equality conjunctions that index cached query results.
//
// A query's WHERE clause, once flattened into disjunctive normal form by the
// query compiler, becomes a list of Conjunctions. Each one is stored as a
// conjunction key
//
//	conj:<table>:<field>=<value>&<field>=<value>...
//
// whose Redis SET holds every cache key built from a query containing that
// predicate. Only equality tests over serializable values are kept; anything
// else is dropped, which widens the predicate. Invalidation may therefore be
// broader than necessary but is never narrower.
//
// Fields and values are percent-escaped for '%', '&' and '='. SQL NULL is the
// reserved token "%N", which no escaped value can produce.
package conj
