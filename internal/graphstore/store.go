// Package graphstore defines the resolution core's sole external
// dependency: a parameterized query/execute surface over a property
// graph (spec §6). The core never imports a driver type directly;
// every package above this one depends on the Store interface.
package graphstore

import "context"

// Row is a single result row keyed by return alias.
type Row map[string]any

// Store is the graph store contract the resolution core consumes.
// Implementations must support parameterized queries, create the
// secondary indexes named in CreateIndexes, and guarantee that Execute
// is durable before it returns.
type Store interface {
	// Execute runs a write query. It returns no result rows.
	Execute(ctx context.Context, query string, params map[string]any) error

	// Query runs a read query and returns its result rows.
	Query(ctx context.Context, query string, params map[string]any) ([]Row, error)

	// IsAlive reports whether the store is currently reachable.
	IsAlive(ctx context.Context) bool

	// GraphName returns the identifier of the graph/database in use.
	GraphName() string

	// CreateIndexes creates the indexes the core's queries depend on:
	// Entity.id, Entity.normalizedName, Entity.type, Entity.status,
	// Synonym.normalizedValue, Lock.key.
	CreateIndexes(ctx context.Context) error
}
