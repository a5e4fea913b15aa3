package graphstore

import (
	"context"
	"sync"
)

// MemStore is an in-process Store used by package tests so each package
// can exercise real query/execute call sequences without a live graph
// database. It does not interpret query strings; callers install one
// handler for Execute and one for Query, each receiving the query text
// and params, the same stub style the teacher's own unit tests use for
// its repository interfaces.
type MemStore struct {
	mu       sync.Mutex
	execute  func(ctx context.Context, query string, params map[string]any) error
	query    func(ctx context.Context, query string, params map[string]any) ([]Row, error)
	alive    bool
	name     string
	Executed []Call
}

// Call records one Execute invocation for assertions in tests.
type Call struct {
	Query  string
	Params map[string]any
}

// NewMemStore returns a MemStore that is alive by default and returns no
// rows/errors until handlers are set.
func NewMemStore() *MemStore {
	return &MemStore{alive: true, name: "memstore"}
}

// OnExecute installs the handler used by Execute.
func (m *MemStore) OnExecute(fn func(ctx context.Context, query string, params map[string]any) error) {
	m.execute = fn
}

// OnQuery installs the handler used by Query.
func (m *MemStore) OnQuery(fn func(ctx context.Context, query string, params map[string]any) ([]Row, error)) {
	m.query = fn
}

// SetAlive controls what IsAlive returns.
func (m *MemStore) SetAlive(alive bool) {
	m.alive = alive
}

func (m *MemStore) Execute(ctx context.Context, query string, params map[string]any) error {
	m.mu.Lock()
	m.Executed = append(m.Executed, Call{Query: query, Params: params})
	m.mu.Unlock()

	if m.execute == nil {
		return nil
	}
	return m.execute(ctx, query, params)
}

func (m *MemStore) Query(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	if m.query == nil {
		return nil, nil
	}
	return m.query(ctx, query, params)
}

func (m *MemStore) IsAlive(ctx context.Context) bool {
	return m.alive
}

func (m *MemStore) GraphName() string {
	return m.name
}

func (m *MemStore) CreateIndexes(ctx context.Context) error {
	return m.Execute(ctx, "CREATE INDEX", nil)
}
