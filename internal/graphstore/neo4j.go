package graphstore

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/canopy/internal/tracing"
)

// Config holds graph database connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// Neo4jStore is a Store backed by a Neo4j/Memgraph driver, adapted from
// the teacher's graph.Client/graph.QueryService pair into the single
// execute/query surface the core expects.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   ectologger.Logger
}

// NewNeo4jStore dials the graph database and returns a ready Store.
func NewNeo4jStore(cfg Config, logger ectologger.Logger) (*Neo4jStore, error) {
	uri := fmt.Sprintf("bolt://%s:%d", cfg.Host, cfg.Port)

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("creating graph driver: %w", err)
	}

	db := cfg.Database
	if db == "" {
		db = "memgraph"
	}

	return &Neo4jStore{driver: driver, database: db, logger: logger}, nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// Execute runs a write query and discards its result rows.
func (s *Neo4jStore) Execute(ctx context.Context, query string, params map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Neo4jStore.Execute")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"query_len": len(query)})

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return nil, consumeErr(result, ctx)
	})
	if err != nil {
		log.WithError(err).Error("graph store execute failed")
		return fmt.Errorf("graph store execute: %w", err)
	}
	return nil
}

// Query runs a read query and returns every result row.
func (s *Neo4jStore) Query(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Neo4jStore.Query")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"query_len": len(query)})

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		rows := make([]Row, 0)
		for result.Next(ctx) {
			record := result.Record()
			row := make(Row, len(record.Keys))
			for _, key := range record.Keys {
				val, _ := record.Get(key)
				row[key] = extractValue(val)
			}
			rows = append(rows, row)
		}
		return rows, result.Err()
	})
	if err != nil {
		log.WithError(err).Error("graph store query failed")
		return nil, fmt.Errorf("graph store query: %w", err)
	}
	return res.([]Row), nil
}

// IsAlive pings the driver.
func (s *Neo4jStore) IsAlive(ctx context.Context) bool {
	return s.driver.VerifyConnectivity(ctx) == nil
}

// GraphName returns the configured database name.
func (s *Neo4jStore) GraphName() string {
	return s.database
}

// CreateIndexes creates the indexes the core's queries depend on.
func (s *Neo4jStore) CreateIndexes(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Neo4jStore.CreateIndexes")
	defer span.End()

	statements := []string{
		"CREATE INDEX ON :Entity(id)",
		"CREATE INDEX ON :Entity(normalizedName)",
		"CREATE INDEX ON :Entity(type)",
		"CREATE INDEX ON :Entity(status)",
		"CREATE INDEX ON :Synonym(normalizedValue)",
		"CREATE INDEX ON :Lock(key)",
	}

	for _, stmt := range statements {
		if err := s.Execute(ctx, stmt, nil); err != nil {
			return fmt.Errorf("creating index %q: %w", stmt, err)
		}
	}
	return nil
}

func consumeErr(result neo4j.ResultWithContext, ctx context.Context) error {
	for result.Next(ctx) {
	}
	return result.Err()
}

// extractValue converts neo4j driver types into plain Go values so
// callers above this package never import the driver.
func extractValue(val any) any {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case neo4j.Node:
		props := make(map[string]any, len(v.Props))
		for k, pv := range v.Props {
			props[k] = pv
		}
		return props

	case neo4j.Relationship:
		props := make(map[string]any, len(v.Props))
		for k, pv := range v.Props {
			props[k] = pv
		}
		return props

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = extractValue(item)
		}
		return out

	default:
		return v
	}
}
