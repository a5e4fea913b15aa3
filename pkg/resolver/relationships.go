package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/pkg/model"
)

// relStore persists LibraryRelationship edges between two already
// resolved Entities (spec §4.I, §3's LibraryRelationship invariant).
type relStore struct {
	store graphstore.Store
	nowFn func() time.Time
}

func newRelStore(store graphstore.Store) *relStore {
	return &relStore{store: store, nowFn: time.Now}
}

func (s *relStore) create(ctx context.Context, rel model.LibraryRelationship) (model.LibraryRelationship, error) {
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = s.nowFn()
	}

	err := s.store.Execute(ctx, `
		MATCH (from:Entity {id: $fromId, status: 'ACTIVE'})
		MATCH (to:Entity {id: $toId, status: 'ACTIVE'})
		CREATE (from)-[:LIBRARY_REL {
			id: $id, type: $type, createdAt: $createdAt, createdBy: $createdBy, props: $props
		}]->(to)
	`, map[string]any{
		"fromId":    rel.FromID,
		"toId":      rel.ToID,
		"id":        rel.ID,
		"type":      rel.Type,
		"createdAt": rel.CreatedAt,
		"createdBy": rel.CreatedBy,
		"props":     rel.Props,
	})
	if err != nil {
		return model.LibraryRelationship{}, fmt.Errorf("creating library relationship: %w", err)
	}
	return rel, nil
}

// CreateRelationship creates a LibraryRelationship between two already
// resolved entities, for callers (the batch context) that stage
// createRelationship operations referencing other mentions in the same
// batch by their resolved entity ids.
func (r *Resolver) CreateRelationship(ctx context.Context, fromEntityID, toEntityID, relType string, props map[string]any) (model.LibraryRelationship, error) {
	return r.rels.create(ctx, model.LibraryRelationship{
		FromID: fromEntityID,
		ToID:   toEntityID,
		Type:   relType,
		Props:  props,
	})
}
