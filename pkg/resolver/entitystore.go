// Package resolver implements candidate discovery and the decision
// engine (spec §4.D, §4.E): turning a normalized mention into either an
// existing entity match, a new entity, a synonym attachment, or a
// review-queue item.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/pkg/model"
)

// entityStore is the minimal Entity read/write surface the resolver
// needs, kept private so pkg/merge owns the rest of Entity's lifecycle.
type entityStore struct {
	store graphstore.Store
	nowFn func() time.Time
}

func newEntityStore(store graphstore.Store) *entityStore {
	return &entityStore{store: store, nowFn: time.Now}
}

func (s *entityStore) findActiveByNormalizedName(ctx context.Context, normalizedName, entityType, tenantID string) (*model.Entity, error) {
	rows, err := s.store.Query(ctx, `
		MATCH (e:Entity {normalizedName: $name, type: $type, status: 'ACTIVE'})
		WHERE $tenantId = '' OR e.tenantId = $tenantId
		RETURN e
		LIMIT 1
	`, map[string]any{"name": normalizedName, "type": entityType, "tenantId": tenantID})
	if err != nil {
		return nil, fmt.Errorf("exact-match lookup for %q: %w", normalizedName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	e, err := rowToEntity(rows[0]["e"])
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *entityStore) byID(ctx context.Context, id string) (*model.Entity, error) {
	rows, err := s.store.Query(ctx, `MATCH (e:Entity {id: $id}) RETURN e`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("fetching entity %q: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	e, err := rowToEntity(rows[0]["e"])
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *entityStore) byBlockingKeys(ctx context.Context, keys []string, entityType string) ([]model.Entity, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	rows, err := s.store.Query(ctx, `
		MATCH (e:Entity {type: $type, status: 'ACTIVE'})
		WHERE ANY(k IN $keys WHERE k IN e.blockingKeys)
		RETURN e
	`, map[string]any{"keys": keys, "type": entityType})
	if err != nil {
		return nil, fmt.Errorf("blocking-key scan: %w", err)
	}
	return rowsToEntities(rows)
}

func (s *entityStore) allActiveOfType(ctx context.Context, entityType string, limit int) ([]model.Entity, error) {
	rows, err := s.store.Query(ctx, `
		MATCH (e:Entity {type: $type, status: 'ACTIVE'})
		RETURN e
		LIMIT $limit
	`, map[string]any{"type": entityType, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("full scan of type %q: %w", entityType, err)
	}
	return rowsToEntities(rows)
}

func (s *entityStore) countActiveOfType(ctx context.Context, entityType string) (int, error) {
	rows, err := s.store.Query(ctx, `
		MATCH (e:Entity {type: $type, status: 'ACTIVE'})
		RETURN count(e) AS n
	`, map[string]any{"type": entityType})
	if err != nil {
		return 0, fmt.Errorf("counting active entities of type %q: %w", entityType, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(toFloat(rows[0]["n"])), nil
}

func (s *entityStore) create(ctx context.Context, e model.Entity) (model.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := s.nowFn()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = model.StatusActive
	}

	err := s.store.Execute(ctx, `
		CREATE (e:Entity {
			id: $id, canonicalName: $canonicalName, normalizedName: $normalizedName,
			type: $type, confidenceScore: $confidenceScore, status: $status,
			createdAt: $createdAt, updatedAt: $updatedAt, tenantId: $tenantId,
			blockingKeys: $blockingKeys, attributes: $attributes
		})
	`, map[string]any{
		"id":              e.ID,
		"canonicalName":   e.CanonicalName,
		"normalizedName":  e.NormalizedName,
		"type":            e.Type,
		"confidenceScore": e.ConfidenceScore,
		"status":          string(e.Status),
		"createdAt":       e.CreatedAt,
		"updatedAt":       e.UpdatedAt,
		"tenantId":        e.TenantID,
		"blockingKeys":    e.BlockingKeys,
		"attributes":      e.Attributes,
	})
	if err != nil {
		return model.Entity{}, fmt.Errorf("creating entity: %w", err)
	}
	return e, nil
}

func rowsToEntities(rows []graphstore.Row) ([]model.Entity, error) {
	out := make([]model.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := rowToEntity(row["e"])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func rowToEntity(v any) (model.Entity, error) {
	props, ok := v.(map[string]any)
	if !ok {
		return model.Entity{}, fmt.Errorf("unexpected entity row shape %T", v)
	}

	e := model.Entity{
		ID:              strVal(props["id"]),
		CanonicalName:   strVal(props["canonicalName"]),
		NormalizedName:  strVal(props["normalizedName"]),
		Type:            strVal(props["type"]),
		ConfidenceScore: toFloat(props["confidenceScore"]),
		Status:          model.EntityStatus(strVal(props["status"])),
		TenantID:        strVal(props["tenantId"]),
		MergedIntoID:    strVal(props["mergedIntoId"]),
	}
	if t, ok := props["createdAt"].(time.Time); ok {
		e.CreatedAt = t
	}
	if t, ok := props["updatedAt"].(time.Time); ok {
		e.UpdatedAt = t
	}
	if keys, ok := props["blockingKeys"].([]any); ok {
		for _, k := range keys {
			if s, ok := k.(string); ok {
				e.BlockingKeys = append(e.BlockingKeys, s)
			}
		}
	}
	if attrs, ok := props["attributes"].(map[string]any); ok {
		e.Attributes = attrs
	}
	return e, nil
}

func strVal(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
