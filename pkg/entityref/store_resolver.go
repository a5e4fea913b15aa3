package entityref

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/canopy/internal/graphstore"
)

// StoreResolver returns a Resolver that walks MERGED_INTO edges in
// store until it reaches a node whose status is ACTIVE.
func StoreResolver(store graphstore.Store) Resolver {
	return func(ctx context.Context, id string) (string, error) {
		current := id
		for {
			rows, err := store.Query(ctx, `
				MATCH (e:Entity {id: $id})
				RETURN e.status AS status, e.mergedIntoId AS mergedIntoId
			`, map[string]any{"id": current})
			if err != nil {
				return "", fmt.Errorf("resolving current id for %q: %w", id, err)
			}
			if len(rows) == 0 {
				return current, nil
			}

			status, _ := rows[0]["status"].(string)
			if status != "MERGED" {
				return current, nil
			}

			next, _ := rows[0]["mergedIntoId"].(string)
			if next == "" || next == current {
				return current, nil
			}
			current = next
		}
	}
}
