// Package entityref implements the merge-stable opaque handle described
// in spec §4.H: a reference taken against an entity before a merge still
// compares equal to one taken after, because equality follows the
// MERGED_INTO chain to its current canonical id at comparison time.
package entityref

import "context"

// Resolver follows the MERGED_INTO* chain from an id and returns the
// terminal ACTIVE id, or the input id unchanged if it is already
// canonical.
type Resolver func(ctx context.Context, id string) (string, error)

// Reference is an in-process value carrying the original id an entity
// was resolved to, the type it was resolved as, and a resolver used to
// chase merges lazily.
type Reference struct {
	originalID string
	entityType string
	resolve    Resolver
}

// New returns a Reference for originalID, using resolve to chase
// MERGED_INTO edges when CurrentID or Equal is called.
func New(originalID, entityType string, resolve Resolver) Reference {
	return Reference{originalID: originalID, entityType: entityType, resolve: resolve}
}

// OriginalID returns the id the reference was created with.
func (r Reference) OriginalID() string {
	return r.originalID
}

// Type returns the entity type the reference was resolved as.
func (r Reference) Type() string {
	return r.entityType
}

// CurrentID performs the MERGED_INTO* traversal and returns the
// terminal ACTIVE id.
func (r Reference) CurrentID(ctx context.Context) (string, error) {
	return r.resolve(ctx, r.originalID)
}

// WasMerged reports whether the entity behind this reference has been
// merged into another since the reference was created.
func (r Reference) WasMerged(ctx context.Context) (bool, error) {
	current, err := r.CurrentID(ctx)
	if err != nil {
		return false, err
	}
	return current != r.originalID, nil
}

// Equal reports whether r and other refer to the same real entity:
// their current canonical ids and types match. Two references taken
// before and after a merge of the same entity compare equal.
func Equal(ctx context.Context, a, b Reference) (bool, error) {
	if a.entityType != b.entityType {
		return false, nil
	}

	aID, err := a.CurrentID(ctx)
	if err != nil {
		return false, err
	}
	bID, err := b.CurrentID(ctx)
	if err != nil {
		return false, err
	}

	return aID == bID, nil
}

// Key returns a hashable identity for r, suitable for use as a map key
// once the caller has resolved the current id. Equality and hashing are
// defined over currentId + type (spec §4.H).
type Key struct {
	CurrentID string
	Type      string
}

// KeyOf resolves r's current id and returns its hashable Key.
func KeyOf(ctx context.Context, r Reference) (Key, error) {
	id, err := r.CurrentID(ctx)
	if err != nil {
		return Key{}, err
	}
	return Key{CurrentID: id, Type: r.entityType}, nil
}
