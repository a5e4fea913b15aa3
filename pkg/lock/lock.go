// Package lock provides the advisory locks the resolution core uses to
// serialize writes on contested keys (spec §4.L): a process-local
// per-key lock, and a distributed lock backed by an atomic upsert
// against the graph store's Lock node.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/internal/resolveerr"
	"github.com/Ramsey-B/canopy/internal/tracing"
)

// ErrNotHeld is returned by Unlock when the caller does not own the lock.
var ErrNotHeld = errors.New("lock not held")

// Locker acquires and releases advisory locks keyed by an arbitrary
// string. EntityKey and MergeKey build the two key shapes the core uses.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Handle, error)
	Unlock(ctx context.Context, h Handle) error
}

// Handle identifies a held lock so it can be released by its owner.
type Handle struct {
	Key   string
	Owner string
}

// EntityKey builds the lock key used around create-if-absent in candidate
// discovery (spec §4.D).
func EntityKey(normalizedName, entityType string) string {
	return fmt.Sprintf("entity-resolution:%s:%s", normalizedName, entityType)
}

// MergeKey builds the lock key used around a merge (spec §4.F), ordering
// the pair so dueling merges on a common endpoint collide on one key
// regardless of which side was passed as source/target.
func MergeKey(idA, idB string) string {
	minID, maxID := idA, idB
	if maxID < minID {
		minID, maxID = maxID, minID
	}
	return fmt.Sprintf("entity-resolution:merge:%s:%s", minID, maxID)
}

// Local is a process-local per-key lock with bounded wait. It is not
// re-entrant: a second TryLock on a held key waits for Unlock, even when
// it comes from the holder.
type Local struct {
	mu    sync.Mutex
	held  map[string]chan struct{}
}

// NewLocal returns a ready Local locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]chan struct{})}
}

// TryLock blocks until the key is free or ctx/ttl-derived deadline
// elapses.
func (l *Local) TryLock(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	deadline := time.Now().Add(ttl)

	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return Handle{Key: key, Owner: uuid.NewString()}, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return Handle{}, resolveerr.New(resolveerr.LockAcquisitionFailed, "local lock wait exceeded ttl for key "+key)
		}

		select {
		case <-ctx.Done():
			return Handle{}, ctx.Err()
		case <-ch:
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Unlock releases a local lock, waking any waiters.
func (l *Local) Unlock(ctx context.Context, h Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.held[h.Key]
	if !ok {
		return ErrNotHeld
	}
	delete(l.held, h.Key)
	close(ch)
	return nil
}

// StoreBacked is a distributed Locker backed by an atomic upsert of a
// Lock node in the graph store, ported from orchid's Redis SET-NX +
// Lua compare-and-delete pattern onto the store's single-statement
// execute/query surface.
type StoreBacked struct {
	store      graphstore.Store
	logger     ectologger.Logger
	maxRetries int
}

// NewStoreBacked returns a StoreBacked locker with the given retry cap.
func NewStoreBacked(store graphstore.Store, logger ectologger.Logger, maxRetries int) *StoreBacked {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &StoreBacked{store: store, logger: logger, maxRetries: maxRetries}
}

// TryLock attempts the upsert, retrying with exponential backoff up to
// maxRetries before surfacing a non-retryable LOCK_ACQUISITION_FAILED.
func (s *StoreBacked) TryLock(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	ctx, span := tracing.StartSpan(ctx, "lock.StoreBacked.TryLock")
	defer span.End()

	owner := uuid.NewString()
	backoff := 10 * time.Millisecond

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		acquired, err := s.tryUpsert(ctx, key, owner, ttl)
		if err != nil {
			return Handle{}, err
		}
		if acquired {
			return Handle{Key: key, Owner: owner}, nil
		}

		if attempt == s.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return Handle{}, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 500*time.Millisecond {
				backoff = 500 * time.Millisecond
			}
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"key": key}).Warn("lock acquisition exhausted retries")
	return Handle{}, resolveerr.New(resolveerr.LockAcquisitionFailed, "exhausted retries acquiring lock "+key)
}

func (s *StoreBacked) tryUpsert(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	rows, err := s.store.Query(ctx, `
		MATCH (l:Lock {key: $key})
		RETURN l.owner AS owner, l.expiresAt AS expiresAt
	`, map[string]any{"key": key})
	if err != nil {
		return false, fmt.Errorf("reading lock %q: %w", key, err)
	}

	if len(rows) > 0 {
		existingExpiry, _ := rows[0]["expiresAt"].(time.Time)
		if existingExpiry.After(now) {
			return false, nil
		}

		err := s.store.Execute(ctx, `
			MATCH (l:Lock {key: $key})
			SET l.owner = $owner, l.acquiredAt = $now, l.expiresAt = $expiresAt
		`, map[string]any{"key": key, "owner": owner, "now": now, "expiresAt": expiresAt})
		if err != nil {
			return false, fmt.Errorf("taking over expired lock %q: %w", key, err)
		}
		return true, nil
	}

	err = s.store.Execute(ctx, `
		CREATE (l:Lock {key: $key, owner: $owner, acquiredAt: $now, expiresAt: $expiresAt})
	`, map[string]any{"key": key, "owner": owner, "now": now, "expiresAt": expiresAt})
	if err != nil {
		return false, fmt.Errorf("creating lock %q: %w", key, err)
	}
	return true, nil
}

// Unlock deletes the Lock node only if h's owner still matches, safe
// against TTL expiry racing with a late unlock.
func (s *StoreBacked) Unlock(ctx context.Context, h Handle) error {
	ctx, span := tracing.StartSpan(ctx, "lock.StoreBacked.Unlock")
	defer span.End()

	rows, err := s.store.Query(ctx, `
		MATCH (l:Lock {key: $key}) RETURN l.owner AS owner
	`, map[string]any{"key": h.Key})
	if err != nil {
		return fmt.Errorf("reading lock %q for unlock: %w", h.Key, err)
	}
	if len(rows) == 0 {
		return ErrNotHeld
	}
	if owner, _ := rows[0]["owner"].(string); owner != h.Owner {
		return ErrNotHeld
	}

	return s.store.Execute(ctx, `
		MATCH (l:Lock {key: $key}) DELETE l
	`, map[string]any{"key": h.Key})
}
