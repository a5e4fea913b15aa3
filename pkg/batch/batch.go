// Package batch implements the scoped batch context of spec §4.I: a
// single-writer collector of resolve/createRelationship operations that
// dedups identical mentions in-memory before committing to the store in
// chunks, enforcing a memory ceiling and guaranteeing resource release on
// every exit path.
package batch

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/canopy/internal/resolveerr"
	"github.com/Ramsey-B/canopy/internal/tracing"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/resolver"
	"github.com/Ramsey-B/canopy/pkg/resolveropts"
)

// Outcome is the per-mention resolution result a batch reports.
type Outcome = resolver.Outcome

type relationshipOp struct {
	fromKey string
	toKey   string
	relType string
	props   map[string]any
}

// Result reports what happened to every distinct mention and every
// relationship enqueued in a batch, leaving partial failures inspectable
// via chunk boundaries.
type Result struct {
	Resolved      map[string]Outcome // keyed by "normalizedName|type"
	ChunksCommitted int
	Errors        []error
}

// Context is a single-writer, scoped collector. Concurrent use from
// multiple goroutines is undefined, matching spec §5's single-writer
// contract.
type Context struct {
	resolver    *resolver.Resolver
	opts        resolveropts.Options
	logger      ectologger.Logger
	dedup       map[string]string // key -> key, a set of staged keys
	order       []pendingMention
	rels        []relationshipOp
	memoryUsed  int64
	released    bool
}

type pendingMention struct {
	key     string
	mention model.Mention
}

// New returns a scoped batch Context. Call Close when done, on every
// exit path, to release staged resources even if Commit was never
// called.
func New(r *resolver.Resolver, opts resolveropts.Options, logger ectologger.Logger) *Context {
	return &Context{
		resolver: r,
		opts:     opts,
		logger:   logger,
		dedup:    make(map[string]string),
	}
}

// EnqueueResolve stages a mention for resolution. Mentions sharing
// (normalizedName, type) within the batch share one Entity; the first
// enqueued is the one resolved and wins canonicalName. Later equivalents
// are dropped: they are not recorded as synonyms of the winner.
func (c *Context) EnqueueResolve(ctx context.Context, mention model.Mention, normalizedName string) error {
	key := normalizedName + "|" + mention.Type

	size := estimateSize(mention)
	c.memoryUsed += size
	if c.memoryUsed > c.opts.MaxBatchMemoryBytes {
		return resolveerr.New(resolveerr.BatchMemoryExceeded, "batch exceeded max memory ceiling")
	}

	if _, seen := c.dedup[key]; seen {
		return nil
	}

	if len(c.order) >= c.opts.MaxBatchSize {
		return resolveerr.New(resolveerr.BatchTooLarge, "batch exceeded max batch size")
	}

	c.dedup[key] = key
	c.order = append(c.order, pendingMention{key: key, mention: mention})
	return nil
}

// EnqueueRelationship stages a LibraryRelationship between two mentions
// already enqueued for resolve in this batch, keyed by their
// (normalizedName, type) pair.
func (c *Context) EnqueueRelationship(fromNormalizedName, fromType, toNormalizedName, toType, relType string, props map[string]any) {
	c.rels = append(c.rels, relationshipOp{
		fromKey: fromNormalizedName + "|" + fromType,
		toKey:   toNormalizedName + "|" + toType,
		relType: relType,
		props:   props,
	})
}

// Commit resolves every distinct mention and creates every staged
// relationship, processing mentions in commit chunks of
// BatchCommitChunkSize. Commit is one-way: an already-committed chunk is
// not rolled back if a later chunk fails.
func (c *Context) Commit(ctx context.Context) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "batch.Context.Commit")
	defer span.End()
	defer c.Close()

	result := Result{Resolved: make(map[string]Outcome, len(c.order))}

	chunkSize := c.opts.BatchCommitChunkSize
	if chunkSize <= 0 {
		chunkSize = len(c.order)
	}
	if chunkSize == 0 {
		chunkSize = 1
	}

	for start := 0; start < len(c.order); start += chunkSize {
		end := start + chunkSize
		if end > len(c.order) {
			end = len(c.order)
		}

		for _, pm := range c.order[start:end] {
			outcome, err := c.resolver.Resolve(ctx, pm.mention)
			if err != nil {
				c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"key": pm.key}).
					Warn("batch member failed to resolve, continuing with remaining members")
				result.Errors = append(result.Errors, fmt.Errorf("resolving %q: %w", pm.key, err))
				continue
			}
			result.Resolved[pm.key] = outcome
		}

		result.ChunksCommitted++
	}

	for _, op := range c.rels {
		from, ok := result.Resolved[op.fromKey]
		if !ok {
			result.Errors = append(result.Errors, fmt.Errorf("creating relationship: %q was not resolved in this batch", op.fromKey))
			continue
		}
		to, ok := result.Resolved[op.toKey]
		if !ok {
			result.Errors = append(result.Errors, fmt.Errorf("creating relationship: %q was not resolved in this batch", op.toKey))
			continue
		}

		if _, err := c.resolver.CreateRelationship(ctx, from.EntityID, to.EntityID, op.relType, op.props); err != nil {
			c.logger.WithContext(ctx).WithError(err).
				WithFields(map[string]any{"from": op.fromKey, "to": op.toKey, "type": op.relType}).
				Warn("failed to create staged relationship, continuing with remaining members")
			result.Errors = append(result.Errors, fmt.Errorf("creating relationship %q->%q: %w", op.fromKey, op.toKey, err))
		}
	}

	return result, nil
}

// Close releases any resources staged by this batch. It is safe to call
// multiple times.
func (c *Context) Close() {
	if c.released {
		return
	}
	c.released = true
	c.order = nil
	c.rels = nil
	c.dedup = nil
}

func estimateSize(m model.Mention) int64 {
	size := int64(unsafe.Sizeof(m)) + int64(len(m.Name)) + int64(len(m.Type)) + int64(len(m.SourceSystem))
	for k, v := range m.Attributes {
		size += int64(len(k))
		if s, ok := v.(string); ok {
			size += int64(len(s))
		} else {
			size += 16
		}
	}
	return size
}
