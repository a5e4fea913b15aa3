// Package events is the in-process listener bus the resolution core
// emits to on merge and review actions (spec §6 "Emitted events"). It
// replaces the teacher's Kafka-backed emitter: no wire format is
// mandated, so listeners are plain Go callbacks registered in process.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/canopy/pkg/model"
)

// MergeEvent is emitted when a merge completes successfully.
type MergeEvent struct {
	SourceID   string
	TargetID   string
	Confidence float64
	Decision   model.MatchOutcome
	OccurredAt time.Time
}

// ReviewSubmittedEvent is emitted when an item is enqueued for review.
type ReviewSubmittedEvent struct {
	ReviewItem model.ReviewItem
}

// ReviewDecidedEvent is emitted when a review is approved or rejected.
type ReviewDecidedEvent struct {
	Decision model.ReviewDecision
}

// MergeListener reacts to a completed merge, e.g. cache invalidation or
// metrics.
type MergeListener func(ctx context.Context, evt MergeEvent)

// ReviewSubmittedListener and ReviewDecidedListener react to
// review-queue activity.
type ReviewSubmittedListener func(ctx context.Context, evt ReviewSubmittedEvent)
type ReviewDecidedListener func(ctx context.Context, evt ReviewDecidedEvent)

// Bus fans events out to registered in-process listeners.
type Bus struct {
	mu              sync.RWMutex
	logger          ectologger.Logger
	mergeListeners  []MergeListener
	submitListeners []ReviewSubmittedListener
	decideListeners []ReviewDecidedListener
}

// NewBus returns an empty Bus.
func NewBus(logger ectologger.Logger) *Bus {
	return &Bus{logger: logger}
}

// OnMerge registers a listener invoked after every successful merge.
func (b *Bus) OnMerge(l MergeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mergeListeners = append(b.mergeListeners, l)
}

// OnReviewSubmitted registers a listener invoked on review submission.
func (b *Bus) OnReviewSubmitted(l ReviewSubmittedListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitListeners = append(b.submitListeners, l)
}

// OnReviewDecided registers a listener invoked on review approve/reject.
func (b *Bus) OnReviewDecided(l ReviewDecidedListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decideListeners = append(b.decideListeners, l)
}

// EmitMerge notifies every registered merge listener synchronously, in
// registration order. Listener panics are not recovered; listeners are
// expected to be well-behaved in-process code, not external callers.
func (b *Bus) EmitMerge(ctx context.Context, evt MergeEvent) {
	b.mu.RLock()
	listeners := append([]MergeListener(nil), b.mergeListeners...)
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, evt)
	}
}

// EmitReviewSubmitted notifies every registered review-submitted listener.
func (b *Bus) EmitReviewSubmitted(ctx context.Context, evt ReviewSubmittedEvent) {
	b.mu.RLock()
	listeners := append([]ReviewSubmittedListener(nil), b.submitListeners...)
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, evt)
	}
}

// EmitReviewDecided notifies every registered review-decided listener.
func (b *Bus) EmitReviewDecided(ctx context.Context, evt ReviewDecidedEvent) {
	b.mu.RLock()
	listeners := append([]ReviewDecidedListener(nil), b.decideListeners...)
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, evt)
	}
}
