package events

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/canopy/pkg/model"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestEmitMerge_NotifiesListenersInRegistrationOrder(t *testing.T) {
	b := NewBus(testLogger())

	var order []int
	b.OnMerge(func(ctx context.Context, evt MergeEvent) { order = append(order, 1) })
	b.OnMerge(func(ctx context.Context, evt MergeEvent) { order = append(order, 2) })

	b.EmitMerge(context.Background(), MergeEvent{SourceID: "s1", TargetID: "t1"})
	assert.Equal(t, []int{1, 2}, order)
}

func TestEmitMerge_NoListenersIsANoop(t *testing.T) {
	b := NewBus(testLogger())
	assert.NotPanics(t, func() {
		b.EmitMerge(context.Background(), MergeEvent{})
	})
}

func TestEmitReviewSubmitted_DeliversPayload(t *testing.T) {
	b := NewBus(testLogger())

	var got ReviewSubmittedEvent
	b.OnReviewSubmitted(func(ctx context.Context, evt ReviewSubmittedEvent) { got = evt })

	b.EmitReviewSubmitted(context.Background(), ReviewSubmittedEvent{ReviewItem: model.ReviewItem{ID: "r1"}})
	assert.Equal(t, "r1", got.ReviewItem.ID)
}
