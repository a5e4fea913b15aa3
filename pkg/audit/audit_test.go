package audit

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/pkg/model"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestLog_AppendThenForEntity(t *testing.T) {
	store := graphstore.NewMemStore()
	var saved []graphstore.Row

	store.OnExecute(func(ctx context.Context, query string, params map[string]any) error {
		saved = append(saved, graphstore.Row{"a": map[string]any{
			"id": params["id"], "entityId": params["entityId"], "action": params["action"],
			"actorId": params["actorId"], "details": params["details"], "at": params["at"],
		}})
		return nil
	})
	store.OnQuery(func(ctx context.Context, query string, params map[string]any) ([]graphstore.Row, error) {
		return saved, nil
	})

	log := NewLog(store, testLogger())
	require.NoError(t, log.Append(context.Background(), model.AuditEntry{EntityID: "e1", Action: model.AuditEntityMerged}))

	page, err := log.ForEntity(context.Background(), "e1", "", 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, "e1", page.Items[0].EntityID)
}

func TestPaginate_SetsNextCursorWhenMoreRowsThanLimit(t *testing.T) {
	now := time.Now()
	rows := []graphstore.Row{
		{"a": map[string]any{"id": "1", "at": now}},
		{"a": map[string]any{"id": "2", "at": now.Add(time.Second)}},
		{"a": map[string]any{"id": "3", "at": now.Add(2 * time.Second)}},
	}

	page, err := paginate(rows, 2, func(v any) (model.AuditEntry, error) {
		props := v.(map[string]any)
		at, _ := props["at"].(time.Time)
		return model.AuditEntry{ID: props["id"].(string), At: at}, nil
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
}

func TestMergeLedger_AppendTolerantOfDuplicateCorrelationID(t *testing.T) {
	store := graphstore.NewMemStore()
	ledger := NewMergeLedger(store, testLogger())

	rec := model.MergeRecord{SourceID: "s1", TargetID: "t1", CorrelationID: "c1"}
	require.NoError(t, ledger.Append(context.Background(), rec))
	require.NoError(t, ledger.Append(context.Background(), rec))

	assert.Len(t, store.Executed, 2)
}
