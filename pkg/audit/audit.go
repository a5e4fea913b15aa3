// Package audit implements the append-only audit log and merge ledger
// (spec §4.K): every state change the core makes is recorded here and
// never edited or deleted.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/internal/tracing"
	"github.com/Ramsey-B/canopy/pkg/model"
)

// Page is a cursor-paginated slice of results; NextCursor is the ISO
// timestamp of the last row returned, or "" when there is no more data.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// Log appends and queries AuditEntry records.
type Log struct {
	store  graphstore.Store
	logger ectologger.Logger
	nowFn  func() time.Time
}

// NewLog returns an audit Log backed by the given graph store.
func NewLog(store graphstore.Store, logger ectologger.Logger) *Log {
	return &Log{store: store, logger: logger, nowFn: time.Now}
}

// Append records one audit entry.
func (l *Log) Append(ctx context.Context, entry model.AuditEntry) error {
	ctx, span := tracing.StartSpan(ctx, "audit.Log.Append")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = l.nowFn()
	}

	err := l.store.Execute(ctx, `
		CREATE (a:AuditEntry {
			id: $id, entityId: $entityId, action: $action, actorId: $actorId,
			details: $details, at: $at
		})
	`, map[string]any{
		"id":       entry.ID,
		"entityId": entry.EntityID,
		"action":   string(entry.Action),
		"actorId":  entry.ActorID,
		"details":  entry.Details,
		"at":       entry.At,
	})
	if err != nil {
		l.logger.WithContext(ctx).WithError(err).Error("failed to append audit entry")
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ForEntity returns a cursor-paginated page of audit entries for
// entityID, ordered by `at` ascending, starting after cursor.
func (l *Log) ForEntity(ctx context.Context, entityID, cursor string, limit int) (Page[model.AuditEntry], error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Log.ForEntity")
	defer span.End()

	rows, err := l.store.Query(ctx, `
		MATCH (a:AuditEntry {entityId: $entityId})
		WHERE $cursor = '' OR a.at > datetime($cursor)
		RETURN a
		ORDER BY a.at ASC
		LIMIT $limit
	`, map[string]any{"entityId": entityID, "cursor": cursor, "limit": limit + 1})
	if err != nil {
		return Page[model.AuditEntry]{}, fmt.Errorf("querying audit entries for %q: %w", entityID, err)
	}

	return paginate(rows, limit, rowToAuditEntry)
}

// MergeLedger appends and queries MergeRecord entries.
type MergeLedger struct {
	store  graphstore.Store
	logger ectologger.Logger
	nowFn  func() time.Time
}

// NewMergeLedger returns a MergeLedger backed by the given graph store.
func NewMergeLedger(store graphstore.Store, logger ectologger.Logger) *MergeLedger {
	return &MergeLedger{store: store, logger: logger, nowFn: time.Now}
}

// Append records one merge. The ledger is tolerant of duplicate
// correlation ids; it is not unique-constrained (spec §4.F step 6).
func (m *MergeLedger) Append(ctx context.Context, rec model.MergeRecord) error {
	ctx, span := tracing.StartSpan(ctx, "audit.MergeLedger.Append")
	defer span.End()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MergedAt.IsZero() {
		rec.MergedAt = m.nowFn()
	}

	err := m.store.Execute(ctx, `
		CREATE (r:MergeRecord {
			id: $id, sourceId: $sourceId, targetId: $targetId,
			sourceName: $sourceName, targetName: $targetName,
			confidence: $confidence, decision: $decision, triggeredBy: $triggeredBy,
			reasoning: $reasoning, correlationId: $correlationId, mergedAt: $mergedAt,
			conflicts: $conflicts
		})
	`, map[string]any{
		"id":            rec.ID,
		"sourceId":      rec.SourceID,
		"targetId":      rec.TargetID,
		"sourceName":    rec.SourceName,
		"targetName":    rec.TargetName,
		"confidence":    rec.Confidence,
		"decision":      string(rec.Decision),
		"triggeredBy":   string(rec.TriggeredBy),
		"reasoning":     rec.Reasoning,
		"correlationId": rec.CorrelationID,
		"mergedAt":      rec.MergedAt,
		"conflicts":     rec.Conflicts,
	})
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Error("failed to append merge record")
		return fmt.Errorf("appending merge record: %w", err)
	}
	return nil
}

// ForTarget returns every merge record whose target is id.
func (m *MergeLedger) ForTarget(ctx context.Context, id string) ([]model.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.MergeLedger.ForTarget")
	defer span.End()

	rows, err := m.store.Query(ctx, `
		MATCH (r:MergeRecord {targetId: $id})
		RETURN r
		ORDER BY r.mergedAt ASC
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("querying merge records for target %q: %w", id, err)
	}

	out := make([]model.MergeRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := rowToMergeRecord(row["r"])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// MergeChain returns every merge record in which id is the source or the
// target, ordered by mergedAt. It is a single lookup: merges that fed
// into those sources in turn are not followed.
func (m *MergeLedger) MergeChain(ctx context.Context, id string) ([]model.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.MergeLedger.MergeChain")
	defer span.End()

	rows, err := m.store.Query(ctx, `
		MATCH (r:MergeRecord)
		WHERE r.targetId = $id OR r.sourceId = $id
		RETURN r
		ORDER BY r.mergedAt ASC
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("walking merge chain for %q: %w", id, err)
	}

	out := make([]model.MergeRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := rowToMergeRecord(row["r"])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func paginate[T any](rows []graphstore.Row, limit int, convert func(any) (T, error)) (Page[T], error) {
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	items := make([]T, 0, len(rows))
	for _, row := range rows {
		item, err := convert(row[keyFor(row)])
		if err != nil {
			return Page[T]{}, err
		}
		items = append(items, item)
	}

	page := Page[T]{Items: items}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		if at, ok := last[keyFor(last)].(map[string]any)["at"].(time.Time); ok {
			page.NextCursor = at.Format(time.RFC3339Nano)
		}
	}
	return page, nil
}

// keyFor returns the sole key of a single-column result row.
func keyFor(row graphstore.Row) string {
	for k := range row {
		return k
	}
	return ""
}

func rowToAuditEntry(v any) (model.AuditEntry, error) {
	props, ok := v.(map[string]any)
	if !ok {
		return model.AuditEntry{}, fmt.Errorf("unexpected audit entry row shape %T", v)
	}

	entry := model.AuditEntry{
		ID:       strVal(props["id"]),
		EntityID: strVal(props["entityId"]),
		Action:   model.AuditAction(strVal(props["action"])),
		ActorID:  strVal(props["actorId"]),
	}
	if details, ok := props["details"].(map[string]any); ok {
		entry.Details = details
	}
	if at, ok := props["at"].(time.Time); ok {
		entry.At = at
	}
	return entry, nil
}

func rowToMergeRecord(v any) (model.MergeRecord, error) {
	props, ok := v.(map[string]any)
	if !ok {
		return model.MergeRecord{}, fmt.Errorf("unexpected merge record row shape %T", v)
	}

	rec := model.MergeRecord{
		ID:            strVal(props["id"]),
		SourceID:      strVal(props["sourceId"]),
		TargetID:      strVal(props["targetId"]),
		SourceName:    strVal(props["sourceName"]),
		TargetName:    strVal(props["targetName"]),
		Decision:      model.MatchOutcome(strVal(props["decision"])),
		TriggeredBy:   model.Evaluator(strVal(props["triggeredBy"])),
		Reasoning:     strVal(props["reasoning"]),
		CorrelationID: strVal(props["correlationId"]),
	}
	if c, ok := props["confidence"].(float64); ok {
		rec.Confidence = c
	}
	if at, ok := props["mergedAt"].(time.Time); ok {
		rec.MergedAt = at
	}
	if conflicts, ok := props["conflicts"].([]model.MergeConflict); ok {
		rec.Conflicts = conflicts
	}
	return rec, nil
}

func strVal(v any) string {
	s, _ := v.(string)
	return s
}
