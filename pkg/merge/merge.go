// Package merge implements the compensating-transaction merge engine
// (spec §4.F): since the store offers only single-statement execution,
// atomicity across the multi-step re-home is simulated by an ordered
// sequence of steps, each paired with an idempotent compensation pushed
// onto a stack that unwinds LIFO on failure.
package merge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/internal/resolveerr"
	"github.com/Ramsey-B/canopy/internal/tracing"
	"github.com/Ramsey-B/canopy/pkg/audit"
	"github.com/Ramsey-B/canopy/pkg/events"
	"github.com/Ramsey-B/canopy/pkg/lock"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/synonym"
)

// compensation is a best-effort undo step; failures are logged, not
// raised, since running every compensation on a best-effort basis beats
// aborting the unwind partway through.
type compensation func(ctx context.Context) error

// Engine performs merges and their compensating rollback.
type Engine struct {
	store     graphstore.Store
	synonyms  *synonym.Store
	auditLog  *audit.Log
	ledger    *audit.MergeLedger
	locker    lock.Locker
	bus       *events.Bus
	lockTTL   time.Duration
	logger    ectologger.Logger
	nowFn     func() time.Time
}

// New wires a merge Engine.
func New(store graphstore.Store, synonyms *synonym.Store, auditLog *audit.Log, ledger *audit.MergeLedger, locker lock.Locker, bus *events.Bus, lockTTL time.Duration, logger ectologger.Logger) *Engine {
	return &Engine{
		store:    store,
		synonyms: synonyms,
		auditLog: auditLog,
		ledger:   ledger,
		locker:   locker,
		bus:      bus,
		lockTTL:  lockTTL,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// Merge re-homes sourceID into targetID. It satisfies both
// pkg/resolver.Merger and pkg/review.Merger.
func (e *Engine) Merge(ctx context.Context, sourceID, targetID string, decision model.MatchOutcome, evaluator model.Evaluator, reasoning string) error {
	ctx, span := tracing.StartSpan(ctx, "merge.Engine.Merge")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{"source_id": sourceID, "target_id": targetID})

	handle, err := e.locker.TryLock(ctx, lock.MergeKey(sourceID, targetID), e.lockTTL)
	if err != nil {
		return err
	}
	defer func() { _ = e.locker.Unlock(ctx, handle) }()

	source, target, err := e.validate(ctx, sourceID, targetID)
	if err != nil {
		return err
	}

	var compensations []compensation
	rollback := func(cause error) error {
		for i := len(compensations) - 1; i >= 0; i-- {
			if cerr := compensations[i](ctx); cerr != nil {
				log.WithError(cerr).Warn("compensation step failed during merge rollback")
			}
		}
		log.WithError(cause).Error("merge failed, compensations applied")
		return resolveerr.WithMeta(resolveerr.MergeFailed, "merge failed: "+cause.Error(), map[string]any{
			"source_id": sourceID,
			"target_id": targetID,
		})
	}

	synID, comp, err := e.attachSynonym(ctx, target, source)
	if err != nil {
		return rollback(err)
	}
	if comp != nil {
		compensations = append(compensations, comp)
	}

	dupComp, err := e.createDuplicateEntity(ctx, source, target)
	if err != nil {
		return rollback(err)
	}
	compensations = append(compensations, dupComp)

	relComp, err := e.rehomeRelationships(ctx, sourceID, targetID)
	if err != nil {
		return rollback(err)
	}
	compensations = append(compensations, relComp)

	statusComp, err := e.flipStatus(ctx, sourceID, targetID)
	if err != nil {
		return rollback(err)
	}
	compensations = append(compensations, statusComp)

	conflicts := detectConflicts(source, target)

	correlationID := uuid.NewString()
	if err := e.appendLedgerAndAudit(ctx, source, target, decision, evaluator, reasoning, correlationID, conflicts); err != nil {
		return rollback(err)
	}

	_ = synID
	e.bus.EmitMerge(ctx, events.MergeEvent{
		SourceID:   sourceID,
		TargetID:   targetID,
		Confidence: target.ConfidenceScore,
		Decision:   decision,
		OccurredAt: e.nowFn(),
	})

	return nil
}

func (e *Engine) validate(ctx context.Context, sourceID, targetID string) (model.Entity, model.Entity, error) {
	if sourceID == targetID {
		return model.Entity{}, model.Entity{}, resolveerr.New(resolveerr.InputInvalid, "cannot merge an entity into itself")
	}

	source, err := e.fetchEntity(ctx, sourceID)
	if err != nil {
		return model.Entity{}, model.Entity{}, err
	}
	target, err := e.fetchEntity(ctx, targetID)
	if err != nil {
		return model.Entity{}, model.Entity{}, err
	}

	if source.Status != model.StatusActive || target.Status != model.StatusActive {
		return model.Entity{}, model.Entity{}, resolveerr.New(resolveerr.StateInvalid, "both endpoints must be ACTIVE to merge")
	}
	if source.Type != target.Type {
		return model.Entity{}, model.Entity{}, resolveerr.New(resolveerr.InputInvalid, "cannot merge entities of different types")
	}

	return source, target, nil
}

func (e *Engine) fetchEntity(ctx context.Context, id string) (model.Entity, error) {
	rows, err := e.store.Query(ctx, `MATCH (e:Entity {id: $id}) RETURN e`, map[string]any{"id": id})
	if err != nil {
		return model.Entity{}, fmt.Errorf("fetching entity %q: %w", id, err)
	}
	if len(rows) == 0 {
		return model.Entity{}, resolveerr.New(resolveerr.NotFound, "entity not found: "+id)
	}
	return rowToEntity(rows[0]["e"])
}

// attachSynonym adds a SYSTEM synonym to target carrying source's
// canonical name, skipping if one already exists case-insensitively.
func (e *Engine) attachSynonym(ctx context.Context, target, source model.Entity) (string, compensation, error) {
	exists, err := e.synonyms.HasCaseInsensitive(ctx, target.ID, source.CanonicalName)
	if err != nil {
		return "", nil, err
	}
	if exists {
		return "", nil, nil
	}

	syn := model.Synonym{
		Value:           source.CanonicalName,
		NormalizedValue: source.NormalizedName,
		Source:          model.SynonymSourceSystem,
		Confidence:      1,
	}
	saved, err := e.synonyms.CreateForEntity(ctx, syn, target.ID)
	if err != nil {
		return "", nil, fmt.Errorf("attaching synonym during merge: %w", err)
	}

	comp := func(ctx context.Context) error {
		return e.store.Execute(ctx, `MATCH (s:Synonym {id: $id}) DETACH DELETE s`, map[string]any{"id": saved.ID})
	}
	return saved.ID, comp, nil
}

func (e *Engine) createDuplicateEntity(ctx context.Context, source, target model.Entity) (compensation, error) {
	dup := model.DuplicateEntity{
		ID:             uuid.NewString(),
		OriginalName:   source.CanonicalName,
		NormalizedName: source.NormalizedName,
		CanonicalID:    target.ID,
		CreatedAt:      e.nowFn(),
	}

	err := e.store.Execute(ctx, `
		MATCH (t:Entity {id: $targetId})
		CREATE (d:DuplicateEntity {
			id: $id, originalName: $originalName, normalizedName: $normalizedName, createdAt: $createdAt
		})-[:DUPLICATE_OF]->(t)
	`, map[string]any{
		"targetId":       target.ID,
		"id":             dup.ID,
		"originalName":   dup.OriginalName,
		"normalizedName": dup.NormalizedName,
		"createdAt":      dup.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("creating duplicate entity during merge: %w", err)
	}

	comp := func(ctx context.Context) error {
		return e.store.Execute(ctx, `MATCH (d:DuplicateEntity {id: $id}) DETACH DELETE d`, map[string]any{"id": dup.ID})
	}
	return comp, nil
}

// rehomeRelationships rewrites the source's LibraryRelationship edges to
// point from/to the target, dropping any that would create a self-loop
// on the target. The decision to silently drop rather than error on a
// self-loop is the open-question resolution in the project's expanded
// spec: a warning is logged at Debug, nothing more.
func (e *Engine) rehomeRelationships(ctx context.Context, sourceID, targetID string) (compensation, error) {
	rows, err := e.store.Query(ctx, `
		MATCH (s:Entity {id: $sourceId})-[r:LIBRARY_REL]->(other)
		RETURN r.id AS id, other.id AS otherId, 'out' AS direction
		UNION
		MATCH (other)-[r:LIBRARY_REL]->(s:Entity {id: $sourceId})
		RETURN r.id AS id, other.id AS otherId, 'in' AS direction
	`, map[string]any{"sourceId": sourceID, "targetId": targetID})
	if err != nil {
		return nil, fmt.Errorf("finding relationships to re-home: %w", err)
	}

	type rehomed struct {
		relID     string
		otherID   string
		direction string
	}
	var migrated []rehomed

	for _, row := range rows {
		relID, _ := row["id"].(string)
		otherID, _ := row["otherId"].(string)
		direction, _ := row["direction"].(string)

		if otherID == targetID {
			e.logger.WithContext(ctx).WithFields(map[string]any{"rel_id": relID}).
				Debug("dropping relationship that would self-loop on merge target")
			continue
		}

		if err := e.rehomeOne(ctx, relID, sourceID, targetID, otherID, direction); err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"rel_id": relID}).
				Warn("failed to re-home relationship, leaving it pointing at the source")
			continue
		}
		migrated = append(migrated, rehomed{relID: relID, otherID: otherID, direction: direction})
	}

	comp := func(ctx context.Context) error {
		var firstErr error
		for _, m := range migrated {
			if err := e.rehomeOne(ctx, m.relID, targetID, sourceID, m.otherID, m.direction); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return comp, nil
}

func (e *Engine) rehomeOne(ctx context.Context, relID, fromEntityID, toEntityID, otherID, direction string) error {
	if direction == "out" {
		return e.store.Execute(ctx, `
			MATCH (old:Entity {id: $fromId})-[r:LIBRARY_REL {id: $relId}]->(other:Entity {id: $otherId})
			MATCH (new:Entity {id: $toId})
			CREATE (new)-[r2:LIBRARY_REL]->(other)
			SET r2 = r
			DELETE r
		`, map[string]any{"fromId": fromEntityID, "toId": toEntityID, "relId": relID, "otherId": otherID})
	}
	return e.store.Execute(ctx, `
		MATCH (other:Entity {id: $otherId})-[r:LIBRARY_REL {id: $relId}]->(old:Entity {id: $fromId})
		MATCH (new:Entity {id: $toId})
		CREATE (other)-[r2:LIBRARY_REL]->(new)
		SET r2 = r
		DELETE r
	`, map[string]any{"fromId": fromEntityID, "toId": toEntityID, "relId": relID, "otherId": otherID})
}

func (e *Engine) flipStatus(ctx context.Context, sourceID, targetID string) (compensation, error) {
	now := e.nowFn()
	err := e.store.Execute(ctx, `
		MATCH (s:Entity {id: $sourceId})
		MATCH (t:Entity {id: $targetId})
		SET s.status = 'MERGED', s.mergedIntoId = $targetId, s.updatedAt = $now
		CREATE (s)-[:MERGED_INTO]->(t)
	`, map[string]any{"sourceId": sourceID, "targetId": targetID, "now": now})
	if err != nil {
		return nil, fmt.Errorf("flipping source status during merge: %w", err)
	}

	comp := func(ctx context.Context) error {
		return e.store.Execute(ctx, `
			MATCH (s:Entity {id: $sourceId})-[rel:MERGED_INTO]->(:Entity {id: $targetId})
			SET s.status = 'ACTIVE', s.mergedIntoId = ''
			DELETE rel
		`, map[string]any{"sourceId": sourceID, "targetId": targetID})
	}
	return comp, nil
}

func (e *Engine) appendLedgerAndAudit(ctx context.Context, source, target model.Entity, decision model.MatchOutcome, evaluator model.Evaluator, reasoning, correlationID string, conflicts []model.MergeConflict) error {
	rec := model.MergeRecord{
		SourceID:      source.ID,
		TargetID:      target.ID,
		SourceName:    source.CanonicalName,
		TargetName:    target.CanonicalName,
		Confidence:    target.ConfidenceScore,
		Decision:      decision,
		TriggeredBy:   evaluator,
		Reasoning:     reasoning,
		CorrelationID: correlationID,
		Conflicts:     conflicts,
	}
	if err := e.ledger.Append(ctx, rec); err != nil {
		return err
	}

	if len(conflicts) > 0 {
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"source_id": source.ID, "target_id": target.ID, "conflict_count": len(conflicts),
		}).Info("merge recorded field-level conflicts, target's values kept")
	}

	entry := model.AuditEntry{
		EntityID: target.ID,
		Action:   model.AuditEntityMerged,
		Details: map[string]any{
			"source_id": source.ID,
			"reasoning": strings.TrimSpace(reasoning),
		},
	}
	return e.auditLog.Append(ctx, entry)
}

// detectConflicts compares source and target attributes outside the
// canonical name and reports every key where both sides set a value and
// disagree. The target's existing value always wins -- it is already
// live on the surviving entity -- so resolution is always "kept target".
func detectConflicts(source, target model.Entity) []model.MergeConflict {
	if len(source.Attributes) == 0 {
		return nil
	}

	var conflicts []model.MergeConflict
	for field, sourceVal := range source.Attributes {
		targetVal, ok := target.Attributes[field]
		if !ok || targetVal == nil || sourceVal == nil {
			continue
		}
		if fmt.Sprint(targetVal) == fmt.Sprint(sourceVal) {
			continue
		}
		conflicts = append(conflicts, model.MergeConflict{
			Field:         field,
			Values:        []any{sourceVal, targetVal},
			Sources:       []string{source.ID, target.ID},
			Resolution:    "kept target",
			ResolvedValue: targetVal,
		})
	}
	return conflicts
}

func rowToEntity(v any) (model.Entity, error) {
	props, ok := v.(map[string]any)
	if !ok {
		return model.Entity{}, fmt.Errorf("unexpected entity row shape %T", v)
	}

	e := model.Entity{
		ID:              str(props["id"]),
		CanonicalName:   str(props["canonicalName"]),
		NormalizedName:  str(props["normalizedName"]),
		Type:            str(props["type"]),
		Status:          model.EntityStatus(str(props["status"])),
		TenantID:        str(props["tenantId"]),
		MergedIntoID:    str(props["mergedIntoId"]),
	}
	if c, ok := props["confidenceScore"].(float64); ok {
		e.ConfidenceScore = c
	}
	if attrs, ok := props["attributes"].(map[string]any); ok {
		e.Attributes = attrs
	}
	return e, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
