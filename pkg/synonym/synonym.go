// Package synonym manages entity synonyms and their effective
// confidence, a function of elapsed time and reinforcement frequency
// rather than a stored value (spec §4.G).
package synonym

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/internal/tracing"
	"github.com/Ramsey-B/canopy/pkg/model"
)

// DecayParams configures the effective-confidence formula.
type DecayParams struct {
	// Lambda is the exponential decay constant, per day. Default 0.001.
	Lambda float64
	// ReinforcementCap bounds the support-count boost. Default 0.15.
	ReinforcementCap float64
	// NegativeReinforcementPenalty scales base confidence down on
	// review reject. Default 0.25.
	NegativeReinforcementPenalty float64
}

// DefaultDecayParams returns the defaults named in the component design.
func DefaultDecayParams() DecayParams {
	return DecayParams{Lambda: 0.001, ReinforcementCap: 0.15, NegativeReinforcementPenalty: 0.25}
}

// boostK calibrates the log boost so supportCount≈50 approaches cap.
func (p DecayParams) boostK() float64 {
	return p.ReinforcementCap / math.Log(1+50)
}

// EffectiveConfidence computes a synonym's confidence at `now`, combining
// exponential time decay of the base confidence with a logarithmic
// support-count boost, clamped to [0,1].
func (p DecayParams) EffectiveConfidence(s model.Synonym, now time.Time) float64 {
	days := now.Sub(s.LastConfirmedAt).Hours() / 24
	if days < 0 {
		days = 0
	}

	decay := math.Exp(-p.Lambda * days)
	boost := p.boostK() * math.Log(1+float64(s.SupportCount))
	if boost > p.ReinforcementCap {
		boost = p.ReinforcementCap
	}

	effective := s.Confidence*decay + boost
	if effective < 0 {
		return 0
	}
	if effective > 1 {
		return 1
	}
	return effective
}

// ShouldTriggerReview reports whether a synonym has decayed below the
// synonym threshold despite starting above it.
func (p DecayParams) ShouldTriggerReview(s model.Synonym, now time.Time, synonymThreshold float64) bool {
	return p.EffectiveConfidence(s, now) < synonymThreshold && s.Confidence >= synonymThreshold
}

// IsStale reports whether a synonym's effective confidence has decayed
// below the review threshold.
func (p DecayParams) IsStale(s model.Synonym, now time.Time, reviewThreshold float64) bool {
	return p.EffectiveConfidence(s, now) < reviewThreshold
}

// Penalize applies negative reinforcement to base confidence, as
// performed on review reject of a synonym-linked match.
func (p DecayParams) Penalize(base float64) float64 {
	penalized := base * (1 - p.NegativeReinforcementPenalty)
	if penalized < 0 {
		return 0
	}
	return penalized
}

// Store persists and queries Synonym nodes against the graph store.
type Store struct {
	store  graphstore.Store
	params DecayParams
	logger ectologger.Logger
	nowFn  func() time.Time
}

// NewStore returns a synonym Store backed by the given graph store.
func NewStore(store graphstore.Store, params DecayParams, logger ectologger.Logger) *Store {
	return &Store{store: store, params: params, logger: logger, nowFn: time.Now}
}

// CreateForEntity attaches a new synonym to entityID, or reinforces an
// existing one with the same normalized value.
func (s *Store) CreateForEntity(ctx context.Context, syn model.Synonym, entityID string) (model.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "synonym.Store.CreateForEntity")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"entity_id": entityID})

	existing, err := s.findByNormalizedValue(ctx, entityID, syn.NormalizedValue)
	if err != nil {
		return model.Synonym{}, err
	}
	if existing != nil {
		log.Debug("reinforcing existing synonym instead of creating duplicate")
		return s.Reinforce(ctx, existing.ID)
	}

	now := s.nowFn()
	syn.ID = uuid.NewString()
	syn.EntityID = entityID
	syn.SupportCount = 1
	syn.LastConfirmedAt = now
	syn.CreatedAt = now

	err = s.store.Execute(ctx, `
		MATCH (e:Entity {id: $entityId})
		CREATE (s:Synonym {
			id: $id, value: $value, normalizedValue: $normalizedValue,
			source: $source, confidence: $confidence, supportCount: $supportCount,
			lastConfirmedAt: $lastConfirmedAt, createdAt: $createdAt
		})-[:SYNONYM_OF]->(e)
	`, map[string]any{
		"entityId":        entityID,
		"id":              syn.ID,
		"value":           syn.Value,
		"normalizedValue": syn.NormalizedValue,
		"source":          string(syn.Source),
		"confidence":      syn.Confidence,
		"supportCount":    syn.SupportCount,
		"lastConfirmedAt": syn.LastConfirmedAt,
		"createdAt":       syn.CreatedAt,
	})
	if err != nil {
		log.WithError(err).Error("failed to create synonym")
		return model.Synonym{}, fmt.Errorf("creating synonym: %w", err)
	}

	return syn, nil
}

// Reinforce increments supportCount and refreshes lastConfirmedAt.
func (s *Store) Reinforce(ctx context.Context, synonymID string) (model.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "synonym.Store.Reinforce")
	defer span.End()

	now := s.nowFn()
	err := s.store.Execute(ctx, `
		MATCH (s:Synonym {id: $id})
		SET s.supportCount = s.supportCount + 1, s.lastConfirmedAt = $now
	`, map[string]any{"id": synonymID, "now": now})
	if err != nil {
		return model.Synonym{}, fmt.Errorf("reinforcing synonym %q: %w", synonymID, err)
	}

	return s.Get(ctx, synonymID)
}

// PenalizeSynonym applies negative reinforcement to base confidence.
func (s *Store) PenalizeSynonym(ctx context.Context, synonymID string) error {
	ctx, span := tracing.StartSpan(ctx, "synonym.Store.PenalizeSynonym")
	defer span.End()

	syn, err := s.Get(ctx, synonymID)
	if err != nil {
		return err
	}

	newConfidence := s.params.Penalize(syn.Confidence)
	return s.store.Execute(ctx, `
		MATCH (s:Synonym {id: $id})
		SET s.confidence = $confidence
	`, map[string]any{"id": synonymID, "confidence": newConfidence})
}

// Get fetches a synonym by id.
func (s *Store) Get(ctx context.Context, id string) (model.Synonym, error) {
	rows, err := s.store.Query(ctx, `
		MATCH (s:Synonym {id: $id}) RETURN s
	`, map[string]any{"id": id})
	if err != nil {
		return model.Synonym{}, fmt.Errorf("fetching synonym %q: %w", id, err)
	}
	if len(rows) == 0 {
		return model.Synonym{}, fmt.Errorf("synonym %q not found", id)
	}
	return rowToSynonym(rows[0]["s"])
}

// FindByNormalizedValue looks up an ACTIVE entity reachable via a
// SYNONYM_OF edge from a synonym matching normalizedValue (spec §4.D
// step 2).
func (s *Store) FindByNormalizedValue(ctx context.Context, normalizedValue, entityType string) (model.Synonym, string, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "synonym.Store.FindByNormalizedValue")
	defer span.End()

	rows, err := s.store.Query(ctx, `
		MATCH (s:Synonym {normalizedValue: $value})-[:SYNONYM_OF]->(e:Entity {type: $type, status: 'ACTIVE'})
		RETURN s, e.id AS entityId
		LIMIT 1
	`, map[string]any{"value": normalizedValue, "type": entityType})
	if err != nil {
		return model.Synonym{}, "", false, fmt.Errorf("looking up synonym %q: %w", normalizedValue, err)
	}
	if len(rows) == 0 {
		return model.Synonym{}, "", false, nil
	}

	syn, err := rowToSynonym(rows[0]["s"])
	if err != nil {
		return model.Synonym{}, "", false, err
	}
	entityID, _ := rows[0]["entityId"].(string)
	return syn, entityID, true, nil
}

func (s *Store) findByNormalizedValue(ctx context.Context, entityID, normalizedValue string) (*model.Synonym, error) {
	rows, err := s.store.Query(ctx, `
		MATCH (s:Synonym {normalizedValue: $value})-[:SYNONYM_OF]->(e:Entity {id: $entityId})
		RETURN s
		LIMIT 1
	`, map[string]any{"value": normalizedValue, "entityId": entityID})
	if err != nil {
		return nil, fmt.Errorf("checking for existing synonym: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	syn, err := rowToSynonym(rows[0]["s"])
	if err != nil {
		return nil, err
	}
	return &syn, nil
}

// HasCaseInsensitive reports whether entityID already carries a synonym
// matching name case-insensitively, used by the merge engine's step 2
// idempotency check.
func (s *Store) HasCaseInsensitive(ctx context.Context, entityID, name string) (bool, error) {
	rows, err := s.store.Query(ctx, `
		MATCH (s:Synonym)-[:SYNONYM_OF]->(e:Entity {id: $entityId})
		RETURN s.value AS value
	`, map[string]any{"entityId": entityID})
	if err != nil {
		return false, fmt.Errorf("listing synonyms for %q: %w", entityID, err)
	}

	lowered := strings.ToLower(name)
	for _, row := range rows {
		if v, _ := row["value"].(string); strings.ToLower(v) == lowered {
			return true, nil
		}
	}
	return false, nil
}

func rowToSynonym(v any) (model.Synonym, error) {
	props, ok := v.(map[string]any)
	if !ok {
		return model.Synonym{}, fmt.Errorf("unexpected synonym row shape %T", v)
	}

	syn := model.Synonym{
		ID:              str(props["id"]),
		EntityID:        str(props["entityId"]),
		Value:           str(props["value"]),
		NormalizedValue: str(props["normalizedValue"]),
		Source:          model.SynonymSource(str(props["source"])),
		Confidence:      num(props["confidence"]),
		SupportCount:    int(num(props["supportCount"])),
	}
	if t, ok := props["lastConfirmedAt"].(time.Time); ok {
		syn.LastConfirmedAt = t
	}
	if t, ok := props["createdAt"].(time.Time); ok {
		syn.CreatedAt = t
	}
	return syn, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
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
