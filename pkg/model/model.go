// Package model defines the graph-node and edge types the resolution core
// reads and writes (spec §3). Every type carries a stable string id so it
// round-trips through the store contract in internal/graphstore untouched.
package model

import "time"

// EntityStatus is the lifecycle state of an Entity.
type EntityStatus string

const (
	StatusActive EntityStatus = "ACTIVE"
	StatusMerged EntityStatus = "MERGED"
)

// Entity is the canonical or formerly-canonical representation of a
// real-world thing. (normalizedName, type, tenantId, status=ACTIVE) is
// unique; a MERGED entity has exactly one outgoing MERGED_INTO edge.
type Entity struct {
	ID              string         `json:"id"`
	CanonicalName   string         `json:"canonical_name"`
	NormalizedName  string         `json:"normalized_name"`
	Type            string         `json:"type"`
	ConfidenceScore float64        `json:"confidence_score"`
	Status          EntityStatus   `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	TenantID        string         `json:"tenant_id,omitempty"`
	BlockingKeys    []string       `json:"blocking_keys"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	MergedIntoID    string         `json:"merged_into_id,omitempty"`
}

// SynonymSource identifies who attached a Synonym.
type SynonymSource string

const (
	SynonymSourceSystem SynonymSource = "SYSTEM"
	SynonymSourceLLM    SynonymSource = "LLM"
	SynonymSourceHuman  SynonymSource = "HUMAN"
)

// Synonym is an alternative name pointing at exactly one Entity via
// SYNONYM_OF, carrying confidence that decays over time and is
// reinforced by repeated observation (spec §4.G).
type Synonym struct {
	ID              string        `json:"id"`
	EntityID        string        `json:"entity_id"`
	Value           string        `json:"value"`
	NormalizedValue string        `json:"normalized_value"`
	Source          SynonymSource `json:"source"`
	Confidence      float64       `json:"confidence"` // base confidence, pre-decay
	LastConfirmedAt time.Time     `json:"last_confirmed_at"`
	SupportCount    int           `json:"support_count"`
	CreatedAt       time.Time     `json:"created_at"`
}

// DuplicateEntity is a provenance record created as a by-product of merge.
type DuplicateEntity struct {
	ID             string    `json:"id"`
	OriginalName   string    `json:"original_name"`
	NormalizedName string    `json:"normalized_name"`
	SourceSystem   string    `json:"source_system,omitempty"`
	CanonicalID    string    `json:"canonical_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// LibraryRelationship is a typed edge between two Entities, re-homed to
// the surviving canonical entity on merge.
type LibraryRelationship struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	FromID    string         `json:"from_id"`
	ToID      string         `json:"to_id"`
	CreatedAt time.Time      `json:"created_at"`
	CreatedBy string         `json:"created_by,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
}

// MatchOutcome is the decision a MatchDecision records.
type MatchOutcome string

const (
	OutcomeAutoMerge  MatchOutcome = "AUTO_MERGE"
	OutcomeSynonym    MatchOutcome = "SYNONYM"
	OutcomeReview     MatchOutcome = "REVIEW"
	OutcomeNoMatch    MatchOutcome = "NO_MATCH"
	OutcomeLLMEnrich  MatchOutcome = "LLM_ENRICH"
)

// Evaluator identifies what produced a MatchDecision's score.
type Evaluator string

const (
	EvaluatorSystem Evaluator = "SYSTEM"
	EvaluatorLLM    Evaluator = "LLM"
	EvaluatorHuman  Evaluator = "HUMAN"
)

// ThresholdsSnapshot freezes the thresholds in effect when a MatchDecision
// was made, so historical decisions stay explainable after config changes.
type ThresholdsSnapshot struct {
	AutoMerge float64 `json:"auto_merge"`
	Synonym   float64 `json:"synonym"`
	Review    float64 `json:"review"`
}

// MatchDecision is an immutable record of one candidate comparison.
type MatchDecision struct {
	ID                 string             `json:"id"`
	InputTempID        string             `json:"input_temp_id"`
	CandidateID        string             `json:"candidate_id"`
	Type               string             `json:"type"`
	ExactScore         float64            `json:"exact_score"`
	LevScore           float64            `json:"lev_score"`
	JWScore            float64            `json:"jw_score"`
	JaccardScore       float64            `json:"jaccard_score"`
	LLMScore           *float64           `json:"llm_score,omitempty"`
	GraphContextScore  *float64           `json:"graph_context_score,omitempty"`
	FinalScore         float64            `json:"final_score"`
	Outcome            MatchOutcome       `json:"outcome"`
	ThresholdsSnapshot ThresholdsSnapshot `json:"thresholds_snapshot"`
	Evaluator          Evaluator          `json:"evaluator"`
	EvaluatedAt        time.Time          `json:"evaluated_at"`
}

// ReviewStatus is the lifecycle state of a ReviewItem.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// ReviewItem is a pending human decision on a candidate match.
type ReviewItem struct {
	ID                string       `json:"id"`
	SourceEntityID    string       `json:"source_entity_id"`
	CandidateEntityID string       `json:"candidate_entity_id"`
	SimilarityScore   float64      `json:"similarity_score"`
	EntityType        string       `json:"entity_type"`
	Status            ReviewStatus `json:"status"`
	SubmittedAt       time.Time    `json:"submitted_at"`
	ReviewedAt        *time.Time   `json:"reviewed_at,omitempty"`
	ReviewerID        string       `json:"reviewer_id,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	// MatchDecisionID links back to the decision this review confirms or
	// contradicts, so approve/reject can reinforce or penalize the
	// synonym (if any) that participated in it.
	MatchDecisionID string `json:"match_decision_id,omitempty"`
	SynonymID       string `json:"synonym_id,omitempty"`
}

// ReviewAction is the human decision recorded against a ReviewItem.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "APPROVE"
	ReviewActionReject  ReviewAction = "REJECT"
)

// ReviewDecision is an immutable record of a human decision on a review.
type ReviewDecision struct {
	ID         string       `json:"id"`
	ReviewID   string       `json:"review_id"`
	Action     ReviewAction `json:"action"`
	ReviewerID string       `json:"reviewer_id"`
	Rationale  string       `json:"rationale,omitempty"`
	DecidedAt  time.Time    `json:"decided_at"`
}

// MergeRecord is an append-only ledger entry for one merge.
type MergeRecord struct {
	ID           string       `json:"id"`
	SourceID     string       `json:"source_id"`
	TargetID     string       `json:"target_id"`
	SourceName   string       `json:"source_name"`
	TargetName   string       `json:"target_name"`
	Confidence   float64      `json:"confidence"`
	Decision     MatchOutcome `json:"decision"`
	TriggeredBy  Evaluator    `json:"triggered_by"`
	Reasoning    string       `json:"reasoning,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Conflicts    []MergeConflict `json:"conflicts,omitempty"`
	MergedAt     time.Time    `json:"merged_at"`
}

// MergeConflict records a field that disagreed across merged sources,
// and how it was resolved.
type MergeConflict struct {
	Field         string   `json:"field"`
	Values        []any    `json:"values"`
	Sources       []string `json:"sources"`
	Resolution    string   `json:"resolution"`
	ResolvedValue any      `json:"resolved_value"`
}

// AuditAction identifies the kind of event an AuditEntry records.
type AuditAction string

const (
	AuditEntityCreated  AuditAction = "ENTITY_CREATED"
	AuditEntityMerged   AuditAction = "ENTITY_MERGED"
	AuditSynonymAdded   AuditAction = "SYNONYM_ADDED"
	AuditReviewSubmitted AuditAction = "REVIEW_SUBMITTED"
	AuditReviewDecided  AuditAction = "REVIEW_DECIDED"
)

// AuditEntry is an append-only record of a single state change.
type AuditEntry struct {
	ID        string         `json:"id"`
	EntityID  string         `json:"entity_id"`
	Action    AuditAction    `json:"action"`
	ActorID   string         `json:"actor_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"at"`
}

// Mention is a raw input to the resolver: a name observation of a given
// type, optionally carrying free-form attributes and a source system tag.
type Mention struct {
	Name         string
	Type         string
	Attributes   map[string]any
	SourceSystem string
	TenantID     string
}
