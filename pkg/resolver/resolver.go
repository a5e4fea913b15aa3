package resolver

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/internal/reqcontext"
	"github.com/Ramsey-B/canopy/internal/tracing"
	"github.com/Ramsey-B/canopy/pkg/blocking"
	"github.com/Ramsey-B/canopy/pkg/events"
	"github.com/Ramsey-B/canopy/pkg/llm"
	"github.com/Ramsey-B/canopy/pkg/lock"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/normalize"
	"github.com/Ramsey-B/canopy/pkg/rescache"
	"github.com/Ramsey-B/canopy/pkg/resolveropts"
	"github.com/Ramsey-B/canopy/pkg/review"
	"github.com/Ramsey-B/canopy/pkg/similarity"
	"github.com/Ramsey-B/canopy/pkg/synonym"
)

// Merger performs the merge side effect of an AUTO_MERGE decision. It is
// an interface, not a direct import of pkg/merge, so pkg/merge can
// depend on pkg/resolver-produced types without an import cycle.
type Merger interface {
	Merge(ctx context.Context, sourceID, targetID string, decision model.MatchOutcome, evaluator model.Evaluator, reasoning string) error
}

// Outcome is the result of a single Resolve call.
type Outcome struct {
	EntityID string
	Outcome  model.MatchOutcome
	Created  bool
}

// Resolver implements candidate discovery and the decision engine.
type Resolver struct {
	entities  *entityStore
	decisions *decisionStore
	rels      *relStore
	synonyms  *synonym.Store
	decay     synonym.DecayParams
	normalize *normalize.Engine
	scorer    *similarity.Scorer
	locker    lock.Locker
	cache     *rescache.Cache
	bus       *events.Bus
	reviewQ   *review.Queue
	merger    Merger
	enricher  llm.Enricher
	opts      resolveropts.Options
	overrides resolveropts.OverrideTable
	logger    ectologger.Logger
	nowFn     func() time.Time
}

// New wires a Resolver from its collaborators.
func New(
	store graphstore.Store,
	synonyms *synonym.Store,
	decay synonym.DecayParams,
	normalizer *normalize.Engine,
	scorer *similarity.Scorer,
	locker lock.Locker,
	cache *rescache.Cache,
	bus *events.Bus,
	reviewQ *review.Queue,
	merger Merger,
	enricher llm.Enricher,
	opts resolveropts.Options,
	logger ectologger.Logger,
) *Resolver {
	return &Resolver{
		entities:  newEntityStore(store),
		decisions: newDecisionStore(store),
		rels:      newRelStore(store),
		synonyms:  synonyms,
		decay:     decay,
		normalize: normalizer,
		scorer:    scorer,
		locker:    locker,
		cache:     cache,
		bus:       bus,
		reviewQ:   reviewQ,
		merger:    merger,
		enricher:  enricher,
		opts:      opts,
		overrides: resolveropts.OverrideTable{Base: opts},
		logger:    logger,
		nowFn:     time.Now,
	}
}

// SetTypeOverrides installs per-entity-type resolution option overrides
// (spec §6 "Resolution options"). Base is reset to the Options this
// Resolver was constructed with, so callers only need to supply the
// types that differ. Safe to call once during wiring, before traffic.
func (r *Resolver) SetTypeOverrides(byType map[string]resolveropts.Options) error {
	table := resolveropts.OverrideTable{Base: r.opts, ByType: byType}
	if err := table.Validate(); err != nil {
		return err
	}
	r.overrides = table
	return nil
}

// optsFor returns the effective resolution Options for entityType.
func (r *Resolver) optsFor(entityType string) resolveropts.Options {
	return r.overrides.For(entityType)
}

// Resolve runs the full pipeline for one mention: normalize, discover
// candidates, decide, and apply the side effect of that decision.
func (r *Resolver) Resolve(ctx context.Context, mention model.Mention) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.Resolve")
	defer span.End()

	tenantID := mention.TenantID
	if tenantID == "" {
		tenantID = reqcontext.TenantID(ctx)
	}

	opts := r.optsFor(mention.Type)
	normalizedName := r.normalize.Normalize(mention.Name, mention.Type)

	if opts.CachingEnabled {
		if cached, ok := r.cache.Get(rescache.Key{NormalizedName: normalizedName, Type: mention.Type}); ok {
			return Outcome{EntityID: cached.EntityID, Outcome: model.MatchOutcome(cached.Outcome)}, nil
		}
	}

	lockKey := lock.EntityKey(normalizedName, mention.Type)
	handle, err := r.locker.TryLock(ctx, lockKey, time.Duration(opts.LockTimeoutMs)*time.Millisecond)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = r.locker.Unlock(ctx, handle) }()

	tempID := uuid.NewString()
	cand, err := r.findBestCandidate(ctx, mention, normalizedName, mention.Type, tenantID, tempID, opts)
	if err != nil {
		return Outcome{}, err
	}

	outcome, err := r.applyCandidate(ctx, mention, normalizedName, tenantID, cand)
	if err != nil {
		return Outcome{}, err
	}

	if opts.CachingEnabled {
		r.cache.Put(rescache.Key{NormalizedName: normalizedName, Type: mention.Type}, rescache.Result{
			EntityID: outcome.EntityID,
			Outcome:  string(outcome.Outcome),
		})
	}

	return outcome, nil
}

func (r *Resolver) applyCandidate(ctx context.Context, mention model.Mention, normalizedName, tenantID string, cand candidate) (Outcome, error) {
	switch cand.kind {
	case kindExact:
		return Outcome{EntityID: cand.entity.ID, Outcome: model.OutcomeSynonym}, nil

	case kindSynonym:
		if _, err := r.synonyms.Reinforce(ctx, cand.synonymID); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("failed to reinforce synonym on match")
		}
		return Outcome{EntityID: cand.entity.ID, Outcome: model.OutcomeSynonym}, nil

	case kindScored:
		return r.applyScoredDecision(ctx, mention, normalizedName, cand)

	default:
		return r.createEntity(ctx, mention, normalizedName, tenantID)
	}
}

func (r *Resolver) applyScoredDecision(ctx context.Context, mention model.Mention, normalizedName string, cand candidate) (Outcome, error) {
	saved := cand.decision

	switch saved.Outcome {
	case model.OutcomeAutoMerge:
		newEntity, err := r.createEntity(ctx, mention, normalizedName, cand.entity.TenantID)
		if err != nil {
			return Outcome{}, err
		}
		if err := r.merger.Merge(ctx, newEntity.EntityID, cand.entity.ID, model.OutcomeAutoMerge, saved.Evaluator, "auto-merge: score above threshold"); err != nil {
			return Outcome{}, err
		}
		return Outcome{EntityID: cand.entity.ID, Outcome: model.OutcomeAutoMerge}, nil

	case model.OutcomeSynonym:
		syn := model.Synonym{
			Value:           mention.Name,
			NormalizedValue: normalizedName,
			Source:          model.SynonymSourceSystem,
			Confidence:      saved.FinalScore,
		}
		if _, err := r.synonyms.CreateForEntity(ctx, syn, cand.entity.ID); err != nil {
			return Outcome{}, err
		}
		return Outcome{EntityID: cand.entity.ID, Outcome: model.OutcomeSynonym}, nil

	case model.OutcomeReview:
		// No new Entity is created for a REVIEW outcome: the mention stays
		// a temp reference (saved.InputTempID) until a human decides. The
		// resolve call returns a reference to the existing candidate.
		item := model.ReviewItem{
			SourceEntityID:    saved.InputTempID,
			CandidateEntityID: cand.entity.ID,
			SimilarityScore:   saved.FinalScore,
			EntityType:        mention.Type,
			MatchDecisionID:   saved.ID,
		}
		if _, err := r.reviewQ.Submit(ctx, item); err != nil {
			return Outcome{}, err
		}
		return Outcome{EntityID: cand.entity.ID, Outcome: model.OutcomeReview}, nil

	default:
		return r.createEntity(ctx, mention, normalizedName, cand.entity.TenantID)
	}
}

func (r *Resolver) createEntity(ctx context.Context, mention model.Mention, normalizedName, tenantID string) (Outcome, error) {
	e := model.Entity{
		CanonicalName:   mention.Name,
		NormalizedName:  normalizedName,
		Type:            mention.Type,
		ConfidenceScore: 1,
		Status:          model.StatusActive,
		TenantID:        tenantID,
		BlockingKeys:    blocking.Keys(normalizedName),
		Attributes:      mention.Attributes,
	}
	created, err := r.entities.create(ctx, e)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: created.ID, Outcome: model.OutcomeNoMatch, Created: true}, nil
}
