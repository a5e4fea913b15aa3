// Command canopyctl boots the resolution core against a configured graph
// store: loading config, wiring every collaborator package, and running a
// single smoke resolve so operators can confirm a deployment is wired
// correctly before pointing real traffic at it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/canopy/config"
	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/internal/tracing"
	"github.com/Ramsey-B/canopy/pkg/audit"
	"github.com/Ramsey-B/canopy/pkg/events"
	"github.com/Ramsey-B/canopy/pkg/llm"
	"github.com/Ramsey-B/canopy/pkg/lock"
	"github.com/Ramsey-B/canopy/pkg/merge"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/normalize"
	"github.com/Ramsey-B/canopy/pkg/rescache"
	"github.com/Ramsey-B/canopy/pkg/resolver"
	"github.com/Ramsey-B/canopy/pkg/resolveropts"
	"github.com/Ramsey-B/canopy/pkg/review"
	"github.com/Ramsey-B/canopy/pkg/similarity"
	"github.com/Ramsey-B/canopy/pkg/synonym"
)

func main() {
	var cfg config.Config
	if err := ectoenv.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		line, _ := json.Marshal(msg)
		fmt.Fprintln(os.Stderr, string(line))
	})

	shutdownTracing := tracing.Init(cfg.AppName, os.Stderr)
	defer shutdownTracing(context.Background())

	store, err := graphstore.NewNeo4jStore(graphstore.Config{
		Host:     cfg.GraphDBHost,
		Port:     cfg.GraphDBPort,
		Username: cfg.GraphDBUser,
		Password: cfg.GraphDBPassword,
		Database: cfg.GraphDBName,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to graph store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	ctx := context.Background()
	if err := store.CreateIndexes(ctx); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("failed to ensure graph indexes")
	}

	opts := resolveropts.Default()
	opts.AutoMergeThreshold = cfg.AutoMergeThreshold
	opts.SynonymThreshold = cfg.SynonymThreshold
	opts.ReviewThreshold = cfg.ReviewThreshold
	opts.AutoMergeEnabled = cfg.AutoMergeEnabled
	opts.UseLLM = cfg.UseLLM
	opts.LLMConfidenceThreshold = cfg.LLMConfidenceThreshold
	opts.SourceSystem = cfg.SourceSystem
	opts.ConfidenceDecayLambda = cfg.ConfidenceDecayLambda
	opts.ReinforcementCap = cfg.ReinforcementCap
	opts.MaxBatchSize = cfg.MaxBatchSize
	opts.BatchCommitChunkSize = cfg.BatchCommitChunkSize
	opts.MaxBatchMemoryBytes = cfg.MaxBatchMemoryBytes
	opts.CachingEnabled = cfg.CachingEnabled
	opts.CacheMaxSize = cfg.CacheMaxSize
	opts.CacheTTLSeconds = cfg.CacheTTLSeconds
	opts.LockTimeoutMs = cfg.LockTimeoutMs
	opts.AsyncTimeoutMs = cfg.AsyncTimeoutMs
	opts.FullScanSizeLimit = cfg.FullScanSizeLimit
	opts.SimilarityWeights = similarity.Weights{
		Levenshtein: cfg.SimilarityWeightLevenshtein,
		JaroWinkler: cfg.SimilarityWeightJaroWinkler,
		Jaccard:     cfg.SimilarityWeightJaccard,
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid resolution options: %v\n", err)
		os.Exit(1)
	}

	decay := synonym.DefaultDecayParams()
	decay.Lambda = opts.ConfidenceDecayLambda
	decay.ReinforcementCap = opts.ReinforcementCap

	normalizer := normalize.NewDefaultEngine()
	scorer := similarity.New(opts.SimilarityWeights)
	synonyms := synonym.NewStore(store, decay, logger)
	auditLog := audit.NewLog(store, logger)
	ledger := audit.NewMergeLedger(store, logger)

	locker := newLocker(cfg, logger)

	cache, err := rescache.New(opts.CacheMaxSize, time.Duration(opts.CacheTTLSeconds)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building resolution cache: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewBus(logger)
	bus.OnMerge(func(ctx context.Context, ev events.MergeEvent) {
		cache.OnMerge(ev.SourceID, ev.TargetID)
	})

	mergeEngine := merge.New(store, synonyms, auditLog, ledger, locker, bus, time.Duration(opts.LockTimeoutMs)*time.Millisecond, logger)
	reviewQ := review.NewQueue(store, synonyms, mergeEngine, bus, logger)

	var enricher llm.Enricher = llm.NoOp{}

	r := resolver.New(store, synonyms, decay, normalizer, scorer, locker, cache, bus, reviewQ, mergeEngine, enricher, opts, logger)

	if cfg.ResolutionOverridesJSON != "" {
		var byType map[string]resolveropts.Options
		if err := json.Unmarshal([]byte(cfg.ResolutionOverridesJSON), &byType); err != nil {
			fmt.Fprintf(os.Stderr, "parsing RESOLUTION_OVERRIDES_JSON: %v\n", err)
			os.Exit(1)
		}
		if err := r.SetTypeOverrides(byType); err != nil {
			fmt.Fprintf(os.Stderr, "invalid resolution option overrides: %v\n", err)
			os.Exit(1)
		}
	}

	if len(os.Args) > 1 && os.Args[1] == "resolve" && len(os.Args) > 3 {
		mention := model.Mention{
			Name:         os.Args[2],
			Type:         os.Args[3],
			SourceSystem: opts.SourceSystem,
		}
		outcome, err := r.Resolve(ctx, mention)
		if err != nil {
			fmt.Fprintf(os.Stderr, "resolve failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("entityId=%s outcome=%s created=%t\n", outcome.EntityID, outcome.Outcome, outcome.Created)
		return
	}

	if !store.IsAlive(ctx) {
		fmt.Fprintln(os.Stderr, "graph store is not reachable")
		os.Exit(1)
	}
	fmt.Printf("canopy resolution core ready, graph=%s\n", store.GraphName())
}

func newLocker(cfg config.Config, logger ectologger.Logger) lock.Locker {
	switch cfg.LockBackend {
	case "redis":
		client := lock.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB)
		return lock.NewRedisBacked(client, "canopy", 5)
	case "local":
		return lock.NewLocal()
	default:
		store, err := graphstore.NewNeo4jStore(graphstore.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
			Database: cfg.GraphDBName,
		}, logger)
		if err != nil {
			logger.WithContext(context.Background()).WithError(err).Warn("failed to open dedicated lock connection, falling back to in-process locking")
			return lock.NewLocal()
		}
		return lock.NewStoreBacked(store, logger, 5)
	}
}
