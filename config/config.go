// Package config loads the resolution core's settings from the
// environment, the same ectoenv struct-tag convention the teacher uses
// for its service config, trimmed to the graph store connection and the
// resolution options this core actually reads (spec §6).
package config

import "time"

// Config is loaded once at startup and handed to cmd/canopyctl's wiring.
type Config struct {
	AppName   string `env:"APP_NAME" env-default:"canopy"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool  `env:"PRETTY_LOGS" env-default:"false"`

	// Graph database (Memgraph/Neo4j), the core's sole persistence
	// surface.
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName     string `env:"GRAPH_DB_NAME" env-default:"memgraph"`

	// Optional Redis-backed lock, an alternative to the graph-store
	// Lock node for deployments that already run Redis (pkg/lock).
	LockBackend  string `env:"LOCK_BACKEND" env-default:"store"` // "store" | "redis" | "local"
	RedisHost    string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort    int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB      int    `env:"REDIS_DB" env-default:"0"`

	// Decision thresholds (spec §4.E).
	AutoMergeThreshold float64 `env:"AUTO_MERGE_THRESHOLD" env-default:"0.92"`
	SynonymThreshold   float64 `env:"SYNONYM_THRESHOLD" env-default:"0.80"`
	ReviewThreshold    float64 `env:"REVIEW_THRESHOLD" env-default:"0.60"`
	AutoMergeEnabled   bool    `env:"AUTO_MERGE_ENABLED" env-default:"true"`

	// LLM escalation (spec §4.E, external collaborator).
	UseLLM                 bool    `env:"USE_LLM" env-default:"false"`
	LLMConfidenceThreshold float64 `env:"LLM_CONFIDENCE_THRESHOLD" env-default:"0.80"`

	SourceSystem string `env:"SOURCE_SYSTEM" env-default:""`

	// Synonym decay (spec §4.G).
	ConfidenceDecayLambda float64 `env:"CONFIDENCE_DECAY_LAMBDA" env-default:"0.001"`
	ReinforcementCap      float64 `env:"REINFORCEMENT_CAP" env-default:"0.15"`

	// Batch (spec §4.I).
	MaxBatchSize         int   `env:"MAX_BATCH_SIZE" env-default:"100000"`
	BatchCommitChunkSize int   `env:"BATCH_COMMIT_CHUNK_SIZE" env-default:"1000"`
	MaxBatchMemoryBytes  int64 `env:"MAX_BATCH_MEMORY_BYTES" env-default:"268435456"`

	// Resolution cache (spec §4.M).
	CachingEnabled  bool `env:"CACHING_ENABLED" env-default:"true"`
	CacheMaxSize    int  `env:"CACHE_MAX_SIZE" env-default:"50000"`
	CacheTTLSeconds int  `env:"CACHE_TTL_SECONDS" env-default:"3600"`

	// Concurrency timeouts (spec §5).
	LockTimeoutMs  int `env:"LOCK_TIMEOUT_MS" env-default:"5000"`
	AsyncTimeoutMs int `env:"ASYNC_TIMEOUT_MS" env-default:"30000"`

	// Similarity weights (spec §4.C); must sum to 1.0.
	SimilarityWeightLevenshtein float64 `env:"SIMILARITY_WEIGHT_LEVENSHTEIN" env-default:"0.40"`
	SimilarityWeightJaroWinkler float64 `env:"SIMILARITY_WEIGHT_JARO_WINKLER" env-default:"0.35"`
	SimilarityWeightJaccard     float64 `env:"SIMILARITY_WEIGHT_JACCARD" env-default:"0.25"`

	FullScanSizeLimit int `env:"FULL_SCAN_SIZE_LIMIT" env-default:"10000"`

	// ResolutionOverridesJSON is a JSON object mapping entity type to a
	// complete resolution Options override, e.g.
	// {"person": {"AutoMergeThreshold": 0.97, ...}}. Empty skips overrides.
	ResolutionOverridesJSON string `env:"RESOLUTION_OVERRIDES_JSON" env-default:""`

	StartupMaxAttempts int           `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	StartupBaseDelay   time.Duration `env:"STARTUP_BASE_DELAY" env-default:"200ms"`
}
