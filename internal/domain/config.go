package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backing services are used
	Tier DeploymentTier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Bundle is where the trained model bundle lives
	Bundle BundleConfig `json:"bundle"`

	// Training holds the classifier hyperparameters
	Training TrainingConfig `json:"training"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// BundleConfig holds model bundle storage settings.
type BundleConfig struct {
	// Path is the bundle artifact location on disk.
	Path string `json:"path"`
}

// TrainingConfig holds classifier hyperparameters. These are policy, not
// structure: any values work, but class balancing stays on because
// high-risk incidents are a minority class in practice.
type TrainingConfig struct {
	Trees        int     `json:"trees"`
	MaxDepth     int     `json:"maxDepth"`
	MinLeaf      int     `json:"minLeaf"`
	TestFraction float64 `json:"testFraction"`
	CVFolds      int     `json:"cvFolds"`
	Seed         int64   `json:"seed"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// DeploymentTier represents the deployment tier.
type DeploymentTier string

const (
	// TierCommunity is the single-node tier with SQLite + channels
	TierCommunity DeploymentTier = "community"

	// TierPro is the multi-node tier with PostgreSQL + NATS + Redis
	TierPro DeploymentTier = "pro"
)

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Bundle: BundleConfig{
			Path: "./kestrel-bundle.gob",
		},
		Training: TrainingConfig{
			Trees:        150,
			MaxDepth:     12,
			MinLeaf:      10,
			TestFraction: 0.2,
			CVFolds:      5,
			Seed:         42,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
