// Package config defines process configuration and its layered loading.
package config

import "time"

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string        `koanf:"addr"`
	JWTSigningKey string        `koanf:"jwt_signing_key"`
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`
}

// Policy holds the tokenomics parameters applied at genesis and on every
// epoch advance. Threshold and reward keys are tier names.
type Policy struct {
	FounderBudget  int64              `koanf:"founder_budget"`
	BaseBudget     int64              `koanf:"base_budget"`
	DecayFactor    float64            `koanf:"decay_factor"`
	Escalation     float64            `koanf:"escalation"`
	FounderCutoffs map[string]float64 `koanf:"founder_cutoffs"`
	EpochCutoffs   map[string]float64 `koanf:"epoch_cutoffs"`
	Rewards        map[string]int64   `koanf:"rewards"`
	Weights        Weights            `koanf:"weights"`
}

// Weights configures the composite score computation.
type Weights struct {
	Coherence  float64 `koanf:"coherence"`
	Density    float64 `koanf:"density"`
	Novelty    float64 `koanf:"novelty"`
	Redundancy float64 `koanf:"redundancy"`
}

// Postgres configures the optional relational backend. An empty DSN keeps
// the service on in-memory stores.
type Postgres struct {
	DSN          string        `koanf:"dsn"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	ConnLifetime time.Duration `koanf:"conn_lifetime"`
}

// Redis configures the optional certificate cache backend. An empty URL
// disables it.
type Redis struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Kafka configures the audit event sink. No brokers disables the sink.
type Kafka struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// Scorer configures the external metric scoring service.
type Scorer struct {
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// Anchor configures the ledger anchoring worker.
type Anchor struct {
	Endpoint         string        `koanf:"endpoint"`
	Timeout          time.Duration `koanf:"timeout"`
	QueueSize        int           `koanf:"queue_size"`
	FailureThreshold int           `koanf:"failure_threshold"`
	SuccessThreshold int           `koanf:"success_threshold"`
}

// RateLimit bounds certification submissions per contributor.
type RateLimit struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// Config is the full process configuration.
type Config struct {
	LogLevel  string    `koanf:"log_level"`
	Server    Server    `koanf:"server"`
	Policy    Policy    `koanf:"policy"`
	Postgres  Postgres  `koanf:"postgres"`
	Redis     Redis     `koanf:"redis"`
	Kafka     Kafka     `koanf:"kafka"`
	Scorer    Scorer    `koanf:"scorer"`
	Anchor    Anchor    `koanf:"anchor"`
	RateLimit RateLimit `koanf:"rate_limit"`
	AuditBuf  int       `koanf:"audit_buffer"`
}

// Default returns the built-in configuration. Policy values mirror the
// genesis parameters of the reference deployment.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: Server{
			Addr:          ":8080",
			JWTSigningKey: "dev-secret-key-change-in-production",
			ShutdownGrace: 10 * time.Second,
		},
		Policy: Policy{
			FounderBudget: 1_000_000,
			BaseBudget:    500_000,
			DecayFactor:   0.85,
			Escalation:    0.05,
			FounderCutoffs: map[string]float64{
				"bronze":  0.05,
				"silver":  0.10,
				"gold":    0.20,
				"founder": 0.30,
			},
			EpochCutoffs: map[string]float64{
				"bronze": 0.30,
				"silver": 0.50,
				"gold":   0.75,
			},
			Rewards: map[string]int64{
				"bronze":  100,
				"silver":  250,
				"gold":    500,
				"founder": 1000,
			},
			Weights: Weights{
				Coherence:  0.4,
				Density:    0.3,
				Novelty:    0.3,
				Redundancy: 0.2,
			},
		},
		Postgres: Postgres{
			MaxOpenConns: 20,
			MaxIdleConns: 5,
			ConnLifetime: 30 * time.Minute,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Topic: "laurel.audit",
		},
		Scorer: Scorer{
			Timeout:  5 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		Anchor: Anchor{
			Timeout:          10 * time.Second,
			QueueSize:        256,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		},
		RateLimit: RateLimit{
			Requests: 30,
			Window:   time.Minute,
		},
		AuditBuf: 1024,
	}
}
