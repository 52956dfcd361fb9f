package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering sources, lowest to highest precedence:
//  1. built-in defaults
//  2. YAML file named by LAUREL_CONFIG, if set
//  3. environment variables with the LAUREL_ prefix
//
// Nested keys use underscores in the environment, e.g. LAUREL_SERVER_ADDR
// maps to server.addr.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("LAUREL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider("LAUREL_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "laurel_")
		// Only the first separator becomes a path segment so keys like
		// server_jwt_signing_key resolve to server.jwt_signing_key.
		return strings.Replace(s, "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if cfg.Policy.DecayFactor <= 0 || cfg.Policy.DecayFactor > 1 {
		return errors.New("policy.decay_factor must be in (0, 1]")
	}
	if cfg.Policy.Escalation < 0 || cfg.Policy.Escalation >= 1 {
		return errors.New("policy.escalation must be in [0, 1)")
	}
	if cfg.Policy.FounderBudget <= 0 || cfg.Policy.BaseBudget <= 0 {
		return errors.New("policy budgets must be positive")
	}
	w := cfg.Policy.Weights
	if w.Coherence < 0 || w.Density < 0 || w.Novelty < 0 || w.Redundancy < 0 {
		return errors.New("policy.weights must be non-negative")
	}
	return nil
}
