// Package generator produces random but well-typed transactions for
// differential testing of the application engine. All randomness flows from
// one seeded handle, so a run is reproducible from its seed.
package generator

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the generator knobs.
type Config struct {
	// Seed fixes the random stream
	Seed int64 `yaml:"seed"`

	// PoolSize is the number of funded accounts to generate against
	PoolSize int `yaml:"pool_size"`

	// NewAccountProb is the existing/new party bias (0.9/0.1 by default):
	// the chance a payment receiver or a zkApp credit target is a fresh
	// account instead of a pool one, driving the engine's account-creation
	// path
	NewAccountProb float64 `yaml:"new_account_prob"`

	// SetProb decides each set-or-keep field independently
	SetProb float64 `yaml:"set_prob"`

	// PreconditionAcceptProb leaves a precondition wide open; otherwise a
	// bounded interval around the current value is emitted
	PreconditionAcceptProb float64 `yaml:"precondition_accept_prob"`

	// ProofProb authorises a credit update by proof instead of leaving it
	// unauthorised; debits are always signed
	ProofProb float64 `yaml:"proof_prob"`

	// StrictReceiveProb seeds a pool account with a signature-gated
	// receive controller instead of the open default, exercising the
	// permission-failure paths
	StrictReceiveProb float64 `yaml:"strict_receive_prob"`

	// MaxForestDepth bounds call-forest recursion
	MaxForestDepth int `yaml:"max_forest_depth"`

	// MaxUpdatesPerLevel bounds sibling count per forest level
	MaxUpdatesPerLevel int `yaml:"max_updates_per_level"`

	// InitialBalance funds each pool account
	InitialBalance uint64 `yaml:"initial_balance"`
}

// DefaultConfig returns the default-test knobs.
func DefaultConfig() *Config {
	return &Config{
		Seed:                   1,
		PoolSize:               16,
		NewAccountProb:         0.1,
		SetProb:                0.25,
		PreconditionAcceptProb: 0.8,
		ProofProb:              0.2,
		MaxForestDepth:         3,
		MaxUpdatesPerLevel:     3,
		InitialBalance:         1 << 40,
	}
}

// StressConfig returns the stress-test knobs.
func StressConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxForestDepth = 5
	cfg.MaxUpdatesPerLevel = 4
	return cfg
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
