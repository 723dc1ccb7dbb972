package retention

import (
	"fmt"
	"math"
	"sync"
)

// Strategy names the decay law applied to the time score.
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyStepwise    Strategy = "stepwise"
)

// ParseStrategy converts a configured name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyExponential, StrategyLinear, StrategyStepwise:
		return Strategy(s), nil
	}
	return "", &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", s)}
}

// ForgettingParameters is the user-editable forgetting policy.
type ForgettingParameters struct {
	Strategy              Strategy `json:"strategy" yaml:"strategy"`
	DecayRate             float64  `json:"decay_rate" yaml:"decay_rate"`
	ForgettingThreshold   float64  `json:"forgetting_threshold" yaml:"forgetting_threshold"`
	MinimumRetentionScore float64  `json:"minimum_retention_score" yaml:"minimum_retention_score"`
	ProtectionPeriodDays  int      `json:"protection_period_days" yaml:"protection_period_days"`
	MaxForgottenNodes     int      `json:"max_forgotten_nodes" yaml:"max_forgotten_nodes"`
	EnableAutoForgetting  bool     `json:"enable_auto_forgetting" yaml:"enable_auto_forgetting"`
}

// DefaultParameters returns the parameters used when nothing is configured.
func DefaultParameters() ForgettingParameters {
	return ForgettingParameters{
		Strategy:              StrategyExponential,
		DecayRate:             0.1,
		ForgettingThreshold:   0.3,
		MinimumRetentionScore: 0.05,
		ProtectionPeriodDays:  7,
		MaxForgottenNodes:     100,
		EnableAutoForgetting:  false,
	}
}

// Validate returns a *ValidationError describing the first invalid field.
func (p ForgettingParameters) Validate() error {
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	unit := []struct {
		name string
		v    float64
	}{
		{"decay_rate", p.DecayRate},
		{"forgetting_threshold", p.ForgettingThreshold},
		{"minimum_retention_score", p.MinimumRetentionScore},
	}
	for _, u := range unit {
		if math.IsNaN(u.v) || u.v < 0 || u.v > 1 {
			return &ValidationError{Field: u.name, Reason: fmt.Sprintf("%v outside [0,1]", u.v)}
		}
	}
	if p.ProtectionPeriodDays < 0 {
		return &ValidationError{Field: "protection_period_days", Reason: "must be >= 0"}
	}
	if p.MaxForgottenNodes <= 0 {
		return &ValidationError{Field: "max_forgotten_nodes", Reason: "must be > 0"}
	}
	return nil
}

// ParameterStore holds the active parameters. Writes are validated; a
// rejected write leaves the previous value in effect.
type ParameterStore struct {
	mu     sync.RWMutex
	params ForgettingParameters
}

// NewParameterStore seeds the store with p, falling back to the defaults when
// p is invalid.
func NewParameterStore(p ForgettingParameters) *ParameterStore {
	if p.Validate() != nil {
		p = DefaultParameters()
	}
	return &ParameterStore{params: p}
}

// Get returns a copy of the active parameters.
func (s *ParameterStore) Get() ForgettingParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Set validates and installs p.
func (s *ParameterStore) Set(p ForgettingParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
	return nil
}
