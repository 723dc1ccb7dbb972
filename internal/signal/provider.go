// Package signal supplies the emotional-intensity signal consumed by the
// score calculator. Nodes a provider knows nothing about are simply absent
// from its result and score with the neutral default.
package signal

import (
	"context"
	"fmt"

	"github.com/lazypower/lethe/internal/config"
)

// Provider returns per-node emotional intensities in [0,1].
type Provider interface {
	Intensities(ctx context.Context, ids []string) (map[string]float64, error)
	Name() string
}

// EmotionSource is the storage side of the store provider.
type EmotionSource interface {
	EmotionIntensities(ids []string) (map[string]float64, error)
}

// NewProvider creates a provider based on the config provider setting.
// src backs the "store" provider and may be nil for the others.
func NewProvider(cfg config.SignalConfig, src EmotionSource) (Provider, error) {
	switch cfg.Provider {
	case "", "store":
		if src == nil {
			return nil, fmt.Errorf("store signal provider requires an emotion source")
		}
		return &Store{src: src}, nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http signal provider requires a url")
		}
		return NewHTTP(cfg), nil
	case "none":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown signal provider: %q", cfg.Provider)
	}
}

// Store reads intensities recorded in the lethe database.
type Store struct {
	src EmotionSource
}

func (s *Store) Name() string { return "store" }

func (s *Store) Intensities(ctx context.Context, ids []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.src.EmotionIntensities(ids)
}

// None never reports a signal.
type None struct{}

func (None) Name() string { return "none" }

func (None) Intensities(context.Context, []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}
