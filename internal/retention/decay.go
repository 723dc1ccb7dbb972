package retention

import (
	"math"
	"time"
)

// Decay laws for the time score:
//   - exponential: exp(-rate * days)
//   - linear:      max(0, 1 - rate * days)
//   - stepwise:    bucket(days) ^ (rate / stepwiseReferenceRate)
//
// Buckets are <1d 1.0, <7d 0.7, <30d 0.4, else 0.1; at the reference rate
// the buckets apply unchanged. Every law is clamped to [minimum, 1] and is
// non-increasing in age.

const stepwiseReferenceRate = 0.1

// AgeDays returns fractional days elapsed from ref to now, never negative.
func AgeDays(ref, now time.Time) float64 {
	d := now.Sub(ref).Hours() / 24.0
	if d < 0 || math.IsNaN(d) {
		return 0
	}
	return d
}

// TimeScore applies the configured decay law to the given age.
func TimeScore(p ForgettingParameters, ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	var s float64
	switch p.Strategy {
	case StrategyLinear:
		s = math.Max(0, 1-p.DecayRate*ageDays)
	case StrategyStepwise:
		s = math.Pow(stepBucket(ageDays), p.DecayRate/stepwiseReferenceRate)
	default:
		s = math.Exp(-p.DecayRate * ageDays)
	}
	return clampRange(s, p.MinimumRetentionScore, 1)
}

func stepBucket(days float64) float64 {
	switch {
	case days < 1:
		return 1.0
	case days < 7:
		return 0.7
	case days < 30:
		return 0.4
	default:
		return 0.1
	}
}

// referenceTime is the more recent of creation and last interaction.
func referenceTime(n Node) time.Time {
	if n.LastTouchedAt.After(n.CreatedAt) {
		return n.LastTouchedAt
	}
	return n.CreatedAt
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
