package retention

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func paramsWith(s Strategy, rate float64) ForgettingParameters {
	p := DefaultParameters()
	p.Strategy = s
	p.DecayRate = rate
	p.MinimumRetentionScore = 0
	return p
}

func TestTimeScoreExponential(t *testing.T) {
	p := paramsWith(StrategyExponential, 0.1)
	assert.InDelta(t, 1.0, TimeScore(p, 0), 1e-9)
	assert.InDelta(t, math.Exp(-3), TimeScore(p, 30), 1e-9)
}

func TestTimeScoreLinear(t *testing.T) {
	p := paramsWith(StrategyLinear, 0.1)
	assert.InDelta(t, 0.5, TimeScore(p, 5), 1e-9)
	assert.Equal(t, 0.0, TimeScore(p, 20), "linear decay bottoms out at zero")
}

func TestTimeScoreStepwise(t *testing.T) {
	p := paramsWith(StrategyStepwise, 0.1)
	cases := []struct {
		days float64
		want float64
	}{
		{0.5, 1.0},
		{3, 0.7},
		{10, 0.4},
		{90, 0.1},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, TimeScore(p, c.days), 1e-9, "days=%v", c.days)
	}

	steep := paramsWith(StrategyStepwise, 0.2)
	assert.Less(t, TimeScore(steep, 3), TimeScore(p, 3), "higher rate should steepen buckets")

	flat := paramsWith(StrategyStepwise, 0)
	assert.Equal(t, 1.0, TimeScore(flat, 90), "zero rate disables decay")
}

func TestTimeScoreFloor(t *testing.T) {
	p := paramsWith(StrategyExponential, 1)
	p.MinimumRetentionScore = 0.2
	assert.Equal(t, 0.2, TimeScore(p, 365))
}

func TestTimeScoreMonotonic(t *testing.T) {
	for _, s := range []Strategy{StrategyExponential, StrategyLinear, StrategyStepwise} {
		for _, rate := range []float64{0, 0.05, 0.1, 0.5, 1} {
			p := paramsWith(s, rate)
			prev := TimeScore(p, 0)
			for d := 0.25; d <= 400; d += 0.25 {
				cur := TimeScore(p, d)
				if cur > prev {
					t.Fatalf("%s rate=%v: score rose from %v to %v at day %v", s, rate, prev, cur, d)
				}
				prev = cur
			}
		}
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 2.0, AgeDays(now.Add(-48*time.Hour), now), 1e-9)
	assert.Equal(t, 0.0, AgeDays(now.Add(time.Hour), now), "future timestamps count as age zero")
}
