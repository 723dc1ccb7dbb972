package retention

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

func daysAgo(d float64) time.Time {
	return testNow.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

// scenarioParams mirrors the documented example: exponential decay at 0.1,
// threshold 0.3, three days of protection and an archive of two.
func scenarioParams() ForgettingParameters {
	return ForgettingParameters{
		Strategy:              StrategyExponential,
		DecayRate:             0.1,
		ForgettingThreshold:   0.3,
		MinimumRetentionScore: 0.01,
		ProtectionPeriodDays:  3,
		MaxForgottenNodes:     2,
		EnableAutoForgetting:  true,
	}
}

func TestScoreStaleCaptureIsForgotten(t *testing.T) {
	calc := NewCalculator()
	n := Node{ID: "a", Type: TypeCapture, CreatedAt: daysAgo(30), LastTouchedAt: daysAgo(30)}
	sig := Signals{Degree: 0, HasDegree: true}

	rs, _ := calc.Score(n, sig, scenarioParams(), testNow)

	assert.InDelta(t, math.Exp(-3), rs.TimeScore, 1e-6)
	assert.InDelta(t, 0.1, rs.ImportanceScore, 1e-9)
	assert.Equal(t, 0.0, rs.ConnectionScore)
	assert.Less(t, rs.OverallScore, 0.3)
	assert.True(t, rs.ShouldForget)
	assert.Equal(t, "content not revisited recently", rs.ForgettingReason)
}

func TestScoreProtectionPeriod(t *testing.T) {
	calc := NewCalculator()
	n := Node{ID: "b", Type: TypeCapture, CreatedAt: daysAgo(1), LastTouchedAt: daysAgo(1)}
	p := scenarioParams()
	// Make every component as weak as possible.
	p.DecayRate = 1
	p.MinimumRetentionScore = 0
	p.ForgettingThreshold = 1

	rs, _ := calc.Score(n, Signals{HasDegree: true, HasEmotion: true}, p, testNow)
	assert.False(t, rs.ShouldForget)
	assert.Empty(t, rs.ForgettingReason)
}

func TestScoreMissingSignalsUseNeutralDefault(t *testing.T) {
	calc := NewCalculator()
	n := Node{ID: "c", Type: TypeNote, CreatedAt: testNow, LastTouchedAt: testNow}

	rs, partial := calc.Score(n, Signals{}, scenarioParams(), testNow)
	assert.Equal(t, NeutralSignal, rs.EmotionalScore)
	assert.Equal(t, NeutralSignal, rs.ConnectionScore)
	require.Len(t, partial, 2)
	var pse *PartialSignalError
	assert.True(t, errors.As(partial[0], &pse))
}

func TestScoreRejectsMalformedSignals(t *testing.T) {
	calc := NewCalculator()
	n := Node{ID: "d", Type: TypeIdea, CreatedAt: testNow}
	sig := Signals{Degree: -4, HasDegree: true, Emotion: math.NaN(), HasEmotion: true}

	rs, partial := calc.Score(n, sig, scenarioParams(), testNow)
	assert.Equal(t, NeutralSignal, rs.EmotionalScore)
	assert.Equal(t, NeutralSignal, rs.ConnectionScore)
	assert.Len(t, partial, 2)
}

func TestScoreUsesMostRecentTouch(t *testing.T) {
	calc := NewCalculator()
	p := scenarioParams()
	old := Node{ID: "e", CreatedAt: daysAgo(60), LastTouchedAt: daysAgo(60)}
	touched := Node{ID: "e", CreatedAt: daysAgo(60), LastTouchedAt: testNow}

	a, _ := calc.Score(old, Signals{}, p, testNow)
	b, _ := calc.Score(touched, Signals{}, p, testNow)
	assert.Greater(t, b.TimeScore, a.TimeScore)
	assert.InDelta(t, 1.0, b.TimeScore, 1e-9)
}

func TestFrequencyScore(t *testing.T) {
	calc := NewCalculator()
	assert.Equal(t, 0.1, calc.frequencyScore(0), "no history earns the baseline")
	assert.Greater(t, calc.frequencyScore(3), calc.frequencyScore(1))
	assert.Equal(t, 1.0, calc.frequencyScore(10))
	assert.Equal(t, 1.0, calc.frequencyScore(500))
}

func TestImportanceScore(t *testing.T) {
	assert.Greater(t, importanceScore(Node{Type: TypeConclusion}), importanceScore(Node{Type: TypeCapture}))
	assert.Greater(t, importanceScore(Node{Type: TypeInsight}), importanceScore(Node{Type: TypeNote}))
	assert.Equal(t, defaultKindImportance, importanceScore(Node{Type: "sketch"}))
	assert.InDelta(t, 0.4, importanceScore(Node{Type: TypeCapture, Pinned: true}), 1e-9)
	assert.Equal(t, 1.0, importanceScore(Node{Type: TypeConclusion, Pinned: true}))
}

func TestConnectionScoreSaturates(t *testing.T) {
	calc := NewCalculator()
	assert.Equal(t, 0.0, calc.connectionScore(0))
	assert.InDelta(t, 0.5, calc.connectionScore(5), 1e-9)
	assert.Equal(t, 1.0, calc.connectionScore(40))
}

func TestOverallScoreBounded(t *testing.T) {
	calc := NewCalculator()
	strategies := []Strategy{StrategyExponential, StrategyLinear, StrategyStepwise}
	kinds := []string{TypeCapture, TypeNote, TypeConclusion, "other"}
	for _, s := range strategies {
		for _, rate := range []float64{0, 0.3, 1} {
			for _, min := range []float64{0, 0.5, 1} {
				p := DefaultParameters()
				p.Strategy, p.DecayRate, p.MinimumRetentionScore = s, rate, min
				for i, kind := range kinds {
					n := Node{ID: fmt.Sprint(i), Type: kind, Pinned: i%2 == 0, CreatedAt: daysAgo(float64(i * 40))}
					sig := Signals{Degree: i * 7, HasDegree: true, Emotion: float64(i) / 3, HasEmotion: true, Interactions: i * 4}
					rs, _ := calc.Score(n, sig, p, testNow)
					for name, v := range map[string]float64{
						"time": rs.TimeScore, "frequency": rs.FrequencyScore, "importance": rs.ImportanceScore,
						"emotion": rs.EmotionalScore, "connection": rs.ConnectionScore, "overall": rs.OverallScore,
					} {
						if v < 0 || v > 1 {
							t.Fatalf("%s out of range: %v (strategy=%s rate=%v)", name, v, s, rate)
						}
					}
					if rs.ShouldForget && rs.ForgettingReason == "" {
						t.Fatalf("node %s forgotten without a reason", n.ID)
					}
				}
			}
		}
	}
}

func TestScoreAllPreservesOrderAndIsDeterministic(t *testing.T) {
	calc := NewCalculator()
	calc.Workers = 4
	snap := Snapshot{TakenAt: testNow, Degrees: map[string]int{}, Interactions: map[string]int{}}
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("n%02d", i)
		snap.Nodes = append(snap.Nodes, Node{ID: id, Type: TypeNote, CreatedAt: daysAgo(float64(i))})
		snap.Degrees[id] = i % 6
		snap.Interactions[id] = i % 4
	}

	first := calc.ScoreAll(snap, scenarioParams())
	second := calc.ScoreAll(snap, scenarioParams())
	require.Len(t, first, 50)
	for i := range first {
		assert.Equal(t, snap.Nodes[i].ID, first[i].Score.NodeID)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}
