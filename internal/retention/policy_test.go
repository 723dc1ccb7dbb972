package retention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func weakScore() RetentionScore {
	return RetentionScore{
		TimeScore:       0.05,
		FrequencyScore:  0.1,
		ImportanceScore: 0.1,
		EmotionalScore:  0.5,
		ConnectionScore: 0,
		OverallScore:    0.13,
	}
}

func TestDecideAutoForgettingDisabled(t *testing.T) {
	p := scenarioParams()
	p.EnableAutoForgetting = false
	forget, reason := Decide(weakScore(), 100, p, DefaultWeights)
	assert.False(t, forget)
	assert.Empty(t, reason)
}

func TestDecideProtectionOverridesScore(t *testing.T) {
	p := scenarioParams()
	for _, age := range []float64{0, 1, 2.99} {
		forget, _ := Decide(weakScore(), age, p, DefaultWeights)
		assert.False(t, forget, "age %v is inside the protection period", age)
	}
	forget, _ := Decide(weakScore(), 3, p, DefaultWeights)
	assert.True(t, forget)
}

func TestDecideThresholdIsInclusive(t *testing.T) {
	p := scenarioParams()
	rs := weakScore()
	rs.OverallScore = p.ForgettingThreshold
	forget, reason := Decide(rs, 10, p, DefaultWeights)
	assert.True(t, forget)
	assert.NotEmpty(t, reason)

	rs.OverallScore = p.ForgettingThreshold + 0.001
	forget, _ = Decide(rs, 10, p, DefaultWeights)
	assert.False(t, forget)
}

func TestExplainPhrases(t *testing.T) {
	cases := []struct {
		name string
		rs   RetentionScore
		want string
	}{
		{"stale", RetentionScore{TimeScore: 0, FrequencyScore: 1, ImportanceScore: 1, EmotionalScore: 1, ConnectionScore: 1}, "content not revisited recently"},
		{"idle", RetentionScore{TimeScore: 1, FrequencyScore: 0, ImportanceScore: 1, EmotionalScore: 1, ConnectionScore: 1}, "low recent interaction"},
		{"trivial", RetentionScore{TimeScore: 1, FrequencyScore: 1, ImportanceScore: 0, EmotionalScore: 1, ConnectionScore: 1}, "low importance for its kind"},
		{"flat", RetentionScore{TimeScore: 1, FrequencyScore: 1, ImportanceScore: 1, EmotionalScore: 0, ConnectionScore: 1}, "little emotional weight"},
		{"isolated", RetentionScore{TimeScore: 1, FrequencyScore: 1, ImportanceScore: 1, EmotionalScore: 1, ConnectionScore: 0}, "no structural connections"},
		{"sparse", RetentionScore{TimeScore: 1, FrequencyScore: 1, ImportanceScore: 1, EmotionalScore: 1, ConnectionScore: 0.2}, "weakly connected"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Explain(c.rs, DefaultWeights))
		})
	}
}

func TestWeakestUsesWeightedShortfall(t *testing.T) {
	// Connection is the lowest raw score but time costs more once weighted.
	assert.Equal(t, ComponentTime, Weakest(weakScore(), DefaultWeights))
}
