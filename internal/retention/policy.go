package retention

// Decide applies the forgetting policy to a scored node. It is pure: the
// same inputs always produce the same decision.
//
// Rules, in order: auto-forgetting disabled keeps the node; a node younger
// than the protection period is kept; otherwise the node is a candidate when
// its overall score is at or below the threshold.
func Decide(rs RetentionScore, ageDays float64, p ForgettingParameters, w Weights) (bool, string) {
	if !p.EnableAutoForgetting {
		return false, ""
	}
	if ageDays < float64(p.ProtectionPeriodDays) {
		return false, ""
	}
	if rs.OverallScore > p.ForgettingThreshold {
		return false, ""
	}
	return true, Explain(rs, w)
}

// Component identifies one of the five score components.
type Component string

const (
	ComponentTime       Component = "time"
	ComponentFrequency  Component = "frequency"
	ComponentImportance Component = "importance"
	ComponentEmotion    Component = "emotion"
	ComponentConnection Component = "connection"
)

// Weakest returns the component that costs the node the most retention,
// measured as weight * (1 - score). Ties resolve in declaration order.
func Weakest(rs RetentionScore, w Weights) Component {
	candidates := []struct {
		c     Component
		score float64
		w     float64
	}{
		{ComponentTime, rs.TimeScore, w.Time},
		{ComponentFrequency, rs.FrequencyScore, w.Frequency},
		{ComponentImportance, rs.ImportanceScore, w.Importance},
		{ComponentEmotion, rs.EmotionalScore, w.Emotion},
		{ComponentConnection, rs.ConnectionScore, w.Connection},
	}
	best := candidates[0].c
	bestLoss := -1.0
	for _, c := range candidates {
		loss := c.w * (1 - c.score)
		if loss > bestLoss {
			best, bestLoss = c.c, loss
		}
	}
	return best
}

// Explain phrases the weakest component for a human reader.
func Explain(rs RetentionScore, w Weights) string {
	switch Weakest(rs, w) {
	case ComponentTime:
		return "content not revisited recently"
	case ComponentFrequency:
		return "low recent interaction"
	case ComponentImportance:
		return "low importance for its kind"
	case ComponentEmotion:
		return "little emotional weight"
	default:
		if rs.ConnectionScore == 0 {
			return "no structural connections"
		}
		return "weakly connected"
	}
}
