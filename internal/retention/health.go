package retention

// Health bands over the overall score.
const (
	HealthyAbove         = 0.7
	ForgettableAtOrBelow = 0.3
)

// ComputeHealth derives summary statistics from the score store. It holds no
// state of its own, so the result always matches the store at call time.
func ComputeHealth(s *ScoreStore) MemoryHealthStats {
	all := s.All()
	stats := MemoryHealthStats{
		Total:      len(all),
		AnalyzedAt: s.AnalyzedAt(),
	}
	if len(all) == 0 {
		return stats
	}

	var sum float64
	for _, rs := range all {
		sum += rs.OverallScore
		switch {
		case rs.ShouldForget || rs.OverallScore <= ForgettableAtOrBelow:
			stats.Forgettable++
		case rs.OverallScore > HealthyAbove:
			stats.Healthy++
		default:
			stats.AtRisk++
		}
	}
	stats.AverageScore = sum / float64(len(all))
	return stats
}
