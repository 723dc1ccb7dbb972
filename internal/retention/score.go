package retention

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"
)

// NeutralSignal substitutes for an external input that is unavailable.
const NeutralSignal = 0.5

// Weights combine the component scores into the overall score.
type Weights struct {
	Time       float64
	Frequency  float64
	Importance float64
	Emotion    float64
	Connection float64
}

// DefaultWeights sum to 1.
var DefaultWeights = Weights{
	Time:       0.30,
	Frequency:  0.20,
	Importance: 0.20,
	Emotion:    0.15,
	Connection: 0.15,
}

func (w Weights) sum() float64 {
	return w.Time + w.Frequency + w.Importance + w.Emotion + w.Connection
}

// kindImportance is the base importance per node kind. Conclusions and
// insights outrank raw captures.
var kindImportance = map[string]float64{
	TypeCapture:    0.1,
	TypeNote:       0.3,
	TypeTask:       0.4,
	TypeQuestion:   0.5,
	TypeIdea:       0.6,
	TypeInsight:    0.8,
	TypeConclusion: 0.9,
}

const (
	defaultKindImportance = 0.3
	pinnedBonus           = 0.3
)

// Calculator computes RetentionScores. The zero value is not usable; start
// from NewCalculator.
type Calculator struct {
	Weights Weights

	// ConnectionNormalization is the degree at which connectionScore saturates.
	ConnectionNormalization float64

	// FrequencySaturation is the interaction count (within the window) that
	// earns a full frequency score.
	FrequencySaturation int

	// FrequencyBaseline is the floor for nodes without interaction history.
	FrequencyBaseline float64

	// Workers bounds per-node parallelism in ScoreAll. <= 0 uses GOMAXPROCS.
	Workers int
}

// NewCalculator returns a Calculator with the default weights and constants.
func NewCalculator() Calculator {
	return Calculator{
		Weights:                 DefaultWeights,
		ConnectionNormalization: 10,
		FrequencySaturation:     10,
		FrequencyBaseline:       0.1,
	}
}

// Signals are the external inputs for a single node.
type Signals struct {
	Degree       int
	HasDegree    bool
	Interactions int
	Emotion      float64
	HasEmotion   bool
}

// SignalsFor extracts the inputs for node id from a snapshot.
func (s Snapshot) SignalsFor(id string) Signals {
	var sig Signals
	if s.Degrees != nil {
		sig.Degree, sig.HasDegree = s.Degrees[id]
	}
	if s.Emotions != nil {
		sig.Emotion, sig.HasEmotion = s.Emotions[id]
	}
	if s.Interactions != nil {
		sig.Interactions = s.Interactions[id]
	}
	return sig
}

// Score computes the retention score of n at the snapshot time. Missing or
// malformed signals are replaced by defaults and reported as
// *PartialSignalError values; they never prevent a score from being produced.
func (c Calculator) Score(n Node, sig Signals, p ForgettingParameters, now time.Time) (RetentionScore, []error) {
	var partial []error

	rs := RetentionScore{
		NodeID:     n.ID,
		AnalyzedAt: now,
	}

	rs.TimeScore = TimeScore(p, AgeDays(referenceTime(n), now))
	rs.FrequencyScore = c.frequencyScore(sig.Interactions)
	rs.ImportanceScore = importanceScore(n)

	switch {
	case !sig.HasEmotion:
		rs.EmotionalScore = NeutralSignal
		partial = append(partial, &PartialSignalError{NodeID: n.ID, Signal: "emotion", Detail: "absent"})
	case math.IsNaN(sig.Emotion) || sig.Emotion < 0 || sig.Emotion > 1:
		rs.EmotionalScore = NeutralSignal
		partial = append(partial, &PartialSignalError{NodeID: n.ID, Signal: "emotion", Detail: fmt.Sprintf("out of range (%v)", sig.Emotion)})
	default:
		rs.EmotionalScore = sig.Emotion
	}

	switch {
	case !sig.HasDegree:
		rs.ConnectionScore = NeutralSignal
		partial = append(partial, &PartialSignalError{NodeID: n.ID, Signal: "degree", Detail: "absent"})
	case sig.Degree < 0:
		rs.ConnectionScore = NeutralSignal
		partial = append(partial, &PartialSignalError{NodeID: n.ID, Signal: "degree", Detail: fmt.Sprintf("negative (%d)", sig.Degree)})
	default:
		rs.ConnectionScore = c.connectionScore(sig.Degree)
	}

	rs.OverallScore = c.overall(rs)

	forget, reason := Decide(rs, AgeDays(n.CreatedAt, now), p, c.Weights)
	rs.ShouldForget = forget
	rs.ForgettingReason = reason
	return rs, partial
}

func (c Calculator) frequencyScore(count int) float64 {
	if count <= 0 {
		return clamp01(c.FrequencyBaseline)
	}
	sat := c.FrequencySaturation
	if sat <= 0 {
		sat = 1
	}
	s := math.Log1p(float64(count)) / math.Log1p(float64(sat))
	return clamp01(math.Max(c.FrequencyBaseline, s))
}

func importanceScore(n Node) float64 {
	base, ok := kindImportance[n.Type]
	if !ok {
		base = defaultKindImportance
	}
	if n.Pinned {
		base += pinnedBonus
	}
	return clamp01(base)
}

func (c Calculator) connectionScore(degree int) float64 {
	norm := c.ConnectionNormalization
	if norm <= 0 {
		norm = 1
	}
	return clamp01(float64(degree) / norm)
}

func (c Calculator) overall(rs RetentionScore) float64 {
	w := c.Weights
	total := w.sum()
	if total <= 0 {
		w, total = DefaultWeights, DefaultWeights.sum()
	}
	raw := w.Time*rs.TimeScore +
		w.Frequency*rs.FrequencyScore +
		w.Importance*rs.ImportanceScore +
		w.Emotion*rs.EmotionalScore +
		w.Connection*rs.ConnectionScore
	return clamp01(raw / total)
}

// ScoreResult pairs a score with the partial-signal errors recovered for it.
type ScoreResult struct {
	Score   RetentionScore
	Partial []error
}

// ScoreAll scores every node of the snapshot on a bounded worker pool.
// Results are returned in snapshot order once the whole batch is done.
func (c Calculator) ScoreAll(snap Snapshot, p ForgettingParameters) []ScoreResult {
	results := make([]ScoreResult, len(snap.Nodes))
	if len(snap.Nodes) == 0 {
		return results
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(snap.Nodes) {
		workers = len(snap.Nodes)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = c.scoreSafe(snap, i, p)
			}
		}()
	}
	for i := range snap.Nodes {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// scoreSafe isolates a panicking node so the rest of the batch completes.
func (c Calculator) scoreSafe(snap Snapshot, i int, p ForgettingParameters) (res ScoreResult) {
	n := snap.Nodes[i]
	defer func() {
		if r := recover(); r != nil {
			neutral := RetentionScore{
				NodeID:          n.ID,
				TimeScore:       NeutralSignal,
				FrequencyScore:  NeutralSignal,
				ImportanceScore: NeutralSignal,
				EmotionalScore:  NeutralSignal,
				ConnectionScore: NeutralSignal,
				OverallScore:    NeutralSignal,
				AnalyzedAt:      snap.TakenAt,
			}
			res = ScoreResult{
				Score:   neutral,
				Partial: []error{&PartialSignalError{NodeID: n.ID, Signal: "all", Detail: fmt.Sprintf("scoring panicked: %v", r)}},
			}
		}
	}()
	score, partial := c.Score(n, snap.SignalsFor(n.ID), p, snap.TakenAt)
	return ScoreResult{Score: score, Partial: partial}
}
