package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lazypower/lethe/internal/config"
	"github.com/lazypower/lethe/internal/retention"
	"github.com/lazypower/lethe/internal/signal"
	"github.com/lazypower/lethe/internal/store"
)

// ErrAnalysisInProgress is returned when an analysis pass is requested while
// another one is still running.
var ErrAnalysisInProgress = errors.New("analysis already in progress")

// Engine orchestrates retention analysis, forgetting and recall over the
// lethe database.
//
// The database is the authority. Parameters, scores and the archive are
// cached in memory and resynced from it under the engine lock, so several
// processes may share one database file. Forget, recall and parameter
// writes serialize with each other and with an in-flight analysis pass.
type Engine struct {
	DB     *store.DB
	Signal signal.Provider

	calc   retention.Calculator
	window time.Duration

	params  *retention.ParameterStore
	scores  *retention.ScoreStore
	archive *retention.Archive

	mu        sync.Mutex
	analyzing atomic.Bool
	now       func() time.Time

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSub     int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Engine with default scoring constants and parameters.
// Call Load to pick up persisted state.
func New(db *store.DB, provider signal.Provider) *Engine {
	if provider == nil {
		provider = signal.None{}
	}
	return &Engine{
		DB:          db,
		Signal:      provider,
		calc:        retention.NewCalculator(),
		window:      30 * 24 * time.Hour,
		params:      retention.NewParameterStore(retention.DefaultParameters()),
		scores:      retention.NewScoreStore(),
		archive:     retention.NewArchive(nil),
		now:         func() time.Time { return time.Now().UTC() },
		subscribers: make(map[int]func(Event)),
		stopCh:      make(chan struct{}),
	}
}

// Configure applies the analysis section of the config.
func (e *Engine) Configure(cfg config.AnalysisConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.Workers > 0 {
		e.calc.Workers = cfg.Workers
	}
	if cfg.FrequencySaturation > 0 {
		e.calc.FrequencySaturation = cfg.FrequencySaturation
	}
	if cfg.FrequencyWindowDays > 0 {
		e.window = cfg.FrequencyWindow()
	}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Load restores parameters, scores and the archive from the database.
// defaults is used when no parameters were ever saved.
func (e *Engine) Load(ctx context.Context, defaults retention.ForgettingParameters) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.DB.LoadParameters()
	if err != nil {
		return err
	}
	if p == nil {
		p = &defaults
	}
	if err := e.params.Set(*p); err != nil {
		log.Printf("engine: stored parameters invalid, using defaults: %v", err)
		e.params.Set(retention.DefaultParameters())
	}

	scores, latest, err := e.DB.LoadScores()
	if err != nil {
		return err
	}
	e.scores.Replace(scores, latest)

	purged, err := e.DB.TrimArchive(e.params.Get().MaxForgottenNodes)
	if err != nil {
		return err
	}
	if len(purged) > 0 {
		log.Printf("engine: purged %d archived nodes over capacity", len(purged))
	}
	if err := e.reloadArchiveLocked(); err != nil {
		return err
	}

	log.Printf("engine: loaded %d scores, %d archived nodes", e.scores.Len(), e.archive.Len())
	return nil
}

// syncLocked brings the cached parameters, scores and archive in line with
// the database, which other processes sharing the file may have written.
func (e *Engine) syncLocked() error {
	p, err := e.DB.LoadParameters()
	if err != nil {
		return err
	}
	if p != nil {
		if err := e.params.Set(*p); err != nil {
			log.Printf("engine: ignoring invalid stored parameters: %v", err)
		}
	}

	latest, err := e.DB.LatestAnalysis()
	if err != nil {
		return err
	}
	if latest.After(e.scores.AnalyzedAt()) {
		scores, latest, err := e.DB.LoadScores()
		if err != nil {
			return err
		}
		e.scores.Replace(scores, latest)
	}

	return e.reloadArchiveLocked()
}

func (e *Engine) reloadArchiveLocked() error {
	forgotten, err := e.DB.ListForgotten()
	if err != nil {
		return err
	}
	e.archive.Reset(forgotten)
	for _, f := range forgotten {
		e.scores.Delete(f.ID)
	}
	return nil
}

// refresh syncs the read side with the database. If another operation holds
// the lock it is already doing so and the cached state is served as is.
func (e *Engine) refresh() {
	if !e.mu.TryLock() {
		return
	}
	defer e.mu.Unlock()
	if err := e.syncLocked(); err != nil {
		log.Printf("engine: sync: %v", err)
	}
}

// ScoreOf returns the latest score of an active node.
func (e *Engine) ScoreOf(id string) (retention.RetentionScore, bool) {
	e.refresh()
	return e.scores.Get(id)
}

// Scores returns every current score, weakest first.
func (e *Engine) Scores() []retention.RetentionScore {
	e.refresh()
	return e.scores.Sorted()
}

// Candidates returns the nodes the last pass marked for forgetting.
func (e *Engine) Candidates() []retention.RetentionScore {
	e.refresh()
	return e.scores.Candidates()
}

// Archive returns the archived nodes, oldest first.
func (e *Engine) Archive() []retention.ForgottenNode {
	e.refresh()
	return e.archive.List()
}

// HealthStats summarises the retention store and the archive.
func (e *Engine) HealthStats() retention.MemoryHealthStats {
	e.refresh()
	stats := retention.ComputeHealth(e.scores)
	stats.Archived = e.archive.Len()
	return stats
}

// Parameters returns the active forgetting parameters.
func (e *Engine) Parameters() retention.ForgettingParameters {
	e.refresh()
	return e.params.Get()
}

// SetParameters validates, persists and installs p. A rejected write leaves
// the previous parameters in effect. Lowering the archive capacity purges
// the oldest archived nodes immediately.
func (e *Engine) SetParameters(ctx context.Context, p retention.ForgettingParameters) error {
	events, err := e.setParameters(p)
	e.emit(events...)
	return err
}

func (e *Engine) setParameters(p retention.ForgettingParameters) ([]Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.DB.SaveParameters(p); err != nil {
		return nil, err
	}
	if err := e.params.Set(p); err != nil {
		return nil, err
	}
	now := e.now()
	events := []Event{{Type: EventParametersChanged, At: now, Data: p}}

	purged, err := e.DB.TrimArchive(p.MaxForgottenNodes)
	if err != nil {
		return events, fmt.Errorf("trim archive: %w", err)
	}
	if err := e.reloadArchiveLocked(); err != nil {
		log.Printf("engine: reload archive: %v", err)
	}
	for _, f := range purged {
		events = append(events, Event{Type: EventNodePurged, NodeID: f.ID, At: now})
	}
	return events, nil
}

// StartAnalysisTimer runs an analysis pass on startup and then every
// interval, followed by automatic forgetting when it is enabled.
func (e *Engine) StartAnalysisTimer(interval time.Duration) {
	e.scheduledPass()
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.scheduledPass()
			case <-e.stopCh:
				return
			}
		}
	}()
}

func (e *Engine) scheduledPass() {
	ctx := context.Background()
	report, err := e.Analyze(ctx)
	switch {
	case errors.Is(err, ErrAnalysisInProgress):
		return
	case err != nil:
		log.Printf("analysis error: %v", err)
		return
	}
	log.Printf("analysis: scored %d nodes, %d candidates", report.Run.NodeCount, report.Run.CandidateCount)

	forgotten, err := e.AutoForget(ctx)
	if err != nil {
		log.Printf("auto-forget error: %v", err)
	} else if len(forgotten) > 0 {
		log.Printf("auto-forget: archived %d nodes", len(forgotten))
	}
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func nodeIDs(entries []retention.ForgottenNode) []string {
	ids := make([]string, len(entries))
	for i, f := range entries {
		ids[i] = f.ID
	}
	return ids
}
