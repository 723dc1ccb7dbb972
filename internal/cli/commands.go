package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/lethe/internal/retention"
)

var jsonOut bool

func init() {
	for _, c := range []*cobra.Command{analyzeCmd, scoreCmd, archiveCmd, healthCmd, paramsCmd} {
		c.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of text")
	}
	analyzeCmd.Flags().BoolVar(&analyzeAutoForget, "auto-forget", false, "Archive candidates after the pass if auto-forgetting is enabled")
	scoreCmd.Flags().BoolVar(&scoreCandidates, "candidates", false, "Only show nodes marked for forgetting")
	forgetCmd.Flags().StringVarP(&forgetReason, "reason", "r", "", "Reason recorded in the archive")

	paramsCmd.Flags().StringVar(&paramsFlags.strategy, "strategy", "", "Decay strategy (exponential, linear, stepwise)")
	paramsCmd.Flags().Float64Var(&paramsFlags.decayRate, "decay-rate", 0, "Decay rate in [0,1]")
	paramsCmd.Flags().Float64Var(&paramsFlags.threshold, "threshold", 0, "Forgetting threshold in [0,1]")
	paramsCmd.Flags().Float64Var(&paramsFlags.minimum, "minimum", 0, "Minimum retention score in [0,1]")
	paramsCmd.Flags().IntVar(&paramsFlags.protectionDays, "protection-days", 0, "Protection period in days")
	paramsCmd.Flags().IntVar(&paramsFlags.maxForgotten, "max-forgotten", 0, "Archive capacity")
	paramsCmd.Flags().BoolVar(&paramsFlags.autoForget, "auto-forget", false, "Enable automatic forgetting")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// --- analyze command ---

var analyzeAutoForget bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis pass over all active nodes",
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, _, closeEngine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	report, err := eng.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	var forgotten []retention.ForgottenNode
	if analyzeAutoForget {
		forgotten, err = eng.AutoForget(ctx)
		if err != nil {
			return fmt.Errorf("auto-forget: %w", err)
		}
	}

	if jsonOut {
		return printJSON(map[string]any{"run": report.Run, "forgotten": forgotten})
	}

	fmt.Printf("Analyzed %d nodes: %d candidates", report.Run.NodeCount, report.Run.CandidateCount)
	if report.Run.PartialSignals > 0 {
		fmt.Printf(", %d partial signals", report.Run.PartialSignals)
	}
	fmt.Println()
	for _, f := range forgotten {
		fmt.Printf("  forgot %s (%.3f): %s\n", f.ID, f.MemoryScore, f.Reason)
	}
	return nil
}

// --- score command ---

var scoreCandidates bool

var scoreCmd = &cobra.Command{
	Use:   "score [id]",
	Short: "Show retention scores from the last analysis",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, _, closeEngine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	var scores []retention.RetentionScore
	switch {
	case len(args) == 1:
		s, ok := eng.ScoreOf(args[0])
		if !ok {
			return fmt.Errorf("no score for %s; run analyze first", args[0])
		}
		scores = []retention.RetentionScore{s}
	case scoreCandidates:
		scores = eng.Candidates()
	default:
		scores = eng.Scores()
	}

	if jsonOut {
		return printJSON(scores)
	}
	if len(scores) == 0 {
		fmt.Println("No scores. Run analyze first.")
		return nil
	}

	for _, s := range scores {
		mark := " "
		if s.ShouldForget {
			mark = "!"
		}
		fmt.Printf("%s [%.3f] %s\n", mark, s.OverallScore, s.NodeID)
		fmt.Printf("    time=%.2f freq=%.2f imp=%.2f emo=%.2f conn=%.2f\n",
			s.TimeScore, s.FrequencyScore, s.ImportanceScore, s.EmotionalScore, s.ConnectionScore)
		if s.ForgettingReason != "" {
			fmt.Printf("    %s\n", s.ForgettingReason)
		}
	}
	return nil
}

// --- forget / recall commands ---

var forgetReason string

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Archive a node",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

func runForget(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, _, closeEngine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	f, err := eng.Forget(ctx, args[0], forgetReason)
	if err != nil {
		return err
	}
	fmt.Printf("Forgot %s (%.3f): %s\n", f.ID, f.MemoryScore, f.Reason)
	return nil
}

var recallCmd = &cobra.Command{
	Use:   "recall <id>",
	Short: "Restore a node from the archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecall,
}

func runRecall(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, _, closeEngine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	n, err := eng.Recall(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Recalled %s [%s]\n", n.ID, n.Type)
	return nil
}

// --- archive command ---

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "List forgotten nodes, oldest first",
	RunE:  runArchive,
}

func runArchive(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, _, closeEngine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	entries := eng.Archive()
	if jsonOut {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("Archive is empty.")
		return nil
	}
	fmt.Printf("## Archive (%d/%d)\n\n", len(entries), eng.Parameters().MaxForgottenNodes)
	for _, f := range entries {
		fmt.Printf("  %s %s [%.3f] %s\n", f.ForgottenAt.Format(time.RFC3339), f.ID, f.MemoryScore, f.Reason)
	}
	return nil
}

// --- health command ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Summarise the health of the last analysis",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, _, closeEngine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	stats := eng.HealthStats()
	if jsonOut {
		return printJSON(stats)
	}
	fmt.Printf("total=%d healthy=%d at_risk=%d forgettable=%d archived=%d average=%.3f\n",
		stats.Total, stats.Healthy, stats.AtRisk, stats.Forgettable, stats.Archived, stats.AverageScore)
	return nil
}

// --- params command ---

var paramsFlags struct {
	strategy       string
	decayRate      float64
	threshold      float64
	minimum        float64
	protectionDays int
	maxForgotten   int
	autoForget     bool
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show or change the forgetting parameters",
	Long:  "With no flags, prints the current parameters. Any flag given is applied and persisted.",
	RunE:  runParams,
}

func runParams(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, _, closeEngine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	p, changed := applyParamFlags(cmd, eng.Parameters())
	if changed {
		if err := eng.SetParameters(ctx, p); err != nil {
			return err
		}
		p = eng.Parameters()
	}

	if jsonOut {
		return printJSON(p)
	}
	fmt.Printf("strategy:                %s\n", p.Strategy)
	fmt.Printf("decay_rate:              %.3f\n", p.DecayRate)
	fmt.Printf("forgetting_threshold:    %.3f\n", p.ForgettingThreshold)
	fmt.Printf("minimum_retention_score: %.3f\n", p.MinimumRetentionScore)
	fmt.Printf("protection_period_days:  %d\n", p.ProtectionPeriodDays)
	fmt.Printf("max_forgotten_nodes:     %d\n", p.MaxForgottenNodes)
	fmt.Printf("enable_auto_forgetting:  %v\n", p.EnableAutoForgetting)
	return nil
}

// applyParamFlags overlays the flags the user actually set onto p.
func applyParamFlags(cmd *cobra.Command, p retention.ForgettingParameters) (retention.ForgettingParameters, bool) {
	f := cmd.Flags()
	changed := false
	if f.Changed("strategy") {
		p.Strategy = retention.Strategy(paramsFlags.strategy)
		changed = true
	}
	if f.Changed("decay-rate") {
		p.DecayRate = paramsFlags.decayRate
		changed = true
	}
	if f.Changed("threshold") {
		p.ForgettingThreshold = paramsFlags.threshold
		changed = true
	}
	if f.Changed("minimum") {
		p.MinimumRetentionScore = paramsFlags.minimum
		changed = true
	}
	if f.Changed("protection-days") {
		p.ProtectionPeriodDays = paramsFlags.protectionDays
		changed = true
	}
	if f.Changed("max-forgotten") {
		p.MaxForgottenNodes = paramsFlags.maxForgotten
		changed = true
	}
	if f.Changed("auto-forget") {
		p.EnableAutoForgetting = paramsFlags.autoForget
		changed = true
	}
	return p, changed
}
