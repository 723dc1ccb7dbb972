package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/lethe/internal/engine"
	"github.com/lazypower/lethe/internal/retention"
	"github.com/lazypower/lethe/internal/store"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, nil)
	p := retention.DefaultParameters()
	p.EnableAutoForgetting = true
	require.NoError(t, eng.SetParameters(context.Background(), p))

	old := time.Now().UTC().Add(-90 * 24 * time.Hour)
	require.NoError(t, db.CreateNode(&retention.Node{ID: "stale", Content: "old capture", Type: retention.TypeCapture, CreatedAt: old}))
	require.NoError(t, db.CreateNode(&retention.Node{ID: "fresh", Content: "new insight", Type: retention.TypeInsight}))
	return eng
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewRegistersTools(t *testing.T) {
	assert.NotNil(t, New(testEngine(t), "test"))
}

func TestAnalyzeAndScore(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	res, _, err := analyzeHandler(eng)(ctx, nil, analyzeInput{AutoForget: true})
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var out struct {
		Run       store.AnalysisRun `json:"run"`
		Forgotten []string          `json:"forgotten"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 2, out.Run.NodeCount)
	assert.Equal(t, []string{"stale"}, out.Forgotten)

	res, _, err = scoreHandler(eng)(ctx, nil, scoreInput{ID: "fresh"})
	require.NoError(t, err)
	var rs retention.RetentionScore
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &rs))
	assert.Equal(t, "fresh", rs.NodeID)
	assert.False(t, rs.ShouldForget)

	res, _, err = scoreHandler(eng)(ctx, nil, scoreInput{ID: "stale"})
	require.NoError(t, err)
	assert.True(t, res.IsError, "archived nodes have no score")
}

func TestForgetRecallArchive(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	res, _, err := forgetHandler(eng)(ctx, nil, forgetInput{ID: "fresh", Reason: "not needed"})
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	res, _, _ = archiveHandler(eng)(ctx, nil, emptyInput{})
	var entries []retention.ForgottenNode
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "not needed", entries[0].Reason)

	res, _, _ = recallHandler(eng)(ctx, nil, recallInput{ID: "fresh"})
	require.False(t, res.IsError, text(t, res))

	res, _, _ = recallHandler(eng)(ctx, nil, recallInput{ID: "fresh"})
	assert.True(t, res.IsError)
	assert.True(t, strings.Contains(text(t, res), "not archived"))

	res, _, _ = forgetHandler(eng)(ctx, nil, forgetInput{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "id required")

	res, _, _ = recallHandler(eng)(ctx, nil, recallInput{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "id required")
}

func TestParametersTools(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	rate := 0.5
	strategy := "stepwise"
	res, _, err := setParametersHandler(eng)(ctx, nil, setParametersInput{DecayRate: &rate, Strategy: &strategy})
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	res, _, _ = getParametersHandler(eng)(ctx, nil, emptyInput{})
	var p retention.ForgettingParameters
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &p))
	assert.Equal(t, retention.StrategyStepwise, p.Strategy)
	assert.Equal(t, 0.5, p.DecayRate)
	assert.Equal(t, 100, p.MaxForgottenNodes)

	zero := 0
	res, _, _ = setParametersHandler(eng)(ctx, nil, setParametersInput{MaxForgottenNodes: &zero})
	assert.True(t, res.IsError)
	assert.Equal(t, 100, eng.Parameters().MaxForgottenNodes)
}

func TestHealthTool(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()
	_, err := eng.Analyze(ctx)
	require.NoError(t, err)

	res, _, _ := healthHandler(eng)(ctx, nil, emptyInput{})
	var stats retention.MemoryHealthStats
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Forgettable)
}
