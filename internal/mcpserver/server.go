// Package mcpserver exposes the retention engine as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lazypower/lethe/internal/engine"
	"github.com/lazypower/lethe/internal/retention"
)

// New builds an MCP server with one tool per engine operation.
func New(eng *engine.Engine, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "lethe",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze",
		Description: "Run a retention analysis pass over all active nodes. Optionally archive the nodes it marks for forgetting.",
	}, analyzeHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "score",
		Description: "Show the latest retention score of a node, or the weakest scored nodes when no id is given.",
	}, scoreHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "forget",
		Description: "Move an active node into the archive. It can be recalled until the archive overflows.",
	}, forgetHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recall",
		Description: "Restore an archived node to the active set.",
	}, recallHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "archive",
		Description: "List archived nodes, oldest first.",
	}, archiveHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "health",
		Description: "Summarise memory health: healthy, at-risk and forgettable counts and the mean retention score.",
	}, healthHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_parameters",
		Description: "Show the active forgetting parameters.",
	}, getParametersHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_parameters",
		Description: "Update forgetting parameters. Omitted fields keep their current value; invalid values are rejected.",
	}, setParametersHandler(eng))

	return server
}

// Run serves the tools over stdin/stdout until ctx is done or the client
// disconnects.
func Run(ctx context.Context, eng *engine.Engine, version string) error {
	return New(eng, version).Run(ctx, &mcp.StdioTransport{})
}

// --- Input types ---

type analyzeInput struct {
	AutoForget bool `json:"auto_forget,omitempty" jsonschema:"Archive every node the pass marks for forgetting (requires enable_auto_forgetting)"`
}

type scoreInput struct {
	ID    string `json:"id,omitempty"    jsonschema:"Node id. If empty, lists the weakest nodes."`
	Limit int    `json:"limit,omitempty" jsonschema:"Max nodes to list when no id is given (default 10)"`
}

type forgetInput struct {
	ID     string `json:"id"               jsonschema:"Node id to forget"`
	Reason string `json:"reason,omitempty" jsonschema:"Optional reason recorded in the archive"`
}

type recallInput struct {
	ID string `json:"id" jsonschema:"Archived node id to restore"`
}

type emptyInput struct{}

type setParametersInput struct {
	Strategy              *string  `json:"strategy,omitempty"                jsonschema:"Decay law: exponential, linear or stepwise"`
	DecayRate             *float64 `json:"decay_rate,omitempty"              jsonschema:"Decay rate in [0,1]"`
	ForgettingThreshold   *float64 `json:"forgetting_threshold,omitempty"    jsonschema:"Overall score at or below which a node is a candidate, in [0,1]"`
	MinimumRetentionScore *float64 `json:"minimum_retention_score,omitempty" jsonschema:"Floor for the time score, in [0,1]"`
	ProtectionPeriodDays  *int     `json:"protection_period_days,omitempty"  jsonschema:"Nodes younger than this are never forgotten"`
	MaxForgottenNodes     *int     `json:"max_forgotten_nodes,omitempty"     jsonschema:"Archive capacity; the oldest entries are purged beyond it"`
	EnableAutoForgetting  *bool    `json:"enable_auto_forgetting,omitempty"  jsonschema:"Allow analysis to mark nodes for automatic forgetting"`
}

// apply overlays the set fields onto p.
func (in setParametersInput) apply(p retention.ForgettingParameters) retention.ForgettingParameters {
	if in.Strategy != nil {
		p.Strategy = retention.Strategy(*in.Strategy)
	}
	if in.DecayRate != nil {
		p.DecayRate = *in.DecayRate
	}
	if in.ForgettingThreshold != nil {
		p.ForgettingThreshold = *in.ForgettingThreshold
	}
	if in.MinimumRetentionScore != nil {
		p.MinimumRetentionScore = *in.MinimumRetentionScore
	}
	if in.ProtectionPeriodDays != nil {
		p.ProtectionPeriodDays = *in.ProtectionPeriodDays
	}
	if in.MaxForgottenNodes != nil {
		p.MaxForgottenNodes = *in.MaxForgottenNodes
	}
	if in.EnableAutoForgetting != nil {
		p.EnableAutoForgetting = *in.EnableAutoForgetting
	}
	return p
}

// --- Handlers ---

func analyzeHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, analyzeInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input analyzeInput) (*mcp.CallToolResult, any, error) {
		report, err := eng.Analyze(ctx)
		if err != nil {
			return errorResult(err), nil, nil
		}
		out := map[string]any{"run": report.Run}
		if input.AutoForget {
			forgotten, err := eng.AutoForget(ctx)
			if err != nil {
				return errorResult(err), nil, nil
			}
			out["forgotten"] = nodeIDs(forgotten)
		}
		return textResult(jsonString(out)), nil, nil
	}
}

func scoreHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, scoreInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input scoreInput) (*mcp.CallToolResult, any, error) {
		if input.ID != "" {
			rs, ok := eng.ScoreOf(input.ID)
			if !ok {
				return errorResult(&retention.NotFoundError{ID: input.ID}), nil, nil
			}
			return textResult(jsonString(rs)), nil, nil
		}

		limit := input.Limit
		if limit <= 0 {
			limit = 10
		}
		scores := eng.Scores()
		if len(scores) > limit {
			scores = scores[:limit]
		}
		return textResult(jsonString(scores)), nil, nil
	}
}

func forgetHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, forgetInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input forgetInput) (*mcp.CallToolResult, any, error) {
		if input.ID == "" {
			return errorResult(errIDRequired), nil, nil
		}
		f, err := eng.Forget(ctx, input.ID, input.Reason)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(jsonString(f)), nil, nil
	}
}

func recallHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, recallInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input recallInput) (*mcp.CallToolResult, any, error) {
		if input.ID == "" {
			return errorResult(errIDRequired), nil, nil
		}
		n, err := eng.Recall(ctx, input.ID)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(jsonString(n)), nil, nil
	}
}

func archiveHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, emptyInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
		entries := eng.Archive()
		if entries == nil {
			entries = []retention.ForgottenNode{}
		}
		return textResult(jsonString(entries)), nil, nil
	}
}

func healthHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, emptyInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
		return textResult(jsonString(eng.HealthStats())), nil, nil
	}
}

func getParametersHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, emptyInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
		return textResult(jsonString(eng.Parameters())), nil, nil
	}
}

func setParametersHandler(eng *engine.Engine) func(context.Context, *mcp.CallToolRequest, setParametersInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input setParametersInput) (*mcp.CallToolResult, any, error) {
		p := input.apply(eng.Parameters())
		if err := eng.SetParameters(ctx, p); err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(jsonString(eng.Parameters())), nil, nil
	}
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

var errIDRequired = errors.New("id required")

func errorResult(err error) *mcp.CallToolResult {
	res := textResult(fmt.Sprintf("error: %v", err))
	res.IsError = true
	return res
}

func jsonString(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal: %v"}`, err)
	}
	return string(data)
}

func nodeIDs(entries []retention.ForgottenNode) []string {
	ids := make([]string, len(entries))
	for i, f := range entries {
		ids[i] = f.ID
	}
	return ids
}
