// Package mcptools exposes the cognition loop's external surface as MCP
// tools: submitting a stimulus, inspecting the memory vault, and resolving
// a pending manual consent request. Each tool follows the same shape as
// the reference pack's tool handlers: a struct holding its dependencies, a
// Definition() returning the mcp.Tool schema, and a Handle() processing
// the call.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/octoreflex/cognition/internal/orchestrator"
)

// SubmitTool handles the submit_stimulus MCP tool: the exposed
// submit(stimulus, context) -> result capability (spec.md §6).
type SubmitTool struct {
	orch *orchestrator.Orchestrator
}

// NewSubmitTool creates a SubmitTool backed by orch.
func NewSubmitTool(orch *orchestrator.Orchestrator) *SubmitTool {
	return &SubmitTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *SubmitTool) Definition() mcp.Tool {
	return mcp.NewTool("submit_stimulus",
		mcp.WithDescription(
			"Run a textual stimulus through the full cognition loop: "+
				"RESONATE -> ANTERIOR -> ECHOSTACK -> ECHORIPPLE -> POSTERIOR -> "+
				"HARMONIZE -> CONSENT -> ARTICULATE. Blocks until the request "+
				"reaches a terminal state (articulated, denied, or failed). "+
				"If the configured consent mode is manual or voice, this call "+
				"suspends until provide_live_signal resolves it or the consent "+
				"timeout elapses.",
		),
		mcp.WithString("request_id",
			mcp.Description("Caller-supplied id for this request; also used as the memory_id in audit entries. Auto-generated if omitted."),
		),
		mcp.WithString("input",
			mcp.Required(),
			mcp.Description("The raw textual stimulus to reason over."),
		),
		mcp.WithString("voice_style",
			mcp.Description("Optional voice style hint forwarded to the articulator on approval."),
		),
		mcp.WithNumber("seed",
			mcp.Description("Optional integer seed for EchoStack/EchoRipple/Posterior's reproducible randomness. Defaults to a time-derived seed."),
		),
	)
}

// Handle processes the submit_stimulus tool call.
func (t *SubmitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := req.GetString("input", "")
	if input == "" {
		return mcp.NewToolResultError("'input' is required"), nil
	}

	requestID := req.GetString("request_id", "")
	if requestID == "" {
		requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	voiceStyle := req.GetString("voice_style", "")

	seed := int64(numberArg(req, "seed", float64(time.Now().UnixNano())))
	rng := rand.New(rand.NewSource(seed))

	result, err := t.orch.Submit(ctx, orchestrator.Request{
		ID:         requestID,
		Input:      input,
		VoiceStyle: voiceStyle,
	}, rng)

	out := struct {
		RequestID    string  `json:"request_id"`
		Status       string  `json:"status"`
		LastStage    string  `json:"last_stage"`
		ErrorKind    string  `json:"error_kind,omitempty"`
		Articulation *string `json:"articulated_text,omitempty"`
		Consensus    *bool   `json:"consensus,omitempty"`
		Confidence   float64 `json:"confidence"`
	}{
		RequestID: result.RequestID,
		Status:    string(result.Status),
		LastStage: string(result.LastStage),
		ErrorKind: string(result.ErrorKind),
	}
	if result.Reflection.Verdict != nil {
		out.Confidence = result.Reflection.Verdict.Confidence
	}
	if result.Articulation != nil {
		out.Articulation = &result.Articulation.Text
		out.Consensus = &result.Articulation.Consensus
	}

	body, marshalErr := json.Marshal(out)
	if marshalErr != nil {
		return nil, fmt.Errorf("mcptools: marshal submit result: %w", marshalErr)
	}

	if err != nil {
		// err is a *corekit.CoreError on FAILED/CANCELED; the structured
		// body above already carries status/error_kind, so surface it as
		// tool content rather than a transport-level error.
		return mcp.NewToolResultText(string(body)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// numberArg extracts a numeric argument from a tool request, returning
// defaultVal if the key is missing or not a JSON number.
func numberArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
