package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/octoreflex/cognition/internal/consent"
)

// ProvideLiveSignalTool handles the provide_live_signal MCP tool: the
// operator-facing resolution of a pending manual (or voice-fallback)
// consent wait (spec.md §4.3).
type ProvideLiveSignalTool struct {
	auth *consent.Authority
}

// NewProvideLiveSignalTool creates a ProvideLiveSignalTool backed by auth.
func NewProvideLiveSignalTool(auth *consent.Authority) *ProvideLiveSignalTool {
	return &ProvideLiveSignalTool{auth: auth}
}

// Definition returns the MCP tool definition for registration.
func (t *ProvideLiveSignalTool) Definition() mcp.Tool {
	return mcp.NewTool("provide_live_signal",
		mcp.WithDescription(
			"Resolve a pending manual consent wait for the given memory_id with "+
				"an explicit true/false decision. If no wait is pending, the value "+
				"is kept and resolves the next wait for that memory_id.",
		),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The memory_id awaiting consent.")),
		mcp.WithBoolean("approve", mcp.Required(), mcp.Description("true to approve, false to deny.")),
	)
}

// Handle processes the provide_live_signal tool call.
func (t *ProvideLiveSignalTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	memoryID := req.GetString("memory_id", "")
	if memoryID == "" {
		return mcp.NewToolResultError("'memory_id' is required"), nil
	}
	approve := boolArg(req, "approve", false)

	t.auth.ProvideLiveSignal(memoryID, approve)
	return mcp.NewToolResultText(fmt.Sprintf("signal recorded for %q: approve=%v", memoryID, approve)), nil
}

// PendingSignalsTool handles the pending_signals MCP tool: lists every
// memory_id currently suspended awaiting manual consent.
type PendingSignalsTool struct {
	auth *consent.Authority
}

// NewPendingSignalsTool creates a PendingSignalsTool backed by auth.
func NewPendingSignalsTool(auth *consent.Authority) *PendingSignalsTool {
	return &PendingSignalsTool{auth: auth}
}

// Definition returns the MCP tool definition for registration.
func (t *PendingSignalsTool) Definition() mcp.Tool {
	return mcp.NewTool("pending_signals",
		mcp.WithDescription("List every memory_id currently suspended awaiting a manual consent signal, with how long each has been waiting."),
	)
}

// Handle processes the pending_signals tool call.
func (t *PendingSignalsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending := t.auth.PendingSignals()
	if len(pending) == 0 {
		return mcp.NewToolResultText("no pending consent signals"), nil
	}

	out := make(map[string]string, len(pending))
	for memoryID, since := range pending {
		out[memoryID] = since.UTC().Format("2006-01-02T15:04:05.000Z")
	}

	lines := ""
	for memoryID, since := range out {
		lines += fmt.Sprintf("%s: waiting since %s\n", memoryID, since)
	}
	return mcp.NewToolResultText(lines), nil
}
