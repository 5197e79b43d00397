package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/octoreflex/cognition/internal/vault"
)

// GetShardTool handles the get_shard MCP tool.
type GetShardTool struct {
	store vault.Store
}

// NewGetShardTool creates a GetShardTool backed by store.
func NewGetShardTool(store vault.Store) *GetShardTool {
	return &GetShardTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *GetShardTool) Definition() mcp.Tool {
	return mcp.NewTool("get_shard",
		mcp.WithDescription("Fetch a single memory shard by its memory_id from the Memory Vault."),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The shard's memory_id.")),
	)
}

// Handle processes the get_shard tool call.
func (t *GetShardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	memoryID := req.GetString("memory_id", "")
	if memoryID == "" {
		return mcp.NewToolResultError("'memory_id' is required"), nil
	}

	shard, err := t.store.Get(memoryID)
	if err != nil {
		if err == vault.ErrNotFound {
			return mcp.NewToolResultError(fmt.Sprintf("no shard with memory_id %q", memoryID)), nil
		}
		return nil, fmt.Errorf("mcptools: get_shard: %w", err)
	}

	body, err := json.Marshal(shard)
	if err != nil {
		return nil, fmt.Errorf("mcptools: marshal shard: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

// QueryByResonanceTool handles the query_by_resonance MCP tool.
type QueryByResonanceTool struct {
	store vault.Store
}

// NewQueryByResonanceTool creates a QueryByResonanceTool backed by store.
func NewQueryByResonanceTool(store vault.Store) *QueryByResonanceTool {
	return &QueryByResonanceTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *QueryByResonanceTool) Definition() mcp.Tool {
	return mcp.NewTool("query_by_resonance",
		mcp.WithDescription("Scan the Memory Vault for shards matching an optional tone/symbol/intensity-range filter."),
		mcp.WithString("tone", mcp.Description("Exact tone match: one of joy, grief, fracture, wonder, neutral. Omit for no constraint.")),
		mcp.WithString("symbol", mcp.Description("Exact resonance symbol match. Omit for no constraint.")),
		mcp.WithNumber("min_intensity", mcp.Description("Minimum resonance intensity, inclusive. Omit for no lower bound.")),
		mcp.WithNumber("max_intensity", mcp.Description("Maximum resonance intensity, inclusive. Omit for no upper bound.")),
	)
}

// Handle processes the query_by_resonance tool call.
func (t *QueryByResonanceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := vault.ResonanceFilter{}
	args := req.GetArguments()

	if tone := req.GetString("tone", ""); tone != "" {
		vt := vault.Tone(tone)
		filter.Tone = &vt
	}
	if symbol := req.GetString("symbol", ""); symbol != "" {
		filter.Symbol = &symbol
	}
	if v, ok := args["min_intensity"].(float64); ok {
		filter.MinIntensity = &v
	}
	if v, ok := args["max_intensity"].(float64); ok {
		filter.MaxIntensity = &v
	}

	shards, err := t.store.QueryByResonance(filter)
	if err != nil {
		return nil, fmt.Errorf("mcptools: query_by_resonance: %w", err)
	}

	sort.Slice(shards, func(i, j int) bool {
		return shards[i].MemoryID < shards[j].MemoryID
	})

	body, err := json.Marshal(shards)
	if err != nil {
		return nil, fmt.Errorf("mcptools: marshal shards: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

// AuditLogTailTool handles the audit_log_tail MCP tool.
type AuditLogTailTool struct {
	store vault.Store
}

// NewAuditLogTailTool creates an AuditLogTailTool backed by store.
func NewAuditLogTailTool(store vault.Store) *AuditLogTailTool {
	return &AuditLogTailTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *AuditLogTailTool) Definition() mcp.Tool {
	return mcp.NewTool("audit_log_tail",
		mcp.WithDescription("Return the last N entries of the Memory Vault's append-only audit log, oldest first."),
		mcp.WithNumber("limit", mcp.Description("Max entries to return, most recent. Default 50.")),
	)
}

// Handle processes the audit_log_tail tool call.
func (t *AuditLogTailTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(numberArg(req, "limit", 50))
	if limit <= 0 {
		limit = 50
	}

	entries, err := t.store.AuditLog()
	if err != nil {
		return nil, fmt.Errorf("mcptools: audit_log_tail: %w", err)
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	body, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("mcptools: marshal audit entries: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
