package mcptools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/consent"
	"github.com/octoreflex/cognition/internal/harmonizer"
	"github.com/octoreflex/cognition/internal/vault"
)

func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func newReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestGetShardTool_MissingMemoryID(t *testing.T) {
	store := vault.NewMemStore(harmonizer.New(0.5, 0.5))
	tool := NewGetShardTool(store)

	result, err := tool.Handle(context.Background(), newReq(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result for missing memory_id")
	}
}

func TestGetShardTool_Found(t *testing.T) {
	store := vault.NewMemStore(harmonizer.New(0.5, 0.5))
	if _, err := store.StoreShard("m1", map[string]any{"k": "v"}, vault.ResonanceTag{Tone: vault.ToneJoy}); err != nil {
		t.Fatalf("StoreShard: %v", err)
	}

	tool := NewGetShardTool(store)
	result, err := tool.Handle(context.Background(), newReq(map[string]interface{}{"memory_id": "m1"}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "m1") {
		t.Fatalf("expected shard JSON to contain memory_id, got: %s", getResultText(result))
	}
}

func TestGetShardTool_NotFound(t *testing.T) {
	store := vault.NewMemStore(harmonizer.New(0.5, 0.5))
	tool := NewGetShardTool(store)

	result, err := tool.Handle(context.Background(), newReq(map[string]interface{}{"memory_id": "missing"}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result for unknown memory_id")
	}
}

func TestAuditLogTailTool_RespectsLimit(t *testing.T) {
	store := vault.NewMemStore(harmonizer.New(0.5, 0.5))
	for i := 0; i < 5; i++ {
		if err := store.AppendAudit(vault.AuditEntry{Action: vault.ActionPipeline, MemoryID: "m", Verdict: vault.VerdictApproved}); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	tool := NewAuditLogTailTool(store)
	result, err := tool.Handle(context.Background(), newReq(map[string]interface{}{"limit": float64(2)}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := getResultText(result)
	if strings.Count(text, `"action"`) != 2 {
		t.Fatalf("expected exactly 2 audit entries, got: %s", text)
	}
}

func TestProvideLiveSignalTool_ResolvesWaiter(t *testing.T) {
	store := vault.NewMemStore(harmonizer.New(0.5, 0.5))
	authority := consent.New(config.ConsentManual, store, nil, 1)
	tool := NewProvideLiveSignalTool(authority)

	done := make(chan consent.Outcome, 1)
	go func() {
		outcome, _ := authority.GetLiveSignal(context.Background(), consent.Request{MemoryID: "m1"}, time.Second)
		done <- outcome
	}()

	time.Sleep(10 * time.Millisecond)
	result, err := tool.Handle(context.Background(), newReq(map[string]interface{}{"memory_id": "m1", "approve": true}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	select {
	case outcome := <-done:
		if !outcome.Approved {
			t.Fatal("expected the waiter to resolve approved")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never resolved")
	}
}

func TestPendingSignalsTool_NoneWaiting(t *testing.T) {
	store := vault.NewMemStore(harmonizer.New(0.5, 0.5))
	authority := consent.New(config.ConsentManual, store, nil, 1)
	tool := NewPendingSignalsTool(authority)

	result, err := tool.Handle(context.Background(), newReq(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "no pending") {
		t.Fatalf("expected 'no pending' message, got: %s", getResultText(result))
	}
}
