package pilot

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/host/hosttest"
)

var testMCPImpl = &mcp.Implementation{Name: "tabpilot-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*mcp.ClientSession, *hosttest.Fake) {
	t.Helper()
	p, fake := testPilot(t)
	return mcpConnect(t, p), fake
}

func mcpConnect(t *testing.T, p *Pilot) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	p.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string) *mcp.CallToolResult {
	t.Helper()
	return mcpCallArgs(t, session, name, map[string]any{})
}

func mcpCallArgs(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func mcpText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if err := res.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return tc.Text
}

func TestMCP_SaveTaskIDAndSession(t *testing.T) {
	session, fake := mcpSession(t)
	fake.AddTab(host.Tab{URL: taskURLB, Active: true})

	var out map[string]string
	json.Unmarshal([]byte(mcpText(t, mcpCall(t, session, "tabpilot_save_task_id"))), &out)
	if out["task_id"] != "222" {
		t.Fatalf("task_id: got %q", out["task_id"])
	}

	var snap SessionSnapshot
	json.Unmarshal([]byte(mcpText(t, mcpCall(t, session, "tabpilot_session"))), &snap)
	if snap.TaskID != "222" {
		t.Fatalf("session: got %+v", snap)
	}
}

func TestMCP_CaptureAndRatings(t *testing.T) {
	session, fake := mcpSession(t)
	id := fake.AddTab(host.Tab{URL: feedbackURL, Status: host.StatusComplete, Active: true})
	seedFeedbackDoc(fake, id)

	var c FeedbackCapture
	json.Unmarshal([]byte(mcpText(t, mcpCall(t, session, "tabpilot_capture_qa_feedback"))), &c)
	if c.DataURL != hosttest.PNG || c.DownloadID != 1 {
		t.Fatalf("capture: got %+v", c)
	}

	var r Ratings
	json.Unmarshal([]byte(mcpText(t, mcpCall(t, session, "tabpilot_read_ratings"))), &r)
	if r.Exceptional != 12 {
		t.Fatalf("ratings: got %+v", r)
	}
}

func TestMCP_ToolError(t *testing.T) {
	session, _ := mcpSession(t)
	res := mcpCall(t, session, "tabpilot_save_task_id")
	if !res.IsError {
		t.Fatal("expected tool error with no task tabs")
	}
}

func TestMCP_PostActionAndRuns(t *testing.T) {
	p, fake := testPilot(t)
	attachRunLog(t, p)
	session := mcpConnect(t, p)
	fake.AddTab(host.Tab{URL: taskURLA, Active: true})

	var ack actionAck
	json.Unmarshal([]byte(mcpText(t, mcpCallArgs(t, session, "tabpilot_post_action", map[string]any{"action": "SAVE_TASK_ID"}))), &ack)
	if ack.Action != "SAVE_TASK_ID" || ack.RunID == "" {
		t.Fatalf("ack: got %+v", ack)
	}
	p.Dispatcher.Wait()

	var runs []RunEntry
	json.Unmarshal([]byte(mcpText(t, mcpCallArgs(t, session, "tabpilot_runs", map[string]any{"limit": 5}))), &runs)
	if len(runs) != 1 || runs[0].RunID != ack.RunID || runs[0].Status != "success" || runs[0].Transport != "mcp" {
		t.Fatalf("runs: got %+v", runs)
	}

	if res := mcpCallArgs(t, session, "tabpilot_post_action", map[string]any{"action": "REBOOT"}); !res.IsError {
		t.Fatal("expected tool error for unknown action")
	}
}
