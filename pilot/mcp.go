package pilot

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/kit"
)

type postActionReq struct {
	Action string `json:"action"`
}

type runsReq struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

// RegisterMCP registers the tabpilot tools on an MCP server.
func (p *Pilot) RegisterMCP(srv *mcp.Server) {
	ep := p.endpoints()

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "tabpilot_save_task_id",
		Description: "Find the task tab, extract its task ID and store it in the session record.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, ep.saveTaskID, kit.NoArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "tabpilot_capture_qa_feedback",
		Description: "Bring the QA feedback page to front, capture it and store the capture. Downloads the image when enabled in settings.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, ep.captureQA, kit.NoArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "tabpilot_read_ratings",
		Description: "Read the average rating and the four rating category counts from the QA feedback page.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, ep.readRatings, kit.NoArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "tabpilot_session",
		Description: "Return the stored session record: task ID, last capture and remembered values.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, ep.session, kit.NoArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "tabpilot_post_action",
		Description: "Start an action in the background and return its run ID. The outcome is recorded in the run log.",
		InputSchema: inputSchema(map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"RUN", "SAVE_TASK_ID", "CAPTURE_QA_FEEDBACK"},
				"description": "Action to run",
			},
		}, []string{"action"}),
	}, ep.postAction, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r postActionReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		msg, err := ParseMessage(r.Action)
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: msg}, nil
	})

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "tabpilot_runs",
		Description: "List recorded action runs, newest first.",
		InputSchema: inputSchema(map[string]any{
			"action": map[string]any{"type": "string", "description": "Only runs of this action"},
			"status": map[string]any{"type": "string", "enum": []string{audit.StatusSuccess, audit.StatusError}},
			"limit":  map[string]any{"type": "integer", "description": "Maximum entries (default 50)"},
		}, nil),
	}, ep.runs, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r runsReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: audit.Filter{Action: r.Action, Status: r.Status, Limit: r.Limit}}, nil
	})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
