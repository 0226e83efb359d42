package pilot

import (
	"context"
	"fmt"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/kit"
)

// actionAck is returned when a message has been posted to the dispatcher.
type actionAck struct {
	Action string `json:"action"`
	RunID  string `json:"run_id"`
}

type endpoints struct {
	postAction     kit.Endpoint // req: Message
	saveTaskID     kit.Endpoint
	captureQA      kit.Endpoint
	readRatings    kit.Endpoint
	session        kit.Endpoint
	loadSettings   kit.Endpoint
	updateSettings kit.Endpoint // req: Patch
	resetSettings  kit.Endpoint
	downloads      kit.Endpoint // req: int limit
	runs           kit.Endpoint // req: audit.Filter
	run            kit.Endpoint // req: string run ID
}

// endpoints builds the transport-independent operations shared by the HTTP
// and MCP surfaces.
func (p *Pilot) endpoints() endpoints {
	wrap := func(name string, e kit.Endpoint) kit.Endpoint {
		return kit.Chain(kit.Logging(p.logger, name), kit.Recover())(e)
	}
	return endpoints{
		postAction: wrap("post_action", func(ctx context.Context, req any) (any, error) {
			msg, ok := req.(Message)
			if !ok {
				return nil, fmt.Errorf("pilot: expected a message, got %T", req)
			}
			return actionAck{Action: msg.Action(), RunID: p.Dispatcher.Post(ctx, msg)}, nil
		}),
		saveTaskID: wrap("save_task_id", func(ctx context.Context, _ any) (any, error) {
			id, err := p.Actions.SaveTaskID(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]string{"task_id": id}, nil
		}),
		captureQA: wrap("capture_qa_feedback", func(ctx context.Context, _ any) (any, error) {
			c, err := p.Actions.CaptureAndSaveQAFeedback(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		}),
		readRatings: wrap("read_ratings", func(ctx context.Context, _ any) (any, error) {
			r, err := p.ReadRatings(ctx)
			if err != nil {
				return nil, err
			}
			return r, nil
		}),
		session: wrap("session", func(ctx context.Context, _ any) (any, error) {
			return p.Session(ctx)
		}),
		loadSettings: wrap("load_settings", func(ctx context.Context, _ any) (any, error) {
			s, err := p.Settings.Load(ctx)
			if err != nil {
				return nil, err
			}
			return s.View(), nil
		}),
		updateSettings: wrap("update_settings", func(ctx context.Context, req any) (any, error) {
			patch, ok := req.(Patch)
			if !ok {
				return nil, fmt.Errorf("pilot: expected a settings patch, got %T", req)
			}
			s, err := p.UpdateSettings(ctx, patch)
			if err != nil {
				return nil, err
			}
			return s.View(), nil
		}),
		resetSettings: wrap("reset_settings", func(ctx context.Context, _ any) (any, error) {
			s, err := p.Settings.Reset(ctx)
			if err != nil {
				return nil, err
			}
			return s.View(), nil
		}),
		downloads: wrap("downloads", func(ctx context.Context, req any) (any, error) {
			limit, _ := req.(int)
			d, err := p.Downloads(ctx, limit)
			if err != nil {
				return nil, err
			}
			if d == nil {
				d = []Download{}
			}
			return d, nil
		}),
		runs: wrap("runs", func(ctx context.Context, req any) (any, error) {
			f, _ := req.(audit.Filter)
			rs, err := p.Runs(ctx, f)
			if err != nil {
				return nil, err
			}
			if rs == nil {
				rs = []RunEntry{}
			}
			return rs, nil
		}),
		run: wrap("run", func(ctx context.Context, req any) (any, error) {
			id, _ := req.(string)
			return p.Run(ctx, id)
		}),
	}
}
