package pilot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/kit"
)

func TestParseMessage(t *testing.T) {
	for _, action := range []string{"RUN", "SAVE_TASK_ID", "CAPTURE_QA_FEEDBACK"} {
		msg, err := ParseMessage(action)
		if err != nil {
			t.Fatalf("ParseMessage(%q): %v", action, err)
		}
		if msg.Action() != action {
			t.Fatalf("Action: got %q, want %q", msg.Action(), action)
		}
	}
	if _, err := ParseMessage("REBOOT"); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseContentRequest(t *testing.T) {
	req, err := ParseContentRequest("SELECT_OPTION", "opt-1")
	if err != nil {
		t.Fatalf("ParseContentRequest: %v", err)
	}
	if so, ok := req.(SelectOption); !ok || so.ID != "opt-1" {
		t.Fatalf("request: got %#v", req)
	}
	if _, err := ParseContentRequest("SELECT_OPTION", ""); err == nil {
		t.Fatal("expected error for SELECT_OPTION without id")
	}
	if _, err := ParseContentRequest("READ_MINDS", ""); err == nil {
		t.Fatal("expected error for unknown content action")
	}
}

func TestDispatcher_SaveTaskID(t *testing.T) {
	p, fake := testPilot(t)
	fake.AddTab(host.Tab{URL: taskURLB, Active: true})

	id := p.Dispatcher.Post(context.Background(), SaveTaskIDMessage{})
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("run id: got %q", id)
	}
	p.Dispatcher.Wait()

	var stored string
	if ok, _ := fake.Stored(host.AreaSession, KeyTaskID, &stored); !ok || stored != "222" {
		t.Fatalf("TASK_ID: got %q (ok=%v)", stored, ok)
	}
}

func TestDispatcher_RunDoesBoth(t *testing.T) {
	p, fake := testPilot(t)
	fake.AddTab(host.Tab{URL: taskURLA, Active: true})

	p.Dispatcher.Post(context.Background(), RunMessage{})
	p.Dispatcher.Wait()

	if ok, _ := fake.Stored(host.AreaSession, KeyTaskID, new(string)); !ok {
		t.Fatal("TASK_ID not stored")
	}
	if ok, _ := fake.Stored(host.AreaSession, KeyLastQAFeedback, new([]string)); !ok {
		t.Fatal("LAST_QA_FEEDBACK not stored")
	}
}

func TestDispatcher_FailureIsNotRelayed(t *testing.T) {
	p, fake := testPilot(t)

	// No task tabs: the routine fails, Post still returns immediately.
	p.Dispatcher.Post(context.Background(), SaveTaskIDMessage{})
	p.Dispatcher.Post(context.Background(), CaptureQAFeedbackMessage{})
	p.Dispatcher.Wait()

	if ok, _ := fake.Stored(host.AreaSession, KeyTaskID, new(string)); ok {
		t.Fatal("TASK_ID stored without a task tab")
	}
	if ok, _ := fake.Stored(host.AreaSession, KeyCapturedFeedback, new(bool)); !ok {
		t.Fatal("capture did not run")
	}
}

func TestDispatcher_RecordsOutcome(t *testing.T) {
	p, fake := testPilot(t)
	attachRunLog(t, p)
	ctx := kit.WithTransport(context.Background(), "http")

	failedID := p.Dispatcher.Post(ctx, SaveTaskIDMessage{})
	p.Dispatcher.Wait()
	fake.AddTab(host.Tab{URL: taskURLA, Active: true})
	okID := p.Dispatcher.Post(ctx, SaveTaskIDMessage{})
	p.Dispatcher.Wait()

	failed, err := p.Run(ctx, failedID)
	if err != nil {
		t.Fatalf("Run(%s): %v", failedID, err)
	}
	if failed.Status != audit.StatusError || failed.Action != "SAVE_TASK_ID" || failed.Transport != "http" || failed.Error == "" {
		t.Fatalf("failed run: got %+v", failed)
	}
	ok, _ := p.Run(ctx, okID)
	if ok.Status != audit.StatusSuccess {
		t.Fatalf("ok run: got %+v", ok)
	}

	runs, err := p.Runs(ctx, audit.Filter{Status: audit.StatusError})
	if err != nil || len(runs) != 1 || runs[0].RunID != failedID {
		t.Fatalf("Runs: got %+v, %v", runs, err)
	}
	if _, err := p.Run(ctx, "run_unknown"); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("unknown run: got %v, want ErrNotFound", err)
	}
}

func TestDispatcher_NoRunLog(t *testing.T) {
	p, _ := testPilot(t)
	if runs, err := p.Runs(context.Background(), audit.Filter{}); err != nil || runs != nil {
		t.Fatalf("Runs without log: got %v, %v", runs, err)
	}
	if _, err := p.Run(context.Background(), "run_x"); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("Run without log: got %v", err)
	}
}
