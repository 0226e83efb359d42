package pilot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/dbopen"
	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/host/hosttest"
)

const (
	feedbackURL = "https://www.multimango.com/qa-feedback"
	taskURLA    = "https://www.multimango.com/tasks/111-text-to-image"
	taskURLB    = "https://www.multimango.com/tasks/222-image-compare"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPilot(t *testing.T) (*Pilot, *hosttest.Fake) {
	t.Helper()
	fake := hosttest.New()
	cfg := DefaultConfig()
	cfg.Timeouts.PageLoad = 200 * time.Millisecond
	cfg.Timeouts.Screenshot = 200 * time.Millisecond
	p := New(cfg, fake, discardLogger())
	t.Cleanup(p.Dispatcher.Close)
	return p, fake
}

// attachRunLog gives p an in-memory run log.
func attachRunLog(t *testing.T, p *Pilot) *audit.Logger {
	t.Helper()
	l, err := audit.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatalf("audit.New: %v", err)
	}
	p.AttachRunLog(l)
	return l
}

// seedFeedbackDoc fills the feedback page of tabID with a valid rating widget.
func seedFeedbackDoc(fake *hosttest.Fake, tabID string) {
	doc := fake.Doc(tabID)
	doc.SetHTML(".text-2xl.font-semibold", "12", "5", "2", "1")
	doc.SetHTML(".text-emerald-700.font-bold", "4.6")
}

func TestPilot_SendTabMessage(t *testing.T) {
	p, fake := testPilot(t)
	id := fake.AddTab(host.Tab{URL: feedbackURL, Status: host.StatusComplete})
	seedFeedbackDoc(fake, id)

	resp, err := p.SendTabMessage(context.Background(), id, ReadFullRatings{})
	if err != nil {
		t.Fatalf("SendTabMessage: %v", err)
	}
	r, ok := resp.Data.(Ratings)
	if !resp.OK() || !ok {
		t.Fatalf("response: got %+v, want success with ratings", resp)
	}
	if r.Exceptional != 12 || r.MajorIssues != 1 || r.Average != 4.6 {
		t.Fatalf("ratings: got %+v", r)
	}
}

func TestPilot_SendTabMessageUnknownTab(t *testing.T) {
	p, _ := testPilot(t)
	if _, err := p.SendTabMessage(context.Background(), "nope", ReadFullRatings{}); err == nil {
		t.Fatal("expected error for unknown tab")
	}
}

func TestPilot_ReadRatings(t *testing.T) {
	p, fake := testPilot(t)
	id := fake.AddTab(host.Tab{URL: feedbackURL, Status: host.StatusComplete, Active: true})
	seedFeedbackDoc(fake, id)

	r, err := p.ReadRatings(context.Background())
	if err != nil {
		t.Fatalf("ReadRatings: %v", err)
	}
	if r.MeetsExpectations != 5 || r.SomeIssues != 2 {
		t.Fatalf("ratings: got %+v", r)
	}
}

func TestPilot_UpdateSettingsDeniedShowsNotice(t *testing.T) {
	p, fake := testPilot(t)
	fake.Grant = false

	on := true
	if _, err := p.UpdateSettings(context.Background(), Patch{RunOnClick: &on}); err == nil {
		t.Fatal("expected permission error")
	}
	n := p.Status.Snapshot()
	if !n.Visible || n.Kind != NoticeError {
		t.Fatalf("notice: got %+v, want visible error", n)
	}
}

func TestPilot_DownloadsWithoutStore(t *testing.T) {
	p, _ := testPilot(t)
	d, err := p.Downloads(context.Background(), 10)
	if err != nil || d != nil {
		t.Fatalf("Downloads: got %v, %v; want nil, nil", d, err)
	}
}

func TestOpenStore_BusyTimeout(t *testing.T) {
	cfg := DefaultConfig().Storage
	cfg.Path = filepath.Join(t.TempDir(), "tabpilot.db")
	cfg.BusyTimeout = 1500 * time.Millisecond

	st, err := openStore(cfg, discardLogger())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.Close()

	var ms int
	if err := st.Local.QueryRow("PRAGMA busy_timeout").Scan(&ms); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if ms != 1500 {
		t.Fatalf("busy_timeout: got %d, want 1500", ms)
	}
}
