package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tabpilot/dbopen"
)

func newLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestNewEntry(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ok := NewEntry("run_1", "run", "http", start, start.Add(1500*time.Millisecond), nil)
	if ok.Status != StatusSuccess || ok.DurationMs != 1500 || ok.Error != "" {
		t.Fatalf("success entry: got %+v", ok)
	}
	bad := NewEntry("run_2", "run", "cli", start, start, errors.New("no tabs"))
	if bad.Status != StatusError || bad.Error != "no tabs" {
		t.Fatalf("error entry: got %+v", bad)
	}
}

func TestRecordAndGet(t *testing.T) {
	l := newLogger(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := l.Record(ctx, NewEntry("run_1", "saveTaskId", "mcp", start, start.Add(time.Second), nil)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := l.Get(ctx, "run_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Action != "saveTaskId" || got.Transport != "mcp" || !got.StartedAt.Equal(start) || got.DurationMs != 1000 {
		t.Fatalf("entry: got %+v", got)
	}

	if err := l.Record(ctx, NewEntry("run_1", "saveTaskId", "mcp", start, start, errors.New("boom"))); err != nil {
		t.Fatalf("Record again: %v", err)
	}
	got, _ = l.Get(ctx, "run_1")
	if got.Status != StatusError || got.Error != "boom" {
		t.Fatalf("updated entry: got %+v", got)
	}

	if _, err := l.Get(ctx, "run_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got %v, want ErrNotFound", err)
	}
}

func TestRecent(t *testing.T) {
	l := newLogger(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	runs := []Entry{
		NewEntry("run_a", "run", "cli", base, base, nil),
		NewEntry("run_b", "captureQAFeedback", "http", base.Add(time.Minute), base.Add(time.Minute), errors.New("timed out")),
		NewEntry("run_c", "run", "http", base.Add(2*time.Minute), base.Add(2*time.Minute), nil),
	}
	for _, e := range runs {
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := l.Recent(ctx, Filter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 || all[0].RunID != "run_c" || all[2].RunID != "run_a" {
		t.Fatalf("order: got %+v", all)
	}

	onlyRun, _ := l.Recent(ctx, Filter{Action: "run"})
	if len(onlyRun) != 2 {
		t.Fatalf("action filter: got %d, want 2", len(onlyRun))
	}
	failed, _ := l.Recent(ctx, Filter{Status: StatusError})
	if len(failed) != 1 || failed[0].RunID != "run_b" {
		t.Fatalf("status filter: got %+v", failed)
	}
	limited, _ := l.Recent(ctx, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("limit: got %d, want 1", len(limited))
	}
}
