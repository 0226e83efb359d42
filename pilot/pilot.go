// CLAUDE:SUMMARY Pilot assembles the orchestrator, settings, actions, content responder, dispatcher and status notice over one host.
// Package pilot automates the task website through a browser host: it brings
// pages to front, extracts task IDs, captures the feedback page, reads rating
// widgets and keeps small session and settings records.
//
// Usage:
//
//	p, err := pilot.Open(ctx, cfg, pilot.StaticPrompter{}, logger)
//	defer p.Close()
//	p.Dispatcher.Post(ctx, pilot.RunMessage{})
package pilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/dbopen"
	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/pilot/internal/browser"
	"github.com/hazyhaar/tabpilot/pilot/internal/store"
	"github.com/hazyhaar/tabpilot/trace"
)

// Prompter asks the user for permission consent and save-as file names.
type Prompter = browser.Prompter

// StaticPrompter grants only the listed permissions and never renames files.
type StaticPrompter = browser.StaticPrompter

// Download is a recorded file download.
type Download = store.Download

// RunEntry is the recorded outcome of a dispatched run.
type RunEntry = audit.Entry

// Pilot is a ready-to-use tabpilot instance.
type Pilot struct {
	Config       *Config
	Host         host.Host
	Orchestrator *Orchestrator
	Settings     *SettingsService
	Content      *ContentResponder
	Actions      *Actions
	Dispatcher   *Dispatcher
	Status       *StatusNotice

	logger  *slog.Logger
	closers []func() error
	store   *store.Store
	runs    *audit.Logger
}

// New assembles a Pilot over an existing host. A nil cfg uses DefaultConfig.
func New(cfg *Config, h host.Host, logger *slog.Logger) *Pilot {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	orch := NewOrchestrator(h, cfg.Timeouts.PageLoad, logger)
	settings := NewSettingsService(h, logger)
	content := NewContentResponder(cfg.Pages, cfg.Selectors, logger)
	actions := NewActions(h, orch, settings, content, cfg, logger)
	return &Pilot{
		Config:       cfg,
		Host:         h,
		Orchestrator: orch,
		Settings:     settings,
		Content:      content,
		Actions:      actions,
		Dispatcher:   NewDispatcher(actions, logger),
		Status:       &StatusNotice{},
		logger:       logger,
	}
}

// Open starts or attaches to Chrome, opens the storage database and returns
// a Pilot bound to them.
func Open(ctx context.Context, cfg *Config, prompter Prompter, logger *slog.Logger) (*Pilot, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	st, err := openStore(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("pilot: open store: %w", err)
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:   cfg.Browser.Remote,
		Headless:    cfg.Browser.Headless,
		Stealth:     cfg.Browser.Stealth,
		UserDataDir: cfg.Browser.UserDataDir,
		Logger:      logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("pilot: start browser: %w", err)
	}

	runs, err := audit.New(st.Local)
	if err != nil {
		mgr.Close()
		st.Close()
		return nil, fmt.Errorf("pilot: open run log: %w", err)
	}

	h := browser.NewHost(mgr, st, prompter, cfg.Storage.DownloadDir, logger)
	p := New(cfg, h, logger)
	p.AttachRunLog(runs)
	p.store = st
	p.closers = []func() error{mgr.Close, st.Close}
	return p, nil
}

// Close stops dispatched routines, then releases the browser and database.
func (p *Pilot) Close() error {
	p.Dispatcher.Close()
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendTabMessage delivers a content request to the page in tabID.
func (p *Pilot) SendTabMessage(ctx context.Context, tabID string, req ContentRequest) (Response, error) {
	doc, err := p.Host.Document(ctx, tabID)
	if err != nil {
		return Response{}, fmt.Errorf("pilot: open document %s: %w", tabID, err)
	}
	return p.Content.Respond(ctx, doc, req), nil
}

// ReadRatings brings the feedback page to front and reads its full ratings.
func (p *Pilot) ReadRatings(ctx context.Context) (Ratings, error) {
	tab, _, err := p.Orchestrator.FindOrCreateMainTab(ctx, p.Config.Pages.FeedbackURL)
	if err != nil {
		return Ratings{}, err
	}
	resp, err := p.SendTabMessage(ctx, tab.ID, ReadFullRatings{})
	if err != nil {
		return Ratings{}, err
	}
	r, ok := resp.Data.(Ratings)
	if !resp.OK() || !ok {
		return Ratings{}, fmt.Errorf("pilot: read ratings: %s", resp.Status)
	}
	return r, nil
}

// Session reads the session record using the current settings.
func (p *Pilot) Session(ctx context.Context) (SessionSnapshot, error) {
	settings, err := p.Settings.Load(ctx)
	if err != nil {
		return SessionSnapshot{}, err
	}
	return ReadSession(ctx, p.Host, settings)
}

// Downloads lists recorded downloads, newest first. It is empty for a Pilot
// built with New.
func (p *Pilot) Downloads(ctx context.Context, limit int) ([]Download, error) {
	if p.store == nil {
		return nil, nil
	}
	return p.store.Downloads(ctx, limit)
}

// AttachRunLog records every dispatched run in l. Call it before the first Post.
func (p *Pilot) AttachRunLog(l *audit.Logger) {
	p.runs = l
	p.Dispatcher.SetRecorder(l)
}

// Runs lists recorded runs, newest first. It is empty without a run log.
func (p *Pilot) Runs(ctx context.Context, f audit.Filter) ([]RunEntry, error) {
	if p.runs == nil {
		return nil, nil
	}
	return p.runs.Recent(ctx, f)
}

// Run returns the recorded outcome of runID. It wraps audit.ErrNotFound
// while the run is still in flight.
func (p *Pilot) Run(ctx context.Context, runID string) (RunEntry, error) {
	if p.runs == nil {
		return RunEntry{}, audit.ErrNotFound
	}
	return p.runs.Get(ctx, runID)
}

// UpdateSettings applies a patch and reflects permission and prerequisite
// failures in the status notice.
func (p *Pilot) UpdateSettings(ctx context.Context, patch Patch) (Settings, error) {
	s, err := p.Settings.Update(ctx, patch)
	switch {
	case errors.Is(err, ErrPermissionDenied):
		p.Status.Show(NoticeError, "Permission denied", "Could not get permission to save the setting.", 0)
	case errors.Is(err, ErrPrerequisite):
		p.Status.Show(NoticeError, "Could not update value", err.Error(), 5*time.Second)
	case err != nil:
		p.Status.Show(NoticeError, "Could not save settings", err.Error(), 5*time.Second)
	}
	return s, err
}

// openStore opens the settings and downloads databases, traced when
// TraceSQL is set.
func openStore(cfg StorageConfig, logger *slog.Logger) (*store.Store, error) {
	opts := []dbopen.Option{dbopen.WithBusyTimeout(int(cfg.BusyTimeout / time.Millisecond))}
	if cfg.TraceSQL {
		trace.SetLogger(logger)
		opts = append(opts, dbopen.WithDriver(trace.DriverName))
	}
	return store.Open(cfg.Path, opts...)
}
