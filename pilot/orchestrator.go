// CLAUDE:SUMMARY Find-or-create, reload, wait-for-load, activate, focus and validate a tab for a target URL.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/result"
)

// Orchestrator brings a tab for a URL to a known-good state: loaded,
// active in its window, window focused.
type Orchestrator struct {
	host        host.Host
	logger      *slog.Logger
	loadTimeout time.Duration
}

// NewOrchestrator creates an Orchestrator. loadTimeout bounds the wait for a
// tab to finish loading.
func NewOrchestrator(h host.Host, loadTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{host: h, logger: logger, loadTimeout: loadTimeout}
}

// FindTabs queries tabs matching q. A failing query wraps ErrTabQuery; a
// query that matches nothing returns ErrNoTabs.
func (o *Orchestrator) FindTabs(ctx context.Context, q host.QueryInfo) ([]host.Tab, error) {
	r := result.Safe(func() ([]host.Tab, error) { return o.host.QueryTabs(ctx, q) })
	if !r.IsOk() {
		o.logger.Error("pilot: tab query failed", "url", q.URL, "error", r.Err())
		return nil, fmt.Errorf("%w: %v", ErrTabQuery, r.Err())
	}
	if len(r.Value()) == 0 {
		o.logger.Warn("pilot: no tabs found", "url", q.URL)
		return nil, ErrNoTabs
	}
	o.logger.Info("pilot: found existing tabs", "url", q.URL, "count", len(r.Value()))
	return r.Value(), nil
}

// FindOrCreateMainTab returns the tab at url and its window, after making
// sure the tab is freshly loaded, active, in the focused window, and still
// at exactly url. No cleanup is attempted on failure.
func (o *Orchestrator) FindOrCreateMainTab(ctx context.Context, url string) (host.Tab, host.Window, error) {
	tab, err := o.findOrCreate(ctx, url)
	if err != nil {
		return host.Tab{}, host.Window{}, err
	}
	if tab, err = o.confirmLoadingComplete(ctx, tab); err != nil {
		return host.Tab{}, host.Window{}, err
	}
	if tab, err = o.makeActive(ctx, tab); err != nil {
		return host.Tab{}, host.Window{}, err
	}
	win, err := o.focusWindow(ctx, tab)
	if err != nil {
		return host.Tab{}, host.Window{}, err
	}
	if err := o.validate(url, tab, win); err != nil {
		return host.Tab{}, host.Window{}, err
	}
	return tab, win, nil
}

func (o *Orchestrator) findOrCreate(ctx context.Context, url string) (host.Tab, error) {
	tabs, err := o.FindTabs(ctx, host.QueryInfo{URL: url})
	switch {
	case errors.Is(err, ErrNoTabs):
		return o.createTab(ctx, url)
	case err != nil:
		return host.Tab{}, err
	}

	if tabs[0].ID == "" {
		return o.createTab(ctx, url)
	}
	if err := o.refreshTab(ctx, tabs[0].ID); err != nil {
		return host.Tab{}, err
	}
	// The reload may change tab state; take a fresh handle.
	tabs, err = o.FindTabs(ctx, host.QueryInfo{URL: url})
	if err != nil {
		return host.Tab{}, err
	}
	if tabs[0].ID == "" {
		return host.Tab{}, fmt.Errorf("pilot: reloaded tab has no id: %s", url)
	}
	return tabs[0], nil
}

func (o *Orchestrator) refreshTab(ctx context.Context, tabID string) error {
	r := result.Do(func() error {
		return o.host.ReloadTab(ctx, tabID, host.ReloadProperties{BypassCache: true})
	})
	if !r.IsOk() {
		o.logger.Error("pilot: failed to refresh tab", "tab", tabID, "error", r.Err())
		return fmt.Errorf("pilot: reload %s: %w", tabID, r.Err())
	}
	o.logger.Info("pilot: refreshed tab", "tab", tabID)
	return nil
}

func (o *Orchestrator) createTab(ctx context.Context, url string) (host.Tab, error) {
	r := result.Safe(func() (host.Tab, error) { return o.host.CreateTab(ctx, url) })
	if !r.IsOk() {
		o.logger.Error("pilot: failed to create tab", "url", url, "error", r.Err())
		return host.Tab{}, fmt.Errorf("pilot: create tab: %w", r.Err())
	}
	if r.Value().ID == "" {
		o.logger.Error("pilot: created tab has no id", "url", url)
		return host.Tab{}, fmt.Errorf("pilot: created tab has no id: %s", url)
	}
	o.logger.Info("pilot: created new tab", "url", url, "tab", r.Value().ID)
	return r.Value(), nil
}

func (o *Orchestrator) confirmLoadingComplete(ctx context.Context, tab host.Tab) (host.Tab, error) {
	if tab.Status == host.StatusComplete {
		o.logger.Info("pilot: tab was ready", "url", tab.URL)
		return tab, nil
	}
	r := result.WithTimeout(ctx, o.loadTimeout, "wait for load timeout", func(ctx context.Context) (host.Tab, error) {
		return o.host.WaitTabComplete(ctx, tab.ID)
	})
	if !r.IsOk() {
		o.logger.Error("pilot: could not wait for tab to complete loading", "url", tab.URL, "error", r.Err())
		return host.Tab{}, fmt.Errorf("pilot: wait for load: %w", r.Err())
	}
	o.logger.Info("pilot: tab finished loading", "url", r.Value().URL)
	return r.Value(), nil
}

func (o *Orchestrator) makeActive(ctx context.Context, tab host.Tab) (host.Tab, error) {
	if tab.Active {
		o.logger.Info("pilot: tab was already active", "url", tab.URL)
		return tab, nil
	}
	active := true
	r := result.Safe(func() (host.Tab, error) {
		return o.host.UpdateTab(ctx, tab.ID, host.UpdateProperties{Active: &active})
	})
	if !r.IsOk() || !r.Value().Active {
		o.logger.Error("pilot: failed to bring tab to focus", "url", tab.URL, "error", r.Err())
		if r.IsOk() {
			return host.Tab{}, fmt.Errorf("pilot: tab %s did not become active", tab.ID)
		}
		return host.Tab{}, fmt.Errorf("pilot: activate tab: %w", r.Err())
	}
	o.logger.Info("pilot: brought tab to focus", "url", r.Value().URL)
	return r.Value(), nil
}

func (o *Orchestrator) focusWindow(ctx context.Context, tab host.Tab) (host.Window, error) {
	r := result.Safe(func() (host.Window, error) {
		return o.host.UpdateWindow(ctx, tab.WindowID, host.WindowUpdate{Focused: true})
	})
	if !r.IsOk() || !r.Value().Focused {
		o.logger.Error("pilot: failed to bring window to focus", "url", tab.URL, "window", tab.WindowID, "error", r.Err())
		if r.IsOk() {
			return host.Window{}, fmt.Errorf("pilot: window %d did not take focus", tab.WindowID)
		}
		return host.Window{}, fmt.Errorf("pilot: focus window: %w", r.Err())
	}
	o.logger.Info("pilot: brought window to focus", "url", tab.URL, "window", r.Value().ID)
	return r.Value(), nil
}

func (o *Orchestrator) validate(url string, tab host.Tab, win host.Window) error {
	if err := ValidateTabAndWindow(url, tab, win); err != nil {
		o.logger.Error("pilot: tab validation failed", "error", err)
		return err
	}
	o.logger.Info("pilot: tab validation successful", "url", url, "tab", tab.ID, "window", win.ID)
	return nil
}

// ValidateTabAndWindow checks, in order: both ids present, the tab belongs to
// the window, the tab finished loading, the tab URL equals url, the tab is
// active, the window is focused. The first mismatch is returned as a
// *ValidationError.
func ValidateTabAndWindow(url string, tab host.Tab, win host.Window) error {
	switch {
	case tab.ID == "":
		return &ValidationError{Field: "tab.id", Expected: "non-empty", Actual: `""`}
	case win.ID == 0:
		return &ValidationError{Field: "window.id", Expected: "non-zero", Actual: 0}
	case tab.WindowID != win.ID:
		return &ValidationError{Field: "tab.window_id", Expected: win.ID, Actual: tab.WindowID}
	case tab.Status != host.StatusComplete:
		return &ValidationError{Field: "tab.status", Expected: host.StatusComplete, Actual: tab.Status}
	case tab.URL != url:
		return &ValidationError{Field: "tab.url", Expected: url, Actual: tab.URL}
	case !tab.Active:
		return &ValidationError{Field: "tab.active", Expected: true, Actual: false}
	case !win.Focused:
		return &ValidationError{Field: "window.focused", Expected: true, Actual: false}
	}
	return nil
}
