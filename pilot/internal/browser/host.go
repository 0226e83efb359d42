// CLAUDE:SUMMARY host.Host over Rod: tab queries, create/activate/reload, window focus, screenshots, downloads, storage, permissions.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/pilot/internal/store"
)

// Host implements host.Host on top of a Manager and a Store.
//
// CDP has no notion of an active tab or a focused window, so Host tracks both
// itself: UpdateTab and CreateTab mark a target active within its window and
// UpdateWindow marks the focused window.
type Host struct {
	mgr         *Manager
	store       *store.Store
	prompter    Prompter
	downloadDir string
	logger      *slog.Logger

	mu      sync.Mutex
	active  map[int]proto.TargetTargetID
	focused int
}

var _ host.Host = (*Host)(nil)

// NewHost binds a started Manager and a Store. downloadDir receives downloads.
func NewHost(mgr *Manager, st *store.Store, prompter Prompter, downloadDir string, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	if prompter == nil {
		prompter = StaticPrompter{}
	}
	return &Host{
		mgr:         mgr,
		store:       st,
		prompter:    prompter,
		downloadDir: downloadDir,
		logger:      logger,
		active:      make(map[int]proto.TargetTargetID),
	}
}

func (h *Host) browser() (*rod.Browser, error) {
	b := h.mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	return b, nil
}

func (h *Host) page(ctx context.Context, tabID string) (*rod.Page, error) {
	b, err := h.browser()
	if err != nil {
		return nil, err
	}
	p, err := b.PageFromTarget(proto.TargetTargetID(tabID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", host.ErrTabNotFound, tabID, err)
	}
	return p.Context(ctx), nil
}

func (h *Host) windowOf(b *rod.Browser, id proto.TargetTargetID) (int, error) {
	res, err := proto.BrowserGetWindowForTarget{TargetID: id}.Call(b)
	if err != nil {
		return 0, fmt.Errorf("browser: window for %s: %w", id, err)
	}
	return int(res.WindowID), nil
}

func (h *Host) tabOf(ctx context.Context, b *rod.Browser, p *rod.Page) (host.Tab, error) {
	p = p.Context(ctx)
	info, err := p.Info()
	if err != nil {
		return host.Tab{}, fmt.Errorf("browser: target info: %w", err)
	}
	win, err := h.windowOf(b, p.TargetID)
	if err != nil {
		return host.Tab{}, err
	}

	status := host.StatusLoading
	// Eval fails while a navigation swaps the execution context; that is loading.
	if res, err := p.Eval(`() => document.readyState`); err == nil && res.Value.Str() == "complete" {
		status = host.StatusComplete
	}

	h.mu.Lock()
	active := h.active[win] == p.TargetID
	h.mu.Unlock()

	return host.Tab{
		ID:       string(p.TargetID),
		URL:      info.URL,
		Status:   status,
		Active:   active,
		WindowID: win,
	}, nil
}

func (h *Host) markActive(win int, id proto.TargetTargetID) {
	h.mu.Lock()
	h.active[win] = id
	h.mu.Unlock()
}

func (h *Host) QueryTabs(ctx context.Context, q host.QueryInfo) ([]host.Tab, error) {
	b, err := h.browser()
	if err != nil {
		return nil, err
	}
	pages, err := b.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	var tabs []host.Tab
	for _, p := range pages {
		t, err := h.tabOf(ctx, b, p)
		if err != nil {
			// Targets can close between listing and inspection.
			h.logger.Debug("browser: skip target", "target", p.TargetID, "error", err)
			continue
		}
		if q.Matches(t) {
			tabs = append(tabs, t)
		}
	}
	return tabs, nil
}

func (h *Host) CreateTab(ctx context.Context, url string) (host.Tab, error) {
	b, err := h.browser()
	if err != nil {
		return host.Tab{}, err
	}

	var p *rod.Page
	if h.mgr.cfg.Stealth {
		p, err = stealth.Page(b)
		if err == nil {
			err = p.Context(ctx).Navigate(url)
		}
	} else {
		p, err = b.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	}
	if err != nil {
		return host.Tab{}, fmt.Errorf("browser: create tab %s: %w", url, err)
	}

	// A new foreground tab is the active one in its window.
	if win, err := h.windowOf(b, p.TargetID); err == nil {
		h.markActive(win, p.TargetID)
	}
	return h.tabOf(ctx, b, p)
}

func (h *Host) UpdateTab(ctx context.Context, tabID string, props host.UpdateProperties) (host.Tab, error) {
	b, err := h.browser()
	if err != nil {
		return host.Tab{}, err
	}
	p, err := h.page(ctx, tabID)
	if err != nil {
		return host.Tab{}, err
	}
	if props.Active != nil && *props.Active {
		if _, err := p.Activate(); err != nil {
			return host.Tab{}, fmt.Errorf("browser: activate %s: %w", tabID, err)
		}
		win, err := h.windowOf(b, p.TargetID)
		if err != nil {
			return host.Tab{}, err
		}
		h.markActive(win, p.TargetID)
	}
	return h.tabOf(ctx, b, p)
}

func (h *Host) ReloadTab(ctx context.Context, tabID string, props host.ReloadProperties) error {
	p, err := h.page(ctx, tabID)
	if err != nil {
		return err
	}
	if err := (proto.PageReload{IgnoreCache: props.BypassCache}).Call(p); err != nil {
		return fmt.Errorf("browser: reload %s: %w", tabID, err)
	}
	return nil
}

func (h *Host) WaitTabComplete(ctx context.Context, tabID string) (host.Tab, error) {
	b, err := h.browser()
	if err != nil {
		return host.Tab{}, err
	}
	p, err := h.page(ctx, tabID)
	if err != nil {
		return host.Tab{}, err
	}
	if err := p.WaitLoad(); err != nil {
		return host.Tab{}, fmt.Errorf("browser: wait load %s: %w", tabID, err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		t, err := h.tabOf(ctx, b, p)
		if err == nil && t.Status == host.StatusComplete && t.URL != "" && t.URL != "about:blank" {
			return t, nil
		}
		select {
		case <-ctx.Done():
			return host.Tab{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *Host) UpdateWindow(ctx context.Context, windowID int, u host.WindowUpdate) (host.Window, error) {
	b, err := h.browser()
	if err != nil {
		return host.Window{}, err
	}
	if !u.Focused {
		h.mu.Lock()
		focused := h.focused == windowID
		h.mu.Unlock()
		return host.Window{ID: windowID, Focused: focused}, nil
	}

	err = proto.BrowserSetWindowBounds{
		WindowID: proto.BrowserWindowID(windowID),
		Bounds:   &proto.BrowserBounds{WindowState: proto.BrowserWindowStateNormal},
	}.Call(b.Context(ctx))
	if err != nil {
		return host.Window{}, fmt.Errorf("%w: %d: %v", host.ErrWindowNotFound, windowID, err)
	}

	h.mu.Lock()
	target, ok := h.active[windowID]
	h.mu.Unlock()
	if ok {
		if p, err := h.page(ctx, string(target)); err == nil {
			if err := (proto.PageBringToFront{}).Call(p); err != nil {
				return host.Window{}, fmt.Errorf("browser: bring to front: %w", err)
			}
		}
	}

	h.mu.Lock()
	h.focused = windowID
	h.mu.Unlock()
	return host.Window{ID: windowID, Focused: true}, nil
}

func (h *Host) CaptureVisibleTab(ctx context.Context, windowID int) (string, error) {
	h.mu.Lock()
	target, ok := h.active[windowID]
	h.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("browser: no active tab in window %d", windowID)
	}
	p, err := h.page(ctx, string(target))
	if err != nil {
		return "", err
	}
	data, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return "", fmt.Errorf("browser: screenshot: %w", err)
	}
	return EncodeDataURL("image/png", data), nil
}

func (h *Host) Download(ctx context.Context, opts host.DownloadOptions) (int, error) {
	_, data, err := DecodeDataURL(opts.URL)
	if err != nil {
		return 0, err
	}

	name := opts.Filename
	if opts.SaveAs {
		name, err = h.prompter.SaveAs(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("browser: save as: %w", err)
		}
	}
	path, err := safeJoin(h.downloadDir, name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(h.downloadDir, 0o755); err != nil {
		return 0, fmt.Errorf("browser: download dir: %w", err)
	}
	written := path
	if opts.ConflictAction == host.ConflictOverwrite {
		err = os.WriteFile(path, data, 0o644)
	} else {
		written, err = writeUnique(path, data)
	}
	if err != nil {
		return 0, fmt.Errorf("browser: write %s: %w", path, err)
	}
	path = written
	return h.store.RecordDownload(ctx, name, path, int64(len(data)))
}

func (h *Host) GetStorage(ctx context.Context, area host.StorageArea, keys ...string) (map[string]json.RawMessage, error) {
	return h.store.Get(ctx, area, keys...)
}

func (h *Host) SetStorage(ctx context.Context, area host.StorageArea, items map[string]any) error {
	return h.store.Set(ctx, area, items)
}

func (h *Host) ContainsPermissions(ctx context.Context, perms []host.Permission) (bool, error) {
	return h.store.HasPermissions(ctx, perms)
}

func (h *Host) RequestPermissions(ctx context.Context, perms []host.Permission) (bool, error) {
	ok, err := h.store.HasPermissions(ctx, perms)
	if err != nil || ok {
		return ok, err
	}
	granted, err := h.prompter.ConfirmPermissions(ctx, perms)
	if err != nil || !granted {
		return false, err
	}
	if err := h.store.GrantPermissions(ctx, perms); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Host) Document(ctx context.Context, tabID string) (host.Document, error) {
	p, err := h.page(ctx, tabID)
	if err != nil {
		return nil, err
	}
	return &document{page: p}, nil
}
