// Package hosttest provides an in-memory host.Host for tests.
package hosttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hazyhaar/tabpilot/host"
)

// PNG is the data URL returned by CaptureVisibleTab and Document.Screenshot
// unless overridden.
const PNG = "data:image/png;base64,iVBORw0KGgo="

// Fake is an in-memory browser. The zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	tabs    []*host.Tab
	docs    map[string]*Document
	windows map[int]*host.Window
	nextTab int

	storage   map[host.StorageArea]map[string]json.RawMessage
	granted   map[host.Permission]bool
	downloads []host.DownloadOptions
	calls     []string
	errs      map[string]error

	// CreateStatus is the status of tabs returned by CreateTab. Default loading.
	CreateStatus host.TabStatus
	// ReloadStatus is the status a tab takes after ReloadTab. Default loading.
	ReloadStatus host.TabStatus
	// NeverComplete makes WaitTabComplete and CaptureVisibleTab block until ctx ends.
	NeverComplete bool
	NeverCapture  bool
	// Redirects rewrites a tab URL when its load completes.
	Redirects map[string]string
	// IgnoreActivate makes UpdateTab report the tab as still inactive.
	IgnoreActivate bool
	// IgnoreFocus makes UpdateWindow report the window as unfocused.
	IgnoreFocus bool
	// Grant is the answer RequestPermissions gives when prompting.
	Grant   bool
	Prompts int
	// CaptureData overrides the capture result.
	CaptureData string
}

// New returns a Fake with one unfocused window (ID 1).
func New() *Fake {
	return &Fake{
		docs:         make(map[string]*Document),
		windows:      map[int]*host.Window{1: {ID: 1}},
		storage:      make(map[host.StorageArea]map[string]json.RawMessage),
		granted:      make(map[host.Permission]bool),
		errs:         make(map[string]error),
		CreateStatus: host.StatusLoading,
		ReloadStatus: host.StatusLoading,
		CaptureData:  PNG,
	}
}

var _ host.Host = (*Fake)(nil)

// FailOn makes method return err on every call until cleared with nil.
func (f *Fake) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// AddWindow registers a window.
func (f *Fake) AddWindow(w host.Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[w.ID] = &w
}

// AddTab registers a tab with a blank document and returns its ID. An empty
// tab.ID is replaced with a generated one; the window is created if missing.
func (f *Fake) AddTab(tab host.Tab) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addTabLocked(tab)
}

func (f *Fake) addTabLocked(tab host.Tab) string {
	if tab.ID == "" {
		f.nextTab++
		tab.ID = fmt.Sprintf("tab-%d", f.nextTab)
	}
	if tab.WindowID == 0 {
		tab.WindowID = 1
	}
	if _, ok := f.windows[tab.WindowID]; !ok {
		f.windows[tab.WindowID] = &host.Window{ID: tab.WindowID}
	}
	t := tab
	f.tabs = append(f.tabs, &t)
	f.docs[t.ID] = &Document{fake: f, tabID: t.ID, HTML: map[string][]string{}}
	return t.ID
}

// Doc returns the document of a tab so tests can seed DOM text.
func (f *Fake) Doc(tabID string) *Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[tabID]
}

// Tab returns the current state of a tab.
func (f *Fake) Tab(tabID string) (host.Tab, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.findLocked(tabID)
	if t == nil {
		return host.Tab{}, false
	}
	return *t, true
}

// Tabs returns a copy of every tab in creation order.
func (f *Fake) Tabs() []host.Tab {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]host.Tab, 0, len(f.tabs))
	for _, t := range f.tabs {
		out = append(out, *t)
	}
	return out
}

// Calls returns the host methods invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts invocations of method.
func (f *Fake) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

// Downloads returns the downloads requested so far.
func (f *Fake) Downloads() []host.DownloadOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]host.DownloadOptions(nil), f.downloads...)
}

// GrantPermission marks perm as already granted.
func (f *Fake) GrantPermission(perm host.Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted[perm] = true
}

// Stored decodes a stored value into v. ok is false when the key is absent.
func (f *Fake) Stored(area host.StorageArea, key string, v any) (bool, error) {
	f.mu.Lock()
	raw, ok := f.storage[area][key]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (f *Fake) enter(method string) error {
	f.calls = append(f.calls, method)
	return f.errs[method]
}

func (f *Fake) findLocked(tabID string) *host.Tab {
	for _, t := range f.tabs {
		if t.ID == tabID {
			return t
		}
	}
	return nil
}

func (f *Fake) QueryTabs(_ context.Context, q host.QueryInfo) ([]host.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("QueryTabs"); err != nil {
		return nil, err
	}
	var out []host.Tab
	for _, t := range f.tabs {
		if q.Matches(*t) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *Fake) CreateTab(_ context.Context, url string) (host.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateTab"); err != nil {
		return host.Tab{}, err
	}
	id := f.addTabLocked(host.Tab{URL: url, Status: f.CreateStatus, WindowID: 1})
	return *f.findLocked(id), nil
}

func (f *Fake) UpdateTab(_ context.Context, tabID string, p host.UpdateProperties) (host.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateTab"); err != nil {
		return host.Tab{}, err
	}
	t := f.findLocked(tabID)
	if t == nil {
		return host.Tab{}, host.ErrTabNotFound
	}
	if p.Active != nil && *p.Active && !f.IgnoreActivate {
		for _, o := range f.tabs {
			if o.WindowID == t.WindowID {
				o.Active = false
			}
		}
		t.Active = true
	}
	return *t, nil
}

func (f *Fake) ReloadTab(_ context.Context, tabID string, _ host.ReloadProperties) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ReloadTab"); err != nil {
		return err
	}
	t := f.findLocked(tabID)
	if t == nil {
		return host.ErrTabNotFound
	}
	t.Status = f.ReloadStatus
	return nil
}

func (f *Fake) WaitTabComplete(ctx context.Context, tabID string) (host.Tab, error) {
	f.mu.Lock()
	if err := f.enter("WaitTabComplete"); err != nil {
		f.mu.Unlock()
		return host.Tab{}, err
	}
	never := f.NeverComplete
	f.mu.Unlock()

	if never {
		<-ctx.Done()
		return host.Tab{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.findLocked(tabID)
	if t == nil {
		return host.Tab{}, host.ErrTabNotFound
	}
	t.Status = host.StatusComplete
	if to, ok := f.Redirects[t.URL]; ok {
		t.URL = to
	}
	return *t, nil
}

func (f *Fake) UpdateWindow(_ context.Context, windowID int, u host.WindowUpdate) (host.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateWindow"); err != nil {
		return host.Window{}, err
	}
	w, ok := f.windows[windowID]
	if !ok {
		return host.Window{}, host.ErrWindowNotFound
	}
	if u.Focused && !f.IgnoreFocus {
		for _, o := range f.windows {
			o.Focused = false
		}
		w.Focused = true
	}
	return *w, nil
}

func (f *Fake) CaptureVisibleTab(ctx context.Context, windowID int) (string, error) {
	f.mu.Lock()
	if err := f.enter("CaptureVisibleTab"); err != nil {
		f.mu.Unlock()
		return "", err
	}
	never, data := f.NeverCapture, f.CaptureData
	_, ok := f.windows[windowID]
	f.mu.Unlock()

	if never {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if !ok {
		return "", host.ErrWindowNotFound
	}
	return data, nil
}

func (f *Fake) Download(_ context.Context, opts host.DownloadOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Download"); err != nil {
		return 0, err
	}
	f.downloads = append(f.downloads, opts)
	return len(f.downloads), nil
}

func (f *Fake) GetStorage(_ context.Context, area host.StorageArea, keys ...string) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetStorage"); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	for _, k := range keys {
		if v, ok := f.storage[area][k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *Fake) SetStorage(_ context.Context, area host.StorageArea, items map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SetStorage"); err != nil {
		return err
	}
	if f.storage[area] == nil {
		f.storage[area] = make(map[string]json.RawMessage)
	}
	for k, v := range items {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		f.storage[area][k] = raw
	}
	return nil
}

func (f *Fake) ContainsPermissions(_ context.Context, perms []host.Permission) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ContainsPermissions"); err != nil {
		return false, err
	}
	return f.containsLocked(perms), nil
}

func (f *Fake) containsLocked(perms []host.Permission) bool {
	for _, p := range perms {
		if !f.granted[p] {
			return false
		}
	}
	return true
}

func (f *Fake) RequestPermissions(_ context.Context, perms []host.Permission) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RequestPermissions"); err != nil {
		return false, err
	}
	if f.containsLocked(perms) {
		return true, nil
	}
	f.Prompts++
	if !f.Grant {
		return false, nil
	}
	for _, p := range perms {
		f.granted[p] = true
	}
	return true, nil
}

func (f *Fake) Document(_ context.Context, tabID string) (host.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Document"); err != nil {
		return nil, err
	}
	d, ok := f.docs[tabID]
	if !ok {
		return nil, host.ErrTabNotFound
	}
	return d, nil
}
