// CLAUDE:SUMMARY Capability interface over the browser host: tabs, windows, capture, downloads, storage, permissions, page documents.
// Package host defines the capability surface tabpilot needs from a browser.
// Production code binds it to Chrome over CDP (pilot/internal/browser); tests
// bind it to the in-memory fake in host/hosttest.
package host

import (
	"context"
	"encoding/json"
	"errors"
)

// TabStatus is the load state of a tab.
type TabStatus string

const (
	StatusLoading  TabStatus = "loading"
	StatusComplete TabStatus = "complete"
)

// Tab is a snapshot of a browser tab. An empty ID means the host did not
// assign one.
type Tab struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	Status   TabStatus `json:"status"`
	Active   bool      `json:"active"`
	WindowID int       `json:"window_id"`
}

// Window is a snapshot of a browser window. ID 0 means no identifier.
type Window struct {
	ID      int  `json:"id"`
	Focused bool `json:"focused"`
}

// QueryInfo filters QueryTabs. URL is a match pattern where "*" matches any
// run of characters; an empty URL matches every tab.
type QueryInfo struct {
	URL    string
	Active *bool
}

// UpdateProperties changes tab state. Nil fields are left untouched.
type UpdateProperties struct {
	Active *bool
}

// ReloadProperties controls ReloadTab.
type ReloadProperties struct {
	BypassCache bool
}

// WindowUpdate changes window state.
type WindowUpdate struct {
	Focused bool
}

// ConflictAction decides what Download does when the target file exists.
type ConflictAction string

const (
	ConflictUniquify  ConflictAction = "uniquify"
	ConflictOverwrite ConflictAction = "overwrite"
)

// DownloadOptions describes a file download. URL may be a data: URL.
type DownloadOptions struct {
	URL            string
	Filename       string
	ConflictAction ConflictAction
	SaveAs         bool
}

// StorageArea selects the key/value store.
type StorageArea string

const (
	// AreaSession lives as long as the host process.
	AreaSession StorageArea = "session"
	// AreaLocal survives restarts.
	AreaLocal StorageArea = "local"
)

// Permission names an elevated capability that needs user consent.
type Permission string

const (
	PermStorage   Permission = "storage"
	PermDownloads Permission = "downloads"
)

// Document is read access to the DOM of one tab.
type Document interface {
	URL(ctx context.Context) (string, error)
	// QueryHTML returns the inner HTML of the first element matching
	// selector. found is false when no element matches.
	QueryHTML(ctx context.Context, selector string) (markup string, found bool, err error)
	// QueryAllHTML returns the inner HTML of every element matching selector.
	QueryAllHTML(ctx context.Context, selector string) ([]string, error)
	// Click clicks the element with the given id. found is false when no
	// element has that id.
	Click(ctx context.Context, id string) (found bool, err error)
	// Screenshot renders the page body and returns a PNG data URL.
	Screenshot(ctx context.Context) (string, error)
}

// Host is the browser capability surface.
type Host interface {
	QueryTabs(ctx context.Context, q QueryInfo) ([]Tab, error)
	CreateTab(ctx context.Context, url string) (Tab, error)
	UpdateTab(ctx context.Context, tabID string, p UpdateProperties) (Tab, error)
	ReloadTab(ctx context.Context, tabID string, p ReloadProperties) error
	// WaitTabComplete blocks until the tab reports StatusComplete with a
	// non-blank URL, or ctx ends.
	WaitTabComplete(ctx context.Context, tabID string) (Tab, error)
	UpdateWindow(ctx context.Context, windowID int, u WindowUpdate) (Window, error)
	// CaptureVisibleTab returns a PNG data URL of the active tab of windowID.
	CaptureVisibleTab(ctx context.Context, windowID int) (string, error)
	// Download saves a file and returns a positive download ID.
	Download(ctx context.Context, opts DownloadOptions) (int, error)
	GetStorage(ctx context.Context, area StorageArea, keys ...string) (map[string]json.RawMessage, error)
	SetStorage(ctx context.Context, area StorageArea, items map[string]any) error
	ContainsPermissions(ctx context.Context, perms []Permission) (bool, error)
	// RequestPermissions asks the user for perms. It returns false without
	// error when the user declines.
	RequestPermissions(ctx context.Context, perms []Permission) (bool, error)
	Document(ctx context.Context, tabID string) (Document, error)
}

// ErrTabNotFound is returned when a tab ID does not name a live tab.
var ErrTabNotFound = errors.New("host: tab not found")

// ErrWindowNotFound is returned when a window ID does not name a live window.
var ErrWindowNotFound = errors.New("host: window not found")

// ParseStorageArea maps a name to a StorageArea.
func ParseStorageArea(s string) (StorageArea, error) {
	switch StorageArea(s) {
	case AreaSession, AreaLocal:
		return StorageArea(s), nil
	}
	return "", errors.New("host: unknown storage area " + s)
}
