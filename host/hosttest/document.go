package hosttest

import (
	"context"
	"sync"

	"github.com/hazyhaar/tabpilot/host"
)

// Document is an in-memory page DOM keyed by CSS selector. Its URL is the
// URL of the owning tab.
type Document struct {
	fake  *Fake
	tabID string

	mu sync.Mutex
	// HTML maps a selector to the inner HTML of every element it matches.
	HTML map[string][]string
	// IDs lists element ids that Click can find.
	IDs     []string
	Clicked []string
	// ScreenshotErr fails Screenshot when set.
	ScreenshotErr error
}

var _ host.Document = (*Document)(nil)

// SetHTML seeds the inner HTML of the elements matching selector.
func (d *Document) SetHTML(selector string, markup ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.HTML[selector] = markup
}

func (d *Document) URL(context.Context) (string, error) {
	t, ok := d.fake.Tab(d.tabID)
	if !ok {
		return "", host.ErrTabNotFound
	}
	return t.URL, nil
}

func (d *Document) QueryHTML(_ context.Context, selector string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	texts := d.HTML[selector]
	if len(texts) == 0 {
		return "", false, nil
	}
	return texts[0], true, nil
}

func (d *Document) QueryAllHTML(_ context.Context, selector string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.HTML[selector]...), nil
}

func (d *Document) Click(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, known := range d.IDs {
		if known == id {
			d.Clicked = append(d.Clicked, id)
			return true, nil
		}
	}
	return false, nil
}

func (d *Document) Screenshot(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ScreenshotErr != nil {
		return "", d.ScreenshotErr
	}
	return PNG, nil
}
