// Package watch provides a "poll, detect change, debounce, act" loop. A
// Detector returns an opaque token; two different tokens mean something
// changed.
//
// Typical usage:
//
//	w := watch.New(detect, watch.Options{Interval: 2*time.Second, Debounce: 500*time.Millisecond})
//	go w.OnChange(ctx, func(ctx context.Context, token string) error { return react(token) })
package watch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Detector reads the current token.
type Detector func(ctx context.Context) (string, error)

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes during the window restart it. 0 fires immediately.
	Debounce time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a Detector and runs an action when the token changes. It is
// safe for concurrent use.
type Watcher struct {
	detect Detector
	opts   Options

	mu    sync.Mutex
	token string

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	fires   atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64 `json:"checks"`
	ChangesDetected int64 `json:"changes_detected"`
	Errors          int64 `json:"errors"`
	Fires           int64 `json:"fires"`
}

// New creates a Watcher. Call OnChange to start the loop.
func New(detect Detector, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{detect: detect, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Fires:           w.fires.Load(),
	}
}

// Token returns the last token the action accepted.
func (w *Watcher) Token() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token
}

// OnChange blocks until ctx is cancelled. The token seen at start is the
// baseline and does not fire. If action returns an error the token is not
// advanced, so the same change fires again on the next poll.
func (w *Watcher) OnChange(ctx context.Context, action func(ctx context.Context, token string) error) {
	log := w.opts.Logger

	if tok, err := w.detect(ctx); err != nil {
		log.Warn("watch: initial check failed", "error", err)
	} else {
		w.setToken(tok)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	var pending *string

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: check failed", "error", err)
				continue
			}
			if cur == w.Token() {
				// Reverted before the debounce window closed.
				if pending != nil && debounceTimer != nil {
					debounceTimer.Stop()
					debounceCh = nil
				}
				pending = nil
				continue
			}
			if pending != nil && *pending == cur {
				continue
			}
			w.changes.Add(1)
			pending = &cur

			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, cur)
				pending = nil
				continue
			}
			// Restart only when the pending token itself changed.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.opts.Debounce)
			debounceCh = debounceTimer.C
			log.Debug("watch: change detected, debouncing", "pending", cur)

		case <-debounceCh:
			debounceCh = nil
			if pending != nil {
				w.fire(ctx, action, *pending)
				pending = nil
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func(context.Context, string) error, tok string) {
	log := w.opts.Logger
	log.Info("watch: change", "old", w.Token(), "new", tok)
	if err := action(ctx, tok); err != nil {
		w.errors.Add(1)
		log.Error("watch: action failed", "error", err, "token", tok)
		return
	}
	w.fires.Add(1)
	w.setToken(tok)
}

func (w *Watcher) setToken(tok string) {
	w.mu.Lock()
	w.token = tok
	w.mu.Unlock()
}
