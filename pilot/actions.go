// CLAUDE:SUMMARY Action routines: save the task ID from the best task tab, capture and persist the QA feedback page, run both.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/result"
	"github.com/hazyhaar/tabpilot/taskid"
)

// FeedbackCapture is the outcome of CaptureAndSaveQAFeedback. DownloadID is 0
// when no download was made.
type FeedbackCapture struct {
	DataURL    string    `json:"dataUrl"`
	CapturedAt time.Time `json:"capturedAt"`
	DownloadID int       `json:"downloadId,omitempty"`
}

// Actions implements the action routines started by the dispatcher.
type Actions struct {
	host         host.Host
	orchestrator *Orchestrator
	settings     *SettingsService
	content      *ContentResponder
	pages        PagesConfig
	timeouts     TimeoutConfig
	logger       *slog.Logger
	now          func() time.Time
}

// NewActions creates Actions over the given components.
func NewActions(h host.Host, o *Orchestrator, s *SettingsService, c *ContentResponder, cfg *Config, logger *slog.Logger) *Actions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actions{
		host:         h,
		orchestrator: o,
		settings:     s,
		content:      c,
		pages:        cfg.Pages,
		timeouts:     cfg.Timeouts,
		logger:       logger,
		now:          time.Now,
	}
}

type rankedTask struct {
	id    string
	url   string
	score int
}

func rankTab(tab host.Tab) rankedTask {
	if tab.ID == "" || tab.URL == "" {
		return rankedTask{score: -1}
	}
	id, _ := taskid.Extract(tab.URL)
	score := 0
	if tab.Active {
		score = 1
	}
	return rankedTask{id: id, url: tab.URL, score: score}
}

// pickTask chooses the task among candidate tabs: active tabs first, tabs
// without an extractable ID dropped, ties kept in query order.
func pickTask(tabs []host.Tab) (rankedTask, bool) {
	ranked := make([]rankedTask, 0, len(tabs))
	for _, t := range tabs {
		if r := rankTab(t); r.id != "" {
			ranked = append(ranked, r)
		}
	}
	if len(ranked) == 0 {
		return rankedTask{}, false
	}
	slices.SortStableFunc(ranked, func(a, b rankedTask) int { return b.score - a.score })
	return ranked[0], true
}

// chooseTask applies the pick-first setting or the ranking to the candidate
// task tabs.
func chooseTask(settings Settings, tabs []host.Tab) (rankedTask, error) {
	if !settings.TasksAlwaysPickFirst {
		task, ok := pickTask(tabs)
		if !ok {
			return rankedTask{}, ErrNoTaskID
		}
		return task, nil
	}
	if len(tabs) == 0 {
		return rankedTask{}, ErrNoTabs
	}
	first := tabs[0]
	if first.URL == "" {
		return rankedTask{}, ErrNoTaskURL
	}
	id, ok := taskid.Extract(first.URL)
	if !ok {
		return rankedTask{}, ErrNoTaskID
	}
	return rankedTask{id: id, url: first.URL}, nil
}

// SaveTaskID finds the task tab, extracts its task ID and stores it in the
// session record with the found flag. The first failed write aborts.
func (a *Actions) SaveTaskID(ctx context.Context) (string, error) {
	settings, err := a.settings.Load(ctx)
	if err != nil {
		return "", err
	}
	tabs, err := a.orchestrator.FindTabs(ctx, host.QueryInfo{URL: a.pages.TasksURL})
	if err != nil {
		return "", err
	}

	task, err := chooseTask(settings, tabs)
	if err != nil {
		a.logger.Error("pilot: no task id to save", "candidates", len(tabs), "pick_first", settings.TasksAlwaysPickFirst, "error", err)
		return "", err
	}
	a.logger.Info("pilot: picked task tab", "url", task.url, "score", task.score, "pick_first", settings.TasksAlwaysPickFirst)

	a.logger.Info("pilot: found task id", "task_id", task.id)
	if err := saveItem(ctx, a.host, host.AreaSession, KeyTaskID, task.id); err != nil {
		a.logger.Error("pilot: failed to save task id", "error", err)
		return "", err
	}
	if err := saveItem(ctx, a.host, host.AreaSession, KeyFoundTaskID, true); err != nil {
		a.logger.Error("pilot: failed to save found flag", "error", err)
		return "", err
	}
	if area, ok := settings.LastTaskURLDestination().Area(); ok {
		if err := saveItem(ctx, a.host, area, KeyLastTaskURL, task.url); err != nil {
			a.logger.Error("pilot: failed to remember last task url", "error", err)
			return "", err
		}
	}
	return task.id, nil
}

// CaptureAndSaveQAFeedback brings the feedback page to front, captures it,
// stores the capture in the session record and, when enabled, downloads it.
func (a *Actions) CaptureAndSaveQAFeedback(ctx context.Context) (FeedbackCapture, error) {
	settings, err := a.settings.Load(ctx)
	if err != nil {
		return FeedbackCapture{}, err
	}
	tab, win, err := a.orchestrator.FindOrCreateMainTab(ctx, a.pages.FeedbackURL)
	if err != nil {
		return FeedbackCapture{}, fmt.Errorf("pilot: reach feedback page: %w", err)
	}

	shot := result.WithTimeout(ctx, a.timeouts.Screenshot, "screenshot timed out", func(ctx context.Context) (string, error) {
		return a.host.CaptureVisibleTab(ctx, win.ID)
	})
	if !shot.IsOk() {
		a.logger.Error("pilot: failed to capture tab", "url", tab.URL, "error", shot.Err())
		return FeedbackCapture{}, fmt.Errorf("pilot: capture: %w", shot.Err())
	}
	capture := FeedbackCapture{DataURL: shot.Value(), CapturedAt: a.now().UTC()}
	a.logger.Info("pilot: captured feedback page", "url", tab.URL, "bytes", len(capture.DataURL))

	record := []string{capture.DataURL, capture.CapturedAt.Format(time.RFC3339)}
	if err := saveItem(ctx, a.host, host.AreaSession, KeyLastQAFeedback, record); err != nil {
		a.logger.Error("pilot: failed to save capture", "error", err)
		return FeedbackCapture{}, err
	}
	if err := saveItem(ctx, a.host, host.AreaSession, KeyCapturedFeedback, true); err != nil {
		a.logger.Error("pilot: failed to save captured flag", "error", err)
		return FeedbackCapture{}, err
	}

	if area, ok := settings.RatingsDestination().Area(); ok {
		a.rememberRatings(ctx, tab.ID, area)
	}

	if settings.FeedbackScreenshot && capture.DataURL != "" {
		capture.DownloadID = a.download(ctx, capture, settings)
	}
	return capture, nil
}

// rememberRatings stores the full ratings of the feedback tab. Failures are
// logged only; the capture has already been saved.
func (a *Actions) rememberRatings(ctx context.Context, tabID string, area host.StorageArea) {
	doc, err := a.host.Document(ctx, tabID)
	if err != nil {
		a.logger.Warn("pilot: could not open feedback document", "tab", tabID, "error", err)
		return
	}
	resp := a.content.Respond(ctx, doc, ReadFullRatings{})
	ratings, ok := resp.Data.(Ratings)
	if !resp.OK() || !ok {
		a.logger.Warn("pilot: could not read ratings to remember", "tab", tabID)
		return
	}
	if err := saveItem(ctx, a.host, area, KeyLastRatings, ratings); err != nil {
		a.logger.Warn("pilot: failed to remember ratings", "error", err)
	}
}

func (a *Actions) download(ctx context.Context, capture FeedbackCapture, settings Settings) int {
	name := CaptureFileName(settings.DefaultFileName, settings.UseTimestamp, capture.CapturedAt)
	r := result.Safe(func() (int, error) {
		return a.host.Download(ctx, host.DownloadOptions{
			URL:            capture.DataURL,
			Filename:       name,
			ConflictAction: host.ConflictUniquify,
			SaveAs:         settings.OpenSaveAsDialog,
		})
	})
	if !r.IsOk() {
		a.logger.Error("pilot: failed to download capture", "filename", name, "error", r.Err())
		return 0
	}
	a.logger.Info("pilot: downloaded capture", "filename", name, "download_id", r.Value())
	return r.Value()
}

// CaptureFileName builds "<base>[-<timestamp>].png". The timestamp is the
// UTC ISO form with ':' and '.' replaced by '-'.
func CaptureFileName(base string, withTimestamp bool, at time.Time) string {
	if base == "" {
		base = DefaultSettings().DefaultFileName
	}
	if !withTimestamp {
		return base + ".png"
	}
	stamp := at.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return base + "-" + stamp + ".png"
}

// Run saves the task ID, then captures the feedback page. A failure of the
// first step is logged and does not stop the second.
func (a *Actions) Run(ctx context.Context) (string, FeedbackCapture, error) {
	id, idErr := a.SaveTaskID(ctx)
	if idErr != nil {
		a.logger.Warn("pilot: save task id failed, continuing with capture", "error", idErr)
	}
	capture, capErr := a.CaptureAndSaveQAFeedback(ctx)
	return id, capture, errors.Join(idErr, capErr)
}
