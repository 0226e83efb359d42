// CLAUDE:SUMMARY Automatic RUN triggers: runOnClick when the CLI opens on a task page, runOnTaskChange via a polling watcher.
package pilot

import (
	"context"
	"errors"

	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/kit"
	"github.com/hazyhaar/tabpilot/result"
	"github.com/hazyhaar/tabpilot/watch"
)

// CurrentTask returns the task ID SaveTaskID would pick right now, or "" when
// no task tab carries one. It writes nothing.
func (a *Actions) CurrentTask(ctx context.Context) (string, error) {
	settings, err := a.settings.Load(ctx)
	if err != nil {
		return "", err
	}
	r := result.Safe(func() ([]host.Tab, error) {
		return a.host.QueryTabs(ctx, host.QueryInfo{URL: a.pages.TasksURL})
	})
	if !r.IsOk() {
		return "", r.Err()
	}
	task, err := chooseTask(settings, r.Value())
	switch {
	case errors.Is(err, ErrNoTabs), errors.Is(err, ErrNoTaskID), errors.Is(err, ErrNoTaskURL):
		return "", nil
	case err != nil:
		return "", err
	}
	return task.id, nil
}

// OnOpen posts RunMessage when runOnClick is set and an active tab is on one
// of the configured task sites. It returns the run ID, or "" when nothing was posted.
func (p *Pilot) OnOpen(ctx context.Context) (string, error) {
	settings, err := p.Settings.Load(ctx)
	if err != nil {
		return "", err
	}
	if !settings.RunOnClick {
		return "", nil
	}
	active := true
	r := result.Safe(func() ([]host.Tab, error) {
		return p.Host.QueryTabs(ctx, host.QueryInfo{Active: &active})
	})
	if !r.IsOk() {
		return "", r.Err()
	}
	for _, t := range r.Value() {
		if p.Config.Pages.IsTaskPage(t.URL) {
			p.logger.Info("pilot: opened on task page, running", "url", t.URL)
			return p.Dispatcher.Post(ctx, RunMessage{}), nil
		}
	}
	p.logger.Info("pilot: opened on non-task page, not running")
	return "", nil
}

// WatchTasks starts a watcher that runs until ctx ends. It posts RunMessage
// each time the picked task changes to a new non-empty ID while
// runOnTaskChange is set. The task present at start does not trigger a run.
func (p *Pilot) WatchTasks(ctx context.Context) *watch.Watcher {
	w := watch.New(p.Actions.CurrentTask, watch.Options{
		Interval: p.Config.Watch.Interval,
		Debounce: p.Config.Watch.Debounce,
		Logger:   p.logger,
	})
	go w.OnChange(ctx, func(ctx context.Context, taskID string) error {
		if taskID == "" {
			return nil
		}
		settings, err := p.Settings.Load(ctx)
		if err != nil {
			return err
		}
		if !settings.RunOnTaskChange {
			return nil
		}
		runID := p.Dispatcher.Post(kit.WithTransport(ctx, "watch"), RunMessage{})
		p.logger.Info("pilot: task changed, running", "task_id", taskID, "run_id", runID)
		return nil
	})
	return w
}
