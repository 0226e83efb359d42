package pilot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/idgen"
	"github.com/hazyhaar/tabpilot/kit"
)

// Recorder stores the outcome of a finished run.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Dispatcher starts the action routine for each posted Message and returns
// at once. Outcomes are logged and handed to the Recorder, never relayed to
// the sender.
type Dispatcher struct {
	actions  *Actions
	logger   *slog.Logger
	newID    idgen.Generator
	now      func() time.Time
	recorder Recorder

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a Dispatcher. Routines run under a context that is
// detached from the poster and ends on Close.
func NewDispatcher(actions *Actions, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		actions: actions,
		logger:  logger,
		newID:   idgen.RunID,
		now:     time.Now,
		base:    base,
		cancel:  cancel,
	}
}

// Post starts the routine for msg and returns its run ID.
func (d *Dispatcher) Post(ctx context.Context, msg Message) string {
	id := d.newID()
	runCtx := kit.WithRunID(kit.WithTransport(d.base, kit.GetTransport(ctx)), id)
	d.logger.Info("pilot: received message", "action", msg.Action(), "run_id", id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("pilot: dispatcher closed, dropping message", "action", msg.Action(), "run_id", id)
		return id
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		started := d.now()
		err := d.dispatch(runCtx, msg)
		d.record(runCtx, audit.NewEntry(id, msg.Action(), kit.GetTransport(runCtx), started, d.now(), err))
	}()
	return id
}

// SetRecorder installs r. Call it before the first Post.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message) error {
	log := d.logger.With("action", msg.Action(), "run_id", kit.GetRunID(ctx))
	var err error
	switch msg.(type) {
	case RunMessage:
		if _, _, err = d.actions.Run(ctx); err != nil {
			log.Error("pilot: run failed", "error", err)
			return err
		}
	case SaveTaskIDMessage:
		if _, err = d.actions.SaveTaskID(ctx); err != nil {
			log.Error("pilot: save task id failed", "error", err)
			return err
		}
	case CaptureQAFeedbackMessage:
		if _, err = d.actions.CaptureAndSaveQAFeedback(ctx); err != nil {
			log.Error("pilot: capture failed", "error", err)
			return err
		}
	default:
		err = fmt.Errorf("pilot: unhandled message %T", msg)
		log.Error("pilot: unhandled message")
		return err
	}
	log.Info("pilot: action finished")
	return nil
}

// record outlives the run context so cancelled runs are still logged.
func (d *Dispatcher) record(ctx context.Context, e audit.Entry) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		d.logger.Warn("pilot: record run", "run_id", e.RunID, "error", err)
	}
}

// Wait blocks until every started routine has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels in-flight routines and waits for them. Later posts are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}
