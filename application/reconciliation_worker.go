package application

import (
	"context"
	"errors"
	"fmt"

	"colorgame/infrastructure/observability"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// defaultReplayLimit caps the settlement failures replayed per sweep
const defaultReplayLimit = 100

// Reconciler is the set of corrective actions a reconciliation sweep runs
type Reconciler interface {
	EnsureBuckets(ctx context.Context) (int, error)
	ForceEndOverdue(ctx context.Context) (int, error)
	ArmUnarmed(ctx context.Context) (int, error)
	ReplayFailures(ctx context.Context, limit int) (int, error)
}

// ReconciliationWorker periodically repairs what lost timers and failed
// settlements leave behind
type ReconciliationWorker struct {
	reconciler  Reconciler
	schedule    string
	replayLimit int
	metrics     *observability.MetricsProvider
}

// NewReconciliationWorker creates a worker running on a cron schedule such as "@every 10s"
func NewReconciliationWorker(reconciler Reconciler, schedule string, metrics *observability.MetricsProvider) *ReconciliationWorker {
	return &ReconciliationWorker{
		reconciler:  reconciler,
		schedule:    schedule,
		replayLimit: defaultReplayLimit,
		metrics:     metrics,
	}
}

// Start schedules the sweep and returns a function that stops it and waits
// for a running sweep to finish
func (w *ReconciliationWorker) Start(ctx context.Context) (func(), error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(w.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.RunOnce(ctx); err != nil {
			log.WithError(err).Error("Reconciliation sweep finished with errors")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", w.schedule, err)
	}

	c.Start()
	log.WithField("schedule", w.schedule).Info("Reconciliation worker started")

	return func() {
		<-c.Stop().Done()
		log.Info("Reconciliation worker stopped")
	}, nil
}

// RunOnce runs one sweep: fill empty buckets, resolve overdue rounds, arm
// untracked rounds, then replay settlement failures. Every step runs even
// when an earlier one fails.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) error {
	var errs []error

	created, err := w.reconciler.EnsureBuckets(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("ensure buckets: %w", err))
	}
	w.metrics.RecordReconcileAction(observability.ReconcileActionCreated, created)

	forced, err := w.reconciler.ForceEndOverdue(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("force-end overdue: %w", err))
	}
	w.metrics.RecordReconcileAction(observability.ReconcileActionForced, forced)

	armed, err := w.reconciler.ArmUnarmed(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("arm timers: %w", err))
	}
	w.metrics.RecordReconcileAction(observability.ReconcileActionArmed, armed)

	replayed, err := w.reconciler.ReplayFailures(ctx, w.replayLimit)
	if err != nil {
		errs = append(errs, fmt.Errorf("replay failures: %w", err))
	}
	w.metrics.RecordReconcileAction(observability.ReconcileActionReplayed, replayed)

	fields := log.Fields{
		"created":  created,
		"forced":   forced,
		"armed":    armed,
		"replayed": replayed,
	}
	if created+forced+armed+replayed > 0 {
		log.WithFields(fields).Info("Reconciliation sweep took corrective action")
	} else {
		log.WithFields(fields).Debug("Reconciliation sweep found nothing to repair")
	}

	return errors.Join(errs...)
}
