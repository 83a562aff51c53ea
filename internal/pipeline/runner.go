package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"copydesk/internal/logging"
	"copydesk/internal/notifications"
	"copydesk/internal/queue"
)

// Options narrow a run. The zero value processes every pending item.
type Options struct {
	// DryRun lists the items a run would process without touching them.
	DryRun bool
	// Limit caps how many items are processed; zero means no cap.
	Limit int
	// ItemID restricts the run to a single pending item.
	ItemID int64
}

// RunSummary reports what one batch run did.
type RunSummary struct {
	RunID    string
	DryRun   bool
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Processed counts items that reached awaiting review.
func (s RunSummary) Processed() int {
	n := 0
	for _, o := range s.Outcomes {
		if !o.Failed() {
			n++
		}
	}
	return n
}

// Failed counts items that ended in the error status.
func (s RunSummary) Failed() int {
	return len(s.Outcomes) - s.Processed()
}

// Runner drives sequential batch runs under a cross-process lock.
type Runner struct {
	store        *queue.Store
	orchestrator *Orchestrator
	notifier     notifications.Service
	lockPath     string
	logger       *slog.Logger
}

// NewRunner builds a runner around an orchestrator. The lock path guards
// against concurrent runs from other processes.
func NewRunner(store *queue.Store, orchestrator *Orchestrator, notifier notifications.Service, lockPath string, logger *slog.Logger) *Runner {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:        store,
		orchestrator: orchestrator,
		notifier:     notifier,
		lockPath:     lockPath,
		logger:       logging.NewComponentLogger(logger, "runner"),
	}
}

// Run processes the selected pending items one at a time. Each item fails or
// succeeds on its own; the run keeps going either way. Context cancellation
// stops the run between items and returns the partial summary.
func (r *Runner) Run(ctx context.Context, opts Options) (RunSummary, error) {
	summary := RunSummary{
		RunID:   uuid.NewString(),
		DryRun:  opts.DryRun,
		Started: time.Now().UTC(),
	}
	ctx = logging.WithRunID(ctx, summary.RunID)
	log := logging.WithContext(ctx, r.logger)

	items, err := r.selectItems(ctx, opts)
	if err != nil {
		return summary, err
	}

	if opts.DryRun {
		for _, item := range items {
			summary.Outcomes = append(summary.Outcomes, Outcome{
				ItemID: item.ID,
				Title:  item.Title,
				Status: item.Status,
			})
		}
		summary.Finished = time.Now().UTC()
		log.Info("dry run", logging.Int("items", len(items)))
		return summary, nil
	}

	unlock, err := r.acquireLock()
	if err != nil {
		return summary, err
	}
	defer unlock()

	log.Info("run started", logging.Int("items", len(items)))
	if err := r.notifier.NotifyRunStarted(ctx, len(items)); err != nil {
		log.Warn("run notification failed", logging.Error(err))
	}

	var stopped error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			stopped = fmt.Errorf("%w: %v", errStopped, err)
			break
		}
		summary.Outcomes = append(summary.Outcomes, r.orchestrator.Process(ctx, item))
	}
	summary.Finished = time.Now().UTC()

	log.Info("run finished",
		logging.Int("processed", summary.Processed()),
		logging.Int("failed", summary.Failed()),
		logging.Duration("duration", summary.Finished.Sub(summary.Started)))
	if err := r.notifier.NotifyRunCompleted(ctx, summary.Processed(), summary.Failed(), summary.Finished.Sub(summary.Started)); err != nil {
		log.Warn("run notification failed", logging.Error(err))
	}
	return summary, stopped
}

// selectItems resolves the run's work list from the options.
func (r *Runner) selectItems(ctx context.Context, opts Options) ([]*queue.Item, error) {
	if opts.ItemID > 0 {
		item, err := r.store.GetByID(ctx, opts.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("item %d not found", opts.ItemID)
		}
		if item.Status != queue.StatusPending {
			return nil, fmt.Errorf("item %d is %s, not pending", opts.ItemID, item.Status)
		}
		return []*queue.Item{item}, nil
	}

	items, err := r.store.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, nil
}

// acquireLock takes the run lock without blocking. A held lock means another
// run is already in flight.
func (r *Runner) acquireLock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(r.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare lock directory: %w", err)
	}
	lock := flock.New(r.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another run is already in progress (lock held at %s)", r.lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("release run lock", logging.Error(err))
		}
	}, nil
}
