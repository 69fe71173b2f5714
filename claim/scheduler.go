package claim

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/progress"
	"github.com/halcyonlabs/claimd/sym"
)

// Scheduler triggers claim batches, snapshots the target set, fans one job
// per account out concurrently, and finalizes the batch aggregate once every
// job is terminal. Fan-out here is unbounded; true parallelism is bounded
// downstream by the session pool.
type Scheduler struct {
	registry   Registry
	runner     *Runner
	tracker    *progress.Tracker
	batchStore *BatchStore
	reporter   *Reporter
	logger     *zap.SugaredLogger

	// scheduledInFlight blocks overlapping scheduled triggers. Manual
	// triggers bypass it: an operator asking for a batch gets one.
	scheduledInFlight atomic.Bool

	// wg tracks detached batch completions so Wait can drain them.
	wg sync.WaitGroup
}

// NewScheduler creates a batch scheduler
func NewScheduler(registry Registry, runner *Runner, tracker *progress.Tracker, batchStore *BatchStore, reporter *Reporter, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		registry:   registry,
		runner:     runner,
		tracker:    tracker,
		batchStore: batchStore,
		reporter:   reporter,
		logger:     logger,
	}
}

// TriggerBatch runs a manually triggered batch and blocks until it
// completes. With an empty accountIDs it snapshots the registry (excluding
// blocked accounts); with an explicit subset it uses exactly those accounts,
// blocked or not.
func (s *Scheduler) TriggerBatch(ctx context.Context, accountIDs []string) (*BatchRun, error) {
	return s.run(ctx, TriggerManual, accountIDs)
}

// TriggerBatchDetached opens a manual batch and returns as soon as the
// batch run exists; jobs run to completion in the background. Callers that
// need the final counts watch progress by batch ID or call Wait.
func (s *Scheduler) TriggerBatchDetached(ctx context.Context, accountIDs []string) (BatchRun, error) {
	batch, targets, err := s.open(ctx, TriggerManual, accountIDs)
	if err != nil {
		return BatchRun{}, err
	}

	snapshot := *batch
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.complete(context.WithoutCancel(ctx), batch, targets)
	}()

	return snapshot, nil
}

// TriggerScheduled runs a timer-driven batch over the full registry. If a
// previous scheduled batch is still in flight the trigger is skipped with
// ErrBatchInFlight rather than stacking up.
func (s *Scheduler) TriggerScheduled(ctx context.Context) (*BatchRun, error) {
	if !s.scheduledInFlight.CompareAndSwap(false, true) {
		s.logger.Warnw(sym.Sched + " Skipping scheduled trigger, previous batch still running")
		return nil, errors.ErrBatchInFlight
	}
	defer s.scheduledInFlight.Store(false)

	return s.run(ctx, TriggerScheduled, nil)
}

// Wait blocks until all detached batches have finished
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, trigger TriggerKind, accountIDs []string) (*BatchRun, error) {
	batch, targets, err := s.open(ctx, trigger, accountIDs)
	if err != nil {
		return nil, err
	}
	s.complete(ctx, batch, targets)
	return batch, nil
}

// open resolves the target set and persists the open batch run
func (s *Scheduler) open(ctx context.Context, trigger TriggerKind, accountIDs []string) (*BatchRun, []Target, error) {
	targets, err := s.resolveTargets(ctx, accountIDs)
	if err != nil {
		// Batch-level failure: no batch run is created and no jobs launch
		return nil, nil, err
	}

	batch := NewBatchRun(trigger, len(targets))
	if err := s.batchStore.CreateBatchRun(batch); err != nil {
		return nil, nil, errors.Wrap(err, "failed to open batch run")
	}

	s.tracker.StartBatch(batch.ID, len(targets))
	s.logger.Infow(sym.Sched+" Batch started",
		"batch_id", batch.ID,
		"triggered_by", string(trigger),
		"total_targets", len(targets))

	return batch, targets, nil
}

// complete fans out one job per target, awaits all of them, and closes the
// batch
func (s *Scheduler) complete(ctx context.Context, batch *BatchRun, targets []Target) {
	s.warnOnMemoryPressure(len(targets))

	jobs := make([]*Job, 0, len(targets))
	var wg sync.WaitGroup
	for _, target := range targets {
		job := NewJob(target.AccountID, batch.ID)
		jobs = append(jobs, job)

		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			s.runner.Execute(ctx, job)
		}(job)
	}
	wg.Wait()

	var succeeded, failed, alreadyClaimed int
	for _, job := range jobs {
		switch job.State {
		case JobStateSuccess:
			succeeded++
		case JobStateAlreadyClaimed:
			alreadyClaimed++
		default:
			// Every job is terminal after Execute returns; anything not
			// success or already_claimed failed
			failed++
		}
	}

	batch.Finalize(succeeded, failed, alreadyClaimed)
	s.tracker.CompleteBatch(batch.ID)

	if err := s.batchStore.CloseBatchRun(batch); err != nil {
		s.logger.Errorw(sym.DB+" Failed to close batch run",
			"batch_id", batch.ID,
			"error", err)
	}

	s.logger.Infow(sym.Sched+" Batch finished",
		"batch_id", batch.ID,
		"succeeded", succeeded,
		"failed", failed,
		"already_claimed", alreadyClaimed)

	s.reporter.Report(ctx, batch)
}

// resolveTargets turns the trigger's account list into the batch target set
func (s *Scheduler) resolveTargets(ctx context.Context, accountIDs []string) ([]Target, error) {
	if len(accountIDs) > 0 {
		targets := make([]Target, 0, len(accountIDs))
		for _, accountID := range accountIDs {
			targets = append(targets, Target{AccountID: accountID})
		}
		return targets, nil
	}

	all, err := s.registry.ListTargets(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrRegistryUnavailable, err.Error())
	}

	targets := make([]Target, 0, len(all))
	for _, target := range all {
		if target.Blocked {
			continue
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// warnOnMemoryPressure flags fan-outs that look oversized for the host.
// Purely advisory; the batch runs either way.
func (s *Scheduler) warnOnMemoryPressure(targetCount int) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	if vm.UsedPercent > 90 {
		s.logger.Warnw(sym.Sched+" High memory usage at batch fan-out",
			"used_percent", vm.UsedPercent,
			"targets", targetCount)
	}
}
