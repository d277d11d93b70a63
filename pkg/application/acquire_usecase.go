package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/repository"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
	"github.com/sirupsen/logrus"
)

// DefaultWorkers is the size of the worker pool
const DefaultWorkers = 5

// AcquireUseCase orchestrates logo acquisition for a batch of domains
type AcquireUseCase struct {
	config Config

	// Services
	normalizer service.DomainNormalizer
	expander   service.VariantExpander
	strategies []service.FetchStrategy
	primary    service.DirectoryProvider
	secondary  service.DirectoryProvider

	// Repositories
	store        repository.AssetStore
	ledger       repository.Ledger
	taskQueue    repository.TaskQueue
	resultQueue  repository.ResultQueue
	resultWriter repository.ResultWriter
	logWriter    repository.LogWriter

	sleeper Sleeper
	log     logrus.FieldLogger

	// State
	metrics          *entity.Metrics
	metricsLock      sync.RWMutex
	counters         counters
	workers          []*Worker
	wg               sync.WaitGroup
	inflight         sync.WaitGroup
	report           entity.Report
	reportLock       sync.Mutex
	held             []entity.Target
	lifecycles       map[string]*entity.Lifecycle
	heldLock         sync.Mutex
	metricsObservers []MetricsObserver
	recorders        []service.AttemptRecorder
}

// counters are updated by workers without taking metricsLock
type counters struct {
	total     atomic.Int64
	processed atomic.Int64
	acquired  atomic.Int64
	reused    atomic.Int64
	notFound  atomic.Int64
	pending   atomic.Int64
	escalated atomic.Int64
}

// Config holds the use case configuration
type Config struct {
	NumWorkers int
	// Dwell is how long pending directory lookups are left alone before the
	// batch re-poll
	Dwell time.Duration
	RunID string
	// ResetLedger forgets every recorded outcome before the batch starts;
	// ResetNotFound only forgets no_asset_found sentinels
	ResetLedger   bool
	ResetNotFound bool
}

// Sleeper waits for the dwell period
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// MetricsObserver observes metrics changes
type MetricsObserver interface {
	OnMetricsUpdate(metrics *entity.Metrics)
	OnResult(result *entity.Result) // Notify when a domain reaches a terminal state
}

// NewAcquireUseCase creates a new acquire use case
func NewAcquireUseCase(
	config Config,
	normalizer service.DomainNormalizer,
	expander service.VariantExpander,
	strategies []service.FetchStrategy,
	primary service.DirectoryProvider,
	secondary service.DirectoryProvider,
	store repository.AssetStore,
	ledger repository.Ledger,
	taskQueue repository.TaskQueue,
	resultQueue repository.ResultQueue,
	resultWriter repository.ResultWriter,
	logWriter repository.LogWriter,
	sleeper Sleeper,
	log logrus.FieldLogger,
) *AcquireUseCase {
	if config.NumWorkers < 1 {
		config.NumWorkers = DefaultWorkers
	}
	return &AcquireUseCase{
		config:       config,
		normalizer:   normalizer,
		expander:     expander,
		strategies:   strategies,
		primary:      primary,
		secondary:    secondary,
		store:        store,
		ledger:       ledger,
		taskQueue:    taskQueue,
		resultQueue:  resultQueue,
		resultWriter: resultWriter,
		logWriter:    logWriter,
		sleeper:      sleeper,
		log:          log,
		metrics: &entity.Metrics{
			TotalWorkers: config.NumWorkers,
			Attempts:     make(map[entity.Tier]int64),
			Successes:    make(map[entity.Tier]int64),
		},
		report:           make(entity.Report),
		lifecycles:       make(map[string]*entity.Lifecycle),
		metricsObservers: make([]MetricsObserver, 0),
	}
}

// RegisterMetricsObserver registers a metrics observer
func (uc *AcquireUseCase) RegisterMetricsObserver(observer MetricsObserver) {
	uc.metricsObservers = append(uc.metricsObservers, observer)
}

// RegisterAttemptRecorder registers an extra sink for fetch attempts
func (uc *AcquireUseCase) RegisterAttemptRecorder(recorder service.AttemptRecorder) {
	uc.recorders = append(uc.recorders, recorder)
}

// notifyMetricsObservers notifies all registered observers
func (uc *AcquireUseCase) notifyMetricsObservers() {
	metrics := uc.GetMetrics()
	for _, observer := range uc.metricsObservers {
		observer.OnMetricsUpdate(metrics)
	}
}

// Execute runs one batch. Every input domain ends up in the report; an
// error is only returned when ctx is cancelled.
func (uc *AcquireUseCase) Execute(ctx context.Context, targets []entity.Target) (entity.Report, error) {
	uc.metricsLock.Lock()
	uc.metrics.StartTime = time.Now()
	uc.metricsLock.Unlock()

	if err := uc.resetLedger(ctx); err != nil {
		return nil, err
	}

	// Start result flusher
	flushed := make(chan struct{})
	go uc.flushResults(flushed)

	merged := uc.merge(targets)
	uc.counters.total.Store(int64(len(merged)))

	uc.startWorkers(ctx)

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	go uc.updateMetricsPeriodically(metricsCtx)

	err := uc.enqueueTargets(ctx, merged)
	if err == nil {
		err = uc.waitForCompletion(ctx)
	}
	if err == nil {
		err = uc.repollHeld(ctx)
	}

	uc.taskQueue.Close()
	uc.wg.Wait()
	uc.resultQueue.Close()
	<-flushed
	if flushErr := uc.resultWriter.Flush(); flushErr != nil {
		uc.log.WithError(flushErr).Warn("failed to flush results")
	}
	uc.notifyMetricsObservers()

	return uc.finalReport(merged, err), err
}

// resetLedger applies the reset options
func (uc *AcquireUseCase) resetLedger(ctx context.Context) error {
	if uc.ledger == nil || (!uc.config.ResetLedger && !uc.config.ResetNotFound) {
		return nil
	}
	removed, err := uc.ledger.Reset(ctx, !uc.config.ResetLedger)
	if err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	uc.log.WithField("removed", removed).Info("ledger reset")
	return nil
}

// merge normalizes the input, folding entries with the same dedup key. The
// first entry carrying a reference wins.
func (uc *AcquireUseCase) merge(targets []entity.Target) []entity.Target {
	index := make(map[string]int)
	merged := make([]entity.Target, 0, len(targets))

	for _, t := range targets {
		raw := strings.TrimSpace(t.Domain)
		if raw == "" {
			continue
		}
		key := uc.normalizer.DedupKey(raw)
		if !uc.normalizer.IsValid(key) {
			uc.log.WithField("domain", raw).Warn("skipping invalid domain")
			uc.complete(context.Background(), &entity.Result{
				Domain: raw,
				State:  entity.StateNoAssetFound,
				Error:  "invalid domain",
			}, false)
			continue
		}

		ref := strings.TrimSpace(t.Reference)
		if i, ok := index[key]; ok {
			if !merged[i].HasReference() && ref != "" {
				merged[i].Reference = ref
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, entity.Target{Domain: key, Reference: ref})
	}
	return merged
}

// enqueueTargets hands every domain that still needs work to the pool
func (uc *AcquireUseCase) enqueueTargets(ctx context.Context, targets []entity.Target) error {
	for _, target := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if uc.preflight(ctx, target) {
			continue
		}
		if err := uc.enqueue(&entity.Task{Target: target, CreatedAt: time.Now()}); err != nil {
			return err
		}
	}
	return nil
}

// preflight settles domains that need no network: those already holding an
// asset and those the ledger marks as having none
func (uc *AcquireUseCase) preflight(ctx context.Context, target entity.Target) bool {
	log := uc.log.WithField("domain", target.Domain)

	asset, ok, err := uc.store.Lookup(target.Domain)
	if err != nil {
		log.WithError(err).Warn("asset lookup failed")
	} else if ok {
		uc.counters.reused.Add(1)
		uc.complete(ctx, &entity.Result{
			Domain: target.Domain,
			State:  entity.StateAcquired,
			Path:   asset.Path,
			Reused: true,
		}, false)
		return true
	}

	if uc.ledger == nil {
		return false
	}
	entry, ok, err := uc.ledger.Get(ctx, target.Domain)
	if err != nil {
		log.WithError(err).Warn("ledger lookup failed")
		return false
	}
	if ok && entry.State == entity.StateNoAssetFound {
		uc.complete(ctx, &entity.Result{
			Domain: target.Domain,
			State:  entity.StateNoAssetFound,
			Error:  entity.KindPermanentMissing.Error(),
		}, false)
		return true
	}
	return false
}

func (uc *AcquireUseCase) enqueue(task *entity.Task) error {
	uc.inflight.Add(1)
	if !uc.taskQueue.Enqueue(task) {
		uc.inflight.Done()
		return fmt.Errorf("failed to enqueue domain: %s", task.Target.Domain)
	}
	return nil
}

// hold parks a domain until the re-poll
func (uc *AcquireUseCase) hold(target entity.Target, lc *entity.Lifecycle) {
	uc.heldLock.Lock()
	uc.held = append(uc.held, target)
	uc.lifecycles[target.Domain] = lc
	uc.heldLock.Unlock()
	uc.counters.pending.Add(1)
}

func (uc *AcquireUseCase) takeHeld() []entity.Target {
	uc.heldLock.Lock()
	defer uc.heldLock.Unlock()
	held := uc.held
	uc.held = nil
	return held
}

// lifecycleFor returns the lifecycle parked for a re-polled domain
func (uc *AcquireUseCase) lifecycleFor(domain string) *entity.Lifecycle {
	uc.heldLock.Lock()
	defer uc.heldLock.Unlock()
	return uc.lifecycles[domain]
}

// repollHeld waits out the dwell once, then re-polls every pending domain
// on the same pool
func (uc *AcquireUseCase) repollHeld(ctx context.Context) error {
	held := uc.takeHeld()
	if len(held) == 0 {
		return nil
	}

	until := time.Now().Add(uc.config.Dwell)
	uc.metricsLock.Lock()
	uc.metrics.DwellUntil = until
	uc.metricsLock.Unlock()

	uc.log.WithFields(logrus.Fields{
		"domains": len(held),
		"until":   until.Format(time.RFC3339),
	}).Info("waiting for pending directory lookups")

	if err := uc.sleeper.Sleep(ctx, uc.config.Dwell); err != nil {
		return err
	}

	for _, target := range held {
		if err := uc.enqueue(&entity.Task{Target: target, Repoll: true, CreatedAt: time.Now()}); err != nil {
			return err
		}
	}
	return uc.waitForCompletion(ctx)
}

// complete records a terminal result
func (uc *AcquireUseCase) complete(ctx context.Context, result *entity.Result, persist bool) {
	result.RunID = uc.config.RunID
	result.Timestamp = time.Now()

	switch result.State {
	case entity.StateAcquired:
		uc.counters.acquired.Add(1)
	case entity.StateNoAssetFound:
		uc.counters.notFound.Add(1)
	}

	uc.reportLock.Lock()
	uc.report[result.Domain] = result
	uc.reportLock.Unlock()

	if persist && uc.ledger != nil {
		entry := &entity.LedgerEntry{
			Domain:    result.Domain,
			State:     result.State,
			AssetPath: result.Path,
			Tier:      result.Tier,
			Reason:    result.Error,
			UpdatedAt: result.Timestamp,
		}
		if err := uc.ledger.Put(context.WithoutCancel(ctx), entry); err != nil {
			uc.log.WithError(err).WithField("domain", result.Domain).Warn("failed to update ledger")
		}
	}

	uc.resultQueue.Send(result)
}

// Record implements service.AttemptRecorder. Attempts are stamped with the
// run id and written to the attempt log.
func (uc *AcquireUseCase) Record(attempt *entity.FetchAttempt) {
	attempt.RunID = uc.config.RunID
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}

	if err := uc.logWriter.WriteAttempt(attempt); err != nil {
		uc.log.WithError(err).Warn("failed to write attempt log")
	}

	uc.metricsLock.Lock()
	uc.metrics.Attempts[attempt.Tier]++
	if attempt.Outcome == entity.OutcomeAccepted {
		uc.metrics.Successes[attempt.Tier]++
	}
	uc.metricsLock.Unlock()

	uc.log.WithFields(logrus.Fields{
		"domain":  attempt.Domain,
		"tier":    attempt.Tier,
		"url":     attempt.URL,
		"proxy":   attempt.Proxy,
		"outcome": attempt.Outcome,
		"reason":  attempt.Reason,
	}).Debug("fetch attempt")

	for _, recorder := range uc.recorders {
		recorder.Record(attempt)
	}
}

// updateMetricsPeriodically periodically updates and notifies observers
func (uc *AcquireUseCase) updateMetricsPeriodically(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uc.metricsLock.Lock()
			uc.metrics.LastUpdateTime = time.Now()
			uc.metricsLock.Unlock()

			uc.notifyMetricsObservers()
		}
	}
}

// startWorkers starts all worker goroutines
func (uc *AcquireUseCase) startWorkers(ctx context.Context) {
	uc.workers = make([]*Worker, uc.config.NumWorkers)
	for i := 0; i < uc.config.NumWorkers; i++ {
		worker := &Worker{
			id:         i,
			useCase:    uc,
			taskQueue:  uc.taskQueue,
			expander:   uc.expander,
			strategies: uc.strategies,
			primary:    uc.primary,
			secondary:  uc.secondary,
			store:      uc.store,
			log:        uc.log.WithField("worker", i),
		}
		uc.workers[i] = worker
		uc.wg.Add(1)
		go worker.Run(ctx, &uc.wg)
	}
}

// flushResults drains the result queue into the writer until it is closed
func (uc *AcquireUseCase) flushResults(done chan<- struct{}) {
	defer close(done)
	for {
		result, ok := uc.resultQueue.Receive()
		if !ok {
			return
		}
		if err := uc.resultWriter.Write(result); err != nil {
			uc.log.WithError(err).Warn("failed to write result")
		}
		for _, observer := range uc.metricsObservers {
			observer.OnResult(result)
		}
	}
}

// waitForCompletion waits until every queued task is processed
func (uc *AcquireUseCase) waitForCompletion(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.inflight.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// finalReport fills in domains left unfinished by a cancellation
func (uc *AcquireUseCase) finalReport(targets []entity.Target, err error) entity.Report {
	uc.reportLock.Lock()
	defer uc.reportLock.Unlock()

	report := make(entity.Report, len(uc.report))
	for domain, result := range uc.report {
		report[domain] = result
	}
	for _, target := range targets {
		if _, ok := report[target.Domain]; ok {
			continue
		}
		result := &entity.Result{
			RunID:     uc.config.RunID,
			Domain:    target.Domain,
			State:     entity.StatePending,
			Timestamp: time.Now(),
		}
		if err != nil {
			result.Error = err.Error()
		}
		report[target.Domain] = result
	}
	return report
}

// Close releases the writers and the ledger
func (uc *AcquireUseCase) Close() error {
	var firstErr error
	for _, closer := range []func() error{uc.resultWriter.Close, uc.logWriter.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if uc.ledger != nil {
		if err := uc.ledger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetMetrics returns the current metrics
func (uc *AcquireUseCase) GetMetrics() *entity.Metrics {
	uc.metricsLock.RLock()
	metrics := *uc.metrics
	metrics.Attempts = make(map[entity.Tier]int64, len(uc.metrics.Attempts))
	for tier, n := range uc.metrics.Attempts {
		metrics.Attempts[tier] = n
	}
	metrics.Successes = make(map[entity.Tier]int64, len(uc.metrics.Successes))
	for tier, n := range uc.metrics.Successes {
		metrics.Successes[tier] = n
	}
	uc.metricsLock.RUnlock()

	metrics.TotalDomains = uc.counters.total.Load()
	metrics.Processed = uc.counters.processed.Load()
	metrics.Acquired = uc.counters.acquired.Load()
	metrics.Reused = uc.counters.reused.Load()
	metrics.NotFound = uc.counters.notFound.Load()
	metrics.Pending = uc.counters.pending.Load()
	metrics.Escalated = uc.counters.escalated.Load()
	metrics.QueueLength = uc.taskQueue.Len()

	// Count active workers and collect their current domains
	activeWorkers := 0
	var activeDomains []string
	for _, worker := range uc.workers {
		if worker != nil && worker.IsActive() {
			activeWorkers++
			if domain := worker.GetCurrentDomain(); domain != "" {
				activeDomains = append(activeDomains, domain)
			}
		}
	}
	metrics.ActiveWorkers = activeWorkers
	metrics.ActiveDomains = activeDomains

	return &metrics
}
