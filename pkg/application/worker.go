package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/repository"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
	"github.com/sirupsen/logrus"
)

// Worker runs one domain at a time through the acquisition chain
type Worker struct {
	id         int
	useCase    *AcquireUseCase
	taskQueue  repository.TaskQueue
	expander   service.VariantExpander
	strategies []service.FetchStrategy
	primary    service.DirectoryProvider
	secondary  service.DirectoryProvider
	store      repository.AssetStore
	log        logrus.FieldLogger

	currentDomain atomic.Value // stores string
	isActive      atomic.Bool
}

// Run starts the worker processing loop. After cancellation remaining
// tasks are drained without work so the queue can close.
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		task, ok := w.taskQueue.Dequeue()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			w.useCase.inflight.Done()
			continue
		}
		w.processTask(ctx, task)
	}
}

// IsActive returns whether the worker is currently processing a task
func (w *Worker) IsActive() bool {
	return w.isActive.Load()
}

// GetCurrentDomain returns the domain currently being processed
func (w *Worker) GetCurrentDomain() string {
	if v := w.currentDomain.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// processTask processes a single acquisition task
func (w *Worker) processTask(ctx context.Context, task *entity.Task) {
	w.isActive.Store(true)
	w.currentDomain.Store(task.Target.Domain)
	defer func() {
		w.isActive.Store(false)
		w.currentDomain.Store("")
		w.useCase.counters.processed.Add(1)
		w.useCase.inflight.Done()
	}()

	if task.Repoll {
		w.repoll(ctx, task.Target)
		return
	}
	w.acquire(ctx, task.Target)
}

// acquire tries every (variant, strategy) pair in order and escalates to
// the directory tier when none yields an image
func (w *Worker) acquire(ctx context.Context, target entity.Target) {
	lc := entity.NewLifecycle(target.Domain)
	log := w.log.WithField("domain", target.Domain)

	if target.HasReference() {
		for _, variant := range w.expander.Expand(target.Reference) {
			strategies := w.applicable(variant)
			if len(strategies) == 0 {
				log.WithField("url", variant).Debug("no strategy applies")
				continue
			}
			w.step(lc, entity.StateTryingVariant)

			for _, strategy := range strategies {
				if ctx.Err() != nil {
					return
				}
				w.step(lc, entity.StateTryingStrategy)

				download, err := strategy.Fetch(ctx, target, variant, w.useCase)
				if err != nil {
					log.WithFields(logrus.Fields{
						"tier": strategy.Tier(),
						"url":  variant,
					}).WithError(err).Debug("strategy failed")
					continue
				}
				if w.settle(ctx, lc, target, download) {
					return
				}
			}
		}
	} else {
		log.Debug("no asset reference, escalating")
	}

	if ctx.Err() != nil {
		return
	}
	w.step(lc, entity.StateEscalated)
	w.useCase.counters.escalated.Add(1)

	result := w.lookup(ctx, target, w.primary, 1)
	switch result.Status {
	case service.DirectoryFound:
		if w.settle(ctx, lc, target, result.Download) {
			return
		}
	case service.DirectoryPending:
		if ctx.Err() == nil {
			log.Info("primary directory is still generating the logo")
			w.useCase.hold(target, lc)
		}
		return
	}
	w.fallback(ctx, lc, target, confirmsMissing(result))
}

// repoll asks the primary directory again for a held domain and falls back
// to the secondary once
func (w *Worker) repoll(ctx context.Context, target entity.Target) {
	lc := w.useCase.lifecycleFor(target.Domain)
	if lc == nil {
		lc = entity.NewLifecycle(target.Domain)
	}
	w.step(lc, entity.StateEscalated)

	result := w.lookup(ctx, target, w.primary, 2)
	if result.Status == service.DirectoryFound && w.settle(ctx, lc, target, result.Download) {
		return
	}
	// still pending after the dwell counts as an answer
	missing := result.Status == service.DirectoryPending || confirmsMissing(result)
	w.fallback(ctx, lc, target, missing)
}

// fallback is the last chance: the secondary directory, then no_asset_found.
// Only a definite miss is written to the ledger; a miss caused by network
// trouble is reported for this run and retried by the next one.
func (w *Worker) fallback(ctx context.Context, lc *entity.Lifecycle, target entity.Target, primaryMissing bool) {
	result := w.lookup(ctx, target, w.secondary, 1)
	if result.Status == service.DirectoryFound && w.settle(ctx, lc, target, result.Download) {
		return
	}
	if ctx.Err() != nil {
		return
	}

	missing := primaryMissing
	switch {
	case result.Status == service.DirectoryFound:
		missing = false // found but could not be stored
	case confirmsMissing(result):
		missing = true
	case result.Err != nil && entity.KindOf(result.Err) == entity.KindTransport:
		missing = false
	}
	kind := entity.KindExhaustedTiers
	if missing {
		kind = entity.KindPermanentMissing
	}

	w.step(lc, entity.StateNoAssetFound)
	w.log.WithFields(logrus.Fields{
		"domain": target.Domain,
		"reason": kind,
	}).Info("no asset found")
	w.useCase.complete(ctx, &entity.Result{
		Domain: target.Domain,
		State:  entity.StateNoAssetFound,
		Error:  kind.Error(),
	}, missing)
}

// confirmsMissing reports whether a directory answered that it has no
// usable image, as opposed to not answering at all
func confirmsMissing(result *service.DirectoryResult) bool {
	if result.Status != service.DirectoryNotFound {
		return false
	}
	return result.Err == nil || entity.KindOf(result.Err) != entity.KindTransport
}

// settle persists an accepted download and completes the domain. It
// returns false when the store failed, so the caller keeps going.
func (w *Worker) settle(ctx context.Context, lc *entity.Lifecycle, target entity.Target, download *entity.Download) bool {
	if download == nil {
		return false
	}
	log := w.log.WithFields(logrus.Fields{
		"domain": target.Domain,
		"tier":   download.Tier,
	})

	asset, err := w.store.Save(target.Domain, download)
	reused := false
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrAlreadyAcquired):
		reused = true
	default:
		log.WithError(err).Warn("failed to store asset")
		return false
	}

	w.step(lc, entity.StateAcquired)
	log.WithField("path", asset.Path).Info("asset acquired")

	result := &entity.Result{
		Domain: target.Domain,
		State:  entity.StateAcquired,
		Path:   asset.Path,
		Tier:   download.Tier,
		Reused: reused,
	}
	if reused {
		w.useCase.counters.reused.Add(1)
	}
	w.useCase.complete(ctx, result, true)
	return true
}

// lookup queries a directory provider and records the attempt
func (w *Worker) lookup(ctx context.Context, target entity.Target, provider service.DirectoryProvider, n int) *service.DirectoryResult {
	if provider == nil || ctx.Err() != nil {
		return &service.DirectoryResult{Status: service.DirectoryFailed}
	}

	started := time.Now()
	result := provider.Lookup(ctx, target.Domain)

	attempt := &entity.FetchAttempt{
		Domain:      target.Domain,
		URL:         result.URL,
		Tier:        provider.Tier(),
		Attempt:     n,
		Outcome:     directoryOutcome(result.Status),
		StatusCode:  result.StatusCode,
		ContentType: result.ContentType,
		DurationMs:  time.Since(started).Milliseconds(),
	}
	if result.Err != nil {
		attempt.Kind = entity.KindOf(result.Err)
		attempt.Reason = result.Err.Error()
	}
	w.useCase.Record(attempt)

	if result.Status == service.DirectoryFound && result.Download == nil {
		result.Status = service.DirectoryFailed
	}
	return result
}

func directoryOutcome(status service.DirectoryStatus) string {
	switch status {
	case service.DirectoryFound:
		return entity.OutcomeAccepted
	case service.DirectoryPending:
		return entity.OutcomePending
	case service.DirectoryNotFound:
		return entity.OutcomeNotFound
	default:
		return entity.OutcomeFailed
	}
}

// applicable filters the strategies handling a candidate URL
func (w *Worker) applicable(url string) []service.FetchStrategy {
	var out []service.FetchStrategy
	for _, strategy := range w.strategies {
		if strategy.Applies(url) {
			out = append(out, strategy)
		}
	}
	return out
}

// step moves the lifecycle; a refused transition is a bug worth shouting about
func (w *Worker) step(lc *entity.Lifecycle, to entity.State) {
	if err := lc.Transition(to); err != nil {
		w.log.WithError(err).WithField("domain", lc.Domain).Error("illegal state transition")
	}
}
