package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pond75jnu/svcmon/config"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/pkg/common"
	"github.com/pond75jnu/svcmon/pkg/metrics"
)

// ErrConfigChanged is returned by Scheduler.Run when the store's config
// revision moved past the one the scheduler started with. The caller is
// expected to restart the scheduler so new topology takes effect.
var ErrConfigChanged = errors.New("monitor: config revision changed")

// Notifier delivers failure alerts for persisted check results. Implemented
// by notify.Mailer; nil disables alerting.
type Notifier interface {
	NotifyFailure(ctx context.Context, ep store.EndpointProbe, rec store.CheckRecord)
}

// Scheduler runs the batch polling loop: fetch due endpoints, fan out to the
// prober under a concurrency cap, persist every result.
type Scheduler struct {
	store    *store.Store
	prober   *Prober
	notifier Notifier

	segment      string
	batchSize    int
	pollCadence  time.Duration
	errorBackoff time.Duration
	sem          *semaphore.Weighted
}

func NewScheduler(st *store.Store, prober *Prober, cfg config.MonitorConfig, notifier Notifier) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	maxConcurrency := int64(cfg.MaxConcurrency)
	if maxConcurrency <= 0 {
		maxConcurrency = 50
	}
	cadence := time.Duration(cfg.PollCadenceSec) * time.Second
	if cadence <= 0 {
		cadence = 10 * time.Second
	}
	backoff := time.Duration(cfg.ErrorBackoff) * time.Second
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Scheduler{
		store:        st,
		prober:       prober,
		notifier:     notifier,
		segment:      cfg.Segment,
		batchSize:    batchSize,
		pollCadence:  cadence,
		errorBackoff: backoff,
		sem:          semaphore.NewWeighted(maxConcurrency),
	}
}

// Run executes the polling loop until ctx is cancelled or the config revision
// changes. A failed cycle is logged and retried after a short backoff; nothing
// inside the loop is fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	startRev, err := s.store.FetchConfigRevision(ctx)
	if err != nil {
		return errors.Wrap(err, "monitor: read initial config revision")
	}

	zap.L().Info("batch scheduler started",
		zap.String("segment", common.FmtSegment(s.segment)),
		zap.Int("batch_size", s.batchSize),
		zap.Duration("cadence", s.pollCadence),
		zap.Int64("config_revision", startRev))

	for {
		if err := ctx.Err(); err != nil {
			zap.L().Info("batch scheduler stopped")
			return nil
		}

		rev, err := s.store.FetchConfigRevision(ctx)
		switch {
		case err != nil:
			zap.L().Error("config revision read failed", zap.Error(err))
			if !sleepCtx(ctx, s.errorBackoff) {
				return nil
			}
			continue
		case rev != startRev:
			zap.L().Warn("config revision changed, stopping for reload",
				zap.Int64("started_with", startRev),
				zap.Int64("current", rev))
			return ErrConfigChanged
		}

		if err := s.runCycle(ctx); err != nil {
			zap.L().Error("batch cycle failed", zap.Error(err))
			metrics.Incr("svcmon_batch_errors", 1)
			if !sleepCtx(ctx, s.errorBackoff) {
				return nil
			}
			continue
		}

		if !sleepCtx(ctx, s.pollCadence) {
			zap.L().Info("batch scheduler stopped")
			return nil
		}
	}
}

// runCycle processes one batch: fetch, dispatch, persist. Errors scoped to a
// single endpoint's probe or persist never abort siblings; only fetch-level
// failures surface to the loop.
func (s *Scheduler) runCycle(ctx context.Context) error {
	now := time.Now().UTC()
	batch, err := s.store.FetchDueEndpoints(ctx, now, s.batchSize, s.segment)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	zap.L().Info("dispatching batch",
		zap.Int("endpoints", len(batch)),
		zap.String("segment", common.FmtSegment(s.segment)))

	var wg sync.WaitGroup
	for _, ep := range batch {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			// Shutdown mid-batch; endpoints not yet dispatched are
			// picked up on the next run.
			break
		}
		wg.Add(1)
		go func(ep store.EndpointProbe) {
			defer wg.Done()
			defer s.sem.Release(1)
			s.probeAndPersist(ctx, ep)
		}(ep)
	}
	wg.Wait()
	return nil
}

func (s *Scheduler) probeAndPersist(ctx context.Context, ep store.EndpointProbe) {
	rec := s.prober.Probe(ctx, ep)

	if err := s.store.InsertCheck(ctx, rec); err != nil {
		zap.L().Error("check persist failed",
			zap.Int64("endpoint_id", ep.EndpointID),
			zap.String("url", ep.URL),
			zap.Error(err))
		metrics.Incr("svcmon_persist_errors", 1)
		return
	}
	metrics.Incr("svcmon_checks_total", 1)
	if rec.Error != nil {
		metrics.Incr("svcmon_check_failures", 1)
	}

	if s.notifier != nil && ep.EmailOnFailure && isFailure(rec) {
		s.notifier.NotifyFailure(ctx, ep, rec)
	}
}

func isFailure(rec store.CheckRecord) bool {
	if rec.Error != nil {
		return true
	}
	return rec.StatusCode == nil || *rec.StatusCode < 200 || *rec.StatusCode >= 300
}

// sleepCtx waits d, checking for cancellation at one-second granularity so
// shutdown stays responsive. Returns false when the context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if !time.Now().Before(deadline) {
				return true
			}
		}
	}
}
