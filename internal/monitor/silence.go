package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/pkg/common"
	"github.com/pond75jnu/svcmon/pkg/metrics"
)

// silenceFactor promotes an endpoint to no-signal once the gap since its last
// check exceeds this multiple of its polling interval. Firing only past 1.5x
// keeps the detector off the prober's turf: the real check had its chance.
const silenceFactor = 1.5

const noSignalMessage = "no signal within expected window"

// SilenceDetector is the independent loop that keeps visibility honest when
// the batch scheduler itself is down or an endpoint is orphaned. It scans all
// enabled endpoints and synthesizes one no-signal check per overdue endpoint
// per pass.
type SilenceDetector struct {
	store    *store.Store
	interval time.Duration
}

func NewSilenceDetector(st *store.Store, scanInterval time.Duration) *SilenceDetector {
	if scanInterval <= 0 {
		scanInterval = 30 * time.Second
	}
	return &SilenceDetector{store: st, interval: scanInterval}
}

// Run loops until ctx is cancelled, exiting at the next one-second boundary.
func (d *SilenceDetector) Run(ctx context.Context) {
	zap.L().Info("silence detector started", zap.Duration("scan_interval", d.interval))
	for {
		if err := d.RunPass(ctx); err != nil {
			zap.L().Error("silence scan failed", zap.Error(err))
		}
		if !sleepCtx(ctx, d.interval) {
			zap.L().Info("silence detector stopped")
			return
		}
	}
}

// RunPass scans every enabled endpoint once. Per-endpoint errors are logged
// and do not stop the scan.
func (d *SilenceDetector) RunPass(ctx context.Context) error {
	endpoints, err := d.store.FetchActiveEndpoints(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, ep := range endpoints {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := d.checkEndpoint(ctx, ep, now); err != nil {
			zap.L().Error("silence check failed",
				zap.Int64("endpoint_id", ep.EndpointID),
				zap.String("url", ep.URL),
				zap.Error(err))
		}
	}
	return nil
}

// checkEndpoint inserts at most one synthetic no-signal row when the
// endpoint's newest check is older than 1.5x its polling interval (or no
// check exists at all). It never backfills the missed window.
func (d *SilenceDetector) checkEndpoint(ctx context.Context, ep store.EndpointProbe, now time.Time) error {
	threshold := time.Duration(float64(ep.PollIntervalSec)*silenceFactor) * time.Second

	if ep.LastCheckedAt != nil && now.Sub(ep.LastCheckedAt.UTC()) <= threshold {
		return nil
	}

	zero := 0
	msg := noSignalMessage
	rec := store.CheckRecord{
		EndpointID: ep.EndpointID,
		LatencyMs:  &zero,
		Error:      &msg,
		Source:     domain.CheckSourceSilence,
		CheckedAt:  now,
		TraceID:    common.UUID(),
	}

	// The store re-verifies the gap inside a transaction, so a racing pass
	// or a probe that landed since the scan began wins and we insert nothing.
	inserted, err := d.store.InsertCheckIfStale(ctx, rec, threshold)
	if err != nil {
		return err
	}
	if inserted {
		metrics.Incr("svcmon_silence_checks", 1)
		zap.L().Warn("no-signal check synthesized",
			zap.Int64("endpoint_id", ep.EndpointID),
			zap.String("url", ep.URL),
			zap.String("site", ep.SiteName),
			zap.Int("poll_interval_sec", ep.PollIntervalSec))
	}
	return nil
}
