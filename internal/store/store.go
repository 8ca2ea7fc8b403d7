// Package store is the typed boundary to the entity store. The monitoring
// core never touches gorm rows directly; every operation here mirrors one of
// the stored-procedure-like calls the checker consumes.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/pkg/common"
)

// EndpointProbe describes one endpoint due for a check, denormalized with
// domain/site/segment names for logging and notification.
type EndpointProbe struct {
	EndpointID      int64
	URL             string
	PollIntervalSec int
	EmailOnFailure  bool
	Domain          string
	SiteName        string
	NetworkGroup    string
	OwnerContact    string
	LastCheckedAt   *time.Time
}

// NextCheckDue returns when this endpoint should next be probed.
// Endpoints never checked are immediately due.
func (p *EndpointProbe) NextCheckDue() time.Time {
	if p.LastCheckedAt == nil {
		return time.Time{}
	}
	return p.LastCheckedAt.Add(time.Duration(p.PollIntervalSec) * time.Second)
}

// CheckRecord is one probe outcome to persist or read back
type CheckRecord struct {
	EndpointID int64
	StatusCode *int
	LatencyMs  *int
	Headers    string
	Error      *string
	Source     string
	CheckedAt  time.Time
	TraceID    string
}

// IsNoSignal reports whether this record was synthesized by the silence
// detector rather than produced by a real probe.
func (r *CheckRecord) IsNoSignal() bool {
	return r.Source == domain.CheckSourceSilence
}

// RollupRecord is the cached status per (level, ref_id)
type RollupRecord struct {
	Level        string
	RefID        int64
	LastStatus   string
	LastChangeAt time.Time
	LastReason   string
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping validates the underlying connection; the only fatal startup check.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "store: get sql.DB")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "store: ping")
}

// FetchDueEndpoints returns up to limit enabled endpoints whose next check
// time has arrived at now, most overdue first. segment narrows the scan to
// one network group by name; empty means all segments.
func (s *Store) FetchDueEndpoints(ctx context.Context, now time.Time, limit int, segment string) ([]EndpointProbe, error) {
	candidates, err := s.scanEndpoints(ctx, segment)
	if err != nil {
		return nil, err
	}

	due := make([]EndpointProbe, 0, limit)
	for i := range candidates {
		c := &candidates[i]
		if c.LastCheckedAt == nil || !now.Before(c.NextCheckDue()) {
			due = append(due, *c)
		}
	}

	// Most overdue first so starved endpoints win under a tight batch limit
	sortByStaleness(due)
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// FetchActiveEndpoints returns every enabled endpoint under an active domain,
// regardless of due time. Used by the silence detector's full scan.
func (s *Store) FetchActiveEndpoints(ctx context.Context) ([]EndpointProbe, error) {
	return s.scanEndpoints(ctx, "")
}

func (s *Store) scanEndpoints(ctx context.Context, segment string) ([]EndpointProbe, error) {
	type row struct {
		EndpointID      int64
		URL             string
		PollIntervalSec int
		EmailOnFailure  bool
		Domain          string
		SiteName        string
		NetworkGroup    string
		OwnerContact    string
		LastCheckedAt   *time.Time
	}

	query := s.db.WithContext(ctx).
		Table("endpoints e").
		Select(`e.id as endpoint_id, e.url, e.poll_interval_sec, e.email_on_failure,
			d.domain, d.site_name, d.owner_contact, ng.name as network_group,
			(select max(c.checked_at) from checks c where c.endpoint_id = e.id) as last_checked_at`).
		Joins("join domains d on d.id = e.domain_id").
		Joins("join network_groups ng on ng.id = d.network_group_id").
		Where("e.is_enabled = ? and d.is_active = ?", true, true)

	if segment != "" {
		query = query.Where("ng.name = ?", segment)
	}

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "store: scan endpoints")
	}

	out := make([]EndpointProbe, 0, len(rows))
	for _, r := range rows {
		out = append(out, EndpointProbe{
			EndpointID:      r.EndpointID,
			URL:             r.URL,
			PollIntervalSec: r.PollIntervalSec,
			EmailOnFailure:  r.EmailOnFailure,
			Domain:          r.Domain,
			SiteName:        r.SiteName,
			NetworkGroup:    r.NetworkGroup,
			OwnerContact:    r.OwnerContact,
			LastCheckedAt:   r.LastCheckedAt,
		})
	}
	return out, nil
}

func sortByStaleness(probes []EndpointProbe) {
	// Never-checked endpoints sort before everything else
	sort.SliceStable(probes, func(i, j int) bool {
		a, b := &probes[i], &probes[j]
		if a.LastCheckedAt == nil {
			return b.LastCheckedAt != nil
		}
		if b.LastCheckedAt == nil {
			return false
		}
		return a.NextCheckDue().Before(b.NextCheckDue())
	})
}

// InsertCheck appends one check row. Rows are never updated.
func (s *Store) InsertCheck(ctx context.Context, rec CheckRecord) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(s.toCheck(rec)).Error, "store: insert check")
}

// InsertCheckIfStale appends a check row only when the endpoint's newest check
// is still older than threshold at rec.CheckedAt. The re-read and insert run
// in one transaction so two detector passes cannot both write.
func (s *Store) InsertCheckIfStale(ctx context.Context, rec CheckRecord, threshold time.Duration) (bool, error) {
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest domain.Check
		err := tx.Where("endpoint_id = ?", rec.EndpointID).
			Order("checked_at desc").
			First(&latest).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && rec.CheckedAt.Sub(latest.CheckedAt) <= threshold {
			return nil
		}
		if err := tx.Create(s.toCheck(rec)).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, errors.Wrap(err, "store: insert check if stale")
}

// FetchLatestCheck returns the newest check for an endpoint, nil when none.
func (s *Store) FetchLatestCheck(ctx context.Context, endpointID int64) (*CheckRecord, error) {
	var c domain.Check
	err := s.db.WithContext(ctx).
		Where("endpoint_id = ?", endpointID).
		Order("checked_at desc").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: fetch latest check")
	}
	rec := s.fromCheck(&c)
	return &rec, nil
}

// FetchConfigRevision returns the current topology revision, 0 when none.
func (s *Store) FetchConfigRevision(ctx context.Context) (int64, error) {
	var rev *int64
	err := s.db.WithContext(ctx).
		Model(&domain.ConfigRevision{}).
		Select("max(id)").
		Scan(&rev).Error
	if err != nil {
		return 0, errors.Wrap(err, "store: fetch config revision")
	}
	if rev == nil {
		return 0, nil
	}
	return *rev, nil
}

// BumpConfigRevision records a topology change; running schedulers notice the
// new revision on their next cycle and restart.
func (s *Store) BumpConfigRevision(ctx context.Context, reason, changedBy string) error {
	rev := domain.ConfigRevision{
		ID:        common.UUIDint64(),
		Reason:    reason,
		ChangedBy: changedBy,
		ChangedAt: time.Now().UTC(),
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(&rev).Error, "store: bump config revision")
}

// GetRollup reads the cached status for (level, refID), nil when absent.
func (s *Store) GetRollup(ctx context.Context, level string, refID int64) (*RollupRecord, error) {
	var r domain.Rollup
	err := s.db.WithContext(ctx).
		Where("level = ? and ref_id = ?", level, refID).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: get rollup")
	}
	return &RollupRecord{
		Level:        r.Level,
		RefID:        r.RefID,
		LastStatus:   r.LastStatus,
		LastChangeAt: r.LastChangeAt,
		LastReason:   r.LastReason,
	}, nil
}

// SaveRollup writes through the resolved status. last_change_at moves only
// when the status actually changed.
func (s *Store) SaveRollup(ctx context.Context, level string, refID int64, status, reason string) error {
	now := time.Now().UTC()
	var existing domain.Rollup
	err := s.db.WithContext(ctx).
		Where("level = ? and ref_id = ?", level, refID).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(s.db.WithContext(ctx).Create(&domain.Rollup{
			ID:           common.UUIDint64(),
			Level:        level,
			RefID:        refID,
			LastStatus:   status,
			LastChangeAt: now,
			LastReason:   reason,
		}).Error, "store: create rollup")
	case err != nil:
		return errors.Wrap(err, "store: save rollup")
	}

	updates := map[string]interface{}{
		"last_status": status,
		"last_reason": reason,
	}
	if existing.LastStatus != status {
		updates["last_change_at"] = now
	}
	return errors.Wrap(s.db.WithContext(ctx).
		Model(&domain.Rollup{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error, "store: save rollup")
}

// PruneChecks deletes check rows older than the retention window and returns
// the number of rows removed.
func (s *Store) PruneChecks(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("checked_at < ?", olderThan).
		Delete(&domain.Check{})
	return res.RowsAffected, errors.Wrap(res.Error, "store: prune checks")
}

func (s *Store) toCheck(rec CheckRecord) *domain.Check {
	source := rec.Source
	if source == "" {
		source = domain.CheckSourceProbe
	}
	traceID := rec.TraceID
	if traceID == "" {
		traceID = common.UUID()
	}
	return &domain.Check{
		ID:         common.UUIDint64(),
		EndpointID: rec.EndpointID,
		StatusCode: rec.StatusCode,
		LatencyMs:  rec.LatencyMs,
		Headers:    common.TruncateString(rec.Headers, 4000),
		Error:      rec.Error,
		Source:     source,
		CheckedAt:  rec.CheckedAt.UTC(),
		TraceID:    traceID,
	}
}

func (s *Store) fromCheck(c *domain.Check) CheckRecord {
	return CheckRecord{
		EndpointID: c.EndpointID,
		StatusCode: c.StatusCode,
		LatencyMs:  c.LatencyMs,
		Headers:    c.Headers,
		Error:      c.Error,
		Source:     c.Source,
		CheckedAt:  c.CheckedAt,
		TraceID:    c.TraceID,
	}
}
