package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/pkg/common"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewStore(db)
}

// seedEndpoint creates a group/domain/endpoint chain and returns the endpoint id
func seedEndpoint(t *testing.T, db *gorm.DB, groupName string, intervalSec int, enabled, activeDomain bool) int64 {
	t.Helper()

	var group domain.NetworkGroup
	err := db.Where("name = ?", groupName).First(&group).Error
	if err == gorm.ErrRecordNotFound {
		group = domain.NetworkGroup{ID: common.UUIDint64(), Name: groupName}
		if err := db.Create(&group).Error; err != nil {
			t.Fatalf("create group: %v", err)
		}
	} else if err != nil {
		t.Fatalf("find group: %v", err)
	}

	d := domain.SiteDomain{
		ID:             common.UUIDint64(),
		NetworkGroupID: group.ID,
		Domain:         fmt.Sprintf("site-%d.example.com", common.UUIDint64()),
		SiteName:       "Test Site",
		OwnerContact:   "owner@example.com",
		IsActive:       activeDomain,
	}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("create domain: %v", err)
	}

	ep := domain.Endpoint{
		ID:              common.UUIDint64(),
		DomainID:        d.ID,
		URL:             fmt.Sprintf("https://%s/health", d.Domain),
		PollIntervalSec: intervalSec,
		EmailOnFailure:  true,
		IsEnabled:       enabled,
	}
	if err := db.Create(&ep).Error; err != nil {
		t.Fatalf("create endpoint: %v", err)
	}
	return ep.ID
}

func insertCheckAt(t *testing.T, st *Store, endpointID int64, at time.Time) {
	t.Helper()
	code := 200
	latency := 12
	err := st.InsertCheck(context.Background(), CheckRecord{
		EndpointID: endpointID,
		StatusCode: &code,
		LatencyMs:  &latency,
		CheckedAt:  at,
	})
	if err != nil {
		t.Fatalf("insert check: %v", err)
	}
}

func TestFetchDueEndpoints_NeverCheckedIsDue(t *testing.T) {
	st := setupTestStore(t)
	id := seedEndpoint(t, st.db, "campus", 300, true, true)

	due, err := st.FetchDueEndpoints(context.Background(), time.Now().UTC(), 50, "")
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 1 || due[0].EndpointID != id {
		t.Fatalf("expected endpoint %d due, got %+v", id, due)
	}
	if due[0].LastCheckedAt != nil {
		t.Fatalf("never-checked endpoint should have nil LastCheckedAt")
	}
}

func TestFetchDueEndpoints_WithinIntervalNotDue(t *testing.T) {
	st := setupTestStore(t)
	id := seedEndpoint(t, st.db, "campus", 300, true, true)

	now := time.Now().UTC()
	insertCheckAt(t, st, id, now.Add(-60*time.Second))

	due, err := st.FetchDueEndpoints(context.Background(), now, 50, "")
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("endpoint checked 60s ago with 300s interval should not be due, got %d", len(due))
	}

	// Past the interval it becomes due again
	due, err = st.FetchDueEndpoints(context.Background(), now.Add(301*time.Second), 50, "")
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("endpoint past its interval should be due, got %d", len(due))
	}
}

func TestFetchDueEndpoints_SkipsDisabledAndInactive(t *testing.T) {
	st := setupTestStore(t)
	seedEndpoint(t, st.db, "campus", 300, false, true) // disabled endpoint
	seedEndpoint(t, st.db, "campus", 300, true, false) // inactive domain
	active := seedEndpoint(t, st.db, "campus", 300, true, true)

	due, err := st.FetchDueEndpoints(context.Background(), time.Now().UTC(), 50, "")
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 1 || due[0].EndpointID != active {
		t.Fatalf("only the enabled endpoint under an active domain should be due, got %+v", due)
	}
}

func TestFetchDueEndpoints_SegmentFilter(t *testing.T) {
	st := setupTestStore(t)
	campusID := seedEndpoint(t, st.db, "campus", 300, true, true)
	seedEndpoint(t, st.db, "overseas", 300, true, true)

	due, err := st.FetchDueEndpoints(context.Background(), time.Now().UTC(), 50, "campus")
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 1 || due[0].EndpointID != campusID {
		t.Fatalf("segment filter should return only campus endpoints, got %+v", due)
	}
	if due[0].NetworkGroup != "campus" {
		t.Fatalf("expected network group campus, got %s", due[0].NetworkGroup)
	}
}

func TestFetchDueEndpoints_MostOverdueFirstUnderLimit(t *testing.T) {
	st := setupTestStore(t)
	now := time.Now().UTC()

	fresh := seedEndpoint(t, st.db, "campus", 60, true, true)
	stale := seedEndpoint(t, st.db, "campus", 60, true, true)
	never := seedEndpoint(t, st.db, "campus", 60, true, true)

	insertCheckAt(t, st, fresh, now.Add(-70*time.Second))
	insertCheckAt(t, st, stale, now.Add(-600*time.Second))

	due, err := st.FetchDueEndpoints(context.Background(), now, 2, "")
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("limit 2 should cap the batch, got %d", len(due))
	}
	if due[0].EndpointID != never {
		t.Fatalf("never-checked endpoint should come first, got %d", due[0].EndpointID)
	}
	if due[1].EndpointID != stale {
		t.Fatalf("most overdue endpoint should come second, got %d", due[1].EndpointID)
	}
}

func TestInsertCheckIfStale(t *testing.T) {
	st := setupTestStore(t)
	id := seedEndpoint(t, st.db, "campus", 60, true, true)
	now := time.Now().UTC()
	threshold := 90 * time.Second

	msg := "no signal within expected window"
	zero := 0
	rec := CheckRecord{
		EndpointID: id,
		LatencyMs:  &zero,
		Error:      &msg,
		Source:     domain.CheckSourceSilence,
		CheckedAt:  now,
	}

	// No prior check: insert
	inserted, err := st.InsertCheckIfStale(context.Background(), rec, threshold)
	if err != nil {
		t.Fatalf("insert if stale: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert should succeed with no prior check")
	}

	// Immediate second invocation sees the fresh row and must not insert
	rec.TraceID = common.UUID()
	inserted, err = st.InsertCheckIfStale(context.Background(), rec, threshold)
	if err != nil {
		t.Fatalf("insert if stale: %v", err)
	}
	if inserted {
		t.Fatalf("second pass must not insert a duplicate no-signal row")
	}

	var count int64
	st.db.Model(&domain.Check{}).Where("endpoint_id = ?", id).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one check row, got %d", count)
	}
}

func TestFetchLatestCheck(t *testing.T) {
	st := setupTestStore(t)
	id := seedEndpoint(t, st.db, "campus", 60, true, true)

	latest, err := st.FetchLatestCheck(context.Background(), id)
	if err != nil {
		t.Fatalf("fetch latest: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil for an endpoint with no checks")
	}

	now := time.Now().UTC().Truncate(time.Second)
	insertCheckAt(t, st, id, now.Add(-2*time.Minute))
	insertCheckAt(t, st, id, now)

	latest, err = st.FetchLatestCheck(context.Background(), id)
	if err != nil {
		t.Fatalf("fetch latest: %v", err)
	}
	if latest == nil || !latest.CheckedAt.Equal(now) {
		t.Fatalf("expected newest check at %v, got %+v", now, latest)
	}
}

func TestConfigRevision(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	rev, err := st.FetchConfigRevision(ctx)
	if err != nil {
		t.Fatalf("fetch revision: %v", err)
	}
	if rev != 0 {
		t.Fatalf("empty table should yield revision 0, got %d", rev)
	}

	if err := st.BumpConfigRevision(ctx, "endpoint created", "admin"); err != nil {
		t.Fatalf("bump revision: %v", err)
	}
	first, err := st.FetchConfigRevision(ctx)
	if err != nil {
		t.Fatalf("fetch revision: %v", err)
	}
	if first == 0 {
		t.Fatalf("revision should be non-zero after a bump")
	}

	if err := st.BumpConfigRevision(ctx, "endpoint deleted", "admin"); err != nil {
		t.Fatalf("bump revision: %v", err)
	}
	second, err := st.FetchConfigRevision(ctx)
	if err != nil {
		t.Fatalf("fetch revision: %v", err)
	}
	if second <= first {
		t.Fatalf("revision must increase monotonically: %d then %d", first, second)
	}
}

func TestSaveRollup_ChangeTimestampOnlyMovesOnStatusChange(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if err := st.SaveRollup(ctx, domain.RollupLevelEndpoint, 42, "GREEN", "2xx"); err != nil {
		t.Fatalf("save rollup: %v", err)
	}
	first, err := st.GetRollup(ctx, domain.RollupLevelEndpoint, 42)
	if err != nil || first == nil {
		t.Fatalf("get rollup: %v %+v", err, first)
	}

	time.Sleep(10 * time.Millisecond)
	if err := st.SaveRollup(ctx, domain.RollupLevelEndpoint, 42, "GREEN", "2xx again"); err != nil {
		t.Fatalf("save rollup: %v", err)
	}
	same, _ := st.GetRollup(ctx, domain.RollupLevelEndpoint, 42)
	if !same.LastChangeAt.Equal(first.LastChangeAt) {
		t.Fatalf("same status must not move last_change_at")
	}
	if same.LastReason != "2xx again" {
		t.Fatalf("reason should refresh on every save, got %s", same.LastReason)
	}

	time.Sleep(10 * time.Millisecond)
	if err := st.SaveRollup(ctx, domain.RollupLevelEndpoint, 42, "RED", "status 500"); err != nil {
		t.Fatalf("save rollup: %v", err)
	}
	changed, _ := st.GetRollup(ctx, domain.RollupLevelEndpoint, 42)
	if !changed.LastChangeAt.After(first.LastChangeAt) {
		t.Fatalf("status change must move last_change_at")
	}
	if changed.LastStatus != "RED" {
		t.Fatalf("expected RED, got %s", changed.LastStatus)
	}
}

func TestInsertCheck_CapsHeaders(t *testing.T) {
	st := setupTestStore(t)
	id := seedEndpoint(t, st.db, "campus", 60, true, true)

	long := make([]byte, 6000)
	for i := range long {
		long[i] = 'h'
	}
	code := 200
	err := st.InsertCheck(context.Background(), CheckRecord{
		EndpointID: id,
		StatusCode: &code,
		Headers:    string(long),
		CheckedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert check: %v", err)
	}

	latest, err := st.FetchLatestCheck(context.Background(), id)
	if err != nil {
		t.Fatalf("fetch latest: %v", err)
	}
	if len(latest.Headers) != 4000 {
		t.Fatalf("headers should be capped at 4000 chars, got %d", len(latest.Headers))
	}
}

func TestPruneChecks(t *testing.T) {
	st := setupTestStore(t)
	id := seedEndpoint(t, st.db, "campus", 60, true, true)
	now := time.Now().UTC()

	insertCheckAt(t, st, id, now.Add(-100*24*time.Hour))
	insertCheckAt(t, st, id, now.Add(-1*time.Hour))

	removed, err := st.PruneChecks(context.Background(), now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned row, got %d", removed)
	}

	var count int64
	st.db.Model(&domain.Check{}).Count(&count)
	if count != 1 {
		t.Fatalf("recent check should survive pruning, got %d rows", count)
	}
}
