package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pond75jnu/svcmon/config"
	"github.com/pond75jnu/svcmon/internal/app"
	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/internal/webserver"
)

func setupAPITestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
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

	application := app.NewApplication(config.DefaultAppConfig)
	application.OverrideDB(db)

	web := webserver.Init(application)
	RegisterRoutes()

	srv := httptest.NewServer(web.Echo())
	t.Cleanup(srv.Close)
	return srv, db
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestCreateGroupDomainEndpointChain(t *testing.T) {
	srv, db := setupAPITestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/network/groups", map[string]interface{}{
		"name": "campus",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d", resp.StatusCode)
	}
	var group domain.NetworkGroup
	_ = json.NewDecoder(resp.Body).Decode(&group)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/network/domains", map[string]interface{}{
		"network_group_id": fmt.Sprintf("%d", group.ID),
		"domain":           "www.example.ac.kr",
		"site_name":        "Main Site",
		"owner_contact":    "admin@example.ac.kr",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create domain: expected 201, got %d", resp.StatusCode)
	}
	var d domain.SiteDomain
	_ = json.NewDecoder(resp.Body).Decode(&d)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/network/endpoints", map[string]interface{}{
		"domain_id":         fmt.Sprintf("%d", d.ID),
		"url":               "https://www.example.ac.kr/health",
		"poll_interval_sec": 300,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create endpoint: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Every mutation bumps the config revision
	var revisions int64
	db.Model(&domain.ConfigRevision{}).Count(&revisions)
	if revisions != 3 {
		t.Fatalf("expected 3 config revisions after 3 mutations, got %d", revisions)
	}
}

func TestCreateEndpoint_RejectsOutOfRangeInterval(t *testing.T) {
	srv, db := setupAPITestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/network/endpoints", map[string]interface{}{
		"domain_id":         "1",
		"url":               "https://www.example.ac.kr/health",
		"poll_interval_sec": 10,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("interval below minimum should be rejected, got %d", resp.StatusCode)
	}

	var count int64
	db.Model(&domain.Endpoint{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected endpoint must not be stored")
	}
}

func TestDeleteGroup_RejectedWhileDomainsExist(t *testing.T) {
	srv, db := setupAPITestServer(t)

	group := domain.NetworkGroup{ID: 1, Name: "campus"}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	d := domain.SiteDomain{ID: 2, NetworkGroupID: 1, Domain: "www.example.ac.kr", IsActive: true}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("create domain: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/network/groups/1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete group: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete with children should return 409, got %d", resp.StatusCode)
	}

	var count int64
	db.Model(&domain.NetworkGroup{}).Count(&count)
	if count != 1 {
		t.Fatalf("group must survive a rejected delete")
	}
}

func TestStatusOverview_EmptyGroupIsAmber(t *testing.T) {
	srv, db := setupAPITestServer(t)

	if err := db.Create(&domain.NetworkGroup{ID: 1, Name: "campus"}).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/status/overview")
	if err != nil {
		t.Fatalf("get overview: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var views []groupStatusView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 group, got %d", len(views))
	}
	if views[0].Status != "AMBER" {
		t.Fatalf("group without endpoints should read AMBER, got %s", views[0].Status)
	}

	// The overview writes through the rollup cache
	st := store.NewStore(db)
	rollup, err := st.GetRollup(context.Background(), domain.RollupLevelNetwork, 1)
	if err != nil || rollup == nil {
		t.Fatalf("rollup not cached: %v %+v", err, rollup)
	}
	if rollup.LastStatus != "AMBER" {
		t.Fatalf("cached rollup should be AMBER, got %s", rollup.LastStatus)
	}
}
