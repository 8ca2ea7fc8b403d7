package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/monitor"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/internal/webserver"
	"github.com/pond75jnu/svcmon/pkg/metrics"
)

type endpointStatusView struct {
	Endpoint domain.Endpoint    `json:"endpoint"`
	Status   monitor.Status     `json:"status"`
	Latest   *store.CheckRecord `json:"latest_check"`
}

type domainStatusView struct {
	Domain     domain.SiteDomain `json:"domain"`
	Status     monitor.Status    `json:"status"`
	GreenCount int               `json:"green_count"`
	AmberCount int               `json:"amber_count"`
	RedCount   int               `json:"red_count"`
}

type groupStatusView struct {
	NetworkGroup domain.NetworkGroup `json:"network_group"`
	Status       monitor.Status      `json:"status"`
	Total        int                 `json:"total_endpoints"`
	GreenCount   int                 `json:"green_count"`
	AmberCount   int                 `json:"amber_count"`
	RedCount     int                 `json:"red_count"`
}

func registerStatusRoutes() {
	webserver.ApiGET("/status/overview", StatusOverview)
	webserver.ApiGET("/status/groups/:id", GroupStatus)
	webserver.ApiGET("/status/domains/:id", DomainStatus)
	webserver.ApiGET("/status/metrics/:name", MetricSeries)
	webserver.ApiGET("/health", Health)
}

// Health reports process liveness and store reachability
func Health(c echo.Context) error {
	if err := GetStore(c).Ping(c.Request().Context()); err != nil {
		return fail(c, http.StatusServiceUnavailable, "STORE_DOWN", "Entity store unreachable", err.Error())
	}
	return ok(c, map[string]string{"status": "up"})
}

// StatusOverview returns per-group status with endpoint counts. Status is
// resolved live from check rows; the rollup cache is refreshed as a side
// effect but never read.
func StatusOverview(c echo.Context) error {
	db := GetDB(c)
	st := GetStore(c)
	ctx := c.Request().Context()
	now := time.Now().UTC()

	var groups []domain.NetworkGroup
	db.Order("name ASC").Find(&groups)

	views := make([]groupStatusView, 0, len(groups))
	for _, g := range groups {
		view, err := resolveGroup(c, st, g, now)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "RESOLVE_FAILED", "Status resolution failed", err.Error())
		}
		_ = st.SaveRollup(ctx, domain.RollupLevelNetwork, g.ID, string(view.Status), "overview refresh")
		views = append(views, view)
	}
	return ok(c, views)
}

// GroupStatus returns the per-domain breakdown of one network group
func GroupStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid network group ID", nil)
	}

	db := GetDB(c)
	st := GetStore(c)
	ctx := c.Request().Context()
	now := time.Now().UTC()

	var group domain.NetworkGroup
	if err := db.First(&group, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Network group not found", nil)
	}

	var domains []domain.SiteDomain
	db.Where("network_group_id = ? and is_active = ?", id, true).Order("domain ASC").Find(&domains)

	views := make([]domainStatusView, 0, len(domains))
	for _, d := range domains {
		view, err := resolveDomain(c, st, d, now)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "RESOLVE_FAILED", "Status resolution failed", err.Error())
		}
		_ = st.SaveRollup(ctx, domain.RollupLevelDomain, d.ID, string(view.Status), "group detail refresh")
		views = append(views, view)
	}
	return ok(c, views)
}

// DomainStatus returns per-endpoint status with the latest check detail
func DomainStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid domain ID", nil)
	}

	db := GetDB(c)
	st := GetStore(c)
	ctx := c.Request().Context()
	now := time.Now().UTC()

	var d domain.SiteDomain
	if err := db.First(&d, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Domain not found", nil)
	}

	var endpoints []domain.Endpoint
	db.Where("domain_id = ? and is_enabled = ?", id, true).Order("id ASC").Find(&endpoints)

	views := make([]endpointStatusView, 0, len(endpoints))
	for _, ep := range endpoints {
		latest, err := st.FetchLatestCheck(ctx, ep.ID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "RESOLVE_FAILED", "Status resolution failed", err.Error())
		}
		status := monitor.ResolveEndpoint(latest, ep.PollIntervalSec, now)
		_ = st.SaveRollup(ctx, domain.RollupLevelEndpoint, ep.ID, string(status),
			monitor.StatusReason(latest, ep.PollIntervalSec, now))
		views = append(views, endpointStatusView{Endpoint: ep, Status: status, Latest: latest})
	}
	return ok(c, views)
}

// MetricSeries returns datapoints for one process metric over the last day
func MetricSeries(c echo.Context) error {
	name := c.Param("name")
	end := time.Now().Unix()
	start := end - 86400
	points, err := metrics.Select(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_FAILED", "Metric query failed", err.Error())
	}
	return ok(c, points)
}

func resolveDomain(c echo.Context, st *store.Store, d domain.SiteDomain, now time.Time) (domainStatusView, error) {
	db := GetDB(c)
	ctx := c.Request().Context()

	var endpoints []domain.Endpoint
	db.Where("domain_id = ? and is_enabled = ?", d.ID, true).Find(&endpoints)

	view := domainStatusView{Domain: d}
	children := make([]monitor.Status, 0, len(endpoints))
	for _, ep := range endpoints {
		latest, err := st.FetchLatestCheck(ctx, ep.ID)
		if err != nil {
			return view, err
		}
		s := monitor.ResolveEndpoint(latest, ep.PollIntervalSec, now)
		children = append(children, s)
		switch s {
		case monitor.StatusGreen:
			view.GreenCount++
		case monitor.StatusAmber:
			view.AmberCount++
		case monitor.StatusRed:
			view.RedCount++
		}
	}
	view.Status = monitor.ResolveRollup(children)
	return view, nil
}

func resolveGroup(c echo.Context, st *store.Store, g domain.NetworkGroup, now time.Time) (groupStatusView, error) {
	db := GetDB(c)

	var domains []domain.SiteDomain
	db.Where("network_group_id = ? and is_active = ?", g.ID, true).Find(&domains)

	view := groupStatusView{NetworkGroup: g}
	children := make([]monitor.Status, 0)
	for _, d := range domains {
		dv, err := resolveDomain(c, st, d, now)
		if err != nil {
			return view, err
		}
		view.GreenCount += dv.GreenCount
		view.AmberCount += dv.AmberCount
		view.RedCount += dv.RedCount
		view.Total += dv.GreenCount + dv.AmberCount + dv.RedCount
		// Group status folds endpoint statuses transitively, not domain
		// summaries, so an empty domain does not mask healthy siblings.
		for i := 0; i < dv.GreenCount; i++ {
			children = append(children, monitor.StatusGreen)
		}
		for i := 0; i < dv.AmberCount; i++ {
			children = append(children, monitor.StatusAmber)
		}
		for i := 0; i < dv.RedCount; i++ {
			children = append(children, monitor.StatusRed)
		}
	}
	view.Status = monitor.ResolveRollup(children)
	return view, nil
}
