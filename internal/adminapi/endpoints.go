package adminapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/monitor"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/internal/webserver"
	"github.com/pond75jnu/svcmon/pkg/common"
)

// endpointPayload represents the endpoint request structure
type endpointPayload struct {
	DomainID        int64  `json:"domain_id,string" validate:"required"`
	URL             string `json:"url" validate:"required,url,max=2000"`
	PollIntervalSec int    `json:"poll_interval_sec" validate:"required,min=30,max=3600"`
	RequiresDB      *bool  `json:"requires_db"`
	EmailOnFailure  *bool  `json:"email_on_failure"`
	IsEnabled       *bool  `json:"is_enabled"`
	Note            string `json:"note" validate:"omitempty,max=500"`
}

// bulkEndpointPayload represents a bulk endpoint operation
type bulkEndpointPayload struct {
	IDs             []int64 `json:"ids" validate:"required,min=1"`
	Action          string  `json:"action" validate:"required,oneof=enable disable update_interval"`
	PollIntervalSec int     `json:"poll_interval_sec" validate:"omitempty,min=30,max=3600"`
}

func registerEndpointRoutes() {
	webserver.ApiGET("/network/endpoints", ListEndpoints)
	webserver.ApiGET("/network/endpoints/:id", GetEndpoint)
	webserver.ApiPOST("/network/endpoints", CreateEndpoint)
	webserver.ApiPUT("/network/endpoints/:id", UpdateEndpoint)
	webserver.ApiDELETE("/network/endpoints/:id", DeleteEndpoint)
	webserver.ApiPOST("/network/endpoints/bulk", BulkUpdateEndpoints)
	webserver.ApiPOST("/network/endpoints/:id/check", TriggerManualCheck)
	webserver.ApiGET("/network/endpoints/:id/checks", ListEndpointChecks)
}

// ListEndpoints retrieves the endpoint list
func ListEndpoints(c echo.Context) error {
	db := GetDB(c)
	page, perPage, offset := pagination(c)

	var total int64
	var endpoints []domain.Endpoint

	query := db.Model(&domain.Endpoint{})
	if did := strings.TrimSpace(c.QueryParam("domain_id")); did != "" {
		query = query.Where("domain_id = ?", did)
	}
	if enabled := strings.TrimSpace(c.QueryParam("is_enabled")); enabled != "" {
		query = query.Where("is_enabled = ?", enabled == "true")
	}
	if url := strings.TrimSpace(c.QueryParam("url")); url != "" {
		query = query.Where("LOWER(url) LIKE ?", "%"+strings.ToLower(url)+"%")
	}
	query.Count(&total)
	query.Order("id DESC").Limit(perPage).Offset(offset).Find(&endpoints)

	return ok(c, ListResponse{Total: total, Page: page, PerPage: perPage, Data: endpoints})
}

// GetEndpoint retrieves one endpoint
func GetEndpoint(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID", nil)
	}
	var ep domain.Endpoint
	if err := GetDB(c).First(&ep, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Endpoint not found", nil)
	}
	return ok(c, ep)
}

// CreateEndpoint creates an endpoint under a domain
func CreateEndpoint(c echo.Context) error {
	var payload endpointPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION", "Validation failed", err.Error())
	}

	db := GetDB(c)
	var d domain.SiteDomain
	if err := db.First(&d, payload.DomainID).Error; err != nil {
		return fail(c, http.StatusBadRequest, "NO_DOMAIN", "Domain does not exist", nil)
	}

	ep := domain.Endpoint{
		ID:              common.UUIDint64(),
		DomainID:        payload.DomainID,
		URL:             payload.URL,
		PollIntervalSec: payload.PollIntervalSec,
		RequiresDB:      payload.RequiresDB != nil && *payload.RequiresDB,
		EmailOnFailure:  payload.EmailOnFailure == nil || *payload.EmailOnFailure,
		IsEnabled:       payload.IsEnabled == nil || *payload.IsEnabled,
		Note:            payload.Note,
	}
	if err := db.Create(&ep).Error; err != nil {
		return fail(c, http.StatusConflict, "CREATE_FAILED", "Failed to create endpoint", err.Error())
	}

	oprLog(c, "create_endpoint", ep.URL)
	bumpRevision(c, fmt.Sprintf("endpoint created: %s (%s)", ep.URL, d.Domain))
	return c.JSON(http.StatusCreated, ep)
}

// UpdateEndpoint updates an endpoint. Interval changes affect future
// scheduling only; recorded checks keep their timeline.
func UpdateEndpoint(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID", nil)
	}

	var payload endpointPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION", "Validation failed", err.Error())
	}

	db := GetDB(c)
	var ep domain.Endpoint
	if err := db.First(&ep, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Endpoint not found", nil)
	}

	updates := map[string]interface{}{
		"domain_id":         payload.DomainID,
		"url":               payload.URL,
		"poll_interval_sec": payload.PollIntervalSec,
		"note":              payload.Note,
	}
	if payload.RequiresDB != nil {
		updates["requires_db"] = *payload.RequiresDB
	}
	if payload.EmailOnFailure != nil {
		updates["email_on_failure"] = *payload.EmailOnFailure
	}
	if payload.IsEnabled != nil {
		updates["is_enabled"] = *payload.IsEnabled
	}

	if err := db.Model(&ep).Updates(updates).Error; err != nil {
		return fail(c, http.StatusConflict, "UPDATE_FAILED", "Failed to update endpoint", err.Error())
	}

	oprLog(c, "update_endpoint", payload.URL)
	bumpRevision(c, fmt.Sprintf("endpoint updated: %s", payload.URL))
	return ok(c, ep)
}

// DeleteEndpoint deletes an endpoint
func DeleteEndpoint(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID", nil)
	}

	db := GetDB(c)
	var ep domain.Endpoint
	if err := db.First(&ep, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Endpoint not found", nil)
	}

	if err := db.Delete(&domain.Endpoint{}, id).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete endpoint", err.Error())
	}

	oprLog(c, "delete_endpoint", ep.URL)
	bumpRevision(c, fmt.Sprintf("endpoint deleted: %s", ep.URL))
	return c.NoContent(http.StatusNoContent)
}

// BulkUpdateEndpoints applies enable/disable/update_interval to many
// endpoints at once.
func BulkUpdateEndpoints(c echo.Context) error {
	var payload bulkEndpointPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION", "Validation failed", err.Error())
	}

	db := GetDB(c)
	query := db.Model(&domain.Endpoint{}).Where("id IN ?", payload.IDs)

	var err error
	switch payload.Action {
	case "enable":
		err = query.Update("is_enabled", true).Error
	case "disable":
		err = query.Update("is_enabled", false).Error
	case "update_interval":
		if payload.PollIntervalSec < domain.PollIntervalMin || payload.PollIntervalSec > domain.PollIntervalMax {
			return fail(c, http.StatusBadRequest, "VALIDATION", "poll_interval_sec out of range", nil)
		}
		err = query.Update("poll_interval_sec", payload.PollIntervalSec).Error
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "BULK_FAILED", "Bulk update failed", err.Error())
	}

	reason := fmt.Sprintf("bulk endpoint %s (%d endpoints)", payload.Action, len(payload.IDs))
	oprLog(c, "bulk_update_endpoints", reason)
	bumpRevision(c, reason)
	return ok(c, map[string]interface{}{"updated": len(payload.IDs)})
}

// TriggerManualCheck probes one endpoint immediately and persists the result
func TriggerManualCheck(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID", nil)
	}

	db := GetDB(c)
	var ep domain.Endpoint
	if err := db.First(&ep, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Endpoint not found", nil)
	}

	app := GetApp(c)
	timeout := time.Duration(app.Config().Monitor.ProbeTimeout) * time.Second
	prober := monitor.NewProber(timeout)

	rec := prober.Probe(c.Request().Context(), store.EndpointProbe{
		EndpointID:      ep.ID,
		URL:             ep.URL,
		PollIntervalSec: ep.PollIntervalSec,
	})
	if err := GetStore(c).InsertCheck(c.Request().Context(), rec); err != nil {
		return fail(c, http.StatusInternalServerError, "PERSIST_FAILED", "Failed to persist check", err.Error())
	}

	oprLog(c, "manual_check", ep.URL)
	return ok(c, rec)
}

// ListEndpointChecks returns an endpoint's recent checks, newest first
func ListEndpointChecks(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID", nil)
	}

	db := GetDB(c)
	page, perPage, offset := pagination(c)

	var total int64
	var checks []domain.Check
	query := db.Model(&domain.Check{}).Where("endpoint_id = ?", id)
	query.Count(&total)
	query.Order("checked_at DESC").Limit(perPage).Offset(offset).Find(&checks)

	return ok(c, ListResponse{Total: total, Page: page, PerPage: perPage, Data: checks})
}
