package adminapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/webserver"
	"github.com/pond75jnu/svcmon/pkg/common"
)

// groupPayload represents the network group request structure
type groupPayload struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
	Note string `json:"note" validate:"omitempty,max=500"`
}

type cloneGroupPayload struct {
	TargetID int64 `json:"target_id,string" validate:"required"`
}

func registerGroupRoutes() {
	webserver.ApiGET("/network/groups", ListNetworkGroups)
	webserver.ApiGET("/network/groups/:id", GetNetworkGroup)
	webserver.ApiPOST("/network/groups", CreateNetworkGroup)
	webserver.ApiPUT("/network/groups/:id", UpdateNetworkGroup)
	webserver.ApiDELETE("/network/groups/:id", DeleteNetworkGroup)
	webserver.ApiPOST("/network/groups/:id/clone", CloneNetworkGroup)
}

// ListNetworkGroups retrieves the network group list
func ListNetworkGroups(c echo.Context) error {
	db := GetDB(c)
	page, perPage, offset := pagination(c)

	var total int64
	var groups []domain.NetworkGroup

	query := db.Model(&domain.NetworkGroup{})
	if name := strings.TrimSpace(c.QueryParam("name")); name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	query.Count(&total)
	query.Order("name ASC").Limit(perPage).Offset(offset).Find(&groups)

	return ok(c, ListResponse{Total: total, Page: page, PerPage: perPage, Data: groups})
}

// GetNetworkGroup retrieves one network group
func GetNetworkGroup(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid network group ID", nil)
	}
	var group domain.NetworkGroup
	if err := GetDB(c).First(&group, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Network group not found", nil)
	}
	return ok(c, group)
}

// CreateNetworkGroup creates a network group
func CreateNetworkGroup(c echo.Context) error {
	var payload groupPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION", "Validation failed", err.Error())
	}

	group := domain.NetworkGroup{
		ID:   common.UUIDint64(),
		Name: payload.Name,
		Note: payload.Note,
	}
	if err := GetDB(c).Create(&group).Error; err != nil {
		return fail(c, http.StatusConflict, "CREATE_FAILED", "Failed to create network group", err.Error())
	}

	oprLog(c, "create_network_group", group.Name)
	bumpRevision(c, fmt.Sprintf("network group created: %s", group.Name))
	return c.JSON(http.StatusCreated, group)
}

// UpdateNetworkGroup updates a network group
func UpdateNetworkGroup(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid network group ID", nil)
	}

	var payload groupPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION", "Validation failed", err.Error())
	}

	db := GetDB(c)
	var group domain.NetworkGroup
	if err := db.First(&group, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Network group not found", nil)
	}

	if err := db.Model(&group).Updates(map[string]interface{}{
		"name": payload.Name,
		"note": payload.Note,
	}).Error; err != nil {
		return fail(c, http.StatusConflict, "UPDATE_FAILED", "Failed to update network group", err.Error())
	}

	oprLog(c, "update_network_group", payload.Name)
	bumpRevision(c, fmt.Sprintf("network group updated: %s", payload.Name))
	return ok(c, group)
}

// DeleteNetworkGroup deletes a network group; rejected while domains remain
func DeleteNetworkGroup(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid network group ID", nil)
	}

	db := GetDB(c)
	var group domain.NetworkGroup
	if err := db.First(&group, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Network group not found", nil)
	}

	var children int64
	db.Model(&domain.SiteDomain{}).Where("network_group_id = ?", id).Count(&children)
	if children > 0 {
		return fail(c, http.StatusConflict, "HAS_CHILDREN",
			"Network group still has domains", children)
	}

	if err := db.Delete(&domain.NetworkGroup{}, id).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete network group", err.Error())
	}

	oprLog(c, "delete_network_group", group.Name)
	bumpRevision(c, fmt.Sprintf("network group deleted: %s", group.Name))
	return c.NoContent(http.StatusNoContent)
}

// CloneNetworkGroup copies all domains and endpoints of a source group into
// the target group.
func CloneNetworkGroup(c echo.Context) error {
	sourceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid network group ID", nil)
	}

	var payload cloneGroupPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION", "Validation failed", err.Error())
	}

	db := GetDB(c)
	var source, target domain.NetworkGroup
	if err := db.First(&source, sourceID).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Source network group not found", nil)
	}
	if err := db.First(&target, payload.TargetID).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Target network group not found", nil)
	}

	var cloned int
	var sourceDomains []domain.SiteDomain
	db.Where("network_group_id = ?", source.ID).Find(&sourceDomains)

	for _, d := range sourceDomains {
		newDomain := domain.SiteDomain{
			ID:             common.UUIDint64(),
			NetworkGroupID: target.ID,
			Domain:         d.Domain,
			SiteName:       d.SiteName,
			OwnerName:      d.OwnerName,
			OwnerContact:   d.OwnerContact,
			IsActive:       d.IsActive,
			Note:           d.Note,
		}
		if err := db.Create(&newDomain).Error; err != nil {
			continue
		}

		var endpoints []domain.Endpoint
		db.Where("domain_id = ?", d.ID).Find(&endpoints)
		for _, e := range endpoints {
			db.Create(&domain.Endpoint{
				ID:              common.UUIDint64(),
				DomainID:        newDomain.ID,
				URL:             e.URL,
				PollIntervalSec: e.PollIntervalSec,
				RequiresDB:      e.RequiresDB,
				EmailOnFailure:  e.EmailOnFailure,
				IsEnabled:       e.IsEnabled,
				Note:            e.Note,
			})
			cloned++
		}
	}

	reason := fmt.Sprintf("network group cloned: %s -> %s (%d endpoints)",
		source.Name, target.Name, cloned)
	oprLog(c, "clone_network_group", reason)
	bumpRevision(c, reason)
	return ok(c, map[string]interface{}{"cloned_endpoints": cloned})
}
