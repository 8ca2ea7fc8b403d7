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

// domainPayload represents the domain request structure
type domainPayload struct {
	NetworkGroupID int64  `json:"network_group_id,string" validate:"required"`
	Domain         string `json:"domain" validate:"required,max=255"`
	SiteName       string `json:"site_name" validate:"required,max=255"`
	OwnerName      string `json:"owner_name" validate:"omitempty,max=100"`
	OwnerContact   string `json:"owner_contact" validate:"omitempty,max=100"`
	IsActive       *bool  `json:"is_active"`
	Note           string `json:"note" validate:"omitempty,max=500"`
}

func registerDomainRoutes() {
	webserver.ApiGET("/network/domains", ListDomains)
	webserver.ApiGET("/network/domains/:id", GetDomain)
	webserver.ApiPOST("/network/domains", CreateDomain)
	webserver.ApiPUT("/network/domains/:id", UpdateDomain)
	webserver.ApiDELETE("/network/domains/:id", DeleteDomain)
}

// ListDomains retrieves the domain list
func ListDomains(c echo.Context) error {
	db := GetDB(c)
	page, perPage, offset := pagination(c)

	var total int64
	var domains []domain.SiteDomain

	query := db.Model(&domain.SiteDomain{})
	if gid := strings.TrimSpace(c.QueryParam("network_group_id")); gid != "" {
		query = query.Where("network_group_id = ?", gid)
	}
	if name := strings.TrimSpace(c.QueryParam("domain")); name != "" {
		query = query.Where("LOWER(domain) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if active := strings.TrimSpace(c.QueryParam("is_active")); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}
	query.Count(&total)
	query.Order("domain ASC").Limit(perPage).Offset(offset).Find(&domains)

	return ok(c, ListResponse{Total: total, Page: page, PerPage: perPage, Data: domains})
}

// GetDomain retrieves one domain
func GetDomain(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid domain ID", nil)
	}
	var d domain.SiteDomain
	if err := GetDB(c).First(&d, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Domain not found", nil)
	}
	return ok(c, d)
}

// CreateDomain creates a domain under a network group
func CreateDomain(c echo.Context) error {
	var payload domainPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION", "Validation failed", err.Error())
	}

	db := GetDB(c)
	var group domain.NetworkGroup
	if err := db.First(&group, payload.NetworkGroupID).Error; err != nil {
		return fail(c, http.StatusBadRequest, "NO_GROUP", "Network group does not exist", nil)
	}

	isActive := true
	if payload.IsActive != nil {
		isActive = *payload.IsActive
	}

	d := domain.SiteDomain{
		ID:             common.UUIDint64(),
		NetworkGroupID: payload.NetworkGroupID,
		Domain:         payload.Domain,
		SiteName:       payload.SiteName,
		OwnerName:      payload.OwnerName,
		OwnerContact:   payload.OwnerContact,
		IsActive:       isActive,
		Note:           payload.Note,
	}
	if err := db.Create(&d).Error; err != nil {
		return fail(c, http.StatusConflict, "CREATE_FAILED", "Failed to create domain", err.Error())
	}

	oprLog(c, "create_domain", d.Domain)
	bumpRevision(c, fmt.Sprintf("domain created: %s (%s)", d.Domain, group.Name))
	return c.JSON(http.StatusCreated, d)
}

// UpdateDomain updates a domain
func UpdateDomain(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid domain ID", nil)
	}

	var payload domainPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION", "Validation failed", err.Error())
	}

	db := GetDB(c)
	var d domain.SiteDomain
	if err := db.First(&d, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Domain not found", nil)
	}

	updates := map[string]interface{}{
		"network_group_id": payload.NetworkGroupID,
		"domain":           payload.Domain,
		"site_name":        payload.SiteName,
		"owner_name":       payload.OwnerName,
		"owner_contact":    payload.OwnerContact,
		"note":             payload.Note,
	}
	if payload.IsActive != nil {
		updates["is_active"] = *payload.IsActive
	}

	if err := db.Model(&d).Updates(updates).Error; err != nil {
		return fail(c, http.StatusConflict, "UPDATE_FAILED", "Failed to update domain", err.Error())
	}

	oprLog(c, "update_domain", payload.Domain)
	bumpRevision(c, fmt.Sprintf("domain updated: %s", payload.Domain))
	return ok(c, d)
}

// DeleteDomain deletes a domain; rejected while endpoints remain
func DeleteDomain(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid domain ID", nil)
	}

	db := GetDB(c)
	var d domain.SiteDomain
	if err := db.First(&d, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Domain not found", nil)
	}

	var children int64
	db.Model(&domain.Endpoint{}).Where("domain_id = ?", id).Count(&children)
	if children > 0 {
		return fail(c, http.StatusConflict, "HAS_CHILDREN",
			"Domain still has endpoints", children)
	}

	if err := db.Delete(&domain.SiteDomain{}, id).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete domain", err.Error())
	}

	oprLog(c, "delete_domain", d.Domain)
	bumpRevision(c, fmt.Sprintf("domain deleted: %s", d.Domain))
	return c.NoContent(http.StatusNoContent)
}
