package domain

import "time"

// Monitoring topology models. NetworkGroup -> SiteDomain -> Endpoint is a
// strict tree; deletes are rejected while children exist.

// NetworkGroup groups domains by network segment (campus, KT, LG, overseas...)
type NetworkGroup struct {
	ID        int64     `json:"id,string" form:"id"`
	Name      string    `gorm:"uniqueIndex;size:100" json:"name" form:"name"` // Segment name, unique
	Note      string    `json:"note" form:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (NetworkGroup) TableName() string {
	return "network_groups"
}

// SiteDomain is one monitored site under a network group
type SiteDomain struct {
	ID             int64     `json:"id,string" form:"id"`
	NetworkGroupID int64     `gorm:"index;uniqueIndex:idx_group_domain" json:"network_group_id,string" form:"network_group_id"`
	Domain         string    `gorm:"size:255;uniqueIndex:idx_group_domain" json:"domain" form:"domain"` // Domain name, unique per group
	SiteName       string    `gorm:"size:255" json:"site_name" form:"site_name"`
	OwnerName      string    `gorm:"size:100" json:"owner_name" form:"owner_name"`
	OwnerContact   string    `gorm:"size:100" json:"owner_contact" form:"owner_contact"`
	IsActive       bool      `gorm:"default:true" json:"is_active" form:"is_active"`
	Note           string    `json:"note" form:"note"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SiteDomain) TableName() string {
	return "domains"
}

// Endpoint is the unit of probing: one URL with its own polling cadence
type Endpoint struct {
	ID              int64     `json:"id,string" form:"id"`
	DomainID        int64     `gorm:"index" json:"domain_id,string" form:"domain_id"`
	URL             string    `gorm:"size:2000" json:"url" form:"url"`
	PollIntervalSec int       `gorm:"default:300" json:"poll_interval_sec" form:"poll_interval_sec"` // 30..3600
	RequiresDB      bool      `gorm:"default:false" json:"requires_db" form:"requires_db"`
	EmailOnFailure  bool      `gorm:"default:true" json:"email_on_failure" form:"email_on_failure"`
	IsEnabled       bool      `gorm:"default:true" json:"is_enabled" form:"is_enabled"`
	Note            string    `json:"note" form:"note"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Endpoint) TableName() string {
	return "endpoints"
}

const (
	// PollIntervalMin is the lowest accepted endpoint polling interval
	PollIntervalMin = 30
	// PollIntervalMax is the highest accepted endpoint polling interval
	PollIntervalMax = 3600
)
