package domain

import "time"

// Check source discriminators
const (
	CheckSourceProbe   = "probe"
	CheckSourceSilence = "silence"
)

// Check is one immutable probe outcome. Rows are append-only: written by the
// prober (real checks) or the silence detector (synthesized no-signal checks),
// never updated, eventually pruned by retention.
type Check struct {
	ID         int64     `json:"id,string" form:"id"`
	EndpointID int64     `gorm:"index:idx_endpoint_checked,priority:1" json:"endpoint_id,string" form:"endpoint_id"`
	StatusCode *int      `json:"status_code"`                   // nil on transport failure or no-signal
	LatencyMs  *int      `json:"latency_ms"`                    // nil when no response was received
	Headers    string    `gorm:"size:4000" json:"headers"`      // capped serialization of response headers
	Error      *string   `json:"error"`                         // advisory failure classification
	Source     string    `gorm:"size:10;default:'probe'" json:"source"`
	CheckedAt  time.Time `gorm:"index:idx_endpoint_checked,priority:2" json:"checked_at"` // authoritative event time, UTC
	TraceID    string    `gorm:"size:32;uniqueIndex" json:"trace_id"`
}

// TableName Specify table name
func (Check) TableName() string {
	return "checks"
}

// IsNoSignal reports whether this row was synthesized by the silence detector.
func (c *Check) IsNoSignal() bool {
	return c.Source == CheckSourceSilence
}

// Rollup level discriminators
const (
	RollupLevelNetwork  = "network"
	RollupLevelDomain   = "domain"
	RollupLevelEndpoint = "endpoint"
)

// Rollup is a write-through cache of resolved status per (level, ref_id).
// It can be recomputed from checks at any time and is not a source of truth.
type Rollup struct {
	ID           int64     `json:"id,string" form:"id"`
	Level        string    `gorm:"size:10;uniqueIndex:idx_level_ref" json:"level" form:"level"`
	RefID        int64     `gorm:"uniqueIndex:idx_level_ref" json:"ref_id,string" form:"ref_id"`
	LastStatus   string    `gorm:"size:6;default:'AMBER'" json:"last_status"`
	LastChangeAt time.Time `json:"last_change_at"`
	LastReason   string    `gorm:"size:400" json:"last_reason"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Rollup) TableName() string {
	return "rollups"
}

// ConfigRevision records one topology change. The current revision is the
// highest id; scheduler processes compare against it to detect reconfiguration.
type ConfigRevision struct {
	ID        int64     `json:"id,string"`
	Reason    string    `gorm:"size:500" json:"reason"`
	ChangedBy string    `gorm:"size:100" json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// TableName Specify table name
func (ConfigRevision) TableName() string {
	return "config_revisions"
}

// Notification statuses
const (
	NotifySent    = "SENT"
	NotifySkipped = "SKIPPED"
	NotifyFailed  = "FAILED"
)

// Notification records one failure e-mail attempt
type Notification struct {
	ID         int64     `json:"id,string"`
	EndpointID int64     `gorm:"index" json:"endpoint_id,string"`
	Level      string    `gorm:"size:10" json:"level"`
	Title      string    `gorm:"size:200" json:"title"`
	Body       string    `json:"body"`
	SentTo     string    `gorm:"size:255" json:"sent_to"`
	SentAt     time.Time `json:"sent_at"`
	DedupeKey  string    `gorm:"size:100;index" json:"dedupe_key"`
	Status     string    `gorm:"size:10;default:'SENT'" json:"status"`
}

// TableName Specify table name
func (Notification) TableName() string {
	return "notifications"
}
