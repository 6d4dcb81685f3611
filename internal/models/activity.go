package models

import (
	"time"
)

// ActivityLog is an audit row. UserID is nil for actions run from the CLI.
type ActivityLog struct {
	ID        uint                   `gorm:"primaryKey" json:"id"`
	UserID    *uint                  `gorm:"index" json:"user_id,omitempty"`
	Type      string                 `gorm:"not null;index" json:"type"`
	Details   map[string]interface{} `gorm:"serializer:json;type:text" json:"details,omitempty" swaggertype:"object"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt time.Time              `gorm:"index" json:"timestamp"`
}

// Activity type constants
const (
	ActivityLinkSearch    = "link_search"
	ActivityPatchRerun    = "patch_rerun"
	ActivityAPIKeyCreated = "api_key_created"
	ActivityAPIKeyDeleted = "api_key_deleted"
	ActivityLogin         = "login"
)
