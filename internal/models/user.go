package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User owns API keys. Language is the preferred locale for search labels and messages.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Language  string         `gorm:"size:16" json:"language,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	APIKeys   []APIKey       `gorm:"foreignKey:UserID" json:"-"`
}

// APIKey authenticates machine clients such as the MCP bridge
type APIKey struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	User        User           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Key         string         `gorm:"uniqueIndex;not null" json:"key"`
	Name        string         `gorm:"not null" json:"name"`
	LastUsedAt  *time.Time     `json:"last_used_at"`
	ExpiresAt   *time.Time     `json:"expires_at"`
	IsActive    bool           `gorm:"default:true;index" json:"is_active"`
	Permissions string         `gorm:"type:text" json:"permissions,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// GetPermissions returns the permissions as a slice
func (a *APIKey) GetPermissions() []string {
	if a.Permissions == "" {
		return []string{}
	}
	return strings.Split(a.Permissions, ",")
}

// HasPermission reports whether the key grants perm. "*" grants everything.
func (a *APIKey) HasPermission(perm string) bool {
	for _, p := range a.GetPermissions() {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// Usable reports whether the key is active and not expired at now
func (a *APIKey) Usable(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}

// SetPermissions sets the permissions from a slice
func (a *APIKey) SetPermissions(perms []string) {
	a.Permissions = strings.Join(perms, ",")
}