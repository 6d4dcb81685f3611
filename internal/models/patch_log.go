package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// PatchLog records one attempt to apply a migration patch. Rows are written by
// the patch runner and updated only when a patch is re-run.
type PatchLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Patch     string    `gorm:"type:text;not null;index" json:"patch"`
	Skipped   bool      `gorm:"not null;default:false" json:"skipped"`
	Traceback *string   `gorm:"type:text" json:"traceback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName ensures consistent table naming
func (PatchLog) TableName() string {
	return "patch_logs"
}

// PatchKey returns the identifier without its trailing "#comment".
// Editing the comment makes the runner treat the line as a new patch.
func PatchKey(identifier string) string {
	if idx := strings.Index(identifier, "#"); idx != -1 {
		identifier = identifier[:idx]
	}
	return strings.TrimSpace(identifier)
}

// PatchKey resolves the registered patch this log belongs to
func (p *PatchLog) PatchKey() string {
	return PatchKey(p.Patch)
}

// Validate checks the record before it is written
func (p *PatchLog) Validate() error {
	if PatchKey(p.Patch) == "" {
		return errors.New("patch identifier cannot be empty")
	}
	if !p.Skipped && p.Traceback != nil {
		return errors.New("traceback is only kept for skipped patches")
	}
	return nil
}

// BeforeSave runs validation before the log is created or updated
func (p *PatchLog) BeforeSave(tx *gorm.DB) error {
	return p.Validate()
}
