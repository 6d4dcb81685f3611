package models

import (
	"errors"
	"strings"
	"time"
)

// Record is a row of a user-defined doctype. Tree doctypes use ParentRecord
// and the nested-set bounds Lft/Rgt.
type Record struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DocType      string    `gorm:"not null;uniqueIndex:idx_records_doctype_name,priority:1" json:"doctype"`
	Name         string    `gorm:"not null;uniqueIndex:idx_records_doctype_name,priority:2" json:"name"`
	Title        string    `json:"title,omitempty"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	ParentRecord string    `gorm:"index" json:"parent_record,omitempty"`
	IsGroup      bool      `gorm:"not null;default:false" json:"is_group"`
	Lft          int       `gorm:"index" json:"lft"`
	Rgt          int       `gorm:"index" json:"rgt"`
	Idx          int       `gorm:"not null;default:0" json:"idx"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName ensures consistent table naming
func (Record) TableName() string {
	return "records"
}

// Validate checks the fields every record needs
func (r *Record) Validate() error {
	if strings.TrimSpace(r.DocType) == "" {
		return errors.New("doctype cannot be empty")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if r.ParentRecord == r.Name {
		return errors.New("record cannot be its own parent")
	}
	return nil
}
