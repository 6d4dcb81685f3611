package models

import (
	"errors"
	"strings"
	"time"
)

// DocTypeName is the doctype of the registry itself; searching it lists doctypes
const DocTypeName = "DocType"

// ParentRecordField links a tree record to its parent
const ParentRecordField = "parent_record"

// DocType describes a record type that link fields can point at
type DocType struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Name                 string    `gorm:"uniqueIndex;not null" json:"name"`
	Module               string    `gorm:"index" json:"module"`
	IsTree               bool      `gorm:"not null;default:false" json:"is_tree"`
	IsCustom             bool      `gorm:"not null;default:false" json:"is_custom"`
	SearchFields         string    `json:"search_fields"`
	TitleField           string    `json:"title_field"`
	ShowTitleFieldInLink bool      `gorm:"not null;default:false" json:"show_title_field_in_link"`
	TranslatedDocType    bool      `gorm:"not null;default:false" json:"translated_doctype"`
	SortField            string    `json:"sort_field"`
	SortOrder            string    `json:"sort_order"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName ensures consistent table naming
func (DocType) TableName() string {
	return "doc_types"
}

// SearchFieldList splits SearchFields, dropping blanks and duplicates
func (d *DocType) SearchFieldList() []string {
	if d.SearchFields == "" {
		return nil
	}

	seen := make(map[string]bool)
	var fields []string
	for _, f := range strings.Split(d.SearchFields, ",") {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields
}

// ParentField returns the link field to the parent node, or "" for flat doctypes
func (d *DocType) ParentField() string {
	if d.IsTree {
		return ParentRecordField
	}
	return ""
}

// Validate checks if the doctype definition is usable
func (d *DocType) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("doctype name cannot be empty")
	}
	switch strings.ToLower(d.SortOrder) {
	case "", "asc", "desc":
	default:
		return errors.New("sort order must be asc or desc")
	}
	return nil
}
