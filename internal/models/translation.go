package models

import (
	"errors"
	"strings"
	"time"
)

// Translation maps a source string to its label in one language
type Translation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Language       string    `gorm:"not null;size:16;uniqueIndex:idx_translations_lang_source,priority:1" json:"language"`
	SourceText     string    `gorm:"not null;uniqueIndex:idx_translations_lang_source,priority:2" json:"source_text"`
	TranslatedText string    `gorm:"not null" json:"translated_text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName ensures consistent table naming
func (Translation) TableName() string {
	return "translations"
}

// Validate checks if the translation is complete
func (t *Translation) Validate() error {
	if strings.TrimSpace(t.Language) == "" {
		return errors.New("language cannot be empty")
	}
	if t.SourceText == "" || t.TranslatedText == "" {
		return errors.New("source and translated text are required")
	}
	return nil
}
