package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ksred/linkdesk/internal/models"
	"gorm.io/gorm"
)

// SystemUserID is the reserved user that CLI and MCP actions are attributed to
const SystemUserID = 1

// Models lists every table the model sync step manages
func Models() []interface{} {
	return []interface{}{
		&models.PatchLog{},
		&models.User{},
		&models.APIKey{},
		&models.DocType{},
		&models.Record{},
		&models.Translation{},
		&models.ActivityLog{},
	}
}

// SyncPatchLog creates or updates the patch_logs table. It runs before any
// patch so the runner can record what it executes.
func SyncPatchLog(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.PatchLog{}); err != nil {
		return fmt.Errorf("failed to sync patch log table: %w", err)
	}
	return nil
}

// SyncModels runs auto-migrations for all models and ensures the system user exists
func SyncModels(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	if err := createSystemUser(db); err != nil {
		return fmt.Errorf("failed to create system user: %w", err)
	}

	return nil
}

// createSystemUser creates the system user that local operations run as
func createSystemUser(db *gorm.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", SystemUserID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	// Insert with a fixed ID; the password hash is not valid bcrypt, so nobody can log in
	return db.WithContext(ctx).Exec(
		"INSERT INTO users (id, email, password, language, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		SystemUserID, "system@linkdesk.local", "no-login", "", now, now,
	).Error
}
