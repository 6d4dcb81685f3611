package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ActivityService struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewActivityService(db *gorm.DB, logger zerolog.Logger) *ActivityService {
	return &ActivityService{
		db:     db,
		logger: logger,
	}
}

// LogActivity records an audit row for the actor in ctx
func (s *ActivityService) LogActivity(ctx context.Context, activityType string, details map[string]interface{}) error {
	actor := ActorFromContext(ctx)
	activity := &models.ActivityLog{
		UserID:    actor.UserID,
		Type:      activityType,
		Details:   details,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		CreatedAt: time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(activity).Error; err != nil {
		s.logger.Error().Err(err).Str("type", activityType).Msg("Failed to log activity")
		return utils.WrapDatabaseError("log activity", err)
	}

	return nil
}

// CountSince counts activities of one type created at or after since
func (s *ActivityService) CountSince(ctx context.Context, activityType string, since time.Time, userID *uint) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Where("type = ?", activityType).
		Where("created_at >= ?", since)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Str("type", activityType).Msg("Failed to count activities")
		return 0, utils.WrapDatabaseError("count activities", err)
	}
	return count, nil
}

// ActivityEntry is an activity with a readable description
type ActivityEntry struct {
	Type        string                 `json:"type"`
	Timestamp   time.Time              `json:"timestamp"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
	IPAddress   string                 `json:"ip_address,omitempty"`
}

// Recent returns the latest activities, newest first. A nil userID returns everyone's.
func (s *ActivityService) Recent(ctx context.Context, userID *uint, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var activities []models.ActivityLog
	if err := query.Find(&activities).Error; err != nil {
		return nil, utils.WrapDatabaseError("list activities", err)
	}

	entries := make([]ActivityEntry, len(activities))
	for i, a := range activities {
		entries[i] = ActivityEntry{
			Type:        a.Type,
			Timestamp:   a.CreatedAt,
			Description: describeActivity(a),
			Details:     a.Details,
			IPAddress:   a.IPAddress,
		}
	}
	return entries, nil
}

// describeActivity provides user-friendly descriptions for activities
func describeActivity(activity models.ActivityLog) string {
	details := activity.Details

	switch activity.Type {
	case models.ActivityPatchRerun:
		if patch, ok := details["patch"].(string); ok {
			return fmt.Sprintf("Re-ran patch %s", patch)
		}
		return "Re-ran a patch"

	case models.ActivityLinkSearch:
		if doctype, ok := details["doctype"].(string); ok {
			txt, _ := details["txt"].(string)
			if len(txt) > 50 {
				txt = txt[:50] + "..."
			}
			return fmt.Sprintf("Searched %s for: %s", doctype, txt)
		}
		return "Performed link search"

	case models.ActivityAPIKeyCreated:
		if name, ok := details["name"].(string); ok {
			return fmt.Sprintf("Created API key: %s", name)
		}
		return "Created new API key"

	case models.ActivityAPIKeyDeleted:
		if name, ok := details["name"].(string); ok {
			return fmt.Sprintf("Deleted API key: %s", name)
		}
		return "Deleted API key"

	case models.ActivityLogin:
		return "Logged in"

	default:
		return fmt.Sprintf("Performed %s action", activity.Type)
	}
}
