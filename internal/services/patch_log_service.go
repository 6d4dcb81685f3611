package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/ksred/linkdesk/internal/i18n"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// User-facing messages, translated through the i18n catalog
const (
	msgRerunDeveloperMode = "Re-running patch is only allowed in developer mode."
	msgRerunSucceeded     = "Successfully re-ran patch: {0}"
)

// PatchRunner executes a single patch. *database.PatchRunner satisfies it.
type PatchRunner interface {
	RunSingle(ctx context.Context, identifier string, force bool) (bool, error)
}

// Notice is a transient message for the caller
type Notice struct {
	Message   string `json:"message"`
	Indicator string `json:"indicator"`
	Alert     bool   `json:"alert"`
}

// ListPatchLogsRequest filters the patch log listing
type ListPatchLogsRequest struct {
	Patch   string `json:"patch,omitempty" form:"patch"`
	Skipped *bool  `json:"skipped,omitempty" form:"skipped"`
	Limit   int    `json:"limit,omitempty" form:"limit"`
	Offset  int    `json:"offset,omitempty" form:"offset"`
}

// PatchLogList is one page of patch logs
type PatchLogList struct {
	Items []models.PatchLog `json:"items"`
	Total int64             `json:"total"`
}

// PatchLogService reads patch logs and re-runs their patches
type PatchLogService struct {
	db            *gorm.DB
	runner        PatchRunner
	translator    *i18n.Translator
	activity      *ActivityService
	developerMode bool
	logger        zerolog.Logger
}

// NewPatchLogService creates the service. Re-running is refused unless developerMode is set.
func NewPatchLogService(db *gorm.DB, runner PatchRunner, translator *i18n.Translator, activity *ActivityService, developerMode bool, logger zerolog.Logger) *PatchLogService {
	return &PatchLogService{
		db:            db,
		runner:        runner,
		translator:    translator,
		activity:      activity,
		developerMode: developerMode,
		logger:        logger.With().Str("component", "patch_log").Logger(),
	}
}

// List returns patch logs, newest first
func (s *PatchLogService) List(ctx context.Context, req ListPatchLogsRequest) (*PatchLogList, error) {
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	query := s.db.WithContext(ctx).Model(&models.PatchLog{})
	if req.Patch != "" {
		query = query.Where("patch LIKE ?", "%"+req.Patch+"%")
	}
	if req.Skipped != nil {
		query = query.Where("skipped = ?", *req.Skipped)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, utils.WrapDatabaseError("count patch logs", err)
	}

	var items []models.PatchLog
	if err := query.Order("created_at DESC, id DESC").Limit(req.Limit).Offset(req.Offset).Find(&items).Error; err != nil {
		return nil, utils.WrapDatabaseError("list patch logs", err)
	}

	return &PatchLogList{Items: items, Total: total}, nil
}

// Get loads one patch log
func (s *PatchLogService) Get(ctx context.Context, id uint) (*models.PatchLog, error) {
	var log models.PatchLog
	err := s.db.WithContext(ctx).First(&log, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.WrapNotFoundError("Patch Log", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, utils.WrapDatabaseError("get patch log", err)
	}
	return &log, nil
}

// RerunPatch forces the patch of a log to run again. It is only allowed in
// developer mode and runs synchronously.
func (s *PatchLogService) RerunPatch(ctx context.Context, id uint) (*Notice, error) {
	actor := ActorFromContext(ctx)

	log, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.developerMode {
		s.logger.Warn().Str("patch", log.Patch).Msg("Patch re-run refused outside developer mode")
		return nil, utils.WrapPermissionError("rerun_patch", s.translate(ctx, actor.Lang, msgRerunDeveloperMode))
	}

	if _, err := s.runner.RunSingle(ctx, log.Patch, true); err != nil {
		s.logger.Error().Err(err).Str("patch", log.Patch).Msg("Patch re-run failed")
		return nil, err
	}

	s.logger.Info().Str("patch", log.Patch).Msg("Patch re-run")

	if s.activity != nil {
		details := map[string]interface{}{"patch": log.Patch, "patch_log_id": log.ID}
		if err := s.activity.LogActivity(ctx, models.ActivityPatchRerun, details); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record patch re-run activity")
		}
	}

	return &Notice{
		Message:   s.translatef(ctx, actor.Lang, msgRerunSucceeded, log.Patch),
		Indicator: "green",
		Alert:     true,
	}, nil
}

func (s *PatchLogService) translate(ctx context.Context, lang, text string) string {
	if s.translator == nil {
		return text
	}
	return s.translator.Translate(ctx, lang, text)
}

func (s *PatchLogService) translatef(ctx context.Context, lang, format string, args ...interface{}) string {
	if s.translator == nil {
		return i18n.FormatPositional(format, args...)
	}
	return s.translator.Translatef(ctx, lang, format, args...)
}
