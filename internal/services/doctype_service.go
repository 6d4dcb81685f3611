package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/search"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DocTypeService manages the doctype registry
type DocTypeService struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewDocTypeService(db *gorm.DB, logger zerolog.Logger) *DocTypeService {
	return &DocTypeService{
		db:     db,
		logger: logger.With().Str("component", "doctype").Logger(),
	}
}

// Create registers a doctype. Field references are sanitized like search fields.
func (s *DocTypeService) Create(ctx context.Context, dt *models.DocType) error {
	dt.Name = strings.TrimSpace(dt.Name)
	if err := dt.Validate(); err != nil {
		return utils.WrapValidationError("doctype", err.Error())
	}
	if dt.Name == models.DocTypeName {
		return utils.InvalidFieldError("name", "DocType is reserved")
	}

	refs := append(dt.SearchFieldList(), dt.TitleField, dt.SortField)
	for _, field := range refs {
		if err := search.SanitizeSearchField(field); err != nil {
			return err
		}
	}
	dt.SortOrder = strings.ToLower(dt.SortOrder)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := docTypeExists(tx, dt.Name)
		if err != nil {
			return err
		}
		if exists {
			return utils.WrapConflictError("DocType", "name", dt.Name)
		}

		if err := tx.Create(dt).Error; err != nil {
			return utils.WrapDatabaseError("create doctype", err)
		}

		s.logger.Info().Str("doctype", dt.Name).Bool("is_tree", dt.IsTree).Msg("DocType created")
		return nil
	})
}

// Get loads a doctype by name
func (s *DocTypeService) Get(ctx context.Context, name string) (*models.DocType, error) {
	return getDocType(s.db.WithContext(ctx), name)
}

// Exists reports whether name is registered
func (s *DocTypeService) Exists(ctx context.Context, name string) (bool, error) {
	if name == models.DocTypeName {
		return true, nil
	}
	return docTypeExists(s.db.WithContext(ctx), name)
}

// List returns registered doctypes ordered by name, optionally of one module
func (s *DocTypeService) List(ctx context.Context, module string) ([]models.DocType, error) {
	query := s.db.WithContext(ctx).Order("name ASC")
	if module != "" {
		query = query.Where("module = ?", module)
	}

	var doctypes []models.DocType
	if err := query.Find(&doctypes).Error; err != nil {
		return nil, utils.WrapDatabaseError("list doctypes", err)
	}
	return doctypes, nil
}

func getDocType(db *gorm.DB, name string) (*models.DocType, error) {
	var dt models.DocType
	err := db.Where("name = ?", name).First(&dt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.WrapNotFoundError("DocType", name)
	}
	if err != nil {
		return nil, utils.WrapDatabaseError("get doctype", err)
	}
	return &dt, nil
}

func docTypeExists(db *gorm.DB, name string) (bool, error) {
	var count int64
	if err := db.Model(&models.DocType{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, utils.WrapDatabaseError("check doctype", err)
	}
	return count > 0, nil
}
