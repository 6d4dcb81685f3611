package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/tree"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// RecordService stores records of registered doctypes and keeps the nested
// set bounds of tree doctypes current
type RecordService struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewRecordService(db *gorm.DB, logger zerolog.Logger) *RecordService {
	return &RecordService{
		db:     db,
		logger: logger.With().Str("component", "record").Logger(),
	}
}

// Insert creates a record. Children of a tree doctype must point at an
// existing group record.
func (s *RecordService) Insert(ctx context.Context, record *models.Record) error {
	record.DocType = strings.TrimSpace(record.DocType)
	record.Name = strings.TrimSpace(record.Name)
	record.ParentRecord = strings.TrimSpace(record.ParentRecord)
	if err := record.Validate(); err != nil {
		return utils.WrapValidationError("record", err.Error())
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dt, err := getDocType(tx, record.DocType)
		if err != nil {
			return err
		}

		if _, err := findRecord(tx, record.DocType, record.Name); err == nil {
			return utils.WrapConflictError(record.DocType, "name", record.Name)
		} else if !utils.IsNotFoundError(err) {
			return err
		}

		if dt.IsTree {
			if err := checkParent(tx, record.DocType, record.ParentRecord); err != nil {
				return err
			}
		} else if record.ParentRecord != "" {
			return utils.InvalidFieldError(models.ParentRecordField, fmt.Sprintf("%s is not a tree", dt.Name))
		}

		record.Lft, record.Rgt = 0, 0
		if err := tx.Create(record).Error; err != nil {
			return utils.WrapDatabaseError("insert record", err)
		}

		if dt.IsTree {
			if err := s.rebuild(ctx, tx, dt.Name); err != nil {
				return err
			}
			// Reload the bounds the rebuild assigned
			if err := tx.First(record, record.ID).Error; err != nil {
				return utils.WrapDatabaseError("reload record", err)
			}
		}

		s.logger.Debug().Str("doctype", record.DocType).Str("name", record.Name).Msg("Record inserted")
		return nil
	})
}

// Get loads one record
func (s *RecordService) Get(ctx context.Context, doctype, name string) (*models.Record, error) {
	return findRecord(s.db.WithContext(ctx), doctype, name)
}

// List returns the records of doctype in tree order, then by name
func (s *RecordService) List(ctx context.Context, doctype string) ([]models.Record, error) {
	var records []models.Record
	if err := s.db.WithContext(ctx).
		Where("doc_type = ?", doctype).
		Order("lft ASC, name ASC").
		Find(&records).Error; err != nil {
		return nil, utils.WrapDatabaseError("list records", err)
	}
	return records, nil
}

// Delete removes a record. Tree records with children cannot be deleted.
func (s *RecordService) Delete(ctx context.Context, doctype, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dt, err := getDocType(tx, doctype)
		if err != nil {
			return err
		}
		record, err := findRecord(tx, doctype, name)
		if err != nil {
			return err
		}

		if dt.IsTree {
			var children int64
			if err := tx.Model(&models.Record{}).
				Where("doc_type = ? AND parent_record = ?", doctype, name).
				Count(&children).Error; err != nil {
				return utils.WrapDatabaseError("count children", err)
			}
			if children > 0 {
				return utils.InvalidFieldError("name", fmt.Sprintf("cannot delete %s: it has %d child records", name, children))
			}
		}

		if err := tx.Delete(record).Error; err != nil {
			return utils.WrapDatabaseError("delete record", err)
		}

		if dt.IsTree {
			return s.rebuild(ctx, tx, doctype)
		}
		return nil
	})
}

// Move re-parents a tree record. An empty newParent makes it a root.
func (s *RecordService) Move(ctx context.Context, doctype, name, newParent string) (*models.Record, error) {
	newParent = strings.TrimSpace(newParent)

	var moved *models.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dt, err := getDocType(tx, doctype)
		if err != nil {
			return err
		}
		if !dt.IsTree {
			return utils.InvalidFieldError(models.ParentRecordField, fmt.Sprintf("%s is not a tree", dt.Name))
		}

		record, err := findRecord(tx, doctype, name)
		if err != nil {
			return err
		}
		if err := checkParent(tx, doctype, newParent); err != nil {
			return err
		}

		nodes, err := tree.LoadNodes(ctx, tx, doctype)
		if err != nil {
			return utils.WrapDatabaseError("load tree", err)
		}
		cycle, err := tree.WouldCycle(nodes, name, newParent)
		if err != nil {
			return utils.InvalidFieldError(models.ParentRecordField, err.Error())
		}
		if cycle {
			return utils.InvalidFieldError(models.ParentRecordField, fmt.Sprintf("%s cannot become its own ancestor", name))
		}

		if err := tx.Model(record).Update("parent_record", newParent).Error; err != nil {
			return utils.WrapDatabaseError("move record", err)
		}
		if err := s.rebuild(ctx, tx, doctype); err != nil {
			return err
		}

		moved, err = findRecord(tx, doctype, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("doctype", doctype).Str("name", name).Str("parent", newParent).Msg("Record moved")
	return moved, nil
}

func (s *RecordService) rebuild(ctx context.Context, tx *gorm.DB, doctype string) error {
	changed, err := tree.RebuildRecords(ctx, tx, doctype)
	if err != nil {
		var cycle *tree.CycleError
		var missing *tree.MissingParentError
		if errors.As(err, &cycle) || errors.As(err, &missing) {
			return utils.InvalidFieldError(models.ParentRecordField, err.Error())
		}
		return utils.WrapDatabaseError("rebuild tree", err)
	}
	s.logger.Debug().Str("doctype", doctype).Int("changed", changed).Msg("Tree bounds rebuilt")
	return nil
}

// checkParent requires parent to be empty or an existing group of doctype
func checkParent(tx *gorm.DB, doctype, parent string) error {
	if parent == "" {
		return nil
	}
	p, err := findRecord(tx, doctype, parent)
	if utils.IsNotFoundError(err) {
		return utils.InvalidFieldError(models.ParentRecordField, fmt.Sprintf("parent %s does not exist", parent))
	}
	if err != nil {
		return err
	}
	if !p.IsGroup {
		return utils.InvalidFieldError(models.ParentRecordField, fmt.Sprintf("parent %s is not a group", parent))
	}
	return nil
}

func findRecord(db *gorm.DB, doctype, name string) (*models.Record, error) {
	var record models.Record
	err := db.Where("doc_type = ? AND name = ?", doctype, name).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.WrapNotFoundError(doctype, name)
	}
	if err != nil {
		return nil, utils.WrapDatabaseError("get record", err)
	}
	return &record, nil
}
