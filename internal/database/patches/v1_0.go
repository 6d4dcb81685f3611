package patches

import (
	"context"
	"strings"

	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/tree"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CoreDocTypes are registered by SeedCoreDocTypes
var CoreDocTypes = []models.DocType{
	{Name: "Country", Module: "Geo", TranslatedDocType: true, SortField: "name", SortOrder: "asc"},
	{Name: "Currency", Module: "Geo", SearchFields: "description", TranslatedDocType: true},
	{Name: "Language", Module: "Core", SearchFields: "title", TitleField: "title", ShowTitleFieldInLink: true},
	{Name: "Territory", Module: "Selling", IsTree: true, SearchFields: "parent_record"},
	{Name: "Customer Group", Module: "Selling", IsTree: true, SearchFields: "parent_record"},
}

// treeRoots names the root group created for each tree doctype
var treeRoots = map[string]string{
	"Territory":      "All Territories",
	"Customer Group": "All Customer Groups",
}

// NormalizeTranslationLanguages lower-cases language codes so "FR" and "fr" share one dictionary
func NormalizeTranslationLanguages(ctx context.Context, tx *gorm.DB, logger zerolog.Logger) error {
	if !tx.Migrator().HasTable(&models.Translation{}) {
		logger.Debug().Msg("No translations table yet, nothing to normalize")
		return nil
	}

	var rows []models.Translation
	if err := tx.WithContext(ctx).Find(&rows).Error; err != nil {
		return err
	}

	updated := 0
	for _, row := range rows {
		lower := strings.ToLower(row.Language)
		if lower == row.Language {
			continue
		}
		if err := tx.WithContext(ctx).Model(&models.Translation{}).
			Where("id = ?", row.ID).
			Update("language", lower).Error; err != nil {
			return err
		}
		updated++
	}

	logger.Info().Int("updated", updated).Msg("Normalized translation languages")
	return nil
}

// SeedCoreDocTypes inserts the built-in doctypes, leaving existing ones untouched
func SeedCoreDocTypes(ctx context.Context, tx *gorm.DB, logger zerolog.Logger) error {
	for _, dt := range CoreDocTypes {
		dt := dt
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
			Create(&dt).Error; err != nil {
			return err
		}
	}

	logger.Info().Int("doctypes", len(CoreDocTypes)).Msg("Seeded core doctypes")
	return nil
}

// SeedTreeRoots creates the root group of each built-in tree doctype
func SeedTreeRoots(ctx context.Context, tx *gorm.DB, logger zerolog.Logger) error {
	for doctype, root := range treeRoots {
		record := models.Record{DocType: doctype, Name: root, Title: root, IsGroup: true}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "doc_type"}, {Name: "name"}}, DoNothing: true}).
			Create(&record).Error; err != nil {
			return err
		}
		logger.Debug().Str("doctype", doctype).Str("root", root).Msg("Tree root ensured")
	}
	return nil
}

// RebuildTreeBounds recomputes lft/rgt for every tree doctype
func RebuildTreeBounds(ctx context.Context, tx *gorm.DB, logger zerolog.Logger) error {
	var doctypes []string
	if err := tx.WithContext(ctx).Model(&models.DocType{}).
		Where("is_tree = ?", true).
		Order("name").
		Pluck("name", &doctypes).Error; err != nil {
		return err
	}

	for _, dt := range doctypes {
		changed, err := tree.RebuildRecords(ctx, tx, dt)
		if err != nil {
			return err
		}
		logger.Info().Str("doctype", dt).Int("changed", changed).Msg("Rebuilt tree bounds")
	}
	return nil
}
