package search

import (
	"context"
	"testing"
	"time"

	"github.com/ksred/linkdesk/internal/config"
	"github.com/ksred/linkdesk/internal/database"
	"github.com/ksred/linkdesk/internal/i18n"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/tree"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := config.NewDefault().Database
	cfg.Driver = "sqlite"
	cfg.SQLitePath = ":memory:"

	d := database.NewDatabase(cfg, zerolog.New(nil).Level(zerolog.Disabled))
	require.NoError(t, d.Connect())
	t.Cleanup(func() { d.Close() })
	require.NoError(t, database.SyncModels(d.DB()))
	return d.DB()
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	translator := i18n.NewTranslator(db, nil, "en", time.Minute, logger)
	return NewService(db, translator, config.NewDefault().Search, logger)
}

func seedDocTypes(t *testing.T, db *gorm.DB, doctypes ...models.DocType) {
	t.Helper()
	for i := range doctypes {
		require.NoError(t, db.Create(&doctypes[i]).Error)
	}
}

func seedRecords(t *testing.T, db *gorm.DB, records ...models.Record) {
	t.Helper()
	trees := map[string]bool{}
	for i := range records {
		require.NoError(t, db.Create(&records[i]).Error)
		trees[records[i].DocType] = true
	}
	for doctype := range trees {
		var dt models.DocType
		if db.Where("name = ? AND is_tree = ?", doctype, true).First(&dt).Error == nil {
			_, err := tree.RebuildRecords(context.Background(), db, doctype)
			require.NoError(t, err)
		}
	}
}

var territory = models.DocType{Name: "Territory", Module: "Selling", IsTree: true, SearchFields: "parent_record"}

func values(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Value
	}
	return out
}

func TestSearchLink_TreeParentFirst(t *testing.T) {
	db := setupTestDB(t)
	seedDocTypes(t, db, territory)
	seedRecords(t, db,
		models.Record{DocType: "Territory", Name: "All Territories", IsGroup: true},
		models.Record{DocType: "Territory", Name: "Africa", ParentRecord: "All Territories"},
		models.Record{DocType: "Territory", Name: "Asia", ParentRecord: "All Territories"},
		models.Record{DocType: "Territory", Name: "Europe", ParentRecord: "All Territories"},
		models.Record{DocType: "Territory", Name: "Oceania", ParentRecord: "All Territories"},
	)
	svc := newTestService(t, db)

	results, err := svc.SearchLink(context.Background(), LinkRequest{Args: Args{"doctype": "Territory", "txt": "all"}})
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, []string{"All Territories", "Africa", "Asia", "Europe", "Oceania"}, values(results))
	assert.Equal(t, "All Territories", results[1].Description)
}

func TestSearchLink_DescendantsOfMatchedGroup(t *testing.T) {
	db := setupTestDB(t)
	seedDocTypes(t, db, territory)
	seedRecords(t, db,
		models.Record{DocType: "Territory", Name: "All Territories", IsGroup: true},
		models.Record{DocType: "Territory", Name: "Asia", ParentRecord: "All Territories", IsGroup: true},
		models.Record{DocType: "Territory", Name: "Europe", ParentRecord: "All Territories", IsGroup: true},
		models.Record{DocType: "Territory", Name: "Japan", ParentRecord: "Asia"},
		models.Record{DocType: "Territory", Name: "India", ParentRecord: "Asia"},
		models.Record{DocType: "Territory", Name: "France", ParentRecord: "Europe"},
	)
	svc := newTestService(t, db)
	ctx := context.Background()

	results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Territory", "txt": "all"}})
	require.NoError(t, err)
	// prefix match, then children matched on their parent, then grandchildren in tree order
	assert.Equal(t, []string{"All Territories", "Asia", "Europe", "India", "Japan", "France"}, values(results))

	results, err = svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Territory", "txt": "asia"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Asia", "India", "Japan"}, values(results))

	t.Run("pagination over buckets", func(t *testing.T) {
		results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Territory", "txt": "all", "start": "2", "page_len": "3"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"Europe", "India", "Japan"}, values(results))
	})

	t.Run("filters", func(t *testing.T) {
		results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{
			"doctype": "Territory",
			"txt":     "all",
			"filters": map[string]interface{}{"is_group": true},
		}})
		require.NoError(t, err)
		assert.Equal(t, []string{"All Territories", "Asia", "Europe"}, values(results))

		results, err = svc.SearchLink(ctx, LinkRequest{Args: Args{
			"doctype": "Territory",
			"filters": `{"parent_record": ["in", ["Asia", "Europe"]]}`,
		}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"India", "Japan", "France"}, values(results))
	})

	t.Run("unknown filter column", func(t *testing.T) {
		_, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Territory", "filters": map[string]interface{}{"email": "x"}}})
		assert.True(t, utils.IsValidationError(err))
	})
}

func TestSearchLink_Ranking(t *testing.T) {
	db := setupTestDB(t)
	seedDocTypes(t, db, models.DocType{Name: "Country", Module: "Geo"})
	seedRecords(t, db,
		models.Record{DocType: "Country", Name: "British Indian Ocean Territory"},
		models.Record{DocType: "Country", Name: "Indiana Republic"},
		models.Record{DocType: "Country", Name: "India"},
		models.Record{DocType: "Country", Name: "Indonesia"},
	)
	svc := newTestService(t, db)

	results, err := svc.SearchLink(context.Background(), LinkRequest{Args: Args{"doctype": "Country", "txt": "INDIA"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"India", "Indiana Republic", "British Indian Ocean Territory"}, values(results))
}

func TestSearchLink_OtherFieldsAndDescription(t *testing.T) {
	db := setupTestDB(t)
	seedDocTypes(t, db, models.DocType{Name: "Currency", Module: "Geo", SearchFields: "description"})
	seedRecords(t, db,
		models.Record{DocType: "Currency", Name: "INR", Description: "Indian Rupee"},
		models.Record{DocType: "Currency", Name: "IDR", Description: "Indonesian Rupiah"},
		models.Record{DocType: "Currency", Name: "RUP", Description: "Test"},
	)
	svc := newTestService(t, db)

	results, err := svc.SearchLink(context.Background(), LinkRequest{Args: Args{"doctype": "Currency", "txt": "rup"}})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, Result{Value: "RUP", Description: "Test"}, results[0])
	assert.ElementsMatch(t, []string{"IDR", "INR"}, values(results[1:]))
}

func TestSearchLink_TitleField(t *testing.T) {
	db := setupTestDB(t)
	seedDocTypes(t, db, models.DocType{Name: "Language", SearchFields: "title", TitleField: "title", ShowTitleFieldInLink: true})
	seedRecords(t, db,
		models.Record{DocType: "Language", Name: "en", Title: "English"},
		models.Record{DocType: "Language", Name: "de", Title: "German"},
	)
	svc := newTestService(t, db)
	ctx := context.Background()

	results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Language", "txt": "eng"}})
	require.NoError(t, err)
	assert.Equal(t, []Result{{Value: "en", Label: "English"}}, results)

	rows, err := svc.SearchWidget(ctx, WidgetRequest{Args: Args{"doctype": "Language", "txt": "eng"}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"en", "English"}}, rows)

	t.Run("explicit search field", func(t *testing.T) {
		results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Language", "txt": "ger", "searchfield": "records.title"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"de"}, values(results))

		_, err = svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Language", "txt": "ger", "searchfield": "email"}})
		assert.True(t, utils.IsValidationError(err))
		assert.False(t, utils.IsDataError(err))
	})
}

func TestSearchLink_UnknownDocType(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Random DocType", "txt": "x"}})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	rows, err := svc.SearchWidget(ctx, WidgetRequest{Args: Args{"txt": "x"}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSearchLink_LiteralText(t *testing.T) {
	db := setupTestDB(t)
	seedDocTypes(t, db, models.DocType{Name: "Country"})
	seedRecords(t, db,
		models.Record{DocType: "Country", Name: "India"},
		models.Record{DocType: "Country", Name: "100% Pure"},
	)
	svc := newTestService(t, db)
	ctx := context.Background()

	for _, txt := range []string{"user@example.com", "'; drop table records; --", "_", `\`} {
		results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Country", "txt": txt}})
		require.NoError(t, err, txt)
		assert.Empty(t, results, txt)
	}

	results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Country", "txt": "%"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"100% Pure"}, values(results))

	var count int64
	db.Model(&models.Record{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestSearchLink_RejectsSearchField(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	args := Args{"doctype": "User", "txt": "Random", "searchfield": "name or (select * from tabSessions)", "start": "10", "page_len": "20"}
	_, err := svc.SearchLink(ctx, LinkRequest{Args: args})
	assert.True(t, utils.IsDataError(err))
	assert.EqualError(t, err, "Invalid Search Field name or (select * from tabSessions)")

	_, err = svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "User", "searchfield": "1=1"}, Lang: "fr"})
	assert.True(t, utils.IsDataError(err))
	assert.EqualError(t, err, "Champ de recherche invalide 1=1")
}

func TestSearchLink_TranslatedDocTypes(t *testing.T) {
	db := setupTestDB(t)
	seedDocTypes(t, db,
		models.DocType{Name: "Country", Module: "Geo", TranslatedDocType: true},
		models.DocType{Name: "Territory", Module: "Selling", IsTree: true},
	)
	svc := newTestService(t, db)
	ctx := context.Background()

	results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "DocType", "txt": "pay"}, Lang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, []Result{{Value: "Country", Label: "Pays", Description: "Geo"}}, results)

	results, err = svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "DocType", "txt": "pay"}})
	require.NoError(t, err)
	assert.Empty(t, results)

	t.Run("labels follow the locale", func(t *testing.T) {
		results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "DocType", "txt": "terr"}, Lang: "fr"})
		require.NoError(t, err)
		assert.Equal(t, []Result{{Value: "Territory", Label: "Territoire", Description: "Selling"}}, results)
	})

	t.Run("database translations", func(t *testing.T) {
		seedRecords(t, db, models.Record{DocType: "Country", Name: "Germany"})
		require.NoError(t, svc.translator.Save(ctx, &models.Translation{Language: "fr", SourceText: "Germany", TranslatedText: "Allemagne"}))

		results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Country", "txt": "allemagne"}, Lang: "fr"})
		require.NoError(t, err)
		assert.Equal(t, []Result{{Value: "Germany", Label: "Allemagne"}}, results)
	})
}

func TestSearchLink_PageLengthLimits(t *testing.T) {
	db := setupTestDB(t)
	seedDocTypes(t, db, models.DocType{Name: "Country"})
	for _, name := range []string{"A", "B", "C", "D"} {
		seedRecords(t, db, models.Record{DocType: "Country", Name: name})
	}

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewService(db, nil, config.Search{DefaultPageLength: 2, MaxPageLength: 3}, logger)
	ctx := context.Background()

	results, err := svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Country"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, values(results))

	results, err = svc.SearchLink(ctx, LinkRequest{Args: Args{"doctype": "Country", "page_len": 100}})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
