package i18n

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ksred/linkdesk/internal/cache"
	"github.com/ksred/linkdesk/internal/config"
	"github.com/ksred/linkdesk/internal/database"
	"github.com/ksred/linkdesk/internal/metrics"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := config.NewDefault().Database
	cfg.Driver = "sqlite"
	cfg.SQLitePath = ":memory:"

	d := database.NewDatabase(cfg, testLogger())
	require.NoError(t, d.Connect())
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.DB().AutoMigrate(&models.Translation{}))
	return d.DB()
}

func TestTranslator_Bundled(t *testing.T) {
	tr := NewTranslator(nil, nil, "en", time.Minute, testLogger())
	ctx := context.Background()

	assert.Equal(t, "Pays", tr.Translate(ctx, "fr", "Country"))
	assert.Equal(t, "Land", tr.Translate(ctx, "de", "Country"))
	assert.Equal(t, "Country", tr.Translate(ctx, "en", "Country"))
	assert.Equal(t, "Country", tr.Translate(ctx, "", "Country"))
	assert.Equal(t, "Unknown label", tr.Translate(ctx, "fr", "Unknown label"))
	assert.Equal(t, "Country", tr.Translate(ctx, "ja", "Country"), "missing language falls back to the source")

	t.Run("regional variant uses the base language", func(t *testing.T) {
		assert.Equal(t, "Pays", tr.Translate(ctx, "fr-CA", "Country"))
	})

	t.Run("positional placeholders", func(t *testing.T) {
		assert.Equal(t,
			"Correctif réexécuté avec succès : linkdesk.patches.v1_0.seed",
			tr.Translatef(ctx, "fr", "Successfully re-ran patch: {0}", "linkdesk.patches.v1_0.seed"))
		assert.Equal(t,
			"Successfully re-ran patch: p1",
			tr.Translatef(ctx, "en", "Successfully re-ran patch: {0}", "p1"))
	})
}

func TestTranslator_DatabaseOverridesBundled(t *testing.T) {
	db := setupTestDB(t)
	tr := NewTranslator(db, nil, "en", time.Minute, testLogger())
	ctx := context.Background()

	assert.Equal(t, "Pays", tr.Translate(ctx, "fr", "Country"))

	require.NoError(t, tr.Save(ctx, &models.Translation{Language: "fr", SourceText: "Country", TranslatedText: "Pays ou région"}))
	assert.Equal(t, "Pays ou région", tr.Translate(ctx, "fr", "Country"), "save invalidates the cached dictionary")

	require.NoError(t, tr.Save(ctx, &models.Translation{Language: "fr", SourceText: "Country", TranslatedText: "Nation"}))
	assert.Equal(t, "Nation", tr.Translate(ctx, "fr", "Country"))

	var count int64
	db.Model(&models.Translation{}).Count(&count)
	assert.Equal(t, int64(1), count, "save upserts")

	t.Run("regional rows win over base rows", func(t *testing.T) {
		require.NoError(t, tr.Save(ctx, &models.Translation{Language: "fr-CA", SourceText: "Country", TranslatedText: "Pays (CA)"}))
		assert.Equal(t, "Pays (CA)", tr.Translate(ctx, "fr-CA", "Country"))
		assert.Equal(t, "Nation", tr.Translate(ctx, "fr", "Country"))

		// Writing the base language drops derived dictionaries too
		require.NoError(t, tr.Save(ctx, &models.Translation{Language: "fr", SourceText: "Currency", TranslatedText: "Monnaie"}))
		assert.Equal(t, "Monnaie", tr.Translate(ctx, "fr-CA", "Currency"))
	})

	t.Run("invalid rows are rejected", func(t *testing.T) {
		err := tr.Save(ctx, &models.Translation{Language: "fr", SourceText: "Country"})
		assert.Error(t, err)
	})
}

func TestTranslator_ReverseLookup(t *testing.T) {
	tr := NewTranslator(nil, nil, "en", time.Minute, testLogger())
	ctx := context.Background()

	sources, err := tr.ReverseLookup(ctx, "fr", "pay")
	require.NoError(t, err)
	assert.Equal(t, []string{"Country"}, sources)

	sources, err = tr.ReverseLookup(ctx, "fr", "TERRITOIRE")
	require.NoError(t, err)
	assert.Equal(t, []string{"All Territories", "Territory"}, sources)

	sources, err = tr.ReverseLookup(ctx, "de", "währ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Currency"}, sources)

	sources, err = tr.ReverseLookup(ctx, "en", "pay")
	require.NoError(t, err)
	assert.Empty(t, sources)

	sources, err = tr.ReverseLookup(ctx, "fr", "")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestTranslator_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := cache.NewRedisStore(ctx, "redis://"+mr.Addr(), "test", time.Minute, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	collector := metrics.NewCollector("test")
	tr := NewTranslator(nil, store, "en", time.Minute, testLogger())
	tr.SetMetrics(collector)

	assert.Equal(t, "Pays", tr.Translate(ctx, "fr", "Country"))
	assert.True(t, mr.Exists("test:i18n:fr"))
	assert.Equal(t, "Pays", tr.Translate(ctx, "fr", "Country"))

	expected := `
# HELP test_translation_cache_lookups_total Translation dictionary lookups by result (hit, miss)
# TYPE test_translation_cache_lookups_total counter
test_translation_cache_lookups_total{result="hit"} 1
test_translation_cache_lookups_total{result="miss"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_translation_cache_lookups_total"))

	require.NoError(t, tr.Invalidate(ctx, "fr"))
	assert.False(t, mr.Exists("test:i18n:fr"))
}

func TestFormatPositional(t *testing.T) {
	assert.Equal(t, "a b a", FormatPositional("{0} {1} {0}", "a", "b"))
	assert.Equal(t, "no args {0}", FormatPositional("no args {0}"))
	assert.Equal(t, "1 of {2}", FormatPositional("{0} of {2}", 1, 2))
}

func TestBundledLanguages(t *testing.T) {
	assert.ElementsMatch(t, []string{"de", "fr"}, BundledLanguages())
}

func TestParseCSV(t *testing.T) {
	dict, err := parseCSV(strings.NewReader("source,translation\n\"Hello, world\",\"Bonjour, monde\"\nEmpty,\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Hello, world": "Bonjour, monde"}, dict)

	_, err = parseCSV(strings.NewReader("source,translation\n\"broken"))
	assert.Error(t, err)
}
