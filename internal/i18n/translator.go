// Package i18n translates labels and user-facing messages.
//
// Dictionaries merge the CSV files bundled under translations/ with rows of
// the translations table; database rows win. Merged dictionaries are cached
// per language and invalidated whenever a translation is written.
package i18n

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ksred/linkdesk/internal/cache"
	"github.com/ksred/linkdesk/internal/metrics"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Translator resolves source strings to their label in a language
type Translator struct {
	db          *gorm.DB
	store       cache.Store
	defaultLang string
	ttl         time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Collector
}

// NewTranslator creates a translator. Strings in defaultLang are returned untranslated.
func NewTranslator(db *gorm.DB, store cache.Store, defaultLang string, ttl time.Duration, logger zerolog.Logger) *Translator {
	if store == nil {
		store = cache.NewMemoryStore(ttl)
	}
	return &Translator{
		db:          db,
		store:       store,
		defaultLang: defaultLang,
		ttl:         ttl,
		logger:      logger.With().Str("component", "i18n").Logger(),
	}
}

// SetMetrics records dictionary cache hits and misses on c
func (t *Translator) SetMetrics(c *metrics.Collector) {
	t.metrics = c
}

// DefaultLanguage returns the language source strings are written in
func (t *Translator) DefaultLanguage() string {
	return t.defaultLang
}

// IsDefault reports whether lang needs no translation
func (t *Translator) IsDefault(lang string) bool {
	return lang == "" || baseLanguage(lang) == baseLanguage(t.defaultLang)
}

func cacheKey(lang string) string {
	return "i18n:" + lang
}

// Dictionary returns the merged source → translation map for lang
func (t *Translator) Dictionary(ctx context.Context, lang string) (map[string]string, error) {
	if t.IsDefault(lang) {
		return map[string]string{}, nil
	}

	var dict map[string]string
	err := cache.GetJSON(ctx, t.store, cacheKey(lang), &dict)
	t.metrics.RecordTranslationLookup(err == nil)
	if err == nil {
		return dict, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		t.logger.Warn().Err(err).Str("lang", lang).Msg("Translation cache read failed, loading from source")
	}

	dict, err = t.load(ctx, lang)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, t.store, cacheKey(lang), dict, t.ttl); err != nil {
		t.logger.Warn().Err(err).Str("lang", lang).Msg("Failed to cache translations")
	}
	return dict, nil
}

// load merges the base language (fr for fr-CA), then the exact language,
// bundled files first and database rows on top
func (t *Translator) load(ctx context.Context, lang string) (map[string]string, error) {
	langs := []string{lang}
	if base := baseLanguage(lang); base != lang {
		langs = []string{base, lang}
	}

	dict := make(map[string]string)
	for _, l := range langs {
		bundledDict, err := loadBundled(l)
		if err != nil {
			return nil, err
		}
		for k, v := range bundledDict {
			dict[k] = v
		}
	}

	if t.db != nil {
		var rows []models.Translation
		if err := t.db.WithContext(ctx).Where("language IN ?", langs).Find(&rows).Error; err != nil {
			return nil, utils.WrapDatabaseError("load translations", err)
		}
		// Exact language rows override base language rows
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Language != lang && rows[j].Language == lang
		})
		for _, row := range rows {
			dict[row.SourceText] = row.TranslatedText
		}
	}

	t.logger.Debug().Str("lang", lang).Int("entries", len(dict)).Msg("Loaded translations")
	return dict, nil
}

// Translate returns the label for text in lang, or text itself when none exists
func (t *Translator) Translate(ctx context.Context, lang, text string) string {
	if text == "" || t.IsDefault(lang) {
		return text
	}
	dict, err := t.Dictionary(ctx, lang)
	if err != nil {
		t.logger.Error().Err(err).Str("lang", lang).Msg("Translation lookup failed")
		return text
	}
	if translated, ok := dict[text]; ok {
		return translated
	}
	return text
}

// Translatef translates format and then fills positional {0}, {1} ... placeholders
func (t *Translator) Translatef(ctx context.Context, lang, format string, args ...interface{}) string {
	return FormatPositional(t.Translate(ctx, lang, format), args...)
}

// ReverseLookup returns the source strings whose translation in lang contains
// needle, compared case-insensitively. The result is sorted.
func (t *Translator) ReverseLookup(ctx context.Context, lang, needle string) ([]string, error) {
	if needle == "" || t.IsDefault(lang) {
		return nil, nil
	}
	dict, err := t.Dictionary(ctx, lang)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	folded := fold.String(needle)

	var sources []string
	for source, translated := range dict {
		if strings.Contains(fold.String(translated), folded) {
			sources = append(sources, source)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// Save upserts a translation row and drops the cached dictionary
func (t *Translator) Save(ctx context.Context, tr *models.Translation) error {
	if err := tr.Validate(); err != nil {
		return utils.WrapValidationError("translation", err.Error())
	}

	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "language"}, {Name: "source_text"}},
		DoUpdates: clause.AssignmentColumns([]string{"translated_text", "updated_at"}),
	}).Create(tr).Error
	if err != nil {
		return utils.WrapDatabaseError("save translation", err)
	}

	return t.Invalidate(ctx, tr.Language)
}

// Invalidate drops the cached dictionary of lang and of languages derived from it
func (t *Translator) Invalidate(ctx context.Context, lang string) error {
	keys := []string{cacheKey(lang)}
	if baseLanguage(lang) == lang {
		var derived []string
		if t.db != nil {
			t.db.WithContext(ctx).Model(&models.Translation{}).
				Distinct("language").
				Where("language LIKE ?", lang+"-%").
				Pluck("language", &derived)
		}
		for _, d := range derived {
			keys = append(keys, cacheKey(d))
		}
	}
	return t.store.Delete(ctx, keys...)
}

// FormatPositional replaces {0}, {1} ... with the matching argument
func FormatPositional(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	pairs := make([]string, 0, len(args)*2)
	for i, a := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", fmt.Sprint(a))
	}
	return strings.NewReplacer(pairs...).Replace(format)
}

func baseLanguage(lang string) string {
	if idx := strings.IndexAny(lang, "-_"); idx != -1 {
		return strings.ToLower(lang[:idx])
	}
	return strings.ToLower(lang)
}
