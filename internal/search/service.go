package search

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ksred/linkdesk/internal/config"
	"github.com/ksred/linkdesk/internal/i18n"
	"github.com/ksred/linkdesk/internal/metrics"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// Result is one link suggestion
type Result struct {
	Value       string `json:"value"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// LinkRequest carries the raw keyword arguments of a link search and the
// locale of the caller
type LinkRequest struct {
	Args Args
	Lang string
}

// WidgetRequest is a LinkRequest whose rows are returned unformatted
type WidgetRequest LinkRequest

// Service runs link and widget searches
type Service struct {
	db         *gorm.DB
	translator *i18n.Translator
	cfg        config.Search
	metrics    *metrics.Collector
	logger     zerolog.Logger
}

// NewService creates a search service. translator may be nil, which disables
// translated matching.
func NewService(db *gorm.DB, translator *i18n.Translator, cfg config.Search, logger zerolog.Logger) *Service {
	return &Service{
		db:         db,
		translator: translator,
		cfg:        cfg,
		logger:     logger.With().Str("component", "search").Logger(),
	}
}

// SetMetrics records searches on c
func (s *Service) SetMetrics(c *metrics.Collector) {
	s.metrics = c
}

// row is one matched record, values keyed by column
type row struct {
	values    map[string]string
	relevance int
}

// SearchLink returns suggestions for a link field
func (s *Service) SearchLink(ctx context.Context, req LinkRequest) ([]Result, error) {
	tg, rows, err := s.search(ctx, req.Args, req.Lang)
	if err != nil || tg == nil {
		return []Result{}, err
	}

	translate := s.labeler(ctx, tg, req.Lang)

	results := make([]Result, 0, len(rows))
	for _, r := range rows {
		name := r.values["name"]
		res := Result{Value: name}

		if label := translate(name); label != name {
			res.Label = label
		} else if tg.title != "" {
			if title := r.values[tg.title]; title != "" && title != name {
				res.Label = translate(title)
			}
		}

		var desc []string
		for _, col := range tg.fields {
			v := r.values[col]
			if v == "" || v == name || col == tg.title && res.Label != "" {
				continue
			}
			desc = append(desc, v)
		}
		res.Description = strings.Join(desc, ", ")

		results = append(results, res)
	}
	return results, nil
}

// SearchWidget returns the name followed by the search field values of each match
func (s *Service) SearchWidget(ctx context.Context, req WidgetRequest) ([][]string, error) {
	tg, rows, err := s.search(ctx, req.Args, req.Lang)
	if err != nil || tg == nil {
		return [][]string{}, err
	}

	cols := tg.columns()
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		values := make([]string, len(cols))
		for i, c := range cols {
			values[i] = r.values[c]
		}
		out = append(out, values)
	}
	return out, nil
}

// search validates args and runs the query. A nil target means the doctype
// is unknown and the result is empty.
func (s *Service) search(ctx context.Context, args Args, lang string) (*target, []row, error) {
	start := time.Now()
	doctype := strings.TrimSpace(args.String("doctype"))

	tg, rows, err := s.run(ctx, args, lang)

	// Only registered doctype names become label values
	label, outcome := "", "ok"
	switch {
	case err != nil:
		outcome = "error"
	case tg == nil:
		outcome = "unknown_doctype"
	default:
		label = tg.doctype.Name
	}
	s.metrics.RecordSearch(label, outcome, len(rows), time.Since(start))

	if err != nil {
		s.logger.Debug().Err(err).Str("doctype", doctype).Msg("Search rejected")
		return nil, nil, s.localize(ctx, lang, err)
	}
	s.logger.Debug().
		Str("doctype", doctype).
		Int("results", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Search completed")
	return tg, rows, nil
}

func (s *Service) run(ctx context.Context, args Args, lang string) (*target, []row, error) {
	in, err := ValidateSearchInputs(args)
	if err != nil {
		return nil, nil, err
	}
	if in.PageLengthDefaulted && s.cfg.DefaultPageLength > 0 {
		in.PageLength = s.cfg.DefaultPageLength
	}
	if s.cfg.MaxPageLength > 0 && in.PageLength > s.cfg.MaxPageLength {
		in.PageLength = s.cfg.MaxPageLength
	}

	dt, err := s.resolveDocType(ctx, in.DocType)
	if err != nil {
		return nil, nil, err
	}
	if dt == nil {
		return nil, nil, nil
	}

	tg, err := newTarget(*dt, in.SearchField)
	if err != nil {
		return nil, nil, err
	}

	q := &query{target: tg, text: in.Text, inputs: in}
	if in.Text != "" && dt.TranslatedDocType && s.translates(lang) {
		if q.labels, err = s.labelMatches(ctx, lang, in.Text); err != nil {
			return nil, nil, err
		}
	}

	rows, err := s.fetch(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return tg, rows, nil
}

// resolveDocType returns nil when name is empty or not registered
func (s *Service) resolveDocType(ctx context.Context, name string) (*models.DocType, error) {
	if name == "" {
		return nil, nil
	}
	if name == models.DocTypeName {
		dt := registryDocType
		return &dt, nil
	}

	var dt models.DocType
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&dt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapDatabaseError("resolve doctype", err)
	}
	return &dt, nil
}

func (s *Service) fetch(ctx context.Context, q *query) ([]row, error) {
	stmt, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rs, err := s.db.WithContext(ctx).Raw(stmt, args...).Rows()
	if err != nil {
		return nil, utils.WrapDatabaseError("search", err)
	}
	defer rs.Close()

	cols := q.target.columns()
	var out []row
	for rs.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]interface{}, 0, len(cols)+1)
		for i := range values {
			dest = append(dest, &values[i])
		}
		var relevance int
		dest = append(dest, &relevance)

		if err := rs.Scan(dest...); err != nil {
			return nil, utils.WrapDatabaseError("scan search row", err)
		}

		r := row{values: make(map[string]string, len(cols)), relevance: relevance}
		for i, c := range cols {
			r.values[c] = values[i].String
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, utils.WrapDatabaseError("search", err)
	}
	return out, nil
}

func (s *Service) translates(lang string) bool {
	return s.translator != nil && !s.translator.IsDefault(lang)
}

// labelMatches buckets the names whose translated label matches text
func (s *Service) labelMatches(ctx context.Context, lang, text string) (labelMatches, error) {
	var m labelMatches

	sources, err := s.translator.ReverseLookup(ctx, lang, text)
	if err != nil || len(sources) == 0 {
		return m, err
	}
	dict, err := s.translator.Dictionary(ctx, lang)
	if err != nil {
		return m, err
	}

	fold := cases.Fold()
	needle := fold.String(text)
	for _, src := range sources {
		label := fold.String(dict[src])
		switch {
		case label == needle:
			m.exact = append(m.exact, src)
		case strings.HasPrefix(label, needle):
			m.prefix = append(m.prefix, src)
		}
		m.contains = append(m.contains, src)
	}
	return m, nil
}

// labeler translates names and titles of translated doctypes
func (s *Service) labeler(ctx context.Context, tg *target, lang string) func(string) string {
	if !tg.doctype.TranslatedDocType || !s.translates(lang) {
		return func(v string) string { return v }
	}
	dict, err := s.translator.Dictionary(ctx, lang)
	if err != nil {
		s.logger.Warn().Err(err).Str("lang", lang).Msg("Labels left untranslated")
		return func(v string) string { return v }
	}
	return func(v string) string {
		if t, ok := dict[v]; ok && t != "" {
			return t
		}
		return v
	}
}

// localize rewrites the user-facing message of a rejected search field
func (s *Service) localize(ctx context.Context, lang string, err error) error {
	if !s.translates(lang) {
		return err
	}
	var de *utils.DataError
	if !errors.As(err, &de) {
		return err
	}
	return utils.WrapDataError(de.Value, s.translator.Translatef(ctx, lang, InvalidSearchFieldMessage, de.Value))
}
