package search

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/lib/pq"
)

// Relevance buckets, lowest first
const (
	RankExactName = iota
	RankNamePrefix
	RankNameSubstring
	RankOtherField
	RankDescendant
)

// table describes the storage of a doctype's rows
type table struct {
	name string
	// columns may be filtered on
	columns map[string]bool
	// text columns may be searched
	text map[string]bool
	// scoped tables hold many doctypes told apart by doc_type
	scoped bool
	// nested is set when rows carry lft/rgt/idx
	nested bool
}

var registryTable = &table{
	name: "doc_types",
	columns: map[string]bool{
		"name": true, "module": true, "is_tree": true, "is_custom": true,
		"search_fields": true, "title_field": true, "show_title_field_in_link": true,
		"translated_doc_type": true, "sort_field": true, "sort_order": true,
		"created_at": true, "updated_at": true,
	},
	text: map[string]bool{
		"name": true, "module": true, "search_fields": true, "title_field": true,
	},
}

var recordsTable = &table{
	name: "records",
	columns: map[string]bool{
		"name": true, "title": true, "description": true, "parent_record": true,
		"is_group": true, "lft": true, "rgt": true, "idx": true,
		"created_at": true, "updated_at": true,
	},
	text: map[string]bool{
		"name": true, "title": true, "description": true, "parent_record": true,
	},
	scoped: true,
	nested: true,
}

// registryDocType describes the DocType registry when it is searched itself
var registryDocType = models.DocType{
	Name:              models.DocTypeName,
	Module:            "Core",
	SearchFields:      "module",
	TranslatedDocType: true,
	SortField:         "name",
	SortOrder:         "asc",
}

// target is a resolved doctype with the columns a search reads
type target struct {
	doctype models.DocType
	table   *table
	// fields are the searched columns besides name, in display order
	fields []string
	// title is the title column when the doctype shows it in links
	title string
}

func newTarget(dt models.DocType, searchField string) (*target, error) {
	tbl := recordsTable
	if dt.Name == models.DocTypeName {
		tbl = registryTable
	}
	tg := &target{doctype: dt, table: tbl}

	seen := map[string]bool{"name": true}
	add := func(col string) {
		if col == "" || seen[col] || !tbl.text[col] {
			return
		}
		seen[col] = true
		tg.fields = append(tg.fields, col)
	}

	if searchField != "" {
		if idx := strings.LastIndexByte(searchField, '.'); idx != -1 && searchField[:idx] != tbl.name {
			return nil, utils.InvalidFieldError("searchfield", fmt.Sprintf("unknown table %q", searchField[:idx]))
		}
		col := columnName(searchField)
		if !tbl.text[col] {
			return nil, utils.InvalidFieldError("searchfield", fmt.Sprintf("%q is not a searchable field of %s", col, dt.Name))
		}
		add(col)
	} else {
		for _, f := range dt.SearchFieldList() {
			// Unknown configured fields are skipped rather than failing every search
			if SanitizeSearchField(f) == nil {
				add(columnName(f))
			}
		}
		if dt.TitleField != "" && SanitizeSearchField(dt.TitleField) == nil {
			add(columnName(dt.TitleField))
		}
	}
	if parent := dt.ParentField(); parent != "" {
		add(parent)
	}

	if dt.ShowTitleFieldInLink && dt.TitleField != "" && tbl.text[columnName(dt.TitleField)] {
		tg.title = columnName(dt.TitleField)
	}
	return tg, nil
}

// columns returns the selected columns: name, the search fields, then the title
func (tg *target) columns() []string {
	cols := append([]string{"name"}, tg.fields...)
	if tg.title != "" && tg.title != "name" && !contains(tg.fields, tg.title) {
		cols = append(cols, tg.title)
	}
	return cols
}

func (tg *target) isTree() bool {
	return tg.doctype.IsTree && tg.table.nested
}

// labelMatches are names whose translated label matches the search text
type labelMatches struct {
	exact    []string
	prefix   []string
	contains []string
}

// query is everything buildQuery needs
type query struct {
	target *target
	text   string
	labels labelMatches
	inputs *Inputs
}

func qualified(alias, column string) string {
	return alias + "." + pq.QuoteIdentifier(column)
}

func likeExpr(column string, pattern string) sq.Sqlizer {
	return sq.Expr("LOWER("+column+") LIKE ? ESCAPE '\\'", pattern)
}

// match is the text condition for rows aliased as alias
func (q *query) match(alias string) sq.Sqlizer {
	pattern := containsPattern(strings.ToLower(q.text))

	or := sq.Or{likeExpr(qualified(alias, "name"), pattern)}
	for _, col := range q.target.fields {
		or = append(or, likeExpr(qualified(alias, col), pattern))
	}
	if len(q.labels.contains) > 0 {
		or = append(or, sq.Eq{qualified(alias, "name"): q.labels.contains})
	}
	return or
}

// relevance ranks a matched row into one of the Rank buckets
func (q *query) relevance() sq.Sqlizer {
	name := qualified("t", "name")
	lowered := strings.ToLower(q.text)

	return sq.Case().
		When(sq.Or{sq.Expr("LOWER("+name+") = ?", lowered), sq.Eq{name: q.labels.exact}}, fmt.Sprint(RankExactName)).
		When(sq.Or{likeExpr(name, prefixPattern(lowered)), sq.Eq{name: q.labels.prefix}}, fmt.Sprint(RankNamePrefix)).
		When(sq.Or{likeExpr(name, containsPattern(lowered)), sq.Eq{name: q.labels.contains}}, fmt.Sprint(RankNameSubstring)).
		When(q.match("t"), fmt.Sprint(RankOtherField)).
		Else(fmt.Sprint(RankDescendant))
}

// descendantOfMatch selects rows nested under a matching group node
func (q *query) descendantOfMatch() (sq.Sqlizer, error) {
	tbl := pq.QuoteIdentifier(q.target.table.name)
	sub := sq.Select("1").
		From(tbl+" g").
		Where(sq.Eq{"g.doc_type": q.target.doctype.Name}).
		Where(sq.Eq{"g.is_group": true}).
		Where(q.match("g")).
		Where("t.lft > g.lft AND t.rgt < g.rgt")

	subSQL, subArgs, err := sub.ToSql()
	if err != nil {
		return nil, err
	}
	return sq.Expr("EXISTS ("+subSQL+")", subArgs...), nil
}

func (q *query) filter(f Filter) (sq.Sqlizer, error) {
	col := columnName(f.Field)
	if !q.target.table.columns[col] {
		return nil, utils.InvalidFieldError("filters", fmt.Sprintf("%q is not a field of %s", col, q.target.doctype.Name))
	}
	c := qualified("t", col)

	switch f.Operator {
	case "=", "in":
		return sq.Eq{c: f.Value}, nil
	case "!=":
		return sq.NotEq{c: f.Value}, nil
	case ">":
		return sq.Gt{c: f.Value}, nil
	case "<":
		return sq.Lt{c: f.Value}, nil
	case ">=":
		return sq.GtOrEq{c: f.Value}, nil
	case "<=":
		return sq.LtOrEq{c: f.Value}, nil
	case "like":
		return sq.Expr("LOWER("+c+") LIKE ?", strings.ToLower(fmt.Sprint(f.Value))), nil
	default:
		return nil, utils.InvalidFieldError("filters", fmt.Sprintf("unsupported operator %q", f.Operator))
	}
}

func (q *query) orderBy() []string {
	order := []string{"relevance ASC"}
	tg := q.target
	if tg.isTree() {
		order = append(order, "t.lft ASC")
	}
	if sf := tg.doctype.SortField; sf != "" && SanitizeSearchField(sf) == nil && tg.table.columns[columnName(sf)] {
		dir := "ASC"
		if strings.EqualFold(tg.doctype.SortOrder, "desc") {
			dir = "DESC"
		}
		order = append(order, qualified("t", columnName(sf))+" "+dir)
	}
	if tg.table.nested {
		order = append(order, "t.idx DESC")
	}
	return append(order, "t.name ASC")
}

// buildQuery renders the search as SQL with ? placeholders
func buildQuery(q *query) (string, []interface{}, error) {
	tg := q.target

	cols := make([]string, 0, len(tg.columns()))
	for _, c := range tg.columns() {
		cols = append(cols, qualified("t", c))
	}

	b := sq.Select(cols...).From(pq.QuoteIdentifier(tg.table.name) + " t")

	if q.text == "" {
		b = b.Column(fmt.Sprintf("%d AS relevance", RankExactName))
	} else {
		b = b.Column(sq.Alias(q.relevance(), "relevance"))
	}

	if tg.table.scoped {
		b = b.Where(sq.Eq{"t.doc_type": tg.doctype.Name})
	}

	if q.text != "" {
		if tg.isTree() {
			descendant, err := q.descendantOfMatch()
			if err != nil {
				return "", nil, err
			}
			b = b.Where(sq.Or{q.match("t"), descendant})
		} else {
			b = b.Where(q.match("t"))
		}
	}

	for _, f := range q.inputs.Filters {
		cond, err := q.filter(f)
		if err != nil {
			return "", nil, err
		}
		b = b.Where(cond)
	}

	b = b.OrderBy(q.orderBy()...).
		Limit(uint64(q.inputs.PageLength)).
		Offset(uint64(q.inputs.Start))

	return b.ToSql()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
