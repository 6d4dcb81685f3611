// Package search resolves user-typed text to records of a doctype for link
// fields and list widgets.
package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ksred/linkdesk/internal/utils"
)

// identifierPattern accepts column or table.column
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// blacklistedKeywords may never appear as a word of a search field
var blacklistedKeywords = map[string]bool{
	"select": true,
	"delete": true,
	"drop":   true,
	"update": true,
	"case":   true,
	"and":    true,
	"or":     true,
	"like":   true,
	"union":  true,
	"insert": true,
	"from":   true,
	"where":  true,
}

// InvalidSearchFieldMessage is the source string of the error shown to users
const InvalidSearchFieldMessage = "Invalid Search Field {0}"

// SanitizeSearchField rejects field names that could change the structure of
// a query. An empty field is accepted; callers fall back to their defaults.
func SanitizeSearchField(field string) error {
	if field == "" {
		return nil
	}

	for _, word := range strings.Fields(strings.ToLower(field)) {
		if blacklistedKeywords[strings.Trim(word, "()`\"'[]")] {
			return invalidSearchField(field)
		}
	}

	if strings.Contains(field, "--") || strings.Contains(field, "/*") {
		return invalidSearchField(field)
	}

	if !identifierPattern.MatchString(field) {
		return invalidSearchField(field)
	}

	return nil
}

func invalidSearchField(field string) error {
	return utils.WrapDataError(field, strings.Replace(InvalidSearchFieldMessage, "{0}", field, 1))
}

// columnName strips an optional table qualifier
func columnName(field string) string {
	if idx := strings.LastIndexByte(field, '.'); idx != -1 {
		return field[idx+1:]
	}
	return field
}

// escapeLike makes %, _ and \ match literally in a LIKE pattern using ESCAPE '\'
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func containsPattern(s string) string {
	return fmt.Sprintf("%%%s%%", escapeLike(s))
}

func prefixPattern(s string) string {
	return escapeLike(s) + "%"
}
