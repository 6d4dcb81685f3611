package search

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ksred/linkdesk/internal/utils"
)

const (
	// DefaultStart is used when start is missing or malformed
	DefaultStart = 0
	// DefaultPageLength is used when page_len is missing, malformed or not positive
	DefaultPageLength = 20
)

// Args is the keyword mapping a search call receives. Keys the search does not
// know about are ignored.
type Args map[string]interface{}

// String returns the value under key as text
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Has reports whether key is present and not nil
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// Inputs are validated search arguments
type Inputs struct {
	DocType     string
	Text        string
	SearchField string
	Start       int
	PageLength  int
	Filters     []Filter
	// PageLengthDefaulted is set when the caller did not supply a usable page length
	PageLengthDefaulted bool
}

// ValidateSearchInputs sanitizes the search field and filters and coerces
// pagination. Pagination is lenient: text numbers are parsed and anything
// malformed or negative falls back to the defaults. Field names are strict.
func ValidateSearchInputs(args Args) (*Inputs, error) {
	in := &Inputs{
		DocType:     strings.TrimSpace(args.String("doctype")),
		Text:        strings.TrimSpace(args.String("txt")),
		SearchField: strings.TrimSpace(args.String("searchfield")),
	}

	if err := SanitizeSearchField(in.SearchField); err != nil {
		return nil, err
	}

	in.Start = DefaultStart
	if n, ok := coerceInt(args["start"]); ok && n >= 0 {
		in.Start = n
	}

	raw, present := args["page_len"]
	if !present || raw == nil {
		raw = args["page_length"]
	}
	if n, ok := coerceInt(raw); ok && n > 0 {
		in.PageLength = n
	} else {
		in.PageLength = DefaultPageLength
		in.PageLengthDefaulted = true
	}

	filters, err := ParseFilters(args["filters"])
	if err != nil {
		return nil, err
	}
	in.Filters = filters

	return in, nil
}

// coerceInt converts text, JSON and Go numbers to int, truncating fractions
func coerceInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return uintToInt(uint64(n))
	case uint64:
		return uintToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		return coerceInt(n.String())
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

// uintToInt rejects values that do not fit in an int
func uintToInt(n uint64) (int, bool) {
	if n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// Filter restricts results by one column
type Filter struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

var filterOperators = map[string]bool{
	"=":    true,
	"!=":   true,
	"like": true,
	"in":   true,
	">":    true,
	"<":    true,
	">=":   true,
	"<=":   true,
}

// ParseFilters accepts a mapping field → value or field → [op, value], a list
// of [field, op, value] triples, or either encoded as a JSON string. Field
// names are sanitized like search fields.
func ParseFilters(raw interface{}) ([]Filter, error) {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, utils.InvalidFieldError("filters", "must be a JSON object or list")
		}
		raw = decoded
	}

	var filters []Filter
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		for field, value := range v {
			f, err := filterFromValue(field, value)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
		// map iteration order is random; keep the generated SQL stable
		sort.Slice(filters, func(i, j int) bool { return filters[i].Field < filters[j].Field })
	case Args:
		return ParseFilters(map[string]interface{}(v))
	case []interface{}:
		for _, item := range v {
			triple, ok := item.([]interface{})
			if !ok || len(triple) < 3 {
				return nil, utils.InvalidFieldError("filters", "list filters must be [field, operator, value]")
			}
			// [doctype, field, op, value] is accepted too; the doctype is implied
			if len(triple) == 4 {
				triple = triple[1:]
			}
			field, _ := triple[0].(string)
			op, _ := triple[1].(string)
			f, err := newFilter(field, op, triple[2])
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
	default:
		return nil, utils.InvalidFieldError("filters", "must be a JSON object or list")
	}

	return filters, nil
}

func filterFromValue(field string, value interface{}) (Filter, error) {
	if pair, ok := value.([]interface{}); ok && len(pair) == 2 {
		if op, ok := pair[0].(string); ok {
			return newFilter(field, op, pair[1])
		}
	}
	return newFilter(field, "=", value)
}

func newFilter(field, op string, value interface{}) (Filter, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return Filter{}, utils.RequiredFieldError("filters")
	}
	if err := SanitizeSearchField(field); err != nil {
		return Filter{}, err
	}

	op = strings.ToLower(strings.TrimSpace(op))
	if !filterOperators[op] {
		return Filter{}, utils.InvalidFieldError("filters", fmt.Sprintf("unsupported operator %q", op))
	}

	if op == "in" {
		value = inValues(value)
	}
	return Filter{Field: field, Operator: op, Value: value}, nil
}

// inValues normalizes an "in" operand: a list, or a comma separated string
func inValues(v interface{}) []interface{} {
	switch list := v.(type) {
	case []interface{}:
		return list
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	case string:
		var out []interface{}
		for _, part := range strings.Split(list, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return []interface{}{v}
	}
}
