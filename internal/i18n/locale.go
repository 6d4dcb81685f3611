package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Resolver picks the request language among the supported ones
type Resolver struct {
	defaultLang string
	supported   []string
	matcher     language.Matcher
}

// NewResolver builds a resolver. defaultLang is always supported and wins ties.
func NewResolver(defaultLang string, supported []string) *Resolver {
	langs := []string{defaultLang}
	for _, s := range supported {
		if s != defaultLang {
			langs = append(langs, s)
		}
	}

	tags := make([]language.Tag, 0, len(langs))
	valid := make([]string, 0, len(langs))
	for _, l := range langs {
		tag, err := language.Parse(l)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		valid = append(valid, l)
	}

	return &Resolver{
		defaultLang: defaultLang,
		supported:   valid,
		matcher:     language.NewMatcher(tags),
	}
}

// Default returns the fallback language
func (r *Resolver) Default() string {
	return r.defaultLang
}

// Supported returns the languages the resolver can answer with, default first
func (r *Resolver) Supported() []string {
	return append([]string(nil), r.supported...)
}

// Resolve returns the first supported match of, in order: an explicit
// language (the _lang parameter), the Accept-Language header and the user's
// saved preference. Nothing matching yields the default.
func (r *Resolver) Resolve(explicit, acceptLanguage, userLang string) string {
	if lang, ok := r.match(explicit); ok {
		return lang
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			if _, idx, conf := r.matcher.Match(tags...); conf != language.No {
				return r.supported[idx]
			}
		}
	}
	if lang, ok := r.match(userLang); ok {
		return lang
	}
	return r.defaultLang
}

func (r *Resolver) match(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	_, idx, conf := r.matcher.Match(tag)
	if conf == language.No {
		return "", false
	}
	return r.supported[idx], true
}

// Resolve is the one-shot form of Resolver.Resolve
func Resolve(explicit, acceptLanguage, userLang, defaultLang string, supported ...string) string {
	return NewResolver(defaultLang, supported).Resolve(explicit, acceptLanguage, userLang)
}
