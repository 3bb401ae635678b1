// Package i18n loads flat JSON message catalogs and picks a language from
// Accept-Language.
package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Bundle holds the messages of every supported language.
type Bundle struct {
	messages  map[string]map[string]string
	fallback  string
	supported map[string]struct{}
}

// Load reads <dir>/<lang>.json for each supported language. Only the fallback
// language is required to exist.
func Load(dir, fallback string, supported []string) (*Bundle, error) {
	if len(supported) == 0 {
		supported = []string{"ru", "en"}
	}
	b := &Bundle{
		messages:  make(map[string]map[string]string, len(supported)),
		fallback:  fallback,
		supported: make(map[string]struct{}, len(supported)),
	}
	for _, lang := range supported {
		b.supported[lang] = struct{}{}
		raw, err := os.ReadFile(filepath.Join(dir, lang+".json"))
		if err != nil {
			if lang == fallback {
				return nil, fmt.Errorf("load locale %s: %w", lang, err)
			}
			continue
		}
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", lang, err)
		}
		b.messages[lang] = m
	}
	if _, ok := b.messages[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %s not loaded", fallback)
	}
	return b, nil
}

// Supported lists the configured languages, sorted.
func (b *Bundle) Supported() []string {
	out := make([]string, 0, len(b.supported))
	for lang := range b.supported {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() string { return b.fallback }

// IsSupported reports whether lang was configured.
func (b *Bundle) IsSupported(lang string) bool {
	_, ok := b.supported[lang]
	return ok
}

// T returns the message for key in lang, then in the fallback language, then
// the key itself.
func (b *Bundle) T(lang, key string) string {
	if v, ok := b.messages[lang][key]; ok {
		return v
	}
	if v, ok := b.messages[b.fallback][key]; ok {
		return v
	}
	return key
}

// Tf translates key and substitutes {name} placeholders from args, given as
// alternating name/value pairs.
func (b *Bundle) Tf(lang, key string, args ...any) string {
	out := b.T(lang, key)
	for i := 0; i+1 < len(args); i += 2 {
		name, ok := args[i].(string)
		if !ok {
			continue
		}
		out = strings.ReplaceAll(out, "{"+name+"}", fmt.Sprint(args[i+1]))
	}
	return out
}

// Resolve picks the supported language with the highest q-value in an
// Accept-Language header. Region subtags are ignored: ru-RU selects ru.
func (b *Bundle) Resolve(acceptLang string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil {
		return b.fallback
	}
	for _, tag := range tags {
		base, _ := tag.Base()
		if lang := strings.ToLower(base.String()); b.IsSupported(lang) {
			return lang
		}
	}
	return b.fallback
}
