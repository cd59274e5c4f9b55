// Package locale holds the translated UI strings. English is always
// loaded as the fallback; Korean ships alongside it since most MyTalk
// users study from Korean.
package locale

import (
	"embed"
	"fmt"
	"strings"

	"github.com/cloudfoundry/jibber_jabber"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var catalogFS embed.FS

// Localizer resolves message ids for the selected language.
type Localizer struct {
	loc *i18n.Localizer
	tag language.Tag
}

// New builds a localizer for the given language code. Empty or "auto"
// detects the system language. Languages without a catalog fall back
// to English.
func New(lang string) (*Localizer, error) {
	var tag language.Tag
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "auto":
		tag = Detect()
	default:
		parsed, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("unknown language %q: %w", lang, err)
		}
		tag = parsed
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	if _, err := bundle.LoadMessageFileFS(catalogFS, "en.yaml"); err != nil {
		return nil, fmt.Errorf("failed to load english catalog: %w", err)
	}
	if base, _ := tag.Base(); base.String() != "en" {
		if _, err := bundle.LoadMessageFileFS(catalogFS, base.String()+".yaml"); err != nil {
			tag = language.English
		}
	}

	return &Localizer{
		loc: i18n.NewLocalizer(bundle, tag.String(), "en"),
		tag: tag,
	}, nil
}

// Detect sniffs the operating system language.
func Detect() language.Tag {
	name, err := jibber_jabber.DetectLanguage()
	if err != nil {
		return language.English
	}
	tag, err := language.Parse(name)
	if err != nil {
		return language.English
	}
	return tag
}

// Lang returns the active language code.
func (l *Localizer) Lang() string {
	base, _ := l.tag.Base()
	return base.String()
}

// T renders a message. Unknown ids come back as the id itself so a
// missing translation never blanks the UI.
func (l *Localizer) T(id string, data map[string]any) string {
	s, err := l.loc.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return s
}

// Tn renders a message with a plural count. The count is also exposed
// to the template as Count.
func (l *Localizer) Tn(id string, n int, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	data["Count"] = n
	s, err := l.loc.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
		PluralCount:  n,
	})
	if err != nil {
		return id
	}
	return s
}
