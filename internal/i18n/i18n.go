package i18n

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Catalog holds the embedded date vocabulary for every supported language.
type Catalog struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
}

// NewCatalog loads the embedded locale files.
func NewCatalog() (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yml", yaml.Unmarshal)

	if err := loadEmbeddedTranslations(bundle); err != nil {
		return nil, fmt.Errorf("i18n: load locales: %w", err)
	}

	return &Catalog{
		bundle:  bundle,
		matcher: language.NewMatcher(bundle.LanguageTags()),
	}, nil
}

// Supported returns the language tags that have a locale file.
func (c *Catalog) Supported() []language.Tag {
	return c.bundle.LanguageTags()
}

// Locale resolves a configured locale string ("fi", "fi_FI.UTF-8", "en-US")
// to the closest supported language. Unsupported locales fall back to English
// and report exact=false.
func (c *Catalog) Locale(name string) (l *Locale, exact bool) {
	tags := c.bundle.LanguageTags()
	tag := language.English

	if name = normalizeLocale(name); name != "" {
		if want, err := language.Parse(name); err == nil {
			_, idx, conf := c.matcher.Match(want)
			if conf != language.No {
				tag = tags[idx]
				exact = true
			}
		}
	}

	return &Locale{
		tag:       tag,
		localizer: i18n.NewLocalizer(c.bundle, tag.String(), language.English.String()),
	}, exact
}

// normalizeLocale strips encoding suffixes and POSIX separators.
func normalizeLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	locale = strings.Split(locale, ".")[0]
	return strings.ReplaceAll(locale, "_", "-")
}

// Locale renders date fragments in one language. It is immutable and safe for
// concurrent use.
type Locale struct {
	tag       language.Tag
	localizer *i18n.Localizer
}

func (l *Locale) Tag() language.Tag { return l.tag }

func (l *Locale) t(id string, data map[string]interface{}) string {
	msg, err := l.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}

func (l *Locale) Weekday(d time.Weekday, long bool) string {
	if long {
		return l.t("weekday_long_"+strconv.Itoa(int(d)), nil)
	}
	return l.t("weekday_short_"+strconv.Itoa(int(d)), nil)
}

func (l *Locale) Month(m time.Month) string {
	return l.t("month_long_"+strconv.Itoa(int(m)), nil)
}

// Date renders the calendar date of t (in t's location).
func (l *Locale) Date(t time.Time, long bool) string {
	data := map[string]interface{}{
		"Weekday":  l.Weekday(t.Weekday(), long),
		"Month":    l.Month(t.Month()),
		"MonthNum": int(t.Month()),
		"Day":      t.Day(),
		"Year":     t.Year(),
	}
	if long {
		return l.t("date_long", data)
	}
	return l.t("date_short", data)
}

// Time renders the wall clock of t as two-digit hour and minute.
func (l *Locale) Time(t time.Time) string {
	return l.t("time", map[string]interface{}{
		"Hour":   fmt.Sprintf("%02d", t.Hour()),
		"Minute": fmt.Sprintf("%02d", t.Minute()),
	})
}

// DateTime renders date and time of t.
func (l *Locale) DateTime(t time.Time, long bool) string {
	return l.t("datetime", map[string]interface{}{
		"Date": l.Date(t, long),
		"Time": l.Time(t),
	})
}
