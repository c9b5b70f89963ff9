package i18n

import (
	"embed"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

//go:embed locales/*.yml
var localesFS embed.FS

func loadEmbeddedTranslations(bundle *i18n.Bundle) error {
	entries, err := localesFS.ReadDir("locales")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localesFS, "locales/"+entry.Name()); err != nil {
			return err
		}
	}
	return nil
}
