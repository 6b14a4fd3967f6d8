package render

import (
	"errors"
	"strings"

	"github.com/goliatone/go-formly/pkg/form"
)

// ErrMissingTranslator is passed to MissingTranslationHandler when Localize
// runs without a translator.
var ErrMissingTranslator = errors.New("render: translator not configured")

// Translator resolves message keys for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

// Translate implements Translator.
func (fn TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return fn(locale, key, args...)
}

// MissingTranslationHandler returns the text used when key cannot be
// translated.
type MissingTranslationHandler func(locale, key string, fallback string, err error) string

// LocalizeOptions configure Localize.
type LocalizeOptions struct {
	Locale     string
	Translator Translator
	OnMissing  MissingTranslationHandler
}

// templateOptions.<hint> names the key whose translation replaces
// templateOptions.<target>.
var localizedHints = []struct{ hint, target string }{
	{"labelKey", "label"},
	{"descriptionKey", "description"},
	{"placeholderKey", "placeholder"},
}

// Localize walks the subtree rooted at field (the whole form when field is
// nil) and replaces labels, descriptions and placeholders that declare a
// translation key. Writes go through the form's observation hub, so mounted
// renderers see them.
func Localize(f *form.Form, field *form.Field, opts LocalizeOptions) error {
	if f == nil {
		return errors.New("render: form is required")
	}
	if field == nil {
		field = f.Root()
	}

	return localizeField(field, opts)
}

func localizeField(n *form.Field, opts LocalizeOptions) error {
	for _, h := range localizedHints {
		key, _ := n.Prop("templateOptions." + h.hint).(string)
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fallback, _ := n.Prop("templateOptions." + h.target).(string)
		if err := n.SetProp("templateOptions."+h.target, translate(opts, key, strings.TrimSpace(fallback))); err != nil {
			return err
		}
	}
	for _, child := range n.FieldGroup() {
		if err := localizeField(child, opts); err != nil {
			return err
		}
	}
	return nil
}

func translate(opts LocalizeOptions, key, fallback string) string {
	var err error
	if opts.Translator == nil {
		err = ErrMissingTranslator
	} else {
		var result string
		result, err = opts.Translator.Translate(opts.Locale, key)
		if err == nil && strings.TrimSpace(result) != "" {
			return result
		}
	}

	if opts.OnMissing != nil {
		return opts.OnMissing(opts.Locale, key, fallback, err)
	}
	if fallback != "" {
		return fallback
	}
	return key
}
