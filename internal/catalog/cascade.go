package catalog

import (
	"fmt"
	"slices"
)

// Selection is a resolved (locale, style) pair. Callers write both fields back
// together; writing one without the other can leave an invalid combination.
type Selection struct {
	Locale string
	Style  string
}

// LocalesFor returns the voice's locale codes in catalog order, or nil when the
// voice declares no locale map or is unknown.
func LocalesFor(c *Catalog, voiceID string) []string {
	voice, ok := c.Voice(voiceID)
	if !ok || voice.SupportedLocales.Len() == 0 {
		return nil
	}

	return voice.SupportedLocales.Codes()
}

// StylesFor returns the styles valid for (voiceID, locale). A locale present in
// the voice's map wins even when its style list is empty.
func StylesFor(c *Catalog, voiceID, locale string) []string {
	voice, ok := c.Voice(voiceID)
	if !ok {
		return nil
	}

	if detail, found := voice.SupportedLocales.Get(locale); found {
		return append([]string(nil), detail.AvailableStyles...)
	}

	return append([]string(nil), voice.AvailableStyles...)
}

// ImplicitLocale is the locale used for a voice without a locale map: the
// voice's own locale, falling back to the canonical one.
func ImplicitLocale(c *Catalog, voiceID string) string {
	voice, ok := c.Voice(voiceID)
	if ok && voice.Locale != "" {
		return voice.Locale
	}

	return c.canonicalLocale
}

// ResolveVoiceChange picks the default locale and style for a newly selected voice.
// A voice with no styles yields an empty style; that is a catalog data problem,
// not an error.
func ResolveVoiceChange(c *Catalog, voiceID string) (Selection, error) {
	if _, ok := c.Voice(voiceID); !ok {
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownVoice, voiceID)
	}

	locale := preferred(LocalesFor(c, voiceID), c.canonicalLocale)
	if locale == "" {
		locale = ImplicitLocale(c, voiceID)
	}

	return Selection{
		Locale: locale,
		Style:  preferred(StylesFor(c, voiceID, locale), c.canonicalStyle),
	}, nil
}

// ResolveLocaleChange picks the default style for a new locale of voiceID.
func ResolveLocaleChange(c *Catalog, voiceID, locale string) (Selection, error) {
	if _, ok := c.Voice(voiceID); !ok {
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownVoice, voiceID)
	}

	return Selection{
		Locale: locale,
		Style:  preferred(StylesFor(c, voiceID, locale), c.canonicalStyle),
	}, nil
}

// IsValid reports whether (voiceID, locale, style) satisfies the catalog.
func IsValid(c *Catalog, voiceID, locale, style string) bool {
	if _, ok := c.Voice(voiceID); !ok {
		return false
	}

	if !HasLocale(c, voiceID, locale) {
		return false
	}

	styles := StylesFor(c, voiceID, locale)
	if len(styles) == 0 {
		return style == ""
	}

	return slices.Contains(styles, style)
}

// HasLocale reports whether locale is selectable for voiceID.
func HasLocale(c *Catalog, voiceID, locale string) bool {
	locales := LocalesFor(c, voiceID)
	if len(locales) == 0 {
		return locale == ImplicitLocale(c, voiceID)
	}

	return slices.Contains(locales, locale)
}

func preferred(options []string, canonical string) string {
	if slices.Contains(options, canonical) {
		return canonical
	}

	if len(options) == 0 {
		return ""
	}

	return options[0]
}
