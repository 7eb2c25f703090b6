package catalog

import "errors"

// Canonical selections preferred when a voice or locale changes.
const (
	DefaultCanonicalLocale = "en-US"
	DefaultCanonicalStyle  = "Conversational"
)

// ErrUnknownVoice is returned when a voice id is not in the catalog.
var ErrUnknownVoice = errors.New("unknown voice")

// Catalog is an immutable snapshot of the available voices.
// It is safe for concurrent reads.
type Catalog struct {
	voices          []Voice
	index           map[string]int
	canonicalLocale string
	canonicalStyle  string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCanonical overrides the preferred locale and style. Empty values keep the defaults.
func WithCanonical(locale, style string) Option {
	return func(c *Catalog) {
		if locale != "" {
			c.canonicalLocale = locale
		}

		if style != "" {
			c.canonicalStyle = style
		}
	}
}

// New snapshots voices into a Catalog. The first occurrence of a duplicated
// voice id wins.
func New(voices []Voice, opts ...Option) *Catalog {
	c := &Catalog{
		voices:          make([]Voice, 0, len(voices)),
		index:           make(map[string]int, len(voices)),
		canonicalLocale: DefaultCanonicalLocale,
		canonicalStyle:  DefaultCanonicalStyle,
	}

	for _, opt := range opts {
		opt(c)
	}

	for _, voice := range voices {
		if _, seen := c.index[voice.VoiceID]; seen {
			continue
		}

		c.index[voice.VoiceID] = len(c.voices)
		c.voices = append(c.voices, voice)
	}

	return c
}

// Empty returns a catalog with no voices, used while the real one is unavailable.
func Empty() *Catalog {
	return New(nil)
}

// Voices returns the voices in catalog order.
func (c *Catalog) Voices() []Voice {
	return append([]Voice(nil), c.voices...)
}

// Len returns the number of voices.
func (c *Catalog) Len() int {
	return len(c.voices)
}

// Voice looks up a voice by id.
func (c *Catalog) Voice(voiceID string) (Voice, bool) {
	i, ok := c.index[voiceID]
	if !ok {
		return Voice{}, false
	}

	return c.voices[i], true
}

// DisplayName returns the voice's display name, or the id when the voice is
// unknown or unnamed.
func (c *Catalog) DisplayName(voiceID string) string {
	voice, ok := c.Voice(voiceID)
	if !ok || voice.DisplayName == "" {
		return voiceID
	}

	return voice.DisplayName
}

// LocaleLabel returns the human-readable detail for a voice's locale, or the
// code itself.
func (c *Catalog) LocaleLabel(voiceID, locale string) string {
	voice, ok := c.Voice(voiceID)
	if !ok {
		return locale
	}

	detail, ok := voice.SupportedLocales.Get(locale)
	if !ok || detail.Detail == "" {
		return locale
	}

	return detail.Detail
}

// CanonicalLocale returns the preferred locale.
func (c *Catalog) CanonicalLocale() string {
	return c.canonicalLocale
}

// CanonicalStyle returns the preferred style.
func (c *Catalog) CanonicalStyle() string {
	return c.canonicalStyle
}
