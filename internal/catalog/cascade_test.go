// Package catalog_test tests the voice catalog and the selection cascade.
package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/book-expert/tts-editor/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogJSON = `{
  "voices": [
    {
      "voice_id": "en-US-natalie",
      "display_name": "Natalie",
      "gender": "Female",
      "accent": "US & Canada",
      "description": "Warm narrator",
      "available_styles": ["Promo", "Conversational"],
      "supported_locales": {
        "fr-FR": {"available_styles": ["Conversational"], "detail": "French (France)"},
        "en-US": {"available_styles": ["Promo", "Narration", "Conversational"], "detail": "English (US)"},
        "de-DE": {"available_styles": [], "detail": "German"}
      }
    },
    {
      "voice_id": "es-ES-carla",
      "display_name": "Carla",
      "gender": "Female",
      "accent": "Spain",
      "description": "",
      "available_styles": ["Narration", "Angry"],
      "supported_locales": {
        "es-ES": {"available_styles": ["Narration", "Angry"], "detail": "Spanish (Spain)"},
        "es-MX": {"available_styles": ["Calm"], "detail": "Spanish (Mexico)"}
      }
    },
    {
      "voice_id": "hi-IN-rahul",
      "display_name": "",
      "gender": "Male",
      "accent": "India",
      "description": "",
      "locale": "hi-IN",
      "available_styles": ["Newscast", "Conversational"],
      "supported_locales": {}
    },
    {
      "voice_id": "broken",
      "display_name": "Broken",
      "gender": "Male",
      "accent": "",
      "description": "",
      "available_styles": [],
      "supported_locales": null
    }
  ]
}`

func loadTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	var payload struct {
		Voices []catalog.Voice `json:"voices"`
	}

	err := json.Unmarshal([]byte(catalogJSON), &payload)
	require.NoError(t, err)

	return catalog.New(payload.Voices)
}

func TestLocalesFor_PreservesPayloadOrder(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	assert.Equal(t, []string{"fr-FR", "en-US", "de-DE"}, catalog.LocalesFor(c, "en-US-natalie"))
	assert.Empty(t, catalog.LocalesFor(c, "hi-IN-rahul"))
	assert.Empty(t, catalog.LocalesFor(c, "broken"))
	assert.Empty(t, catalog.LocalesFor(c, "missing"))
}

func TestStylesFor(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	tests := []struct {
		name    string
		voiceID string
		locale  string
		want    []string
	}{
		{name: "locale specific", voiceID: "en-US-natalie", locale: "en-US", want: []string{"Promo", "Narration", "Conversational"}},
		{name: "declared empty locale does not fall back", voiceID: "en-US-natalie", locale: "de-DE", want: []string{}},
		{name: "undeclared locale falls back to voice", voiceID: "en-US-natalie", locale: "ja-JP", want: []string{"Promo", "Conversational"}},
		{name: "voice without locale map", voiceID: "hi-IN-rahul", locale: "hi-IN", want: []string{"Newscast", "Conversational"}},
		{name: "unknown voice", voiceID: "missing", locale: "en-US", want: nil},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := catalog.StylesFor(c, testCase.voiceID, testCase.locale)
			if testCase.want == nil {
				assert.Nil(t, got)

				return
			}

			assert.ElementsMatch(t, testCase.want, got)
			assert.Len(t, got, len(testCase.want))
		})
	}
}

func TestResolveVoiceChange_PrefersCanonical(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	sel, err := catalog.ResolveVoiceChange(c, "en-US-natalie")
	require.NoError(t, err)
	assert.Equal(t, catalog.Selection{Locale: "en-US", Style: "Conversational"}, sel)
}

func TestResolveVoiceChange_FallsBackToFirst(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	sel, err := catalog.ResolveVoiceChange(c, "es-ES-carla")
	require.NoError(t, err)
	assert.Equal(t, catalog.Selection{Locale: "es-ES", Style: "Narration"}, sel)
}

func TestResolveVoiceChange_ImplicitLocale(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	sel, err := catalog.ResolveVoiceChange(c, "hi-IN-rahul")
	require.NoError(t, err)
	assert.Equal(t, catalog.Selection{Locale: "hi-IN", Style: "Conversational"}, sel)
}

func TestResolveVoiceChange_NoStylesFailsClosed(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	sel, err := catalog.ResolveVoiceChange(c, "broken")
	require.NoError(t, err)
	assert.Empty(t, sel.Style)
	assert.Equal(t, catalog.DefaultCanonicalLocale, sel.Locale)
}

func TestResolveVoiceChange_UnknownVoice(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	_, err := catalog.ResolveVoiceChange(c, "missing")
	require.ErrorIs(t, err, catalog.ErrUnknownVoice)
}

func TestResolveVoiceChange_AlwaysValid(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	for _, voice := range c.Voices() {
		sel, err := catalog.ResolveVoiceChange(c, voice.VoiceID)
		require.NoError(t, err)
		assert.True(t, catalog.IsValid(c, voice.VoiceID, sel.Locale, sel.Style), voice.VoiceID)
		assert.True(t, catalog.HasLocale(c, voice.VoiceID, sel.Locale), voice.VoiceID)
	}
}

func TestIsValid_LocaleMustBeSelectable(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	// A voice without a locale map only accepts its implicit locale.
	assert.True(t, catalog.IsValid(c, "hi-IN-rahul", "hi-IN", "Newscast"))
	assert.False(t, catalog.IsValid(c, "hi-IN-rahul", "fr-FR", "Newscast"))
	assert.False(t, catalog.IsValid(c, "hi-IN-rahul", "", "Newscast"))
	assert.True(t, catalog.IsValid(c, "broken", catalog.DefaultCanonicalLocale, ""))
	assert.False(t, catalog.IsValid(c, "broken", "es-ES", ""))

	assert.True(t, catalog.IsValid(c, "en-US-natalie", "fr-FR", "Conversational"))
	assert.False(t, catalog.IsValid(c, "en-US-natalie", "it-IT", "Conversational"))
	assert.False(t, catalog.IsValid(c, "missing", "en-US", "Conversational"))
}

func TestResolveLocaleChange(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	sel, err := catalog.ResolveLocaleChange(c, "es-ES-carla", "es-MX")
	require.NoError(t, err)
	assert.Equal(t, catalog.Selection{Locale: "es-MX", Style: "Calm"}, sel)

	sel, err = catalog.ResolveLocaleChange(c, "en-US-natalie", "fr-FR")
	require.NoError(t, err)
	assert.Equal(t, "Conversational", sel.Style)
}

func TestWithCanonical(t *testing.T) {
	t.Parallel()

	base := loadTestCatalog(t)
	c := catalog.New(base.Voices(), catalog.WithCanonical("fr-FR", "Promo"))

	sel, err := catalog.ResolveVoiceChange(c, "en-US-natalie")
	require.NoError(t, err)
	assert.Equal(t, catalog.Selection{Locale: "fr-FR", Style: "Conversational"}, sel)
}

func TestCatalogLabels(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)

	assert.Equal(t, "Natalie", c.DisplayName("en-US-natalie"))
	assert.Equal(t, "hi-IN-rahul", c.DisplayName("hi-IN-rahul"))
	assert.Equal(t, "unknown", c.DisplayName("unknown"))
	assert.Equal(t, "English (US)", c.LocaleLabel("en-US-natalie", "en-US"))
	assert.Equal(t, "xx-XX", c.LocaleLabel("en-US-natalie", "xx-XX"))
}

func TestLocaleMap_RoundTripKeepsOrder(t *testing.T) {
	t.Parallel()

	c := loadTestCatalog(t)
	voice, ok := c.Voice("en-US-natalie")
	require.True(t, ok)

	data, err := json.Marshal(voice.SupportedLocales)
	require.NoError(t, err)

	var decoded catalog.LocaleMap

	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, voice.SupportedLocales.Codes(), decoded.Codes())
}

func TestLocaleMap_RejectsNonObject(t *testing.T) {
	t.Parallel()

	var m catalog.LocaleMap

	err := json.Unmarshal([]byte(`["en-US"]`), &m)
	require.Error(t, err)
}
