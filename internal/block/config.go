// Package block provides the per-block synthesis configuration and the ordered
// block list the editor operates on.
package block

import (
	"errors"
	"fmt"
)

// ChannelType is the output channel layout.
type ChannelType string

// Channel layouts.
const (
	ChannelMono   ChannelType = "MONO"
	ChannelStereo ChannelType = "STEREO"
)

// Format is the output audio encoding.
type Format string

// Audio formats.
const (
	FormatMP3 Format = "MP3"
	FormatWAV Format = "WAV"
)

// Supported sample rates in Hz.
const (
	SampleRate22050 = 22050
	SampleRate44100 = 44100
	SampleRate48000 = 48000
)

// Parameter ranges.
const (
	MinPitch     = -20
	MaxPitch     = 20
	MinRate      = -20
	MaxRate      = 20
	MinVariation = 1
	MaxVariation = 3
)

// Baseline values for a freshly added block.
const (
	BaselineVoiceID   = "en-US-natalie"
	BaselineLocale    = "en-US"
	BaselineStyle     = "Conversational"
	BaselineVariation = 2
)

// Validation errors.
var (
	ErrPitchRange      = errors.New("pitch must be between -20 and 20")
	ErrRateRange       = errors.New("rate must be between -20 and 20")
	ErrVariationRange  = errors.New("variation must be 1, 2 or 3")
	ErrChannelType     = errors.New("channel type must be MONO or STEREO")
	ErrFormat          = errors.New("format must be MP3 or WAV")
	ErrSampleRate      = errors.New("sample rate must be 22050, 44100 or 48000")
	ErrVoiceIDRequired = errors.New("voice id cannot be empty")
)

// Config describes one synthesis unit.
type Config struct {
	Text              string      `json:"text"`
	VoiceID           string      `json:"voiceId"`
	MultiNativeLocale string      `json:"multiNativeLocale"`
	Style             string      `json:"style"`
	Pitch             int         `json:"pitch"`
	Rate              int         `json:"rate"`
	Variation         int         `json:"variation"`
	ChannelType       ChannelType `json:"channelType"`
	Format            Format      `json:"format"`
	SampleRate        int         `json:"sampleRate"`
	EncodeAsBase64    bool        `json:"encodeAsBase64"`
}

// Baseline returns the configuration of a newly appended block.
func Baseline() Config {
	return Config{
		Text:              "",
		VoiceID:           BaselineVoiceID,
		MultiNativeLocale: BaselineLocale,
		Style:             BaselineStyle,
		Pitch:             0,
		Rate:              0,
		Variation:         BaselineVariation,
		ChannelType:       ChannelMono,
		Format:            FormatMP3,
		SampleRate:        SampleRate44100,
		EncodeAsBase64:    false,
	}
}

// Validate checks the acoustic and format parameters. Voice, locale and style
// are validated against the catalog by the selection cascade instead.
func (c Config) Validate() error {
	if c.VoiceID == "" {
		return ErrVoiceIDRequired
	}

	if c.Pitch < MinPitch || c.Pitch > MaxPitch {
		return fmt.Errorf("%w: got %d", ErrPitchRange, c.Pitch)
	}

	if c.Rate < MinRate || c.Rate > MaxRate {
		return fmt.Errorf("%w: got %d", ErrRateRange, c.Rate)
	}

	if c.Variation < MinVariation || c.Variation > MaxVariation {
		return fmt.Errorf("%w: got %d", ErrVariationRange, c.Variation)
	}

	switch c.ChannelType {
	case ChannelMono, ChannelStereo:
	default:
		return fmt.Errorf("%w: got %q", ErrChannelType, c.ChannelType)
	}

	switch c.Format {
	case FormatMP3, FormatWAV:
	default:
		return fmt.Errorf("%w: got %q", ErrFormat, c.Format)
	}

	switch c.SampleRate {
	case SampleRate22050, SampleRate44100, SampleRate48000:
	default:
		return fmt.Errorf("%w: got %d", ErrSampleRate, c.SampleRate)
	}

	return nil
}

// SynthesisParams is the wire form of a Config sent to the preview and export
// endpoints. Field names are snake_case on the wire.
type SynthesisParams struct {
	Text              string      `json:"text"`
	ChannelType       ChannelType `json:"channel_type"`
	Format            Format      `json:"format"`
	MultiNativeLocale string      `json:"multi_native_locale"`
	Pitch             int         `json:"pitch"`
	Rate              int         `json:"rate"`
	SampleRate        int         `json:"sample_rate"`
	Style             string      `json:"style"`
	Variation         int         `json:"variation"`
	VoiceID           string      `json:"voice_id"`
}

// Params translates the config into its wire form.
func (c Config) Params() SynthesisParams {
	return SynthesisParams{
		Text:              c.Text,
		ChannelType:       c.ChannelType,
		Format:            c.Format,
		MultiNativeLocale: c.MultiNativeLocale,
		Pitch:             c.Pitch,
		Rate:              c.Rate,
		SampleRate:        c.SampleRate,
		Style:             c.Style,
		Variation:         c.Variation,
		VoiceID:           c.VoiceID,
	}
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Text              *string
	VoiceID           *string
	MultiNativeLocale *string
	Style             *string
	Pitch             *int
	Rate              *int
	Variation         *int
	ChannelType       *ChannelType
	Format            *Format
	SampleRate        *int
	EncodeAsBase64    *bool
}

// Apply merges the patch into c and returns the result.
func (p Patch) Apply(c Config) Config {
	if p.Text != nil {
		c.Text = *p.Text
	}

	if p.VoiceID != nil {
		c.VoiceID = *p.VoiceID
	}

	if p.MultiNativeLocale != nil {
		c.MultiNativeLocale = *p.MultiNativeLocale
	}

	if p.Style != nil {
		c.Style = *p.Style
	}

	if p.Pitch != nil {
		c.Pitch = *p.Pitch
	}

	if p.Rate != nil {
		c.Rate = *p.Rate
	}

	if p.Variation != nil {
		c.Variation = *p.Variation
	}

	if p.ChannelType != nil {
		c.ChannelType = *p.ChannelType
	}

	if p.Format != nil {
		c.Format = *p.Format
	}

	if p.SampleRate != nil {
		c.SampleRate = *p.SampleRate
	}

	if p.EncodeAsBase64 != nil {
		c.EncodeAsBase64 = *p.EncodeAsBase64
	}

	return c
}

// Validate checks only the fields the patch names.
func (p Patch) Validate() error {
	return p.Apply(Baseline()).Validate()
}

// TouchesSelection reports whether the patch changes voice, locale or style.
// Such patches go through the selection cascade, not a plain update.
func (p Patch) TouchesSelection() bool {
	return p.VoiceID != nil || p.MultiNativeLocale != nil || p.Style != nil
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
