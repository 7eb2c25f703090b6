// Package catalog holds the immutable voice catalog snapshot and the cascading
// voice -> locale -> style selection rules derived from it.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errLocalesNotObject = errors.New("supported_locales must be a JSON object")

// LocaleDetail describes one locale a voice supports.
type LocaleDetail struct {
	AvailableStyles []string `json:"available_styles"`
	Detail          string   `json:"detail"`
}

// LocaleMap is an insertion-ordered locale code -> detail map. The order is the
// key order of the JSON object it was decoded from.
type LocaleMap struct {
	codes   []string
	details map[string]LocaleDetail
}

// NewLocaleMap builds a LocaleMap from codes in the given order.
// Codes missing from details map to an empty LocaleDetail.
func NewLocaleMap(codes []string, details map[string]LocaleDetail) LocaleMap {
	out := LocaleMap{
		codes:   make([]string, 0, len(codes)),
		details: make(map[string]LocaleDetail, len(codes)),
	}

	for _, code := range codes {
		if _, seen := out.details[code]; seen {
			continue
		}

		out.codes = append(out.codes, code)
		out.details[code] = details[code]
	}

	return out
}

// Codes returns the locale codes in order.
func (m LocaleMap) Codes() []string {
	return append([]string(nil), m.codes...)
}

// Get returns the detail for code.
func (m LocaleMap) Get(code string) (LocaleDetail, bool) {
	detail, ok := m.details[code]

	return detail, ok
}

// Len returns the number of locales.
func (m LocaleMap) Len() int {
	return len(m.codes)
}

// UnmarshalJSON decodes a JSON object while keeping its key order.
func (m *LocaleMap) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = LocaleMap{}

		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))

	token, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("failed to read supported_locales: %w", err)
	}

	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return errLocalesNotObject
	}

	var (
		codes   []string
		details = make(map[string]LocaleDetail)
	)

	for decoder.More() {
		keyToken, keyErr := decoder.Token()
		if keyErr != nil {
			return fmt.Errorf("failed to read locale code: %w", keyErr)
		}

		code, ok := keyToken.(string)
		if !ok {
			return errLocalesNotObject
		}

		var detail LocaleDetail

		decodeErr := decoder.Decode(&detail)
		if decodeErr != nil {
			return fmt.Errorf("failed to decode locale %q: %w", code, decodeErr)
		}

		codes = append(codes, code)
		details[code] = detail
	}

	*m = NewLocaleMap(codes, details)

	return nil
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m LocaleMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, code := range m.codes {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(code)
		if err != nil {
			return nil, fmt.Errorf("failed to encode locale code: %w", err)
		}

		value, err := json.Marshal(m.details[code])
		if err != nil {
			return nil, fmt.Errorf("failed to encode locale %q: %w", code, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Voice is one entry of the catalog as served by the voices endpoint.
type Voice struct {
	VoiceID          string    `json:"voice_id"`
	DisplayName      string    `json:"display_name"`
	Gender           string    `json:"gender"`
	Accent           string    `json:"accent"`
	Description      string    `json:"description"`
	DisplayLanguage  string    `json:"display_language,omitempty"`
	Locale           string    `json:"locale,omitempty"`
	AvailableStyles  []string  `json:"available_styles"`
	SupportedLocales LocaleMap `json:"supported_locales"`
}
