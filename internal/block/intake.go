package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// Intake errors.
var (
	ErrEmptyIntake       = errors.New("recommendation payload is empty")
	ErrUnexpectedIntake  = errors.New("unexpected recommendation payload shape")
	ErrInvalidSentence   = errors.New("invalid sentence config")
	ErrInvalidConfig     = errors.New("invalid recommended config")
	errSchemaUnavailable = errors.New("sentence config schema unavailable")
)

// Recommendation is one entry of the flat-array intake shape.
type Recommendation struct {
	Line          string         `json:"line"`
	Config        Config         `json:"config"`
	Analysis      map[string]any `json:"analysis"`
	Reasoning     map[string]any `json:"reasoning"`
	SelectedVoice *string        `json:"selected_voice"`
	Success       *bool          `json:"success"`
}

type sentenceConfigs struct {
	SentenceConfigs []json.RawMessage `json:"sentence_configs"`
}

var sentenceSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"text":              {Type: "string"},
		"voiceId":           {Type: "string"},
		"multiNativeLocale": {Type: "string"},
		"style":             {Type: "string"},
		"pitch":             {Type: "number"},
		"rate":              {Type: "number"},
		"variation":         {Type: "number"},
		"sampleRate":        {Type: "number"},
		"encodeAsBase64":    {Type: "boolean"},
		"format":            {Type: "string", Enum: []any{string(FormatMP3), string(FormatWAV)}},
		"channelType":       {Type: "string", Enum: []any{string(ChannelMono), string(ChannelStereo)}},
	},
	Required: []string{"text", "voiceId"},
}

var resolvedSentenceSchema, sentenceSchemaErr = sentenceSchema.Resolve(nil)

// ParseRecommendations normalizes an upstream recommendation payload into blocks.
// Both the flat array shape and the {"sentence_configs": [...]} shape are
// accepted. Malformed JSON is repaired before decoding. Missing config fields
// take their baseline values; missing analysis and reasoning become empty.
// A payload with any entry outside the parameter ranges is rejected whole.
func ParseRecommendations(data []byte) ([]Block, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyIntake
	}

	var raw json.RawMessage

	err := parseJSON(trimmed, &raw)
	if err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)

	switch raw[0] {
	case '[':
		return parseFlat(raw)
	case '{':
		return parseSentenceConfigs(raw)
	default:
		return nil, ErrUnexpectedIntake
	}
}

func parseFlat(raw json.RawMessage) ([]Block, error) {
	var entries []json.RawMessage

	err := json.Unmarshal(raw, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to decode recommendation list: %w", err)
	}

	blocks := make([]Block, 0, len(entries))

	for i, entry := range entries {
		rec := Recommendation{Config: Baseline()}

		decodeErr := json.Unmarshal(entry, &rec)
		if decodeErr != nil {
			return nil, fmt.Errorf("recommendation %d: %w", i, decodeErr)
		}

		validateErr := rec.Config.Validate()
		if validateErr != nil {
			return nil, fmt.Errorf("recommendation %d: %w: %w", i, ErrInvalidConfig, validateErr)
		}

		b := NewBlock(rec.Config)
		b.Line = rec.Line
		b.Analysis = orEmpty(rec.Analysis)
		b.Reasoning = orEmpty(rec.Reasoning)

		if rec.SelectedVoice != nil {
			b.SelectedVoice = *rec.SelectedVoice
		}

		if rec.Success != nil {
			b.Success = *rec.Success
		}

		blocks = append(blocks, b)
	}

	return blocks, nil
}

func parseSentenceConfigs(raw json.RawMessage) ([]Block, error) {
	var payload sentenceConfigs

	err := json.Unmarshal(raw, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sentence configs: %w", err)
	}

	if payload.SentenceConfigs == nil {
		return nil, ErrUnexpectedIntake
	}

	blocks := make([]Block, 0, len(payload.SentenceConfigs))

	for i, entry := range payload.SentenceConfigs {
		validateErr := validateSentence(entry)
		if validateErr != nil {
			return nil, fmt.Errorf("sentence config %d: %w", i, validateErr)
		}

		cfg := Baseline()

		decodeErr := json.Unmarshal(entry, &cfg)
		if decodeErr != nil {
			return nil, fmt.Errorf("sentence config %d: %w", i, decodeErr)
		}

		validateErr = cfg.Validate()
		if validateErr != nil {
			return nil, fmt.Errorf("sentence config %d: %w: %w", i, ErrInvalidConfig, validateErr)
		}

		b := NewBlock(cfg)
		b.Line = cfg.Text
		b.SelectedVoice = cfg.VoiceID
		blocks = append(blocks, b)
	}

	return blocks, nil
}

func validateSentence(entry json.RawMessage) error {
	if sentenceSchemaErr != nil {
		return fmt.Errorf("%w: %w", errSchemaUnavailable, sentenceSchemaErr)
	}

	var instance map[string]any

	err := json.Unmarshal(entry, &instance)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSentence, err)
	}

	err = resolvedSentenceSchema.Validate(instance)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSentence, err)
	}

	return nil
}

// parseJSON unmarshals data into target, repairing malformed JSON on a syntax error.
func parseJSON(data []byte, target any) error {
	err := json.Unmarshal(data, target)
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return fmt.Errorf("failed to repair JSON: %w", repairErr)
	}

	err = json.Unmarshal([]byte(fixed), target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal repaired JSON: %w", err)
	}

	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
