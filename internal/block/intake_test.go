package block_test

import (
	"testing"

	"github.com/book-expert/tts-editor/internal/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecommendations_FlatArray(t *testing.T) {
	t.Parallel()

	payload := `[
	  {
	    "line": "Once upon a time",
	    "config": {
	      "text": "Once upon a time",
	      "voiceId": "en-UK-hazel",
	      "multiNativeLocale": "en-UK",
	      "style": "Narration",
	      "pitch": -2,
	      "rate": 3,
	      "variation": 1,
	      "channelType": "STEREO",
	      "format": "WAV",
	      "sampleRate": 48000,
	      "encodeAsBase64": false
	    },
	    "analysis": {"emotional_analysis": {"primary_emotion": "calm"}},
	    "reasoning": {"voice_choice": "storyteller"},
	    "selected_voice": "en-UK-hazel",
	    "success": true
	  },
	  {
	    "line": "The end",
	    "config": {"text": "The end", "voiceId": "en-US-natalie"}
	  }
	]`

	blocks, err := block.ParseRecommendations([]byte(payload))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	first := blocks[0]
	assert.Equal(t, "Once upon a time", first.Line)
	assert.Equal(t, "en-UK-hazel", first.Config.VoiceID)
	assert.Equal(t, block.ChannelStereo, first.Config.ChannelType)
	assert.Equal(t, block.FormatWAV, first.Config.Format)
	assert.Equal(t, 48000, first.Config.SampleRate)
	assert.Equal(t, "en-UK-hazel", first.SelectedVoice)
	assert.Contains(t, first.Analysis, "emotional_analysis")
	assert.True(t, first.Success)

	second := blocks[1]
	assert.NotNil(t, second.Analysis)
	assert.Empty(t, second.Analysis)
	assert.NotNil(t, second.Reasoning)
	assert.Empty(t, second.Reasoning)
	assert.Equal(t, block.BaselineVariation, second.Config.Variation)
	assert.Equal(t, block.FormatMP3, second.Config.Format)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestParseRecommendations_SentenceConfigs(t *testing.T) {
	t.Parallel()

	payload := `{
	  "sentence_configs": [
	    {"text": "Hello", "voiceId": "en-US-natalie", "format": "MP3", "channelType": "MONO", "pitch": 1, "speaker": "narrator"},
	    {"text": "World", "voiceId": "en-US-ken", "format": "WAV", "sampleRate": 22050}
	  ]
	}`

	blocks, err := block.ParseRecommendations([]byte(payload))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "Hello", blocks[0].Line)
	assert.Equal(t, "Hello", blocks[0].Config.Text)
	assert.Equal(t, "en-US-natalie", blocks[0].SelectedVoice)
	assert.Equal(t, 1, blocks[0].Config.Pitch)
	assert.Empty(t, blocks[0].Analysis)
	assert.Empty(t, blocks[0].Reasoning)
	assert.True(t, blocks[0].Success)

	assert.Equal(t, "World", blocks[1].Config.Text)
	assert.Equal(t, 22050, blocks[1].Config.SampleRate)
	assert.Equal(t, block.ChannelMono, blocks[1].Config.ChannelType)
}

func TestParseRecommendations_RepairsMalformedJSON(t *testing.T) {
	t.Parallel()

	payload := `{"sentence_configs": [{"text": "Hi", "voiceId": "en-US-natalie",},]}`

	blocks, err := block.ParseRecommendations([]byte(payload))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Hi", blocks[0].Config.Text)
}

func TestParseRecommendations_RejectsBadSentence(t *testing.T) {
	t.Parallel()

	payload := `{"sentence_configs": [{"text": "Hi", "voiceId": "en-US-natalie", "format": "OGG"}]}`

	_, err := block.ParseRecommendations([]byte(payload))
	require.ErrorIs(t, err, block.ErrInvalidSentence)

	_, err = block.ParseRecommendations([]byte(`{"sentence_configs": [{"text": "no voice"}]}`))
	require.ErrorIs(t, err, block.ErrInvalidSentence)
}

func TestParseRecommendations_UnexpectedShapes(t *testing.T) {
	t.Parallel()

	_, err := block.ParseRecommendations([]byte("   "))
	require.ErrorIs(t, err, block.ErrEmptyIntake)

	_, err = block.ParseRecommendations([]byte(`{"error": "Recommendation failed"}`))
	require.ErrorIs(t, err, block.ErrUnexpectedIntake)

	_, err = block.ParseRecommendations([]byte(`"text"`))
	require.ErrorIs(t, err, block.ErrUnexpectedIntake)
}

func TestParseRecommendations_RejectsOutOfRangeConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{
			name: "flat entry",
			payload: `[
			  {"line": "ok", "config": {"text": "ok", "voiceId": "en-US-natalie"}},
			  {"line": "loud", "config": {"text": "loud", "voiceId": "en-US-natalie",
			    "pitch": 99, "rate": -80, "variation": 7, "format": "OGG",
			    "channelType": "QUAD", "sampleRate": 1}}
			]`,
			want: block.ErrPitchRange,
		},
		{
			name:    "flat entry sample rate",
			payload: `[{"line": "x", "config": {"text": "x", "voiceId": "en-US-natalie", "sampleRate": 16000}}]`,
			want:    block.ErrSampleRate,
		},
		{
			name:    "sentence config rate",
			payload: `{"sentence_configs": [{"text": "fast", "voiceId": "en-US-natalie", "rate": 30}]}`,
			want:    block.ErrRateRange,
		},
		{
			name:    "sentence config variation",
			payload: `{"sentence_configs": [{"text": "odd", "voiceId": "en-US-natalie", "variation": 0}]}`,
			want:    block.ErrVariationRange,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			blocks, err := block.ParseRecommendations([]byte(testCase.payload))
			require.ErrorIs(t, err, block.ErrInvalidConfig)
			require.ErrorIs(t, err, testCase.want)
			assert.Nil(t, blocks)
		})
	}
}
