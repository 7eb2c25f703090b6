// Package block_test tests the block configuration and the block list store.
package block_test

import (
	"encoding/json"
	"testing"

	"github.com/book-expert/tts-editor/internal/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendBaseline(t *testing.T) {
	t.Parallel()

	store := block.NewStore()
	added := store.Append()

	require.Equal(t, 1, store.Len())

	got, err := store.Get(0)
	require.NoError(t, err)
	assert.Equal(t, added.ID, got.ID)
	assert.NotEmpty(t, got.ID)

	cfg := got.Config
	assert.Empty(t, cfg.Text)
	assert.Equal(t, block.ChannelMono, cfg.ChannelType)
	assert.Equal(t, block.FormatMP3, cfg.Format)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 0, cfg.Pitch)
	assert.Equal(t, 0, cfg.Rate)
	assert.Equal(t, 2, cfg.Variation)
	assert.False(t, cfg.EncodeAsBase64)
	require.NoError(t, cfg.Validate())
}

func TestStore_RemoveShiftsLaterBlocks(t *testing.T) {
	t.Parallel()

	store := block.NewStore()

	for i := range 5 {
		store.Append()

		_, err := store.Update(i, block.Patch{Text: block.Ptr(string(rune('a' + i)))})
		require.NoError(t, err)
	}

	before := store.Snapshot()

	removed, err := store.Remove(2)
	require.NoError(t, err)
	assert.Equal(t, before[2].ID, removed.ID)

	after := store.Snapshot()
	require.Len(t, after, 4)

	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[1], after[1])
	assert.Equal(t, before[3], after[2])
	assert.Equal(t, before[4], after[3])
	assert.Equal(t, -1, store.IndexOf(removed.ID))
	assert.Equal(t, 2, store.IndexOf(before[3].ID))
}

func TestStore_RemoveOutOfRange(t *testing.T) {
	t.Parallel()

	store := block.NewStore()
	store.Append()

	_, err := store.Remove(1)
	require.ErrorIs(t, err, block.ErrIndexOutOfRange)

	_, err = store.Remove(-1)
	require.ErrorIs(t, err, block.ErrIndexOutOfRange)
	assert.Equal(t, 1, store.Len())
}

func TestStore_UpdateMergesPartial(t *testing.T) {
	t.Parallel()

	store := block.NewStore()
	store.Append()

	_, err := store.Update(0, block.Patch{
		Text:  block.Ptr("Hello"),
		Pitch: block.Ptr(5),
	})
	require.NoError(t, err)

	cfg, err := store.Update(0, block.Patch{Rate: block.Ptr(-3)})
	require.NoError(t, err)

	want := block.Baseline()
	want.Text = "Hello"
	want.Pitch = 5
	want.Rate = -3
	assert.Equal(t, want, cfg)
}

func TestStore_UpdateRejectsInvalidField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		patch block.Patch
		want  error
	}{
		{name: "pitch", patch: block.Patch{Pitch: block.Ptr(21)}, want: block.ErrPitchRange},
		{name: "rate", patch: block.Patch{Rate: block.Ptr(-21)}, want: block.ErrRateRange},
		{name: "variation", patch: block.Patch{Variation: block.Ptr(4)}, want: block.ErrVariationRange},
		{name: "channel", patch: block.Patch{ChannelType: block.Ptr(block.ChannelType("QUAD"))}, want: block.ErrChannelType},
		{name: "format", patch: block.Patch{Format: block.Ptr(block.Format("OGG"))}, want: block.ErrFormat},
		{name: "sample rate", patch: block.Patch{SampleRate: block.Ptr(8000)}, want: block.ErrSampleRate},
		{name: "voice", patch: block.Patch{VoiceID: block.Ptr("")}, want: block.ErrVoiceIDRequired},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			store := block.NewStore()
			store.Append()

			cfg, err := store.Update(0, testCase.patch)
			require.ErrorIs(t, err, testCase.want)
			assert.Equal(t, block.Baseline(), cfg)

			got, getErr := store.Get(0)
			require.NoError(t, getErr)
			assert.Equal(t, block.Baseline(), got.Config)
		})
	}
}

func TestStore_UpdateKeepsUnnamedInvalidFields(t *testing.T) {
	t.Parallel()

	cfg := block.Baseline()
	cfg.Pitch = 40

	store := block.NewStore()
	store.Replace([]block.Block{block.NewBlock(cfg)})

	updated, err := store.Update(0, block.Patch{Text: block.Ptr("kept")})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Pitch)
	assert.Equal(t, "kept", updated.Text)
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	store := block.NewStore()
	store.Append()

	snap := store.Snapshot()
	snap[0].Config.Text = "mutated"
	snap[0].Analysis["k"] = "v"

	got, err := store.Get(0)
	require.NoError(t, err)
	assert.Empty(t, got.Config.Text)
	assert.Empty(t, got.Analysis)
}

func TestStore_ReplaceAssignsIdentity(t *testing.T) {
	t.Parallel()

	store := block.NewStore()
	store.Replace([]block.Block{{Config: block.Baseline()}, {Config: block.Baseline()}})

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	assert.NotEmpty(t, snap[0].ID)
	assert.NotEqual(t, snap[0].ID, snap[1].ID)
}

func TestConfig_ParamsUsesWireNames(t *testing.T) {
	t.Parallel()

	cfg := block.Baseline()
	cfg.Text = "Hello"

	data, err := json.Marshal(cfg.Params())
	require.NoError(t, err)

	var wire map[string]any

	err = json.Unmarshal(data, &wire)
	require.NoError(t, err)

	assert.Equal(t, "Hello", wire["text"])
	assert.Equal(t, "MONO", wire["channel_type"])
	assert.Equal(t, "MP3", wire["format"])
	assert.Equal(t, "en-US", wire["multi_native_locale"])
	assert.InDelta(t, 44100, wire["sample_rate"], 0)
	assert.Equal(t, "en-US-natalie", wire["voice_id"])
	assert.InDelta(t, 2, wire["variation"], 0)
	assert.NotContains(t, wire, "voiceId")
	assert.NotContains(t, wire, "encodeAsBase64")
	assert.Len(t, wire, 10)
}
