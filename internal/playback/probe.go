package playback

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/book-expert/tts-editor/internal/block"
	"github.com/hajimehoshi/go-mp3"
)

// Decoded go-mp3 output is 16-bit stereo PCM.
const mp3BytesPerFrame = 4

// Canonical RIFF/WAVE header layout.
const (
	wavHeaderSize       = 44
	wavSampleRateOffset = 24
	wavByteRateOffset   = 28
	wavDataSizeOffset   = 40
)

// probe reads the stream header of a preview. A preview that cannot be decoded
// is still handed to the player, so failures yield zero values.
func probe(format block.Format, audio []byte) (int, time.Duration) {
	switch format {
	case block.FormatMP3:
		return probeMP3(audio)
	case block.FormatWAV:
		return probeWAV(audio)
	default:
		return 0, 0
	}
}

func probeMP3(audio []byte) (int, time.Duration) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(audio))
	if err != nil {
		return 0, 0
	}

	sampleRate := decoder.SampleRate()
	length := decoder.Length()

	if sampleRate <= 0 || length <= 0 {
		return sampleRate, 0
	}

	frames := length / mp3BytesPerFrame
	duration := time.Duration(frames) * time.Second / time.Duration(sampleRate)

	return sampleRate, duration
}

func probeWAV(audio []byte) (int, time.Duration) {
	if len(audio) < wavHeaderSize ||
		!bytes.Equal(audio[0:4], []byte("RIFF")) ||
		!bytes.Equal(audio[8:12], []byte("WAVE")) {
		return 0, 0
	}

	sampleRate := int(binary.LittleEndian.Uint32(audio[wavSampleRateOffset:]))
	byteRate := int64(binary.LittleEndian.Uint32(audio[wavByteRateOffset:]))
	dataSize := int64(binary.LittleEndian.Uint32(audio[wavDataSizeOffset:]))

	if byteRate == 0 {
		return sampleRate, 0
	}

	return sampleRate, time.Duration(dataSize) * time.Second / time.Duration(byteRate)
}
