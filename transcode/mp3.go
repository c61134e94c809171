package transcode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// mp3Channels is the layout go-mp3 always decodes to: 16-bit stereo
const mp3Channels = 2

// DecodeMP3 decodes an MP3 stream. Mono files come out as two identical channels.
func DecodeMP3(r io.Reader) (*AudioData, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	frames := len(pcm) / (2 * mp3Channels)
	if frames == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	channels := make([][]float64, mp3Channels)
	for ch := range channels {
		channels[ch] = make([]float64, frames)
	}

	scale := intScale(16)
	for i := range frames {
		for ch := range mp3Channels {
			offset := (i*mp3Channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[offset:]))
			channels[ch][i] = float64(sample) * scale
		}
	}

	// MP3 carries no source bit depth
	return newAudioData(channels, decoder.SampleRate(), 0, "mp3"), nil
}
