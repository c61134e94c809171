package transcode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE format tag of integer PCM
const wavFormatPCM = 1

// DecodeWAV decodes an integer PCM WAV stream.
// Float and compressed WAV variants are rejected so the caller can fall back to ffmpeg.
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV format tag %d", decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}

	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, errors.New("WAV file has no channels")
	}

	bitDepth := int(decoder.BitDepth)
	channels := deinterleaveInts(buf, bitDepth)
	return newAudioData(channels, int(decoder.SampleRate), bitDepth, "pcm"), nil
}

// deinterleaveInts splits an interleaved integer buffer into per-channel floats in [-1, 1]
func deinterleaveInts(buf *audio.IntBuffer, bitDepth int) [][]float64 {
	numChannels := buf.Format.NumChannels
	frames := len(buf.Data) / numChannels
	scale := intScale(bitDepth)

	// 8-bit WAV samples are unsigned
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	channels := make([][]float64, numChannels)
	for ch := range channels {
		channels[ch] = make([]float64, frames)
	}

	for i := range frames {
		for ch := range numChannels {
			channels[ch][i] = float64(buf.Data[i*numChannels+ch]-offset) * scale
		}
	}
	return channels
}

// intScale maps signed integers of the given width to [-1, 1)
func intScale(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return 1 / float64(int64(1)<<(bitDepth-1))
}
