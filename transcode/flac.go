package transcode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// DecodeFLAC decodes a FLAC stream frame by frame
func DecodeFLAC(r io.Reader) (*AudioData, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	numChannels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if numChannels <= 0 {
		return nil, errors.New("FLAC stream has no channels")
	}

	channels := make([][]float64, numChannels)
	if info.NSamples > 0 {
		for ch := range channels {
			channels[ch] = make([]float64, 0, info.NSamples)
		}
	}

	scale := intScale(bitDepth)
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		for ch := range numChannels {
			for _, sample := range frame.Subframes[ch].Samples[:frame.BlockSize] {
				channels[ch] = append(channels[ch], float64(sample)*scale)
			}
		}
	}

	return newAudioData(channels, int(info.SampleRate), bitDepth, "flac"), nil
}
