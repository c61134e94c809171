package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/RyanBlaney/sonido-cutoff/logging"
)

// ErrUnsupportedFormat reports a file no enabled backend can decode
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// nativeDecoder decodes one container format from an open file
type nativeDecoder func(f *os.File) (*AudioData, error)

var nativeDecoders = map[string]nativeDecoder{
	".wav":  func(f *os.File) (*AudioData, error) { return DecodeWAV(f) },
	".wave": func(f *os.File) (*AudioData, error) { return DecodeWAV(f) },
	".flac": func(f *os.File) (*AudioData, error) { return DecodeFLAC(f) },
	".mp3":  func(f *os.File) (*AudioData, error) { return DecodeMP3(f) },
}

// Loader decodes audio files with a native Go decoder chosen by extension,
// falling back to ffmpeg when enabled.
type Loader struct {
	config *DecoderConfig
	ffmpeg *Decoder
	logger logging.Logger
}

// NewLoader creates a loader
func NewLoader(config *DecoderConfig) *Loader {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Loader{
		config: config,
		ffmpeg: NewDecoder(config),
		logger: logging.WithFields(logging.Fields{
			"component": "audio_loader",
		}),
	}
}

// SupportedExtensions returns the extensions Load accepts, sorted
func (l *Loader) SupportedExtensions() []string {
	exts := make([]string, 0, len(nativeDecoders))
	for ext := range nativeDecoders {
		exts = append(exts, ext)
	}
	if l.config.EnableFallback {
		for _, ext := range l.ffmpeg.SupportedFormats() {
			if !slices.Contains(exts, ext) {
				exts = append(exts, ext)
			}
		}
	}
	slices.Sort(exts)
	return exts
}

// Load decodes the file at path
func (l *Loader) Load(ctx context.Context, path string) (*AudioData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	logger := l.logger.WithFields(logging.Fields{
		"function": "Load",
		"file":     filepath.Base(path),
	})

	decode, ok := nativeDecoders[ext]
	if !ok {
		if !l.config.EnableFallback {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
		}
		logger.Debug("No native decoder, using ffmpeg")
		return l.ffmpeg.DecodeFile(ctx, path)
	}

	data, err := l.decodeNative(path, decode)
	if err == nil {
		return data, nil
	}

	if !l.config.EnableFallback {
		return nil, err
	}

	logger.Warn("Native decode failed, retrying with ffmpeg", logging.Fields{
		"error": err.Error(),
	})

	data, ffmpegErr := l.ffmpeg.DecodeFile(ctx, path)
	if ffmpegErr != nil {
		return nil, fmt.Errorf("%w (ffmpeg fallback: %v)", err, ffmpegErr)
	}
	return data, nil
}

func (l *Loader) decodeNative(path string, decode nativeDecoder) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	data, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if data.Frames() == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), io.ErrUnexpectedEOF)
	}
	return data, nil
}
