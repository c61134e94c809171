package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-cutoff/logging"
)

// AudioData represents decoded audio at its native sample rate and channel layout
type AudioData struct {
	Channels   [][]float64   `json:"-"` // one slice per channel, samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	BitDepth   int           `json:"bit_depth,omitempty"` // source bit depth, 0 when unknown
	Codec      string        `json:"codec"`
	Duration   time.Duration `json:"duration"`
}

// NumChannels returns the channel count
func (a *AudioData) NumChannels() int {
	return len(a.Channels)
}

// Frames returns the number of samples per channel
func (a *AudioData) Frames() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

func newAudioData(channels [][]float64, sampleRate, bitDepth int, codec string) *AudioData {
	data := &AudioData{
		Channels:   channels,
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
		Codec:      codec,
	}
	if sampleRate > 0 {
		data.Duration = time.Duration(data.Frames()) * time.Second / time.Duration(sampleRate)
	}
	return data
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	FFmpegPath     string        `json:"ffmpeg_path"`     // Path to ffmpeg binary
	FFprobePath    string        `json:"ffprobe_path"`    // Path to ffprobe binary
	Timeout        time.Duration `json:"timeout"`         // Timeout for ffmpeg operations, 0 = none
	EnableFallback bool          `json:"enable_fallback"` // decode with ffmpeg when no native decoder applies
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		FFmpegPath:     "ffmpeg",  // Assume in PATH
		FFprobePath:    "ffprobe", // Assume in PATH
		Timeout:        2 * time.Minute,
		EnableFallback: true,
	}
}

// Decoder handles audio decoding using FFmpeg.
// Audio keeps the sample rate and channel layout of the file.
type Decoder struct {
	config *DecoderConfig
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bit_depth"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes an audio file and returns PCM data
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	logger.Debug("Starting audio file decode")

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	// Probe the file to get format info
	metadata, err := d.probeAudioFile(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	args := append([]string{"-i", filename}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1") // Output to stdout

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	channels := deinterleaveFloat64(output, metadata.Channels)
	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	decoded := newAudioData(channels, metadata.SampleRate, metadata.BitDepth, metadata.Codec)

	logger.Debug("FFmpeg decode completed successfully", logging.Fields{
		"output_frames":   decoded.Frames(),
		"output_duration": decoded.Duration.Seconds(),
		"decode_time":     time.Since(startTime).Seconds(),
	})

	return decoded, nil
}

// probeAudioFile uses ffprobe to get audio information from a file
func (d *Decoder) probeAudioFile(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		filename,
	}

	cmd := exec.CommandContext(ctx, d.config.FFprobePath, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	// Parse ffprobe JSON output
	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType        string `json:"codec_type"`
			CodecName        string `json:"codec_name"`
			SampleRate       string `json:"sample_rate"`
			Channels         int    `json:"channels"`
			Duration         string `json:"duration"`
			BitRate          string `json:"bit_rate"`
			BitsPerRawSample string `json:"bits_per_raw_sample"`
			BitsPerSample    int    `json:"bits_per_sample"`
			CodecLongName    string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]

	// Validate that this is an audio stream
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	// Sample rate is required, there is no fallback value
	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %q", stream.SampleRate)
	}

	// Parse duration
	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	// Parse bitrate
	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	bitDepth, err := strconv.Atoi(stream.BitsPerRawSample)
	if err != nil {
		bitDepth = stream.BitsPerSample
	}

	// Validate channels
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		BitDepth:   bitDepth,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs keeps the probed rate and channel count
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	return []string{
		"-map", "0:a:0", // First audio stream only
		"-vn",         // No video
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", strconv.Itoa(metadata.Channels),
		"-ar", strconv.Itoa(metadata.SampleRate),
		"-v", "error", // Suppress ffmpeg output
	}
}

// deinterleaveFloat64 converts raw interleaved float64 bytes to one slice per channel.
// A trailing partial frame is dropped.
func deinterleaveFloat64(data []byte, numChannels int) [][]float64 {
	if numChannels <= 0 {
		return nil
	}

	frameBytes := 8 * numChannels
	frames := len(data) / frameBytes

	channels := make([][]float64, numChannels)
	for ch := range channels {
		channels[ch] = make([]float64, frames)
	}

	for i := range frames {
		for ch := range numChannels {
			offset := i*frameBytes + ch*8
			// Convert 8 bytes to float64 (little-endian)
			bits := binary.LittleEndian.Uint64(data[offset : offset+8])
			channels[ch][i] = math.Float64frombits(bits)
		}
	}

	return channels
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}

	// Check if ffmpeg and ffprobe are available
	if err := d.checkFFmpegAvailability(); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}

	return nil
}

// checkFFmpegAvailability checks if ffmpeg and ffprobe are available
func (d *Decoder) checkFFmpegAvailability() error {
	// Check ffmpeg
	cmd := exec.Command(d.config.FFmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}

	// Check ffprobe
	cmd = exec.Command(d.config.FFprobePath, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}

	return nil
}

// SupportedFormats returns file extensions this decoder is expected to handle
func (d *Decoder) SupportedFormats() []string {
	return []string{
		".aac", ".aif", ".aiff", ".flac", ".m4a", ".mp3", ".ogg",
		".opus", ".wav", ".wma", ".webm",
		// FFmpeg supports many more formats
	}
}
