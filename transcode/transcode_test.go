package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes interleaved integer samples as an integer PCM WAV file
func writeWAV(t *testing.T, path string, sampleRate, bitDepth, numChannels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	encoder := wav.NewEncoder(f, sampleRate, bitDepth, numChannels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	require.NoError(t, encoder.Write(buf))
	require.NoError(t, encoder.Close())
}

func TestDecodeWAVStereo16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 48000, 16, 2, []int{16384, -16384, 32767, 0, -32768, 8192})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	data, err := DecodeWAV(f)
	require.NoError(t, err)

	assert.Equal(t, 48000, data.SampleRate)
	assert.Equal(t, 16, data.BitDepth)
	assert.Equal(t, 2, data.NumChannels())
	assert.Equal(t, 3, data.Frames())
	assert.Equal(t, []float64{0.5, 32767.0 / 32768, -1}, data.Channels[0])
	assert.Equal(t, []float64{-0.5, 0, 0.25}, data.Channels[1])
	assert.Equal(t, "pcm", data.Codec)
}

func TestDecodeWAVMono24(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	samples := make([]int, 96000)
	for i := range samples {
		samples[i] = int(math.Round(0.5 * (1 << 23) * math.Sin(2*math.Pi*1000*float64(i)/96000)))
	}
	writeWAV(t, path, 96000, 24, 1, samples)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	data, err := DecodeWAV(f)
	require.NoError(t, err)

	assert.Equal(t, 96000, data.SampleRate)
	assert.Equal(t, 24, data.BitDepth)
	require.Equal(t, 1, data.NumChannels())
	assert.Equal(t, time.Second, data.Duration)
	assert.InDelta(t, 0.5, data.Channels[0][24], 1e-6, "quarter period of 1 kHz")
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("definitely not a RIFF file")))
	assert.Error(t, err)
}

func TestDecodeFLACAndMP3RejectGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0x42}, 512)

	_, err := DecodeFLAC(bytes.NewReader(garbage))
	assert.Error(t, err)

	_, err = DecodeMP3(bytes.NewReader(garbage))
	assert.Error(t, err)
}

func TestLoaderLoadsWAVNatively(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Track.WAV")
	writeWAV(t, path, 44100, 16, 2, make([]int, 2*4410))

	cfg := DefaultDecoderConfig()
	cfg.EnableFallback = false
	data, err := NewLoader(cfg).Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 44100, data.SampleRate)
	assert.Equal(t, 2, data.NumChannels())
	assert.Equal(t, 100*time.Millisecond, data.Duration)
}

func TestLoaderWithoutFallback(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultDecoderConfig()
	cfg.EnableFallback = false
	loader := NewLoader(cfg)

	_, err := loader.Load(context.Background(), filepath.Join(dir, "song.ogg"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	broken := filepath.Join(dir, "broken.wav")
	require.NoError(t, os.WriteFile(broken, []byte("RIFF"), 0o644))
	_, err = loader.Load(context.Background(), broken)
	assert.ErrorContains(t, err, "broken.wav")

	_, err = loader.Load(context.Background(), filepath.Join(dir, "missing.flac"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Equal(t, []string{".flac", ".mp3", ".wav", ".wave"}, loader.SupportedExtensions())
}

func TestLoaderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(nil).Load(ctx, "whatever.wav")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoaderFallbackExtensions(t *testing.T) {
	exts := NewLoader(DefaultDecoderConfig()).SupportedExtensions()
	assert.Contains(t, exts, ".opus")
	assert.Contains(t, exts, ".wav")
	assert.IsIncreasing(t, exts)
}

func TestParseFFprobeOutput(t *testing.T) {
	out := []byte(`{"streams":[{"codec_type":"audio","codec_name":"aac","sample_rate":"44100",
		"channels":2,"duration":"351.230000","bit_rate":"256000","codec_long_name":"AAC"}]}`)

	meta, err := parseFFprobeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 44100, meta.SampleRate)
	assert.Equal(t, 2, meta.Channels)
	assert.Equal(t, "aac", meta.Codec)
	assert.Equal(t, 351.23, meta.Duration)
	assert.Equal(t, 256000, meta.Bitrate)
	assert.Zero(t, meta.BitDepth)

	flacOut := []byte(`{"streams":[{"codec_type":"audio","codec_name":"flac","sample_rate":"96000",
		"channels":2,"bits_per_raw_sample":"24"}]}`)
	meta, err = parseFFprobeOutput(flacOut)
	require.NoError(t, err)
	assert.Equal(t, 24, meta.BitDepth)

	for name, body := range map[string]string{
		"not json":     `{`,
		"no streams":   `{"streams":[]}`,
		"video stream": `{"streams":[{"codec_type":"video","sample_rate":"44100","channels":2}]}`,
		"no rate":      `{"streams":[{"codec_type":"audio","sample_rate":"","channels":2}]}`,
		"no channels":  `{"streams":[{"codec_type":"audio","sample_rate":"44100","channels":0}]}`,
	} {
		_, err := parseFFprobeOutput([]byte(body))
		assert.Error(t, err, name)
	}
}

func TestDeinterleaveFloat64(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []float64{0.1, -0.1, 0.2, -0.2, 0.3} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}

	channels := deinterleaveFloat64(buf.Bytes(), 2)
	require.Len(t, channels, 2)
	assert.Equal(t, []float64{0.1, 0.2}, channels[0])
	assert.Equal(t, []float64{-0.1, -0.2}, channels[1])

	assert.Nil(t, deinterleaveFloat64(buf.Bytes(), 0))
}

func TestBuildFFmpegArgsKeepsNativeLayout(t *testing.T) {
	args := NewDecoder(nil).buildFFmpegArgs(&AudioMetadata{SampleRate: 88200, Channels: 6})
	assert.Subset(t, args, []string{"-ar", "88200", "-ac", "6", "f64le"})
}
