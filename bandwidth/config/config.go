package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/transcode"
)

// Reference selects the 0 dB point of the cutoff detector
type Reference string

const (
	ReferencePeak      Reference = "peak"       // loudest bin of the spectrum is 0 dB
	ReferenceFullScale Reference = "full_scale" // a full-scale sine is 0 dB (dBFS)
)

// StandardRates is the canonical ladder of audio sample rates
var StandardRates = []int{
	8000, 11025, 16000, 22050, 24000, 32000,
	44100, 48000, 88200, 96000, 176400, 192000,
}

// BandConfig describes the reporting band partition of [0, Nyquist]
type BandConfig struct {
	Count int       `json:"count"`           // equal-width bands, used when Edges is empty
	Edges []float64 `json:"edges,omitempty"` // interior edges as fractions of Nyquist, ascending in (0, 1)
}

// TransformConfig configures the spectral transform
type TransformConfig struct {
	spectral.WelchConfig

	// Only a centred excerpt of this length is transformed. 0 = whole signal.
	MaxExcerptSeconds float64 `json:"max_excerpt_seconds"`
}

// AnalyzerConfig is the configuration surface honoured by the analyzer
type AnalyzerConfig struct {
	// Detection
	ThresholdDB float64   `json:"threshold_db"`
	Reference   Reference `json:"reference"` // "peak", "full_scale"
	SubBands    int       `json:"sub_bands"`
	MinRun      int       `json:"min_run"` // consecutive sub-bands >= threshold to accept a cutoff

	// Classification
	RateLadder []int   `json:"rate_ladder"`
	Tolerance  float64 `json:"tolerance"` // upsampled if effective < declared * tolerance

	// Reporting
	Bands           BandConfig `json:"bands"`
	RolloffFraction float64    `json:"rolloff_fraction"` // share of total power below the reported rolloff

	Transform TransformConfig `json:"transform"`
}

// DefaultAnalyzerConfig returns the default analyzer configuration
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		ThresholdDB: -60.0,
		Reference:   ReferencePeak,
		SubBands:    256,
		MinRun:      3,
		RateLadder:  slices.Clone(StandardRates),
		Tolerance:   0.9,
		Bands: BandConfig{
			Count: 3,
		},
		RolloffFraction: 0.99,
		Transform: TransformConfig{
			WelchConfig:       spectral.DefaultWelchConfig(),
			MaxExcerptSeconds: 60,
		},
	}
}

// Validate checks the analyzer configuration
func (c AnalyzerConfig) Validate() error {
	if c.ThresholdDB >= 0 {
		return fmt.Errorf("threshold must be negative dB: %g", c.ThresholdDB)
	}

	switch c.Reference {
	case ReferencePeak, ReferenceFullScale:
	default:
		return fmt.Errorf("unknown reference %q (want %q or %q)", c.Reference, ReferencePeak, ReferenceFullScale)
	}

	if c.SubBands < 2 {
		return fmt.Errorf("sub bands must be at least 2: %d", c.SubBands)
	}
	if c.MinRun < 1 {
		return fmt.Errorf("min run must be at least 1: %d", c.MinRun)
	}

	if len(c.RateLadder) == 0 {
		return fmt.Errorf("rate ladder must not be empty")
	}
	for i, rate := range c.RateLadder {
		if rate <= 0 {
			return fmt.Errorf("rate ladder entry %d is not positive: %d", i, rate)
		}
		if i > 0 && rate <= c.RateLadder[i-1] {
			return fmt.Errorf("rate ladder must be strictly ascending at entry %d", i)
		}
	}

	if c.Tolerance <= 0 || c.Tolerance > 1 {
		return fmt.Errorf("tolerance must be in (0, 1]: %g", c.Tolerance)
	}

	if err := c.Bands.Validate(); err != nil {
		return err
	}
	if c.RolloffFraction <= 0 || c.RolloffFraction > 1 {
		return fmt.Errorf("rolloff fraction must be in (0, 1]: %g", c.RolloffFraction)
	}

	if c.Transform.MaxExcerptSeconds < 0 {
		return fmt.Errorf("max excerpt seconds must not be negative: %g", c.Transform.MaxExcerptSeconds)
	}

	return c.Transform.WelchConfig.Validate()
}

// Validate checks the band partition
func (b BandConfig) Validate() error {
	if len(b.Edges) == 0 {
		if b.Count < 1 {
			return fmt.Errorf("band count must be at least 1: %d", b.Count)
		}
		return nil
	}

	prev := 0.0
	for i, edge := range b.Edges {
		if edge <= prev || edge >= 1 {
			return fmt.Errorf("band edge %d (%g) must be ascending within (0, 1)", i, edge)
		}
		prev = edge
	}
	return nil
}

// Config is the on-disk configuration of the command line tool
type Config struct {
	Analyzer   AnalyzerConfig          `json:"analyzer"`
	Decoder    transcode.DecoderConfig `json:"decoder"`
	Extensions []string                `json:"extensions"` // scanned file extensions, lower case with dot
	Workers    int                     `json:"workers"`    // files analysed in parallel, 0 = CPU count
	Plots      bool                    `json:"plots"`
}

// DefaultConfig returns the default tool configuration
func DefaultConfig() *Config {
	return &Config{
		Analyzer:   DefaultAnalyzerConfig(),
		Decoder:    *transcode.DefaultDecoderConfig(),
		Extensions: []string{".flac", ".mp3", ".wav"},
		Workers:    0,
		Plots:      true,
	}
}

// Validate checks the tool configuration
func (c *Config) Validate() error {
	if err := c.Analyzer.Validate(); err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one file extension is required")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if c.Decoder.Timeout < 0 {
		return fmt.Errorf("decoder timeout must not be negative: %v", c.Decoder.Timeout)
	}
	return nil
}

// LoadFile reads a JSON configuration on top of the defaults.
// Fields absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	for i, ext := range cfg.Extensions {
		cfg.Extensions[i] = strings.ToLower(ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}
