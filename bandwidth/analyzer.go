package bandwidth

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/algorithms/temporal"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth/config"
	"github.com/RyanBlaney/sonido-cutoff/logging"
)

// Analyzer estimates the true bandwidth of audio signals.
// An Analyzer holds no per-call state and is safe for concurrent use.
type Analyzer struct {
	config   config.AnalyzerConfig
	welch    *spectral.Welch
	detector DetectorConfig
	logger   logging.Logger
}

// NewAnalyzer validates cfg and creates an analyzer. cfg is copied.
func NewAnalyzer(cfg config.AnalyzerConfig) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analyzer config: %w", err)
	}

	cfg.RateLadder = slices.Clone(cfg.RateLadder)
	cfg.Bands.Edges = slices.Clone(cfg.Bands.Edges)

	return &Analyzer{
		config:   cfg,
		welch:    spectral.NewWelch(cfg.Transform.WelchConfig),
		detector: DetectorConfigFrom(cfg),
		logger: logging.WithFields(logging.Fields{
			"component": "bandwidth_analyzer",
		}),
	}, nil
}

// Config returns a copy of the analyzer configuration
func (a *Analyzer) Config() config.AnalyzerConfig {
	cfg := a.config
	cfg.RateLadder = slices.Clone(cfg.RateLadder)
	cfg.Bands.Edges = slices.Clone(cfg.Bands.Edges)
	return cfg
}

// Spectrum validates sig and computes its power spectrum. Channels are
// averaged into one mono signal and only the centred excerpt configured by
// MaxExcerptSeconds is transformed.
func (a *Analyzer) Spectrum(sig *AudioSignal) (*spectral.Spectrum, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	mono := excerpt(sig.MonoMix(), sig.SampleRate, a.config.Transform.MaxExcerptSeconds)
	return a.welch.Compute(mono, sig.SampleRate)
}

// Analyze estimates the effective sample rate of sig.
// Errors are *InvalidSignalError, *InsufficientDataError or ErrNoSignalDetected.
func (a *Analyzer) Analyze(sig *AudioSignal) (*AnalysisResult, error) {
	result, _, err := a.AnalyzeSpectrum(sig)
	return result, err
}

// AnalyzeSpectrum is Analyze that also returns the spectrum the result was derived from.
// The spectrum is returned alongside ErrNoSignalDetected as well.
func (a *Analyzer) AnalyzeSpectrum(sig *AudioSignal) (*AnalysisResult, *spectral.Spectrum, error) {
	spectrum, err := a.Spectrum(sig)
	if err != nil {
		return nil, nil, err
	}

	logger := a.logger.WithFields(logging.Fields{
		"function":    "AnalyzeSpectrum",
		"sample_rate": sig.SampleRate,
		"channels":    sig.ChannelCount(),
	})

	bands := AggregateBands(spectrum, a.config.Bands)

	cutoff, err := DetectCutoff(spectrum, a.detector)
	if err != nil {
		logger.Debug("No signal above threshold")
		return nil, spectrum, err
	}

	class := Classify(sig.SampleRate, cutoff.FrequencyHz, a.config.RateLadder, a.config.Tolerance)

	logger.Debug("Analysis completed", logging.Fields{
		"cutoff_hz":      cutoff.FrequencyHz,
		"effective_rate": class.EffectiveSampleRate,
		"status":         string(class.Status),
	})

	return &AnalysisResult{
		DeclaredSampleRate:  sig.SampleRate,
		EffectiveSampleRate: class.EffectiveSampleRate,
		CutoffFrequencyHz:   cutoff.FrequencyHz,
		Status:              class.Status,
		Quality:             class.Quality,
		Bands:               bands,
		Channels:            sig.ChannelCount(),
		DurationSeconds:     sig.Duration(),
		RolloffHz:           spectrum.Rolloff(a.config.RolloffFraction),
		Levels:              temporal.ComputeLevels(sig.Channels, spectral.DefaultFloorDB),
		ThresholdDB:         a.config.ThresholdDB,
		SubBandWidthHz:      cutoff.SubBandWidthHz,
		FullBandwidth:       cutoff.FullBandwidth,
		Sustained:           cutoff.Sustained,
	}, spectrum, nil
}
