package bandwidth

import "github.com/RyanBlaney/sonido-cutoff/algorithms/temporal"

// AnalysisResult is the outcome of one analysis.
// It is built once by the Analyzer and must be treated as read-only.
type AnalysisResult struct {
	DeclaredSampleRate  int          `json:"declared_sample_rate"`
	EffectiveSampleRate int          `json:"effective_sample_rate"`
	CutoffFrequencyHz   float64      `json:"cutoff_frequency_hz"`
	Status              Status       `json:"status"`
	Quality             string       `json:"quality"`
	Bands               BandEnergies `json:"bands"`
	Channels            int          `json:"channels"`
	DurationSeconds     float64      `json:"duration_seconds"`

	// Diagnostics
	RolloffHz float64         `json:"rolloff_hz"`
	Levels    temporal.Levels `json:"levels"`

	// Detection details
	ThresholdDB    float64 `json:"threshold_db"`
	SubBandWidthHz float64 `json:"sub_band_width_hz"`
	FullBandwidth  bool    `json:"full_bandwidth"`
	Sustained      bool    `json:"sustained"`
}

// Upsampled reports whether the declared rate overstates the signal bandwidth
func (r *AnalysisResult) Upsampled() bool {
	return r.Status == StatusUpsampled
}

// NyquistHz returns half the declared sample rate
func (r *AnalysisResult) NyquistHz() float64 {
	return float64(r.DeclaredSampleRate) / 2
}
