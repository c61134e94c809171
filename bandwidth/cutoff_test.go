package bandwidth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth/config"
)

func defaultDetector() DetectorConfig {
	return DetectorConfigFrom(config.DefaultAnalyzerConfig())
}

// steppedSpectrum is 48 kHz / 4096: power 1 below edgeHz and floor above
func steppedSpectrum(edgeHz, floor float64) *spectral.Spectrum {
	spectrum := flatSpectrum(48000, 4096, 1)
	for k := range spectrum.Power {
		if spectrum.Frequency(k) >= edgeHz {
			spectrum.Power[k] = floor
		}
	}
	return spectrum
}

func TestSubBandRangesPartitionBins(t *testing.T) {
	for _, tc := range []struct{ count, half int }{{256, 2048}, {256, 256}, {7, 100}, {100, 101}} {
		next := 0
		for s := range tc.count {
			lo, hi := subBandRange(s, tc.count, tc.half)
			assert.Equal(t, next, lo)
			assert.Greater(t, hi, lo, "sub-band %d of %d must own a bin", s, tc.count)
			next = hi
		}
		assert.Equal(t, tc.half+1, next)
	}
}

func TestDetectCutoffOnStep(t *testing.T) {
	cutoff, err := DetectCutoff(steppedSpectrum(12000, 1e-9), defaultDetector())
	require.NoError(t, err)

	assert.Equal(t, 12000.0, cutoff.FrequencyHz)
	assert.Equal(t, 127, cutoff.SubBand)
	assert.Equal(t, 256, cutoff.SubBands)
	assert.Equal(t, 93.75, cutoff.SubBandWidthHz)
	assert.False(t, cutoff.FullBandwidth)
	assert.True(t, cutoff.Sustained)
}

func TestDetectCutoffIgnoresIsolatedSpikes(t *testing.T) {
	spectrum := steppedSpectrum(12000, 1e-9)
	// One loud sub-band at 18750 Hz and a pair near 20 kHz
	for k := 1600; k < 1608; k++ {
		spectrum.Power[k] = 1
	}
	for k := 1704; k < 1720; k++ {
		spectrum.Power[k] = 1
	}

	cutoff, err := DetectCutoff(spectrum, defaultDetector())
	require.NoError(t, err)
	assert.Equal(t, 12000.0, cutoff.FrequencyHz)
}

func TestDetectCutoffFallsBackToHighestSpike(t *testing.T) {
	spectrum := flatSpectrum(48000, 4096, 1e-12)
	for k := 400; k < 408; k++ {
		spectrum.Power[k] = 1
	}
	for k := 800; k < 808; k++ {
		spectrum.Power[k] = 1
	}

	cutoff, err := DetectCutoff(spectrum, defaultDetector())
	require.NoError(t, err)
	assert.Equal(t, 100, cutoff.SubBand)
	assert.Equal(t, 101*93.75, cutoff.FrequencyHz)
	assert.False(t, cutoff.Sustained)
}

func TestDetectCutoffFullBandwidth(t *testing.T) {
	cutoff, err := DetectCutoff(flatSpectrum(44100, 4096, 0.01), defaultDetector())
	require.NoError(t, err)

	assert.Equal(t, 22050.0, cutoff.FrequencyHz)
	assert.True(t, cutoff.FullBandwidth)
}

func TestDetectCutoffRunReachingDC(t *testing.T) {
	// Only sub-bands 0 and 1 carry energy
	cutoff, err := DetectCutoff(steppedSpectrum(187.5, 1e-12), defaultDetector())
	require.NoError(t, err)

	assert.Equal(t, 1, cutoff.SubBand)
	assert.Equal(t, 187.5, cutoff.FrequencyHz)
	assert.True(t, cutoff.Sustained)
}

func TestDetectCutoffNoSignal(t *testing.T) {
	_, err := DetectCutoff(flatSpectrum(48000, 4096, 0), defaultDetector())
	assert.True(t, errors.Is(err, ErrNoSignalDetected))

	quiet := flatSpectrum(48000, 4096, 1e-8)
	fullScale := defaultDetector()
	fullScale.Reference = config.ReferenceFullScale

	_, err = DetectCutoff(quiet, fullScale)
	assert.ErrorIs(t, err, ErrNoSignalDetected, "-80 dBFS is below a -60 dBFS threshold")

	cutoff, err := DetectCutoff(quiet, defaultDetector())
	require.NoError(t, err, "relative to its own peak the signal is full band")
	assert.True(t, cutoff.FullBandwidth)
}

func TestDetectCutoffClampsSubBands(t *testing.T) {
	spectrum := flatSpectrum(8000, 16, 1)

	cutoff, err := DetectCutoff(spectrum, defaultDetector())
	require.NoError(t, err)
	assert.Equal(t, 8, cutoff.SubBands)
	assert.Equal(t, 500.0, cutoff.SubBandWidthHz)
}

func TestDetectCutoffThresholdIsAPolicy(t *testing.T) {
	// 0 dB up to sub-band 85, -50 dB up to sub-band 170, -90 dB above
	spectrum := steppedSpectrum(7968.75, 1e-5)
	for k := range spectrum.Power {
		if spectrum.Frequency(k) >= 15937.5 {
			spectrum.Power[k] = 1e-9
		}
	}

	strict := defaultDetector()
	strict.ThresholdDB = -40
	cutoff, err := DetectCutoff(spectrum, strict)
	require.NoError(t, err)
	assert.Equal(t, 7968.75, cutoff.FrequencyHz)

	cutoff, err = DetectCutoff(spectrum, defaultDetector())
	require.NoError(t, err)
	assert.Equal(t, 15937.5, cutoff.FrequencyHz)
}
