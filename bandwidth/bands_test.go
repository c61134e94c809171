package bandwidth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth/config"
)

func flatSpectrum(sampleRate, windowSize int, level float64) *spectral.Spectrum {
	power := make([]float64, windowSize/2+1)
	for i := range power {
		power[i] = level
	}
	return &spectral.Spectrum{
		Power:      power,
		BinHz:      float64(sampleRate) / float64(windowSize),
		SampleRate: sampleRate,
		WindowSize: windowSize,
	}
}

func TestAggregateBandsLabels(t *testing.T) {
	bands := AggregateBands(flatSpectrum(48000, 4096, 1), config.BandConfig{Count: 3})
	require.Len(t, bands, 3)
	assert.Equal(t, "0-8kHz", bands[0].Label)
	assert.Equal(t, "8-16kHz", bands[1].Label)
	assert.Equal(t, "16-24kHz", bands[2].Label)

	bands = AggregateBands(flatSpectrum(44100, 4096, 1), config.BandConfig{Count: 3})
	assert.Equal(t, "0-7.35kHz", bands[0].Label)
	assert.Equal(t, "7.35-14.7kHz", bands[1].Label)
	assert.Equal(t, "14.7-22.05kHz", bands[2].Label)
}

func TestAggregateBandsCoverage(t *testing.T) {
	for _, rate := range config.StandardRates {
		for _, scheme := range []config.BandConfig{{Count: 3}, {Count: 7}, {Edges: []float64{0.1, 0.5, 0.9}}} {
			spectrum := flatSpectrum(rate, 4096, 0.5)
			bands := AggregateBands(spectrum, scheme)

			assert.Zero(t, bands[0].LowHz)
			assert.Equal(t, spectrum.Nyquist(), bands[len(bands)-1].HighHz)

			width, bins := 0.0, 0
			for i, band := range bands {
				if i > 0 {
					assert.Equal(t, bands[i-1].HighHz, band.LowHz, "bands must be contiguous")
				}
				assert.Greater(t, band.HighHz, band.LowHz)
				width += band.Width()
				bins += band.Bins
			}
			assert.InDelta(t, spectrum.Nyquist(), width, 1e-6)
			assert.Equal(t, spectrum.Bins(), bins, "every bin belongs to exactly one band")
		}
	}
}

func TestAggregateBandsEnergy(t *testing.T) {
	spectrum := flatSpectrum(48000, 4096, 1)
	for k := range spectrum.Power {
		if spectrum.Frequency(k) >= 16000 {
			spectrum.Power[k] = 0.001
		}
	}

	bands := AggregateBands(spectrum, config.BandConfig{Count: 3})
	assert.InDelta(t, 0.0, bands[0].EnergyDB, 1e-9)
	assert.InDelta(t, 0.0, bands[1].EnergyDB, 1e-9)
	assert.InDelta(t, -30.0, bands[2].EnergyDB, 1e-9)
	assert.Equal(t, 683, bands[0].Bins)
	assert.Equal(t, 683, bands[2].Bins, "last band owns the Nyquist bin")

	normalized := bands.Normalized()
	assert.Equal(t, 1.0, normalized[0].Value)
	assert.InDelta(t, 0.001, normalized[2].Value, 1e-12)
}

func TestAggregateBandsEmptyBand(t *testing.T) {
	// Bins every 1000 Hz, bands every 500 Hz
	spectrum := flatSpectrum(8000, 8, 1)
	bands := AggregateBands(spectrum, config.BandConfig{Count: 8})

	require.Len(t, bands, 8)
	assert.True(t, bands[0].HasData)
	assert.False(t, bands[1].HasData)
	assert.Zero(t, bands[1].Bins)
	assert.True(t, bands[7].HasData)

	normalized := bands.Normalized()
	assert.False(t, normalized[1].HasData)

	data, err := json.Marshal(bands)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"0.5-1kHz":null`)
}

func TestBandValuesMarshalKeepsOrder(t *testing.T) {
	values := BandValues{
		{Label: "16-24kHz", Value: -80.5, HasData: true},
		{Label: "0-8kHz", Value: -3, HasData: true},
		{Label: "8-16kHz"},
	}

	data, err := json.Marshal(values)
	require.NoError(t, err)
	assert.Equal(t, `{"16-24kHz":-80.5,"0-8kHz":-3,"8-16kHz":null}`, string(data))

	data, err = json.Marshal(BandValues{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestBandValuesUnmarshal(t *testing.T) {
	var values BandValues
	require.NoError(t, json.Unmarshal([]byte(`{"8-16kHz":-3.5,"0-8kHz":null}`), &values))
	assert.Equal(t, BandValues{
		{Label: "8-16kHz", Value: -3.5, HasData: true},
		{Label: "0-8kHz"},
	}, values)

	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &values))
	assert.Error(t, json.Unmarshal([]byte(`{"a": "loud"}`), &values))
}

func TestBandEdges(t *testing.T) {
	assert.Equal(t, []float64{0, 8000, 16000, 24000}, BandEdges(config.BandConfig{Count: 3}, 24000))
	assert.Equal(t, []float64{0, 6000, 18000, 24000}, BandEdges(config.BandConfig{Edges: []float64{0.25, 0.75}}, 24000))
}
