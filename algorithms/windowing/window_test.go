package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	kind, err := ParseType("Hanning")
	require.NoError(t, err)
	assert.Equal(t, TypeHann, kind)

	kind, err = ParseType("blackman_harris")
	require.NoError(t, err)
	assert.Equal(t, TypeBlackmanHarris, kind)

	_, err = ParseType("kaiser")
	assert.Error(t, err)
}

func TestEveryTypeBuilds(t *testing.T) {
	for _, kind := range Types() {
		w, err := New(kind, 64, false)
		require.NoError(t, err, kind)
		assert.Equal(t, 64, w.Size())
		assert.Equal(t, kind, w.Type())
		assert.Greater(t, w.Sum(), 0.0, kind)
		for _, c := range w.Coefficients() {
			assert.GreaterOrEqual(t, c, -1e-12, kind)
			assert.LessOrEqual(t, c, 1.0+1e-12, kind)
		}
	}
}

func TestHannGains(t *testing.T) {
	w, err := New(TypeHann, 4096, false)
	require.NoError(t, err)

	coeffs := w.Coefficients()
	assert.InDelta(t, 0.0, coeffs[0], 1e-12)
	assert.InDelta(t, 1.0, coeffs[2048], 1e-12)

	// Periodic Hann: coherent gain 0.5, ENBW 1.5 bins
	assert.InDelta(t, 0.5, w.CoherentGain(), 1e-9)
	assert.InDelta(t, 1.5, w.ENBW(), 1e-9)
}

func TestRectangularIsIdentity(t *testing.T) {
	w, err := New(TypeRectangular, 8, false)
	require.NoError(t, err)

	signal := []float64{1, -2, 3, -4, 5, -6, 7, -8}
	assert.Equal(t, signal, w.Apply(signal))
	assert.InDelta(t, 1.0, w.ENBW(), 1e-12)
}

func TestApplyInPlaceChecksLength(t *testing.T) {
	w, err := New(TypeHamming, 16, true)
	require.NoError(t, err)

	assert.Error(t, w.ApplyInPlace(make([]float64, 8)))
	assert.Nil(t, w.Apply(make([]float64, 8)))

	signal := make([]float64, 16)
	for i := range signal {
		signal[i] = 1
	}
	require.NoError(t, w.ApplyInPlace(signal))
	assert.Equal(t, w.Coefficients(), signal)
}

func TestInvalidWindow(t *testing.T) {
	_, err := New(TypeHann, 0, false)
	assert.Error(t, err)

	_, err = New(Type("gauss"), 16, false)
	assert.Error(t, err)
}

func TestCoefficientsAreCopied(t *testing.T) {
	w, err := New(TypeBlackman, 32, false)
	require.NoError(t, err)

	coeffs := w.Coefficients()
	coeffs[5] = 42
	assert.NotEqual(t, 42.0, w.Coefficients()[5])
}
