package bandwidth

import (
	"math"
	"math/rand/v2"

	"github.com/mjibson/go-dsp/fft"
)

const noisePeriod = 65536

// whiteNoise returns uniform noise in [-amplitude, amplitude)
func whiteNoise(seed uint64, n int, amplitude float64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * (2*rng.Float64() - 1)
	}
	return out
}

// bandLimitedNoise returns n samples of periodic noise with no content above
// cutoffHz, peak-normalised to 0.5. One period of noise is brick-wall
// filtered in the frequency domain and then tiled.
func bandLimitedNoise(seed uint64, n, sampleRate int, cutoffHz float64) []float64 {
	spectrum := fft.FFTReal(whiteNoise(seed, noisePeriod, 1))

	binHz := float64(sampleRate) / noisePeriod
	spectrum[0] = 0
	for k := 1; k <= noisePeriod/2; k++ {
		if float64(k)*binHz > cutoffHz {
			spectrum[k] = 0
			spectrum[noisePeriod-k] = 0
		}
	}

	period := make([]float64, noisePeriod)
	peak := 0.0
	for i, v := range fft.IFFT(spectrum) {
		period[i] = real(v)
		peak = math.Max(peak, math.Abs(period[i]))
	}
	for i := range period {
		period[i] *= 0.5 / peak
	}

	return tile(period, n)
}

func tile(period []float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i += len(period) {
		copy(out[i:], period)
	}
	return out
}

func mono(samples []float64, sampleRate int) *AudioSignal {
	return &AudioSignal{Channels: [][]float64{samples}, SampleRate: sampleRate}
}
