package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality on real-valued frames
type FFT struct {
	// No state needed, go-dsp caches twiddle factors per size itself
}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the FFT of a real frame using mjibson/go-dsp.
// The full two-sided spectrum is returned.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes, power-of-2 sizes take the radix-2 path
	return fft.FFTReal(x)
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))

	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}

// AccumulatePower adds |X_k|² of frame into dst for k in 0..len(dst)-1.
// dst normally has len(frame)/2+1 entries (DC through Nyquist).
func (f *FFT) AccumulatePower(dst []float64, frame []float64) {
	spectrum := f.Compute(frame)

	n := min(len(dst), len(spectrum))
	for k := range n {
		re, im := real(spectrum[k]), imag(spectrum[k])
		dst[k] += re*re + im*im
	}
}

// Magnitudes writes |X_k| of frame into dst for k in 0..len(dst)-1
func (f *FFT) Magnitudes(dst []float64, frame []float64) {
	spectrum := f.Compute(frame)

	n := min(len(dst), len(spectrum))
	for k := range n {
		dst[k] = cmplx.Abs(spectrum[k])
	}
}
