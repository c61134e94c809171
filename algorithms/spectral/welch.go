package spectral

import (
	"fmt"
	"math/bits"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/windowing"
	"github.com/RyanBlaney/sonido-cutoff/logging"
)

// framesPerChunk is the reduction granularity of the Welch average.
// Partial sums are always combined in chunk order, so the result does not
// depend on how many workers ran.
const framesPerChunk = 32

// WelchConfig configures the averaged periodogram
type WelchConfig struct {
	WindowSize    int            `json:"window_size"`     // FFT frame length, power of two
	MinWindowSize int            `json:"min_window_size"` // shortest frame accepted for short signals
	Overlap       float64        `json:"overlap"`         // fraction in [0, 1)
	Window        windowing.Type `json:"window"`
	Workers       int            `json:"workers"` // 0 = derived from CPU count
}

// DefaultWelchConfig returns a Hann window, 4096-sample frames and 50% overlap
func DefaultWelchConfig() WelchConfig {
	return WelchConfig{
		WindowSize:    4096,
		MinWindowSize: 512,
		Overlap:       0.5,
		Window:        windowing.TypeHann,
		Workers:       0,
	}
}

// Validate checks the configuration
func (c WelchConfig) Validate() error {
	if c.WindowSize <= 0 || !isPowerOfTwo(c.WindowSize) {
		return fmt.Errorf("window size must be a positive power of two: %d", c.WindowSize)
	}
	if c.MinWindowSize <= 1 || !isPowerOfTwo(c.MinWindowSize) {
		return fmt.Errorf("min window size must be a power of two greater than 1: %d", c.MinWindowSize)
	}
	if c.MinWindowSize > c.WindowSize {
		return fmt.Errorf("min window size (%d) exceeds window size (%d)", c.MinWindowSize, c.WindowSize)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("overlap must be in [0, 1): %g", c.Overlap)
	}
	if _, err := windowing.ParseType(string(c.Window)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	}
	return nil
}

// Spectrum is a one-sided power spectral density covering bins 0..WindowSize/2.
// Power is calibrated so that a full-scale sine puts ~1.0 (0 dB) in its peak bin.
type Spectrum struct {
	Power      []float64      `json:"-"`
	BinHz      float64        `json:"bin_hz"`
	SampleRate int            `json:"sample_rate"`
	WindowSize int            `json:"window_size"`
	HopSize    int            `json:"hop_size"`
	Frames     int            `json:"frames"`
	Window     windowing.Type `json:"window"`
}

// Bins returns the number of frequency bins
func (s *Spectrum) Bins() int {
	return len(s.Power)
}

// Nyquist returns half the sample rate
func (s *Spectrum) Nyquist() float64 {
	return float64(s.SampleRate) / 2
}

// Frequency returns the centre frequency of a bin in Hz
func (s *Spectrum) Frequency(bin int) float64 {
	return float64(bin) * s.BinHz
}

// Frequencies returns the centre frequency of every bin
func (s *Spectrum) Frequencies() []float64 {
	freqs := make([]float64, len(s.Power))
	for i := range freqs {
		freqs[i] = s.Frequency(i)
	}
	return freqs
}

// Peak returns the loudest bin and its power
func (s *Spectrum) Peak() (int, float64) {
	if len(s.Power) == 0 {
		return 0, 0
	}
	idx := floats.MaxIdx(s.Power)
	return idx, s.Power[idx]
}

// Welch computes averaged, windowed periodograms
type Welch struct {
	config WelchConfig
	fft    *FFT
	logger logging.Logger
}

// NewWelch creates a Welch estimator. The configuration is assumed valid.
func NewWelch(config WelchConfig) *Welch {
	return &Welch{
		config: config,
		fft:    NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "welch",
		}),
	}
}

// Compute estimates the power spectrum of a mono signal.
// Signals shorter than WindowSize use the largest power-of-two frame that fits;
// below MinWindowSize an *InsufficientDataError is returned.
func (w *Welch) Compute(signal []float64, sampleRate int) (*Spectrum, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}

	size := w.config.WindowSize
	if len(signal) < size {
		size = largestPowerOfTwo(len(signal))
	}
	if size < w.config.MinWindowSize {
		return nil, &InsufficientDataError{Samples: len(signal), Required: w.config.MinWindowSize}
	}

	kind, err := windowing.ParseType(string(w.config.Window))
	if err != nil {
		return nil, err
	}

	window, err := windowing.New(kind, size, false)
	if err != nil {
		return nil, err
	}

	hop := max(int(float64(size)*(1-w.config.Overlap)), 1)
	numFrames := (len(signal)-size)/hop + 1
	numBins := size/2 + 1
	numChunks := (numFrames + framesPerChunk - 1) / framesPerChunk

	logger := w.logger.WithFields(logging.Fields{
		"function":    "Compute",
		"window_size": size,
		"hop_size":    hop,
		"frames":      numFrames,
	})
	logger.Debug("Computing Welch power spectrum")

	partials := make([][]float64, numChunks)

	jobs := make(chan int, numChunks)
	for c := range numChunks {
		jobs <- c
	}
	close(jobs)

	var wg sync.WaitGroup
	for range w.workerCount(numChunks) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frame := make([]float64, size)

			for c := range jobs {
				acc := make([]float64, numBins)
				last := min((c+1)*framesPerChunk, numFrames)
				for f := c * framesPerChunk; f < last; f++ {
					start := f * hop
					copy(frame, signal[start:start+size])
					// Length always matches, ApplyInPlace cannot fail here
					_ = window.ApplyInPlace(frame)
					w.fft.AccumulatePower(acc, frame)
				}
				partials[c] = acc
			}
		}()
	}
	wg.Wait()

	power := make([]float64, numBins)
	for _, acc := range partials {
		floats.Add(power, acc)
	}

	// One-sided calibration: interior bins carry both halves of the spectrum
	sum := window.Sum()
	scale := 1 / (float64(numFrames) * sum * sum)
	for k := range power {
		if k == 0 || k == numBins-1 {
			power[k] *= scale
		} else {
			power[k] *= 4 * scale
		}
	}

	return &Spectrum{
		Power:      power,
		BinHz:      float64(sampleRate) / float64(size),
		SampleRate: sampleRate,
		WindowSize: size,
		HopSize:    hop,
		Frames:     numFrames,
		Window:     window.Type(),
	}, nil
}

// workerCount determines the number of workers based on workload
func (w *Welch) workerCount(numChunks int) int {
	if w.config.Workers > 0 {
		return max(min(w.config.Workers, numChunks), 1)
	}

	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numChunks < 8 {
		return 1
	}

	return max(min(numCPU, numChunks, 8), 1)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// largestPowerOfTwo returns the largest power of two <= n, or 0 for n < 1
func largestPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	return 1 << (bits.Len(uint(n)) - 1)
}
