package windowing

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Type names a window function
type Type string

const (
	TypeHann           Type = "hann"
	TypeHamming        Type = "hamming"
	TypeBlackman       Type = "blackman"
	TypeBlackmanHarris Type = "blackman-harris"
	TypeBartlett       Type = "bartlett"
	TypeWelch          Type = "welch"
	TypeRectangular    Type = "rectangular"
)

// Types lists every supported window type
func Types() []Type {
	return []Type{
		TypeHann, TypeHamming, TypeBlackman, TypeBlackmanHarris,
		TypeBartlett, TypeWelch, TypeRectangular,
	}
}

// ParseType resolves a window name. Aliases "hanning" and "boxcar" are accepted.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hann", "hanning":
		return TypeHann, nil
	case "hamming":
		return TypeHamming, nil
	case "blackman":
		return TypeBlackman, nil
	case "blackman-harris", "blackmanharris", "blackman_harris":
		return TypeBlackmanHarris, nil
	case "bartlett", "triangular":
		return TypeBartlett, nil
	case "welch":
		return TypeWelch, nil
	case "rectangular", "boxcar", "none":
		return TypeRectangular, nil
	default:
		return "", fmt.Errorf("unknown window type: %q", name)
	}
}

// Window holds precomputed coefficients for one window type and size.
// A Window is read-only after construction and may be shared between goroutines.
type Window struct {
	kind         Type
	size         int
	symmetric    bool
	coefficients []float64
	sum          float64
	squaredSum   float64
}

// New creates a window of the given type and size.
// Periodic windows (symmetric=false) are the right choice for spectral analysis;
// symmetric windows suit filter design.
func New(kind Type, size int, symmetric bool) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}

	w := &Window{
		kind:      kind,
		size:      size,
		symmetric: symmetric,
	}

	if err := w.generate(); err != nil {
		return nil, err
	}

	w.sum = floats.Sum(w.coefficients)
	w.squaredSum = floats.Dot(w.coefficients, w.coefficients)

	return w, nil
}

// generate fills coefficients for w.kind
func (w *Window) generate() error {
	w.coefficients = make([]float64, w.size)

	if w.size == 1 {
		w.coefficients[0] = 1
		return nil
	}

	denominator := float64(w.size)
	if w.symmetric {
		denominator = float64(w.size - 1)
	}

	switch w.kind {
	case TypeHann:
		for i := range w.size {
			w.coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
		}
	case TypeHamming:
		for i := range w.size {
			w.coefficients[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/denominator)
		}
	case TypeBlackman:
		a0, a1, a2 := 0.42, 0.5, 0.08
		for i := range w.size {
			arg := 2 * math.Pi * float64(i) / denominator
			w.coefficients[i] = a0 - a1*math.Cos(arg) + a2*math.Cos(2*arg)
		}
	case TypeBlackmanHarris:
		a0, a1, a2, a3 := 0.35875, 0.48829, 0.14128, 0.01168
		for i := range w.size {
			arg := 2 * math.Pi * float64(i) / denominator
			w.coefficients[i] = a0 - a1*math.Cos(arg) + a2*math.Cos(2*arg) - a3*math.Cos(3*arg)
		}
	case TypeBartlett:
		half := denominator / 2
		for i := range w.size {
			w.coefficients[i] = 1.0 - math.Abs((float64(i)-half)/half)
		}
	case TypeWelch:
		half := denominator / 2
		for i := range w.size {
			arg := (float64(i) - half) / half
			w.coefficients[i] = 1.0 - arg*arg
		}
	case TypeRectangular:
		for i := range w.size {
			w.coefficients[i] = 1.0
		}
	default:
		return fmt.Errorf("unknown window type: %q", w.kind)
	}

	return nil
}

// Apply applies the window to a signal (creates new array)
func (w *Window) Apply(signal []float64) []float64 {
	if len(signal) != w.size {
		return nil
	}

	windowed := make([]float64, w.size)
	floats.MulTo(windowed, signal, w.coefficients)
	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	floats.Mul(signal, w.coefficients)
	return nil
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window size
func (w *Window) Size() int {
	return w.size
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.kind
}

// Sum returns Σw, the amplitude normalisation term of a windowed FFT
func (w *Window) Sum() float64 {
	return w.sum
}

// SquaredSum returns Σw², the power normalisation term of a windowed FFT
func (w *Window) SquaredSum() float64 {
	return w.squaredSum
}

// CoherentGain is Σw/N: 0.5 for a Hann window, 1 for rectangular
func (w *Window) CoherentGain() float64 {
	return w.sum / float64(w.size)
}

// ENBW returns the equivalent noise bandwidth in bins: N·Σw²/(Σw)²
func (w *Window) ENBW() float64 {
	if w.sum == 0 {
		return 0
	}
	return float64(w.size) * w.squaredSum / (w.sum * w.sum)
}
