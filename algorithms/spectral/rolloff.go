package spectral

import "gonum.org/v1/gonum/floats"

// Rolloff returns the lowest bin frequency below which fraction of the total
// power lies. A silent spectrum rolls off at 0 Hz.
func (s *Spectrum) Rolloff(fraction float64) float64 {
	total := floats.Sum(s.Power)
	if total <= 0 || len(s.Power) == 0 {
		return 0
	}

	target := fraction * total
	cumulative := 0.0
	for k, p := range s.Power {
		cumulative += p
		if cumulative >= target {
			return s.Frequency(k)
		}
	}

	return s.Nyquist()
}
