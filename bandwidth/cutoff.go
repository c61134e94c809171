package bandwidth

import (
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth/config"
	"github.com/RyanBlaney/sonido-cutoff/logging"
)

// DetectorConfig configures the cutoff scan
type DetectorConfig struct {
	ThresholdDB float64
	Reference   config.Reference
	SubBands    int
	MinRun      int
}

// DetectorConfigFrom extracts the detector settings of an analyzer configuration
func DetectorConfigFrom(cfg config.AnalyzerConfig) DetectorConfig {
	return DetectorConfig{
		ThresholdDB: cfg.ThresholdDB,
		Reference:   cfg.Reference,
		SubBands:    cfg.SubBands,
		MinRun:      cfg.MinRun,
	}
}

// Cutoff is the detected upper edge of the signal's bandwidth
type Cutoff struct {
	FrequencyHz    float64 `json:"frequency_hz"`
	SubBand        int     `json:"sub_band"`  // index of the highest qualifying sub-band
	SubBands       int     `json:"sub_bands"` // sub-bands actually used after clamping
	SubBandWidthHz float64 `json:"sub_band_width_hz"`
	FullBandwidth  bool    `json:"full_bandwidth"` // energy reaches the declared Nyquist
	Sustained      bool    `json:"sustained"`      // false when only isolated spikes passed the threshold
}

// SubBandEnergies returns the mean power of each of count equal sub-bands of
// [0, Nyquist], in dB relative to reference. count is clamped so that every
// sub-band owns at least one bin.
func SubBandEnergies(spectrum *spectral.Spectrum, count int, reference float64) []float64 {
	half := spectrum.Bins() - 1
	count = min(count, half)
	if count < 1 {
		return nil
	}

	energies := make([]float64, count)
	for s := range count {
		lo, hi := subBandRange(s, count, half)
		mean := stat.Mean(spectrum.Power[lo:hi], nil)
		energies[s] = spectral.PowerToDB(mean, reference, spectral.DefaultFloorDB)
	}
	return energies
}

// subBandRange returns the bin range [lo, hi) of sub-band s: the bins whose
// frequency lies in [s, s+1)·Nyquist/count. The last sub-band owns the Nyquist bin.
func subBandRange(s, count, half int) (int, int) {
	lo := (s*half + count - 1) / count
	if s == count-1 {
		return lo, half + 1
	}
	hi := ((s+1)*half + count - 1) / count
	return lo, hi
}

// DetectCutoff scans sub-bands from Nyquist downward and returns the upper edge
// of the highest sub-band at or above the threshold that starts a run of at
// least MinRun such sub-bands. A run cut short by sub-band 0 still counts.
// When only isolated spikes pass the threshold the highest spike is used.
// ErrNoSignalDetected is returned when nothing passes.
func DetectCutoff(spectrum *spectral.Spectrum, cfg DetectorConfig) (Cutoff, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "cutoff_detector",
		"function":  "DetectCutoff",
	})

	reference := 1.0
	if cfg.Reference == config.ReferencePeak {
		_, reference = spectrum.Peak()
	}
	if reference <= 0 {
		return Cutoff{}, ErrNoSignalDetected
	}

	energies := SubBandEnergies(spectrum, cfg.SubBands, reference)
	count := len(energies)
	if count == 0 {
		return Cutoff{}, ErrNoSignalDetected
	}

	above := make([]bool, count)
	for s, db := range energies {
		above[s] = db >= cfg.ThresholdDB
	}

	minRun := max(cfg.MinRun, 1)
	spike := -1
	found := -1
	for s := count - 1; s >= 0; s-- {
		if !above[s] {
			continue
		}
		if spike < 0 {
			spike = s
		}
		if sustained(above, s, minRun) {
			found = s
			break
		}
	}

	if spike < 0 {
		return Cutoff{}, ErrNoSignalDetected
	}

	cutoffSubBand := found
	if found < 0 {
		cutoffSubBand = spike
		logger.Warn("No sustained run above threshold, using highest isolated sub-band", logging.Fields{
			"sub_band":     spike,
			"threshold_db": cfg.ThresholdDB,
			"min_run":      minRun,
		})
	}

	width := spectrum.Nyquist() / float64(count)
	result := Cutoff{
		FrequencyHz:    float64(cutoffSubBand+1) * width,
		SubBand:        cutoffSubBand,
		SubBands:       count,
		SubBandWidthHz: width,
		FullBandwidth:  cutoffSubBand == count-1,
		Sustained:      found >= 0,
	}
	if result.FullBandwidth {
		result.FrequencyHz = spectrum.Nyquist()
	}

	logger.Debug("Cutoff detected", logging.Fields{
		"cutoff_hz":      result.FrequencyHz,
		"sub_band":       result.SubBand,
		"full_bandwidth": result.FullBandwidth,
	})

	return result, nil
}

// sustained reports whether above[s-run+1..s] are all set, or all set down to 0
func sustained(above []bool, s, run int) bool {
	for j := s; j > s-run; j-- {
		if j < 0 {
			return true
		}
		if !above[j] {
			return false
		}
	}
	return true
}
