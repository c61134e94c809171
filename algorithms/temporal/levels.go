package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ClipLevel is the absolute sample value counted as clipped
const ClipLevel = 0.999

// Levels summarises the amplitude of a multichannel signal
type Levels struct {
	PeakDBFS       float64 `json:"peak_dbfs"`
	RMSDBFS        float64 `json:"rms_dbfs"`
	CrestFactor    float64 `json:"crest_factor"` // peak / RMS, 0 for silence
	ClippedSamples int     `json:"clipped_samples"`
}

// ComputeLevels measures peak and RMS over all channels in dBFS, clamped at floorDB
func ComputeLevels(channels [][]float64, floorDB float64) Levels {
	peak, sumSquares, count := 0.0, 0.0, 0
	clipped := 0

	for _, samples := range channels {
		if len(samples) == 0 {
			continue
		}
		peak = math.Max(peak, math.Max(floats.Max(samples), -floats.Min(samples)))
		sumSquares += floats.Dot(samples, samples)
		count += len(samples)

		for _, s := range samples {
			if math.Abs(s) >= ClipLevel {
				clipped++
			}
		}
	}

	levels := Levels{
		PeakDBFS:       amplitudeToDB(peak, floorDB),
		RMSDBFS:        floorDB,
		ClippedSamples: clipped,
	}
	if count == 0 {
		return levels
	}

	rms := math.Sqrt(sumSquares / float64(count))
	levels.RMSDBFS = amplitudeToDB(rms, floorDB)
	if rms > 0 {
		levels.CrestFactor = peak / rms
	}
	return levels
}

func amplitudeToDB(amplitude, floorDB float64) float64 {
	if amplitude <= 0 {
		return floorDB
	}
	return math.Max(20*math.Log10(amplitude), floorDB)
}
