package spectral

import (
	"math"
)

// DefaultFloorDB is the level assigned to zero or negative power
const DefaultFloorDB = -200.0

// PowerToDB converts a power ratio power/reference to decibels, clamped at floorDB
func PowerToDB(power, reference, floorDB float64) float64 {
	if power <= 0 || reference <= 0 {
		return floorDB
	}
	db := 10 * math.Log10(power/reference)
	if db < floorDB {
		return floorDB
	}
	return db
}

// ToDB converts a power spectrum to dB relative to reference
func ToDB(power []float64, reference, floorDB float64) []float64 {
	out := make([]float64, len(power))
	for i, p := range power {
		out[i] = PowerToDB(p, reference, floorDB)
	}
	return out
}

// LogPowerFrames converts a magnitude spectrogram to dB relative to its loudest
// cell, clamped at floorDB. An all-zero spectrogram maps to floorDB everywhere.
func LogPowerFrames(spectrogram [][]float64, floorDB float64) [][]float64 {
	peak := 0.0
	for _, frame := range spectrogram {
		for _, mag := range frame {
			peak = max(peak, mag*mag)
		}
	}

	logPower := make([][]float64, len(spectrogram))
	for t, frame := range spectrogram {
		logPower[t] = make([]float64, len(frame))
		for f, mag := range frame {
			logPower[t][f] = PowerToDB(mag*mag, peak, floorDB)
		}
	}

	return logPower
}
