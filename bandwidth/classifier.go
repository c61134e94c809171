package bandwidth

import (
	"math"
	"strconv"
)

// Status is the bandwidth verdict of an analysed signal
type Status string

const (
	StatusReal      Status = "real"
	StatusUpsampled Status = "upsampled"
)

// Classification is the effective rate derived from a cutoff
type Classification struct {
	EffectiveSampleRate int    `json:"effective_sample_rate"`
	Status              Status `json:"status"`
	Quality             string `json:"quality"`
}

// SnapRate returns the candidate rate nearest to 2·cutoffHz. Candidates are
// the ladder rates not above declared plus declared itself, so the result
// never exceeds declared. Ties go to the lower rate.
func SnapRate(cutoffHz float64, declared int, ladder []int) int {
	target := 2 * cutoffHz

	best := declared
	bestDist := math.Abs(target - float64(declared))
	for _, rate := range ladder {
		if rate > declared {
			continue
		}
		dist := math.Abs(target - float64(rate))
		if dist < bestDist || (dist == bestDist && rate < best) {
			best, bestDist = rate, dist
		}
	}
	return best
}

// Classify maps a cutoff to an effective sample rate and a verdict.
// The signal is upsampled when effective < declared·tolerance.
func Classify(declared int, cutoffHz float64, ladder []int, tolerance float64) Classification {
	effective := SnapRate(cutoffHz, declared, ladder)

	status := StatusReal
	if float64(effective) < float64(declared)*tolerance {
		status = StatusUpsampled
	}

	return Classification{
		EffectiveSampleRate: effective,
		Status:              status,
		Quality:             QualityLabel(effective),
	}
}

// QualityLabel formats a sample rate for people: 24000 -> "24kHz", 44100 -> "44.1kHz"
func QualityLabel(rate int) string {
	return strconv.FormatFloat(float64(rate)/1000, 'f', -1, 64) + "kHz"
}
