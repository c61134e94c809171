package bandwidth

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
)

// ErrNoSignalDetected reports a signal with no energy above the detection threshold
var ErrNoSignalDetected = errors.New("no signal detected above threshold")

// InsufficientDataError reports a signal too short for a reliable transform
type InsufficientDataError = spectral.InsufficientDataError

// InvalidSignalError reports malformed or empty input
type InvalidSignalError struct {
	Reason     string
	SampleRate int
	Channel    int
}

func (e *InvalidSignalError) Error() string {
	switch {
	case e.Channel > 0:
		return fmt.Sprintf("invalid signal: %s (channel %d)", e.Reason, e.Channel)
	case e.SampleRate != 0:
		return fmt.Sprintf("invalid signal: %s (sample rate %d)", e.Reason, e.SampleRate)
	default:
		return "invalid signal: " + e.Reason
	}
}
