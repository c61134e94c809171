package spectral

import "fmt"

// InsufficientDataError reports a signal too short for a reliable transform
type InsufficientDataError struct {
	Samples  int // samples available
	Required int // minimum window size
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d samples, need at least %d", e.Samples, e.Required)
}
