package bandwidth

// AudioSignal is a decoded waveform handed to the analyzer.
// The analyzer never mutates Channels.
type AudioSignal struct {
	Channels   [][]float64 // one sample slice per channel, equal lengths
	SampleRate int         // declared sample rate in Hz
}

// NewAudioSignal wraps decoded channels and validates them
func NewAudioSignal(channels [][]float64, sampleRate int) (*AudioSignal, error) {
	sig := &AudioSignal{Channels: channels, SampleRate: sampleRate}
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return sig, nil
}

// Validate reports an *InvalidSignalError for malformed input
func (s *AudioSignal) Validate() error {
	if s == nil {
		return &InvalidSignalError{Reason: "nil signal"}
	}
	if s.SampleRate <= 0 {
		return &InvalidSignalError{Reason: "sample rate must be positive", SampleRate: s.SampleRate}
	}
	if len(s.Channels) == 0 {
		return &InvalidSignalError{Reason: "no channels", SampleRate: s.SampleRate}
	}

	n := len(s.Channels[0])
	for ch, samples := range s.Channels {
		if len(samples) != n {
			return &InvalidSignalError{Reason: "channels have different lengths", SampleRate: s.SampleRate, Channel: ch}
		}
	}
	if n == 0 {
		return &InvalidSignalError{Reason: "no samples", SampleRate: s.SampleRate}
	}
	return nil
}

// ChannelCount returns the number of channels
func (s *AudioSignal) ChannelCount() int {
	return len(s.Channels)
}

// Frames returns the number of samples per channel
func (s *AudioSignal) Frames() int {
	if len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0])
}

// Duration returns the signal length in seconds
func (s *AudioSignal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(s.Frames()) / float64(s.SampleRate)
}

// MonoMix averages the channels sample by sample into a new slice.
// A mono signal is copied.
func (s *AudioSignal) MonoMix() []float64 {
	mono := make([]float64, s.Frames())
	if len(s.Channels) == 1 {
		copy(mono, s.Channels[0])
		return mono
	}

	for _, samples := range s.Channels {
		for i, v := range samples {
			mono[i] += v
		}
	}

	scale := 1 / float64(len(s.Channels))
	for i := range mono {
		mono[i] *= scale
	}
	return mono
}

// excerpt returns the centred window of at most maxSeconds of samples.
// maxSeconds <= 0 keeps the whole slice.
func excerpt(samples []float64, sampleRate int, maxSeconds float64) []float64 {
	if maxSeconds <= 0 {
		return samples
	}

	limit := int(maxSeconds * float64(sampleRate))
	if limit <= 0 || len(samples) <= limit {
		return samples
	}

	start := (len(samples) - limit) / 2
	return samples[start : start+limit]
}
