package bandwidth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth/config"
)

// Band is one reporting band of [0, Nyquist] and its mean energy
type Band struct {
	Label    string  `json:"label"`
	LowHz    float64 `json:"low_hz"`
	HighHz   float64 `json:"high_hz"`
	Bins     int     `json:"bins"`
	EnergyDB float64 `json:"energy_db"` // dBFS, meaningless when HasData is false
	HasData  bool    `json:"has_data"`
}

// Width returns the band width in Hz
func (b Band) Width() float64 {
	return b.HighHz - b.LowHz
}

// BandEnergies is an ordered partition of [0, Nyquist], lowest band first
type BandEnergies []Band

// BandValue is one labelled entry of an ordered band map
type BandValue struct {
	Label   string
	Value   float64
	HasData bool
}

// BandValues serializes as a JSON object keeping band order.
// Entries without data are written as null.
type BandValues []BandValue

// MarshalJSON writes {"label": value, ...} in slice order
func (v BandValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if !entry.HasData || math.IsNaN(entry.Value) || math.IsInf(entry.Value, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(entry.Value, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object written by MarshalJSON, keeping key order
func (v *BandValues) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("band values: expected object, got %v", tok)
	}

	values := BandValues{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, _ := tok.(string)

		var value *float64
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("band values: %q: %w", label, err)
		}

		entry := BandValue{Label: label}
		if value != nil {
			entry.Value, entry.HasData = *value, true
		}
		values = append(values, entry)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*v = values
	return nil
}

// DB returns the band energies in dBFS
func (b BandEnergies) DB() BandValues {
	values := make(BandValues, len(b))
	for i, band := range b {
		values[i] = BandValue{Label: band.Label, Value: band.EnergyDB, HasData: band.HasData}
	}
	return values
}

// Normalized returns linear band energies relative to the strongest band, in [0, 1].
// Bands without data stay without data.
func (b BandEnergies) Normalized() BandValues {
	strongest := math.Inf(-1)
	for _, band := range b {
		if band.HasData {
			strongest = math.Max(strongest, band.EnergyDB)
		}
	}

	values := make(BandValues, len(b))
	for i, band := range b {
		values[i] = BandValue{Label: band.Label, HasData: band.HasData}
		if band.HasData {
			values[i].Value = math.Pow(10, (band.EnergyDB-strongest)/10)
		}
	}
	return values
}

// MarshalJSON writes the dBFS energies as an ordered object
func (b BandEnergies) MarshalJSON() ([]byte, error) {
	return b.DB().MarshalJSON()
}

// BandEdges returns the band boundaries in Hz, from 0 to nyquist inclusive
func BandEdges(scheme config.BandConfig, nyquist float64) []float64 {
	if len(scheme.Edges) > 0 {
		edges := make([]float64, 0, len(scheme.Edges)+2)
		edges = append(edges, 0)
		for _, fraction := range scheme.Edges {
			edges = append(edges, fraction*nyquist)
		}
		return append(edges, nyquist)
	}

	count := max(scheme.Count, 1)
	edges := make([]float64, count+1)
	for i := range edges {
		edges[i] = nyquist * float64(i) / float64(count)
	}
	// Avoid rounding drift on the last edge
	edges[count] = nyquist
	return edges
}

// AggregateBands reduces a power spectrum to mean energies per reporting band.
// A bin at frequency f belongs to the band with low <= f < high; the last band
// also owns the Nyquist bin. A band that owns no bin has HasData == false.
func AggregateBands(spectrum *spectral.Spectrum, scheme config.BandConfig) BandEnergies {
	edges := BandEdges(scheme, spectrum.Nyquist())
	bands := make(BandEnergies, len(edges)-1)

	bin := 0
	for i := range bands {
		low, high := edges[i], edges[i+1]
		last := i == len(bands)-1

		start := bin
		for bin < spectrum.Bins() && (spectrum.Frequency(bin) < high || last) {
			bin++
		}

		bands[i] = Band{
			Label:  bandLabel(low, high),
			LowHz:  low,
			HighHz: high,
			Bins:   bin - start,
		}
		if bin > start {
			energy := stat.Mean(spectrum.Power[start:bin], nil)
			bands[i].EnergyDB = spectral.PowerToDB(energy, 1, spectral.DefaultFloorDB)
			bands[i].HasData = true
		}
	}

	return bands
}

// bandLabel formats band bounds in kHz: "0-8kHz", "7.35-14.7kHz"
func bandLabel(low, high float64) string {
	return fmt.Sprintf("%s-%skHz", formatKHz(low), formatKHz(high))
}

func formatKHz(hz float64) string {
	khz := math.Round(hz) / 1000
	return strconv.FormatFloat(khz, 'f', -1, 64)
}
