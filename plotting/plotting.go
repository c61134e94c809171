package plotting

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/algorithms/windowing"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth/config"
	"github.com/RyanBlaney/sonido-cutoff/batch"
	"github.com/RyanBlaney/sonido-cutoff/logging"
)

const (
	SpectrogramFileName = "espectrograma.png"
	SpectrumFileName    = "espectro_frequencia.png"
	BandsFileName       = "analise_bandas.png"

	spectrumFloorDB    = -80.0
	spectrumCeilingDB  = 5.0
	spectrogramFloorDB = -120.0
)

var (
	cutoffColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	thresholdColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	curveColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	strongBandColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	weakBandColor   = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	emptyBandColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// RendererConfig controls plot geometry
type RendererConfig struct {
	Width  vg.Length
	Height vg.Length

	// Spectrogram resolution. The hop grows so that no channel exceeds
	// SpectrogramFrames columns.
	SpectrogramWindow int
	SpectrogramFrames int

	// Reference the detector measured the threshold against
	Reference config.Reference
}

// DefaultRendererConfig returns the plot settings used by the CLI
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		Width:             12 * vg.Inch,
		Height:            6 * vg.Inch,
		SpectrogramWindow: 2048,
		SpectrogramFrames: 800,
		Reference:         config.ReferencePeak,
	}
}

// Renderer draws the diagnostic plots of one analysis into its result directory
type Renderer struct {
	config RendererConfig
	stft   *spectral.STFT
	logger logging.Logger
}

// NewRenderer creates a renderer
func NewRenderer(cfg RendererConfig) *Renderer {
	defaults := DefaultRendererConfig()
	if cfg.Width <= 0 {
		cfg.Width = defaults.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = defaults.Height
	}
	if cfg.SpectrogramWindow <= 0 {
		cfg.SpectrogramWindow = defaults.SpectrogramWindow
	}
	if cfg.SpectrogramFrames <= 1 {
		cfg.SpectrogramFrames = defaults.SpectrogramFrames
	}
	if cfg.Reference == "" {
		cfg.Reference = defaults.Reference
	}

	return &Renderer{
		config: cfg,
		stft:   spectral.NewSTFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "plot_renderer",
		}),
	}
}

// Observe renders the plots of a finished analysis
func (r *Renderer) Observe(ctx context.Context, obs *batch.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Render(obs.Dir, obs.Signal, obs.Spectrum, obs.Result)
}

// Render writes the spectrogram, spectrum and band plots into dir
func (r *Renderer) Render(dir string, sig *bandwidth.AudioSignal, spectrum *spectral.Spectrum, result *bandwidth.AnalysisResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}

	logger := r.logger.WithFields(logging.Fields{
		"function": "Render",
		"dir":      dir,
	})

	if err := r.RenderSpectrogram(filepath.Join(dir, SpectrogramFileName), sig); err != nil {
		return err
	}
	if err := r.RenderSpectrum(filepath.Join(dir, SpectrumFileName), spectrum, result); err != nil {
		return err
	}
	if err := r.RenderBands(filepath.Join(dir, BandsFileName), result); err != nil {
		return err
	}

	logger.Debug("Plots written")
	return nil
}

// RenderSpectrum plots the spectrum in dB relative to its peak with the
// detected cutoff and the detection threshold
func (r *Renderer) RenderSpectrum(path string, spectrum *spectral.Spectrum, result *bandwidth.AnalysisResult) error {
	_, peak := spectrum.Peak()
	db := spectral.ToDB(spectrum.Power, peak, spectrumFloorDB-20)

	points := make(plotter.XYs, len(db))
	for k := range db {
		points[k].X = spectrum.Frequency(k) / 1000
		points[k].Y = db[k]
	}

	p := plot.New()
	p.Title.Text = "Espectro de frequência"
	p.X.Label.Text = "Frequência (kHz)"
	p.Y.Label.Text = "Magnitude (dB rel. pico)"
	p.X.Min, p.X.Max = 0, spectrum.Nyquist()/1000
	p.Y.Min, p.Y.Max = spectrumFloorDB, spectrumCeilingDB
	p.Add(plotter.NewGrid())

	curve, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("failed to plot spectrum: %w", err)
	}
	curve.LineStyle.Color = curveColor
	curve.LineStyle.Width = vg.Points(1)
	p.Add(curve)

	cutoffKHz := result.CutoffFrequencyHz / 1000
	cutoff, err := plotter.NewLine(plotter.XYs{{X: cutoffKHz, Y: spectrumFloorDB}, {X: cutoffKHz, Y: spectrumCeilingDB}})
	if err != nil {
		return fmt.Errorf("failed to plot cutoff: %w", err)
	}
	cutoff.LineStyle.Color = cutoffColor
	cutoff.LineStyle.Width = vg.Points(2)
	cutoff.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	p.Add(cutoff)
	p.Legend.Add("Corte detectado: "+formatKHz(result.CutoffFrequencyHz)+" kHz", cutoff)

	thresholdDB := result.ThresholdDB
	if r.config.Reference == config.ReferenceFullScale {
		thresholdDB -= spectral.PowerToDB(peak, 1, spectral.DefaultFloorDB)
	}
	threshold, err := plotter.NewLine(plotter.XYs{{X: 0, Y: thresholdDB}, {X: spectrum.Nyquist() / 1000, Y: thresholdDB}})
	if err != nil {
		return fmt.Errorf("failed to plot threshold: %w", err)
	}
	threshold.LineStyle.Color = thresholdColor
	threshold.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(threshold)
	p.Legend.Add("Threshold: "+strconv.FormatFloat(result.ThresholdDB, 'f', -1, 64)+" dB", threshold)
	p.Legend.Top = true

	if err := p.Save(r.config.Width, r.config.Height, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// RenderBands plots the normalized band energies as coloured bars with the
// classification underneath the title
func (r *Renderer) RenderBands(path string, result *bandwidth.AnalysisResult) error {
	normalized := result.Bands.Normalized()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Energia por banda\nStatus: %s | SR declarado: %d Hz | SR efetivo: %d Hz",
		strings.ToUpper(string(result.Status)), result.DeclaredSampleRate, result.EffectiveSampleRate)
	p.Y.Label.Text = "Energia normalizada"
	p.Y.Min, p.Y.Max = 0, 1.1

	labels := make([]string, len(normalized))
	valueLabels := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(normalized)),
		Labels: make([]string, len(normalized)),
	}
	for i, band := range normalized {
		labels[i] = band.Label

		bar, err := plotter.NewBarChart(plotter.Values{band.Value}, vg.Points(40))
		if err != nil {
			return fmt.Errorf("failed to plot band %s: %w", band.Label, err)
		}
		bar.XMin = float64(i)
		bar.Color = bandColor(band)
		bar.LineStyle.Width = 0
		p.Add(bar)

		valueLabels.XYs[i] = plotter.XY{X: float64(i), Y: band.Value + 0.03}
		valueLabels.Labels[i] = "n/d"
		if band.HasData {
			valueLabels.Labels[i] = strconv.FormatFloat(band.Value, 'f', 3, 64)
		}
	}
	p.NominalX(labels...)

	values, err := plotter.NewLabels(valueLabels)
	if err != nil {
		return fmt.Errorf("failed to label bands: %w", err)
	}
	for i := range values.TextStyle {
		values.TextStyle[i].XAlign = text.XCenter
	}
	p.Add(values)

	if err := p.Save(r.config.Width, r.config.Height, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// RenderSpectrogram draws one spectrogram per channel, stacked vertically.
// Channels too short for two STFT frames are left out.
func (r *Renderer) RenderSpectrogram(path string, sig *bandwidth.AudioSignal) error {
	window, err := windowing.New(windowing.TypeHann, r.config.SpectrogramWindow, false)
	if err != nil {
		return err
	}

	var rows [][]*plot.Plot
	for ch, samples := range sig.Channels {
		if len(samples) < 2*r.config.SpectrogramWindow {
			r.logger.Warn("Channel too short for a spectrogram", logging.Fields{
				"channel": ch,
				"samples": len(samples),
			})
			continue
		}

		hop := spectral.HopForMaxFrames(len(samples), r.config.SpectrogramWindow, r.config.SpectrogramFrames)
		stft, err := r.stft.ComputeWithWindow(samples, r.config.SpectrogramWindow, hop, sig.SampleRate, window)
		if err != nil {
			return fmt.Errorf("failed to compute spectrogram of channel %d: %w", ch, err)
		}

		rows = append(rows, []*plot.Plot{spectrogramPlot(stft, ch, sig.ChannelCount())})
	}
	if len(rows) == 0 {
		return fmt.Errorf("signal too short for a spectrogram")
	}

	height := r.config.Height / 2 * vg.Length(len(rows))
	img := vgimg.New(r.config.Width, max(height, r.config.Height))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(rows),
		Cols:      1,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
		PadY:      vg.Points(12),
	}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func spectrogramPlot(stft *spectral.STFTResult, channel, channels int) *plot.Plot {
	grid := spectrogramGrid{
		db:      spectral.LogPowerFrames(stft.Magnitude, spectrogramFloorDB),
		timeRes: stft.TimeResolution,
		freqRes: stft.FreqResolution,
	}

	heat := plotter.NewHeatMap(grid, palette.Heat(256, 1))
	heat.Min, heat.Max = spectrogramFloorDB, 0

	p := plot.New()
	p.Title.Text = "Espectrograma"
	if channels > 1 {
		p.Title.Text += " - canal " + strconv.Itoa(channel+1)
	}
	p.X.Label.Text = "Tempo (s)"
	p.Y.Label.Text = "Frequência (kHz)"
	p.Add(heat)
	return p
}

// spectrogramGrid exposes a time x frequency dB matrix as a heat map grid
type spectrogramGrid struct {
	db      [][]float64
	timeRes float64
	freqRes float64
}

func (g spectrogramGrid) Dims() (c, r int) {
	return len(g.db), len(g.db[0])
}

func (g spectrogramGrid) Z(c, r int) float64 {
	return g.db[c][r]
}

func (g spectrogramGrid) X(c int) float64 {
	return float64(c) * g.timeRes
}

func (g spectrogramGrid) Y(r int) float64 {
	return float64(r) * g.freqRes / 1000
}

func bandColor(band bandwidth.BandValue) color.Color {
	switch {
	case band.HasData && band.Value > 0.5:
		return strongBandColor
	case band.HasData && band.Value > 0.1:
		return weakBandColor
	default:
		return emptyBandColor
	}
}

func formatKHz(hz float64) string {
	return strconv.FormatFloat(hz/1000, 'f', 2, 64)
}
