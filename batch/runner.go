package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth/config"
	"github.com/RyanBlaney/sonido-cutoff/logging"
	"github.com/RyanBlaney/sonido-cutoff/report"
	"github.com/RyanBlaney/sonido-cutoff/transcode"
)

// Observation is a successfully analysed file handed to observers
type Observation struct {
	File     string // base name of the audio file
	Path     string
	Dir      string // result directory of the file
	Signal   *bandwidth.AudioSignal
	Spectrum *spectral.Spectrum
	Result   *bandwidth.AnalysisResult
}

// Observer is notified after each successful analysis.
// Observers run concurrently for different files.
type Observer interface {
	Observe(ctx context.Context, obs *Observation) error
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, obs *Observation) error

func (f ObserverFunc) Observe(ctx context.Context, obs *Observation) error {
	return f(ctx, obs)
}

// Loader decodes an audio file into planar samples
type Loader interface {
	Load(ctx context.Context, path string) (*transcode.AudioData, error)
}

// Runner analyses every supported file at the root of a directory
type Runner struct {
	config    *config.Config
	analyzer  *bandwidth.Analyzer
	loader    Loader
	writer    *report.Writer
	observers []Observer
	logger    logging.Logger
}

// NewRunner creates a runner writing its reports under outputDir
func NewRunner(cfg *config.Config, outputDir string, observers ...Observer) (*Runner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	analyzer, err := bandwidth.NewAnalyzer(cfg.Analyzer)
	if err != nil {
		return nil, err
	}

	decoder := cfg.Decoder
	return &Runner{
		config:    cfg,
		analyzer:  analyzer,
		loader:    transcode.NewLoader(&decoder),
		writer:    report.NewWriter(outputDir),
		observers: observers,
		logger: logging.WithFields(logging.Fields{
			"component": "batch_runner",
		}),
	}, nil
}

// SetLoader replaces the decoder used for every file
func (r *Runner) SetLoader(loader Loader) {
	r.loader = loader
}

// Writer returns the report writer of the run
func (r *Runner) Writer() *report.Writer {
	return r.writer
}

// Scan lists the files at the root of dir whose extension is configured,
// sorted by name. Subdirectories are not visited.
func (r *Runner) Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if slices.Contains(r.config.Extensions, ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	return files, nil
}

// outcome is the result slot of one file
type outcome struct {
	record  *report.Record
	failure *report.Failure
}

// Run analyses inputDir and writes one report per file plus the run summary.
// Per-file errors are recorded as failures. Cancelling ctx stops dispatching
// new files and Run returns the context error without writing a summary.
func (r *Runner) Run(ctx context.Context, inputDir string) (*report.Summary, error) {
	start := time.Now()

	files, err := r.Scan(inputDir)
	if err != nil {
		return nil, err
	}

	ctx = logging.ContextWithFields(ctx, logging.Fields{
		"input":  inputDir,
		"output": r.writer.Root(),
	})
	logger := r.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Run",
	})

	if len(files) == 0 {
		logger.Warn("No audio files found", logging.Fields{
			"extensions": r.config.Extensions,
		})
	} else {
		logger.Info("Starting analysis", logging.Fields{
			"files":   len(files),
			"workers": r.workers(),
		})
	}

	outcomes := make([]outcome, len(files))

	var g errgroup.Group
	g.SetLimit(r.workers())

	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = r.processFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn("Analysis cancelled", logging.Fields{
			"error": err.Error(),
		})
		return nil, err
	}

	records := make([]report.Record, 0, len(files))
	failures := make([]report.Failure, 0)
	for _, o := range outcomes {
		switch {
		case o.record != nil:
			records = append(records, *o.record)
		case o.failure != nil:
			failures = append(failures, *o.failure)
		}
	}

	summary := report.NewSummary(start, time.Since(start), r.configuration(), records, failures)
	if _, err := r.writer.WriteSummary(summary); err != nil {
		return summary, err
	}

	logger.Info("Analysis completed", logging.Fields{
		"files":     summary.TotalArquivos,
		"real":      summary.Estatisticas.Real,
		"upsampled": summary.Estatisticas.Upsampled,
		"no_signal": summary.Estatisticas.SemSinal,
		"failures":  summary.Estatisticas.Falhas,
		"elapsed_s": summary.TempoProcessamentoS,
	})

	return summary, nil
}

// processFile analyses one file and writes its report
func (r *Runner) processFile(ctx context.Context, path string) outcome {
	name := filepath.Base(path)
	logger := r.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "processFile",
		"file":     name,
	})

	fail := func(err error) outcome {
		logger.Error(err, "File analysis failed")
		return outcome{failure: &report.Failure{Arquivo: name, Erro: err.Error()}}
	}

	data, err := r.loader.Load(ctx, path)
	if err != nil {
		return fail(err)
	}

	sig, err := bandwidth.NewAudioSignal(data.Channels, data.SampleRate)
	if err != nil {
		return fail(err)
	}

	result, spectrum, err := r.analyzer.AnalyzeSpectrum(sig)
	if errors.Is(err, bandwidth.ErrNoSignalDetected) {
		bands := bandwidth.AggregateBands(spectrum, r.config.Analyzer.Bands)
		record := report.NoSignalRecord(name, sig, bands, r.config.Analyzer.ThresholdDB)
		if _, err := r.writer.WriteRecord(record); err != nil {
			return fail(err)
		}
		logger.Warn("No signal above threshold", logging.Fields{
			"threshold_db": r.config.Analyzer.ThresholdDB,
		})
		return outcome{record: &record}
	}
	if err != nil {
		return fail(err)
	}

	record := report.NewRecord(name, result)
	if _, err := r.writer.WriteRecord(record); err != nil {
		return fail(err)
	}

	obs := &Observation{
		File:     name,
		Path:     path,
		Dir:      r.writer.ResultDir(name),
		Signal:   sig,
		Spectrum: spectrum,
		Result:   result,
	}
	for _, observer := range r.observers {
		if err := observer.Observe(ctx, obs); err != nil {
			logger.Warn("Observer failed", logging.Fields{
				"error": err.Error(),
			})
		}
	}

	logger.Info("File analysed", logging.Fields{
		"status":         string(result.Status),
		"declared_rate":  result.DeclaredSampleRate,
		"effective_rate": result.EffectiveSampleRate,
		"cutoff_hz":      result.CutoffFrequencyHz,
	})

	return outcome{record: &record}
}

func (r *Runner) workers() int {
	if r.config.Workers > 0 {
		return r.config.Workers
	}
	return runtime.NumCPU()
}

// configuration echoes the analysis settings into the summary
func (r *Runner) configuration() report.Configuration {
	analyzer := r.config.Analyzer
	return report.Configuration{
		ThresholdDB: analyzer.ThresholdDB,
		Formatos:    slices.Clone(r.config.Extensions),
		Referencia:  string(analyzer.Reference),
		SubBandas:   analyzer.SubBands,
		Tolerancia:  analyzer.Tolerance,
		Janela:      string(analyzer.Transform.Window),
		TamanhoFFT:  analyzer.Transform.WindowSize,
	}
}
