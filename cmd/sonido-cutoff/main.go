// Entry point for the sonido-cutoff batch analyser.
// Scans a directory of audio files and reports which ones were upsampled.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/sonido-cutoff/batch"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth/config"
	"github.com/RyanBlaney/sonido-cutoff/logging"
	"github.com/RyanBlaney/sonido-cutoff/plotting"
)

// options holds the parsed command line
type options struct {
	input      string
	output     string
	configPath string
	threshold  float64
	workers    int
	plots      bool
	ffmpeg     string
	logLevel   string
	noColor    bool

	set map[string]bool // flags given explicitly
}

func parseFlags(args []string, errOut io.Writer) (*options, error) {
	fs := flag.NewFlagSet("sonido-cutoff", flag.ContinueOnError)
	fs.SetOutput(errOut)

	opts := &options{}
	fs.StringVar(&opts.input, "input", ".", "Directory with the audio files to analyse")
	fs.StringVar(&opts.output, "output", "", "Directory for the reports (default: the input directory)")
	fs.StringVar(&opts.configPath, "config", "", "JSON configuration file")
	fs.Float64Var(&opts.threshold, "threshold", -60, "Detection threshold in dB")
	fs.IntVar(&opts.workers, "workers", 0, "Files analysed in parallel (0: one per CPU)")
	fs.BoolVar(&opts.plots, "plots", true, "Write spectrogram, spectrum and band plots")
	fs.StringVar(&opts.ffmpeg, "ffmpeg", "", "Path to the ffmpeg binary used for formats without a native decoder")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored log output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})

	if opts.output == "" {
		opts.output = opts.input
	}
	return opts, nil
}

// loadConfig reads the configuration file, if any, and applies explicit flags over it
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadFile(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.set["threshold"] {
		cfg.Analyzer.ThresholdDB = opts.threshold
	}
	if opts.set["workers"] {
		cfg.Workers = opts.workers
	}
	if opts.set["plots"] {
		cfg.Plots = opts.plots
	}
	if opts.set["ffmpeg"] {
		cfg.Decoder.FFmpegPath = opts.ffmpeg
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(opts *options) error {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}

	var logger *logging.DefaultLogger
	if opts.noColor {
		logger = logging.NewDefaultLoggerNoColor()
	} else {
		logger = logging.NewDefaultLogger()
	}
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	return nil
}

func run(ctx context.Context, args []string, errOut io.Writer) int {
	opts, err := parseFlags(args, errOut)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintln(errOut, err)
		return 2
	}

	if err := setupLogging(opts); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		logging.Error(err, "Invalid configuration")
		return 1
	}

	var observers []batch.Observer
	if cfg.Plots {
		rendererConfig := plotting.DefaultRendererConfig()
		rendererConfig.Reference = cfg.Analyzer.Reference
		observers = append(observers, plotting.NewRenderer(rendererConfig))
	}

	runner, err := batch.NewRunner(cfg, opts.output, observers...)
	if err != nil {
		logging.Error(err, "Failed to create runner")
		return 1
	}

	summary, err := runner.Run(ctx, opts.input)
	if err != nil {
		logging.Error(err, "Analysis failed")
		return 1
	}

	logging.Info("Done", logging.Fields{
		"files":     summary.TotalArquivos,
		"upsampled": summary.Estatisticas.Upsampled,
		"failures":  summary.Estatisticas.Falhas,
		"summary":   runner.Writer().Root(),
	})
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
