package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cutoff/algorithms/temporal"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth"
	"github.com/RyanBlaney/sonido-cutoff/logging"
)

const (
	ResultFileName  = "resultado.json"
	SummaryFileName = "resumo_geral.json"

	// StatusNoSignal marks files with no energy above the detection threshold
	StatusNoSignal = "sem_sinal"
)

// Record is the persisted result of one file
type Record struct {
	Arquivo                    string               `json:"arquivo"`
	SampleRateDeclarado        int                  `json:"sample_rate_declarado"`
	SampleRateEfetivo          int                  `json:"sample_rate_efetivo"`
	FrequenciaCorteHz          float64              `json:"frequencia_corte_hz"`
	Status                     string               `json:"status"`
	QualidadeReal              string               `json:"qualidade_real"`
	Canais                     int                  `json:"canais"`
	DuracaoSegundos            float64              `json:"duracao_segundos"`
	EnergiaPorBanda            bandwidth.BandValues `json:"energia_por_banda"`
	EnergiaPorBandaNormalizada bandwidth.BandValues `json:"energia_por_banda_normalizada"`
	ThresholdDB                float64              `json:"threshold_db"`
	RolloffHz                  float64              `json:"rolloff_hz"`
	PicoDBFS                   float64              `json:"pico_dbfs"`
	RMSDBFS                    float64              `json:"rms_dbfs"`
	AmostrasClipadas           int                  `json:"amostras_clipadas"`
}

// NewRecord converts an analysis result for file
func NewRecord(file string, result *bandwidth.AnalysisResult) Record {
	return Record{
		Arquivo:                    file,
		SampleRateDeclarado:        result.DeclaredSampleRate,
		SampleRateEfetivo:          result.EffectiveSampleRate,
		FrequenciaCorteHz:          result.CutoffFrequencyHz,
		Status:                     string(result.Status),
		QualidadeReal:              result.Quality,
		Canais:                     result.Channels,
		DuracaoSegundos:            result.DurationSeconds,
		EnergiaPorBanda:            result.Bands.DB(),
		EnergiaPorBandaNormalizada: result.Bands.Normalized(),
		ThresholdDB:                result.ThresholdDB,
		RolloffHz:                  result.RolloffHz,
		PicoDBFS:                   result.Levels.PeakDBFS,
		RMSDBFS:                    result.Levels.RMSDBFS,
		AmostrasClipadas:           result.Levels.ClippedSamples,
	}
}

// NoSignalRecord records a file whose spectrum never crossed the threshold
func NoSignalRecord(file string, sig *bandwidth.AudioSignal, bands bandwidth.BandEnergies, thresholdDB float64) Record {
	levels := temporal.ComputeLevels(sig.Channels, spectral.DefaultFloorDB)
	return Record{
		Arquivo:                    file,
		SampleRateDeclarado:        sig.SampleRate,
		Status:                     StatusNoSignal,
		Canais:                     sig.ChannelCount(),
		DuracaoSegundos:            sig.Duration(),
		EnergiaPorBanda:            bands.DB(),
		EnergiaPorBandaNormalizada: bands.Normalized(),
		ThresholdDB:                thresholdDB,
		PicoDBFS:                   levels.PeakDBFS,
		RMSDBFS:                    levels.RMSDBFS,
		AmostrasClipadas:           levels.ClippedSamples,
	}
}

// Failure is a file that could not be analysed
type Failure struct {
	Arquivo string `json:"arquivo"`
	Erro    string `json:"erro"`
}

// Configuration echoes the settings a run used
type Configuration struct {
	ThresholdDB float64  `json:"threshold_db"`
	Formatos    []string `json:"formatos"`
	Referencia  string   `json:"referencia"`
	SubBandas   int      `json:"sub_bandas"`
	Tolerancia  float64  `json:"tolerancia"`
	Janela      string   `json:"janela"`
	TamanhoFFT  int      `json:"tamanho_fft"`
}

// Statistics counts outcomes per status
type Statistics struct {
	Real      int `json:"real"`
	Upsampled int `json:"upsampled"`
	SemSinal  int `json:"sem_sinal"`
	Falhas    int `json:"falhas"`
}

// Summary is the aggregate report of a run
type Summary struct {
	IDExecucao          string        `json:"id_execucao"`
	DataAnalise         time.Time     `json:"data_analise"`
	TotalArquivos       int           `json:"total_arquivos"`
	TempoProcessamentoS float64       `json:"tempo_processamento_s"`
	Configuracao        Configuration `json:"configuracao"`
	Estatisticas        Statistics    `json:"estatisticas"`
	Resultados          []Record      `json:"resultados"`
	Falhas              []Failure     `json:"falhas"`
}

// NewSummary builds the run summary. TotalArquivos counts analysed files, failures excluded.
func NewSummary(start time.Time, elapsed time.Duration, cfg Configuration, records []Record, failures []Failure) *Summary {
	summary := &Summary{
		IDExecucao:          uuid.New().String(),
		DataAnalise:         start,
		TotalArquivos:       len(records),
		TempoProcessamentoS: elapsed.Seconds(),
		Configuracao:        cfg,
		Resultados:          records,
		Falhas:              failures,
	}
	if summary.Resultados == nil {
		summary.Resultados = []Record{}
	}
	if summary.Falhas == nil {
		summary.Falhas = []Failure{}
	}

	for _, record := range records {
		switch record.Status {
		case string(bandwidth.StatusReal):
			summary.Estatisticas.Real++
		case string(bandwidth.StatusUpsampled):
			summary.Estatisticas.Upsampled++
		case StatusNoSignal:
			summary.Estatisticas.SemSinal++
		}
	}
	summary.Estatisticas.Falhas = len(failures)

	return summary
}

// Writer persists records and summaries under a root directory
type Writer struct {
	root   string
	logger logging.Logger
}

// NewWriter creates a writer rooted at dir
func NewWriter(dir string) *Writer {
	return &Writer{
		root: dir,
		logger: logging.WithFields(logging.Fields{
			"component": "report_writer",
			"root":      dir,
		}),
	}
}

// Root returns the output directory
func (w *Writer) Root() string {
	return w.root
}

// ResultDir returns <root>/<stem>_analise for an audio file name
func (w *Writer) ResultDir(file string) string {
	base := filepath.Base(file)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(w.root, stem+"_analise")
}

// WriteRecord writes <root>/<stem>_analise/resultado.json and returns its path
func (w *Writer) WriteRecord(record Record) (string, error) {
	dir := w.ResultDir(record.Arquivo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create result directory: %w", err)
	}

	path := filepath.Join(dir, ResultFileName)
	if err := writeJSON(path, record); err != nil {
		return "", err
	}

	w.logger.Debug("Result written", logging.Fields{
		"file": record.Arquivo,
		"path": path,
	})
	return path, nil
}

// WriteSummary writes <root>/resumo_geral.json and returns its path
func (w *Writer) WriteSummary(summary *Summary) (string, error) {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(w.root, SummaryFileName)
	if err := writeJSON(path, summary); err != nil {
		return "", err
	}

	w.logger.Info("Summary written", logging.Fields{
		"path":      path,
		"files":     summary.TotalArquivos,
		"upsampled": summary.Estatisticas.Upsampled,
	})
	return path, nil
}

// writeJSON writes v indented, via a temporary file renamed into place
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
