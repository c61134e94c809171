package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-cutoff/algorithms/temporal"
	"github.com/RyanBlaney/sonido-cutoff/bandwidth"
)

func sampleResult() *bandwidth.AnalysisResult {
	return &bandwidth.AnalysisResult{
		DeclaredSampleRate:  48000,
		EffectiveSampleRate: 24000,
		CutoffFrequencyHz:   12000,
		Status:              bandwidth.StatusUpsampled,
		Quality:             "24kHz",
		Bands: bandwidth.BandEnergies{
			{Label: "0-8kHz", LowHz: 0, HighHz: 8000, EnergyDB: -20, HasData: true},
			{Label: "8-16kHz", LowHz: 8000, HighHz: 16000, EnergyDB: -30, HasData: true},
			{Label: "16-24kHz", LowHz: 16000, HighHz: 24000, EnergyDB: -120, HasData: true},
		},
		Channels:        2,
		DurationSeconds: 351.23,
		ThresholdDB:     -60,
		RolloffHz:       11800,
		Levels:          temporal.Levels{PeakDBFS: -0.5, RMSDBFS: -14, CrestFactor: 4.7, ClippedSamples: 3},
	}
}

func TestNewRecordFieldNames(t *testing.T) {
	data, err := json.Marshal(NewRecord("faixa.flac", sampleResult()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "faixa.flac", decoded["arquivo"])
	assert.Equal(t, 48000.0, decoded["sample_rate_declarado"])
	assert.Equal(t, 24000.0, decoded["sample_rate_efetivo"])
	assert.Equal(t, 12000.0, decoded["frequencia_corte_hz"])
	assert.Equal(t, "upsampled", decoded["status"])
	assert.Equal(t, "24kHz", decoded["qualidade_real"])
	assert.Equal(t, 2.0, decoded["canais"])
	assert.Equal(t, 351.23, decoded["duracao_segundos"])
	assert.Equal(t, 11800.0, decoded["rolloff_hz"])
	assert.Equal(t, -0.5, decoded["pico_dbfs"])
	assert.Equal(t, -14.0, decoded["rms_dbfs"])
	assert.Equal(t, 3.0, decoded["amostras_clipadas"])

	// Band order follows frequency, not key order
	assert.Contains(t, string(data), `"energia_por_banda":{"0-8kHz":-20,"8-16kHz":-30,"16-24kHz":-120}`)

	normalized := decoded["energia_por_banda_normalizada"].(map[string]any)
	assert.Equal(t, 1.0, normalized["0-8kHz"])
	assert.InDelta(t, 0.1, normalized["8-16kHz"], 1e-12)
}

func TestNoSignalRecord(t *testing.T) {
	sig := &bandwidth.AudioSignal{Channels: [][]float64{make([]float64, 96000)}, SampleRate: 48000}
	bands := bandwidth.BandEnergies{{Label: "0-24kHz", HighHz: 24000, EnergyDB: -200, HasData: true}}

	record := NoSignalRecord("silencio.wav", sig, bands, -60)
	assert.Equal(t, StatusNoSignal, record.Status)
	assert.Equal(t, 48000, record.SampleRateDeclarado)
	assert.Zero(t, record.SampleRateEfetivo)
	assert.Equal(t, 1, record.Canais)
	assert.Equal(t, 2.0, record.DuracaoSegundos)
	assert.Equal(t, -200.0, record.PicoDBFS)
	assert.Zero(t, record.RolloffHz)
}

func TestWriterWritesRecord(t *testing.T) {
	writer := NewWriter(t.TempDir())

	path, err := writer.WriteRecord(NewRecord("minha faixa.final.mp3", sampleResult()))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(writer.Root(), "minha faixa.final_analise", ResultFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "minha faixa.final.mp3", record.Arquivo)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"arquivo\""), "output is indented")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestNewSummaryStatistics(t *testing.T) {
	genuine := NewRecord("a.wav", sampleResult())
	genuine.Status = string(bandwidth.StatusReal)
	records := []Record{
		NewRecord("b.wav", sampleResult()),
		genuine,
		{Arquivo: "c.wav", Status: StatusNoSignal},
		NewRecord("d.wav", sampleResult()),
	}
	failures := []Failure{{Arquivo: "e.wav", Erro: "invalid WAV file"}}
	start := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	summary := NewSummary(start, 1500*time.Millisecond, Configuration{ThresholdDB: -60}, records, failures)

	assert.Equal(t, Statistics{Real: 1, Upsampled: 2, SemSinal: 1, Falhas: 1}, summary.Estatisticas)
	assert.Equal(t, 4, summary.TotalArquivos)
	assert.Equal(t, 1.5, summary.TempoProcessamentoS)
	_, err := uuid.Parse(summary.IDExecucao)
	assert.NoError(t, err)

	other := NewSummary(start, 0, Configuration{}, nil, nil)
	assert.NotEqual(t, summary.IDExecucao, other.IDExecucao)
	assert.NotNil(t, other.Resultados)
	assert.NotNil(t, other.Falhas)
}

func TestWriterWritesSummary(t *testing.T) {
	root := filepath.Join(t.TempDir(), "saida")
	writer := NewWriter(root)

	start := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	summary := NewSummary(start, time.Second, Configuration{ThresholdDB: -60, Formatos: []string{".flac"}}, nil, nil)

	path, err := writer.WriteSummary(summary)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, SummaryFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2026-03-14T15:09:26Z", decoded["data_analise"])
	assert.Equal(t, []any{}, decoded["resultados"])
	assert.Equal(t, []any{}, decoded["falhas"])
	assert.Equal(t, map[string]any{"real": 0.0, "upsampled": 0.0, "sem_sinal": 0.0, "falhas": 0.0}, decoded["estatisticas"])
}
