// Package storage keeps each capture in its own run directory: a
// metadata.json describing the experiment and its statistics, and a
// samples.csv with the raw telemetry.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/motorlab/internal/analysis"
	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/telemetry"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

// Run kinds.
const (
	KindStep      = "step"
	KindFrequency = "frequency"
)

var (
	ErrNotFound  = errors.New("storage: run not found")
	ErrBadSample = errors.New("storage: malformed sample row")
)

var header = []string{"time", "position", "step", "power"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Dir returns the directory of a run.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Side      telemetry.Side `json:"side"`
	Port      string         `json:"port"`
	Timestamp time.Time      `json:"timestamp"`
	// Group ties the runs of one sweep together.
	Group string `json:"group,omitempty"`

	StepPlan      *capture.StepPlan      `json:"step_plan,omitempty"`
	FrequencyPlan *capture.FrequencyPlan `json:"frequency_plan,omitempty"`

	// Error is set when the capture stopped early; the samples are partial.
	Error string `json:"error,omitempty"`

	Origin      int64 `json:"origin"`
	Samples     int   `json:"samples"`
	Skipped     int   `json:"skipped"`
	ParseErrors int   `json:"parse_errors"`

	StepResponse *analysis.StepResponse   `json:"step_response,omitempty"`
	FirstOrder   *analysis.FirstOrder     `json:"first_order,omitempty"`
	Sine         *analysis.SineParams     `json:"sine,omitempty"`
	SineStdErr   []float64                `json:"sine_stderr,omitempty"`
	Bode         *analysis.FrequencyPoint `json:"bode,omitempty"`
}

// Save creates a run directory for a capture. ID and Timestamp are filled
// in when empty.
func (s *Store) Save(meta RunMetadata, samples []telemetry.Sample) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = s.newID(meta)
	}
	meta.Samples = len(samples)

	runDir := s.Dir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := s.writeMetadata(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, samples); err != nil {
		return "", err
	}
	return meta.ID, csvFile.Close()
}

func (s *Store) newID(meta RunMetadata) string {
	base := fmt.Sprintf("%s_%s_%d", meta.Kind, meta.Side, meta.Timestamp.Unix())
	id := base
	for n := 2; ; n++ {
		if _, err := os.Stat(s.Dir(id)); os.IsNotExist(err) {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

// Update rewrites the metadata of an existing run.
func (s *Store) Update(meta RunMetadata) error {
	if _, err := os.Stat(s.Dir(meta.ID)); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, meta.ID)
	}
	return s.writeMetadata(meta)
}

func (s *Store) writeMetadata(meta RunMetadata) error {
	metaFile, err := os.Create(filepath.Join(s.Dir(meta.ID), metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}
	return metaFile.Close()
}

// List returns every run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decoding %s metadata: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]telemetry.Sample, error) {
	file, err := os.Open(filepath.Join(s.Dir(runID), samplesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}

// WriteCSV writes samples as time,position,step,power. The power column is
// empty before the first command.
func WriteCSV(w io.Writer, samples []telemetry.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, smp := range samples {
		power := ""
		if smp.HasPower {
			power = strconv.FormatFloat(smp.Power, 'f', -1, 64)
		}
		row := []string{
			strconv.FormatFloat(smp.Time, 'f', -1, 64),
			strconv.FormatFloat(smp.Position, 'f', -1, 64),
			strconv.Itoa(smp.Step),
			power,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the format written by WriteCSV.
func ReadCSV(r io.Reader) ([]telemetry.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []telemetry.Sample{}, nil
	}

	samples := make([]telemetry.Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		smp, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrBadSample, i+2, err)
		}
		samples = append(samples, smp)
	}
	return samples, nil
}

func parseRow(record []string) (telemetry.Sample, error) {
	var smp telemetry.Sample
	var err error
	if smp.Time, err = strconv.ParseFloat(record[0], 64); err != nil {
		return smp, err
	}
	if smp.Position, err = strconv.ParseFloat(record[1], 64); err != nil {
		return smp, err
	}
	if smp.Step, err = strconv.Atoi(record[2]); err != nil {
		return smp, err
	}
	if record[3] != "" {
		if smp.Power, err = strconv.ParseFloat(record[3], 64); err != nil {
			return smp, err
		}
		smp.HasPower = true
	}
	return smp, nil
}
