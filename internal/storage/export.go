package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/motorlab/internal/telemetry"
)

// ExportSample is a sample with an optional power, as exported to JSON.
type ExportSample struct {
	Time     float64  `json:"time"`
	Position float64  `json:"position"`
	Step     int      `json:"step"`
	Power    *float64 `json:"power"`
}

type ExportData struct {
	Run     RunMetadata    `json:"run"`
	Samples []ExportSample `json:"samples"`
}

// ExportJSON writes a run and its samples as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, samples []telemetry.Sample) error {
	data := ExportData{
		Run:     meta,
		Samples: make([]ExportSample, len(samples)),
	}
	for i, s := range samples {
		data.Samples[i] = ExportSample{Time: s.Time, Position: s.Position, Step: s.Step}
		if s.HasPower {
			p := s.Power
			data.Samples[i].Power = &p
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Export writes a stored run as JSON.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, *meta, samples)
}
