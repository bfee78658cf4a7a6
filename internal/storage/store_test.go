package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "runs"))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	run, err := s.Create(RunMetadata{Preset: "water_surface", Domains: 1, Ticks: 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := run.Append(Sample{Tick: 1, Fy: 2.5}); err != nil {
		t.Fatal(err)
	}
	if err := run.Append(Sample{Tick: 2, Fy: 3}, Sample{Tick: 3, Fy: 3.5}); err != nil {
		t.Fatal(err)
	}
	if err := run.Close(map[string]float64{"volume_drift": 0.01}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(s.TelemetryPath(run.ID()))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "tick,"); n != 1 {
		t.Errorf("expected header written once, got %d", n)
	}

	samples, err := s.LoadTelemetry(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[2].Tick != 3 || samples[2].Fy != 3.5 {
		t.Errorf("expected tick 3 fy 3.5, got %+v", samples[2])
	}

	meta, err := s.Load(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if meta.Preset != "water_surface" || meta.Metrics["volume_drift"] != 0.01 {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestListAndLatest(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Latest(); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, preset := range []string{"b", "a", ""} {
		run, err := s.Create(RunMetadata{Preset: preset, Timestamp: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatal(err)
		}
		if err := run.Close(nil); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Preset != "b" {
		t.Errorf("expected runs in time order, got %s first", runs[0].Preset)
	}

	latest, err := s.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(latest.ID, "custom_") {
		t.Errorf("expected unnamed run to be custom, got %s", latest.ID)
	}
}

func TestEmptyTelemetry(t *testing.T) {
	s := New(t.TempDir())
	run, err := s.Create(RunMetadata{Preset: "empty"})
	if err != nil {
		t.Fatal(err)
	}
	if err := run.Close(nil); err != nil {
		t.Fatal(err)
	}
	samples, err := s.LoadTelemetry(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples, got %d", len(samples))
	}
}

func TestLoadMissing(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := s.LoadTelemetry("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestColumn(t *testing.T) {
	samples := []Sample{
		{Domain: 0, Fx: 1},
		{Domain: 1, Fx: 5},
		{Domain: 0, Fx: 2},
	}

	tests := []struct {
		name     string
		domain   uint32
		column   string
		expected []float64
	}{
		{"domain 0", 0, "fx", []float64{1, 2}},
		{"domain 1", 1, "fx", []float64{5}},
		{"missing domain", 7, "fx", []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Column(samples, tt.domain, tt.column)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, got)
				}
			}
		})
	}

	if _, err := Column(samples, 0, "pressure"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	s := New(t.TempDir())
	run, err := s.Create(RunMetadata{Preset: "solid_body", Ticks: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := run.Append(Sample{Tick: 1, Fy: 1}, Sample{Tick: 2, Fy: 2}); err != nil {
		t.Fatal(err)
	}
	if err := run.Close(map[string]float64{"max_divergence": 1e-3}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.ExportJSON(&buf, run.ID()); err != nil {
		t.Fatal(err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Run.ID != run.ID() || data.Run.Preset != "solid_body" {
		t.Errorf("unexpected run %+v", data.Run)
	}
	if len(data.Samples) != 2 || data.Samples[1].Fy != 2 {
		t.Errorf("expected 2 samples ending at fy 2, got %+v", data.Samples)
	}

	if err := s.ExportJSON(&buf, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
