package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
)

var (
	ErrRunNotFound   = errors.New("storage: run not found")
	ErrUnknownColumn = errors.New("storage: unknown telemetry column")
)

// Sample is one telemetry row: the state of one domain after one tick.
type Sample struct {
	Tick          uint64  `csv:"tick" json:"tick"`
	Time          float64 `csv:"time" json:"time"`
	Domain        uint32  `csv:"domain" json:"domain"`
	Fx            float64 `csv:"fx" json:"fx"`
	Fy            float64 `csv:"fy" json:"fy"`
	Torque        float64 `csv:"torque" json:"torque"`
	MaxDivergence float64 `csv:"max_divergence" json:"max_divergence"`
	FluidVolume   float64 `csv:"fluid_volume" json:"fluid_volume"`
	SurfaceMean   float64 `csv:"surface_mean" json:"surface_mean"`
	SurfaceStd    float64 `csv:"surface_std" json:"surface_std"`
	StepMillis    float64 `csv:"step_ms" json:"step_ms"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s Sample) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("tick", s.Tick),
		slog.Int("domain", int(s.Domain)),
		slog.Float64("fx", s.Fx),
		slog.Float64("fy", s.Fy),
		slog.Float64("torque", s.Torque),
		slog.Float64("max_divergence", s.MaxDivergence),
		slog.Float64("fluid_volume", s.FluidVolume),
		slog.Float64("step_ms", s.StepMillis),
	)
}

var columns = map[string]func(*Sample) float64{
	"time":           func(s *Sample) float64 { return s.Time },
	"fx":             func(s *Sample) float64 { return s.Fx },
	"fy":             func(s *Sample) float64 { return s.Fy },
	"torque":         func(s *Sample) float64 { return s.Torque },
	"max_divergence": func(s *Sample) float64 { return s.MaxDivergence },
	"fluid_volume":   func(s *Sample) float64 { return s.FluidVolume },
	"surface_mean":   func(s *Sample) float64 { return s.SurfaceMean },
	"surface_std":    func(s *Sample) float64 { return s.SurfaceStd },
	"step_ms":        func(s *Sample) float64 { return s.StepMillis },
}

// Columns lists the numeric telemetry columns.
func Columns() []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column extracts one column of the samples of a domain.
func Column(samples []Sample, domain uint32, name string) ([]float64, error) {
	get, ok := columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	out := make([]float64, 0, len(samples))
	for i := range samples {
		if samples[i].Domain == domain {
			out = append(out, get(&samples[i]))
		}
	}
	return out, nil
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Preset    string             `json:"preset"`
	Timestamp time.Time          `json:"timestamp"`
	Domains   int                `json:"domains"`
	Bodies    int                `json:"bodies"`
	Ticks     int                `json:"ticks"`
	PhysicsHz float64            `json:"physics_hz"`
	Backend   string             `json:"backend"`
	Solver    map[string]float64 `json:"solver"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Run is an open run directory receiving telemetry.
type Run struct {
	dir           string
	meta          RunMetadata
	telemetry     *os.File
	headerWritten bool
}

// Create opens a new run directory named after the preset and start time.
func (s *Store) Create(meta RunMetadata) (*Run, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	name := meta.Preset
	if name == "" {
		name = "custom"
	}
	meta.ID = fmt.Sprintf("%s_%d", name, meta.Timestamp.UnixNano())
	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating telemetry.csv: %w", err)
	}
	r := &Run{dir: dir, meta: meta, telemetry: f}
	if err := r.writeMetadata(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Run) ID() string { return r.meta.ID }

// Append writes samples to telemetry.csv. The header is written once.
func (r *Run) Append(samples ...Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if !r.headerWritten {
		if err := gocsv.Marshal(samples, r.telemetry); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(samples, r.telemetry); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// Close records the final metrics and closes the telemetry file.
func (r *Run) Close(metrics map[string]float64) error {
	r.meta.Metrics = metrics
	err := r.writeMetadata()
	if cerr := r.telemetry.Close(); err == nil {
		err = cerr
	}
	return err
}

func (r *Run) writeMetadata() error {
	f, err := os.Create(filepath.Join(r.dir, "metadata.json"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r.meta)
}

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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[len(runs)-1], nil
}

func (s *Store) TelemetryPath(runID string) string {
	return filepath.Join(s.baseDir, runID, "telemetry.csv")
}

func (s *Store) LoadTelemetry(runID string) ([]Sample, error) {
	f, err := os.Open(s.TelemetryPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	var samples []Sample
	if err := gocsv.UnmarshalFile(f, &samples); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return []Sample{}, nil
		}
		return nil, fmt.Errorf("reading telemetry: %w", err)
	}
	return samples, nil
}
