package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/eulerfluid/internal/analysis"
	"github.com/san-kum/eulerfluid/internal/config"
	"github.com/san-kum/eulerfluid/internal/export"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/optim"
	"github.com/san-kum/eulerfluid/internal/sim"
	"github.com/san-kum/eulerfluid/internal/storage"
	"github.com/san-kum/eulerfluid/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	logLevel   string

	ticks        int
	width        uint32
	height       uint32
	fluidLevel   float32
	jacobi       int
	backend      string
	physicsHz    float64
	scenarioFile string
	sampleEvery  int
	parallel     bool
	streamEvery  int

	column  string
	domain  int
	binSize int
	svgPath string

	metric      string
	sweepJacobi []int
	sweepBands  []int
	sweepUnits  []float64

	addr       string
	pngPath    string
	configPath string
	scale      int
	theme      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eulerfluid",
		Short: "grid fluid solver with rigid body coupling",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}
			if theme != "" {
				viz.SetTheme(theme)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(cmd.Context())
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".eulerfluid", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "", "color theme")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scene and store its telemetry",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSceneFlags(runCmd)
	runCmd.Flags().IntVar(&sampleEvery, "sample-every", 1, "record every nth tick")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "run each fluid domain as an independent scene")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a telemetry column (latest run by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	addColumnFlags(plotCmd)
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the plot as SVG")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a telemetry column",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}
	addColumnFlags(analyzeCmd)

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scene with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSceneFlags(liveCmd)

	serveCmd := &cobra.Command{
		Use:   "serve [preset]",
		Short: "stream frames of a scene over websocket",
		Args:  cobra.MaximumNArgs(1),
		RunE:  serve,
	}
	addSceneFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&streamEvery, "sample-every", 2, "broadcast every nth tick")
	serveCmd.Flags().IntVar(&binSize, "bin", 4, "velocity arrow bin size in cells")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [preset]",
		Short: "run a scene and write a PNG of the final field",
		Args:  cobra.MaximumNArgs(1),
		RunE:  snapshot,
	}
	addSceneFlags(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&pngPath, "output", "o", "snapshot.png", "output file (.png or .svg)")
	snapshotCmd.Flags().IntVar(&scale, "scale", 4, "pixels per cell")
	snapshotCmd.Flags().IntVar(&domain, "domain", 0, "domain index")
	snapshotCmd.Flags().IntVar(&binSize, "bin", 4, "velocity arrow bin size in cells (svg)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scene presets",
		RunE:  listPresets,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "time the step passes of a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  bench,
	}
	addSceneFlags(benchCmd)

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and telemetry to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "grid search solver parameters for the lowest metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweep,
	}
	addSceneFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&metric, "metric", "max_divergence", "metric to minimise")
	sweepCmd.Flags().IntSliceVar(&sweepJacobi, "jacobi-range", []int{10, 25, 50}, "pressure iterations to try")
	sweepCmd.Flags().IntSliceVar(&sweepBands, "bands-range", nil, "extrapolation passes to try")
	sweepCmd.Flags().Float64SliceVar(&sweepUnits, "unit-range", nil, "length units to try")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run telemetry to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}

	initCmd := &cobra.Command{
		Use:   "init [preset]",
		Short: "write a scene config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	addSceneFlags(initCmd)
	initCmd.Flags().StringVarP(&configPath, "output", "o", "eulerfluid.yaml", "output file")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, analyzeCmd, liveCmd, serveCmd, snapshotCmd, presetsCmd, benchCmd, exportCSVCmd, exportJSONCmd, sweepCmd, initCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func addSceneFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&ticks, "ticks", config.DefaultTicks, "physics ticks")
	f.Uint32Var(&width, "width", config.DefaultWidth, "grid width of every domain")
	f.Uint32Var(&height, "height", config.DefaultHeight, "grid height of every domain")
	f.Float32Var(&fluidLevel, "level", config.DefaultFluidLevel, "initial fluid level of every domain")
	f.IntVar(&jacobi, "jacobi", config.DefaultJacobi, "pressure iterations")
	f.StringVar(&backend, "backend", config.DefaultBackend, "compute backend (auto, parallel, serial)")
	f.Float64Var(&physicsHz, "hz", config.DefaultPhysicsHz, "physics rate")
	f.StringVar(&scenarioFile, "scenario", "", "scenario file (yaml)")
}

func addColumnFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&column, "column", "fy", "telemetry column")
	cmd.Flags().IntVar(&domain, "domain", 0, "domain")
}

func setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	fluid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig resolves the scene: preset, then config file, then flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("ticks") {
		cfg.Run.Ticks = ticks
	}
	if f.Changed("hz") {
		cfg.Run.PhysicsHz = physicsHz
	}
	if f.Changed("scenario") {
		cfg.Run.Scenario = scenarioFile
	}
	if f.Changed("jacobi") {
		cfg.Solver.JacobiIterations = jacobi
	}
	if f.Changed("backend") {
		cfg.Solver.Backend = backend
	}
	for i := range cfg.Domains {
		d := &cfg.Domains[i]
		if f.Changed("width") {
			d.Width = width
		}
		if f.Changed("height") {
			d.Height = height
		}
		if f.Changed("level") {
			d.InitialFluidLevel = fluidLevel
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	run, err := st.Create(storage.RunMetadata{
		Preset:    cfg.Preset,
		Domains:   len(cfg.Domains),
		Bodies:    len(cfg.Bodies),
		Ticks:     cfg.Run.Ticks,
		PhysicsHz: cfg.Run.PhysicsHz,
		Backend:   cfg.Solver.Backend,
		Solver: map[string]float64{
			"length_unit":          float64(cfg.Solver.LengthUnit),
			"jacobi_iterations":    float64(cfg.Solver.JacobiIterations),
			"extrapolation_passes": float64(cfg.Solver.ExtrapolationPasses),
			"sample_every":         float64(sampleEvery),
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("running %s: %d domain(s), %d ticks...\n", presetName(cfg), len(cfg.Domains), cfg.Run.Ticks)
	start := time.Now()

	var results []*sim.Result
	if parallel && len(cfg.Domains) > 1 {
		results, err = sim.RunDomains(cmd.Context(), cfg, cfg.Run.Ticks, sim.WithSampleEvery(sampleEvery))
		for _, r := range results {
			if r == nil {
				continue
			}
			if aerr := run.Append(r.Samples...); aerr != nil && err == nil {
				err = aerr
			}
		}
	} else {
		var s *sim.Simulator
		s, err = sim.New(cfg, sim.WithRecorder(run), sim.WithSampleEvery(sampleEvery))
		if err != nil {
			run.Close(nil)
			return err
		}
		var r *sim.Result
		r, err = s.Run(cmd.Context(), cfg.Run.Ticks)
		s.Close()
		results = []*sim.Result{r}
	}

	summary := mergeMetrics(results)
	if cerr := run.Close(summary); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", run.ID(), err)
	}

	fmt.Printf("completed in %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("run id: %s\n", run.ID())
	fmt.Println(metricsTable(summary))
	return nil
}

func presetName(cfg *config.Config) string {
	if cfg.Preset == "" {
		return "custom scene"
	}
	return cfg.Preset
}

func mergeMetrics(results []*sim.Result) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range results {
		if r == nil {
			continue
		}
		for name, v := range r.Metrics {
			if v > out[name] {
				out[name] = v
			}
		}
	}
	return out
}

func metricsTable(m map[string]float64) string {
	rows := make([][]string, 0, len(m))
	for _, name := range []string{"max_divergence", "volume_drift", "surface_roughness", "sdf_error"} {
		if v, ok := m[name]; ok {
			rows = append(rows, []string{name, strconv.FormatFloat(v, 'g', 6, 64)})
		}
	}
	return viz.Table([]string{"METRIC", "VALUE"}, rows)
}

// resolveRun returns the run named by args, or the latest run.
func resolveRun(st *storage.Store, args []string) (*storage.RunMetadata, error) {
	if len(args) > 0 {
		return st.Load(args[0])
	}
	meta, err := st.Latest()
	if errors.Is(err, storage.ErrRunNotFound) {
		return nil, fmt.Errorf("no runs in %s", dataDir)
	}
	return meta, err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			strconv.Itoa(run.Domains),
			strconv.Itoa(run.Bodies),
			strconv.Itoa(run.Ticks),
			run.Backend,
			strconv.FormatFloat(run.Metrics["volume_drift"], 'f', 4, 64),
		})
	}
	fmt.Println(viz.Table([]string{"ID", "PRESET", "TIME", "DOMAINS", "BODIES", "TICKS", "BACKEND", "DRIFT"}, rows))
	return nil
}

func loadColumn(args []string) (*storage.RunMetadata, []float64, []float64, error) {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return nil, nil, nil, err
	}
	samples, err := st.LoadTelemetry(meta.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	values, err := storage.Column(samples, uint32(domain), column)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w (available: %v)", err, storage.Columns())
	}
	times, _ := storage.Column(samples, uint32(domain), "time")
	if len(values) == 0 {
		return nil, nil, nil, fmt.Errorf("run %s has no samples for domain %d", meta.ID, domain)
	}
	return meta, values, times, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, values, _, err := loadColumn(args)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("samples: %d\n\n", len(values))
	fmt.Println(viz.Plot(values, fmt.Sprintf("%s (domain %d)", column, domain), 80, 12))

	if svgPath != "" {
		svg := export.SeriesSVG(values, 800, 300, string(viz.CurrentTheme.Primary))
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", svgPath)
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, values, times, err := loadColumn(args)
	if err != nil {
		return err
	}
	if len(times) < 2 || times[len(times)-1] <= times[0] {
		return fmt.Errorf("run %s: not enough samples to analyze", meta.ID)
	}
	rate := float64(len(times)-1) / (times[len(times)-1] - times[0])

	spectrum, err := analysis.PowerSpectrum(values, rate)
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("column: %s, domain %d, %.1f samples/s\n\n", column, domain, rate)
	fmt.Println(viz.PlotSpectrum(spectrum, 80, 15))
	fmt.Println()
	fmt.Printf("rms: %.6g\n", analysis.RMS(values))

	freq, err := analysis.DominantFrequency(values, rate)
	if errors.Is(err, analysis.ErrNoOscillation) {
		fmt.Println("no dominant frequency")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	fmt.Printf("period: %.3f s\n", 1/freq)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	s, err := sim.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return viz.RunLive(cmd.Context(), s)
}

func snapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if domain < 0 || domain >= len(cfg.Domains) {
		return fmt.Errorf("domain %d out of range, scene has %d", domain, len(cfg.Domains))
	}

	svg := strings.EqualFold(filepath.Ext(pngPath), ".svg")

	var (
		s      *sim.Simulator
		last   *fluid.Fields
		arrows []kernels.Arrow
	)
	s, err = sim.New(cfg, sim.WithObserver(sim.ObserverFunc(func(f sim.Frame) {
		id := s.Domains()[domain]
		if f.Domain != id {
			return
		}
		last = f.Fields
		if svg && f.Tick.Number == uint64(cfg.Run.Ticks) {
			arrows, _ = s.Fluid().VelocityArrows(cmd.Context(), id, binSize)
		}
	})))
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.Run(cmd.Context(), cfg.Run.Ticks); err != nil {
		return err
	}
	if last == nil {
		return fmt.Errorf("no frame captured")
	}

	if svg {
		doc := export.FieldSVG(last, arrows, binSize, float64(scale), viz.CurrentTheme)
		if err := os.WriteFile(pngPath, []byte(doc), 0644); err != nil {
			return err
		}
	} else if err := writePNG(pngPath, last); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%dx%d cells, tick %d)\n", pngPath, last.Width, last.Height, cfg.Run.Ticks)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	var rows [][]string
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		rows = append(rows, []string{
			name,
			strconv.Itoa(len(cfg.Domains)),
			fmt.Sprintf("%dx%d", cfg.Domains[0].Width, cfg.Domains[0].Height),
			strconv.Itoa(len(cfg.Bodies)),
			strconv.Itoa(len(cfg.Events)),
		})
	}
	fmt.Println(viz.Table([]string{"PRESET", "DOMAINS", "GRID", "BODIES", "EVENTS"}, rows))
	return nil
}

// benchWarmup ticks run untimed first; they include the initialize pass.
const benchWarmup = 5

func bench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	s, err := sim.New(cfg, sim.WithSampleEvery(cfg.Run.Ticks))
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("benchmarking %s on %s\n\n", presetName(cfg), s.Device().Queue.Backend().Name())
	if _, err := s.Run(cmd.Context(), benchWarmup); err != nil {
		return err
	}
	s.Device().Queue.ResetTimings()

	start := time.Now()
	result, err := s.Run(cmd.Context(), cfg.Run.Ticks)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	rows := make([][]string, 0, len(result.Timings))
	for _, t := range result.Timings {
		mean := time.Duration(0)
		if t.Dispatches > 0 {
			mean = t.Total / time.Duration(t.Dispatches)
		}
		rows = append(rows, []string{
			t.Scope,
			strconv.Itoa(t.Dispatches),
			t.Total.Round(time.Microsecond).String(),
			mean.Round(time.Microsecond).String(),
		})
	}
	fmt.Println(viz.Table([]string{"PASS", "DISPATCHES", "TOTAL", "MEAN"}, rows))
	fmt.Println()
	fmt.Printf("ticks: %d\n", result.Ticks)
	fmt.Printf("time: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("ticks/sec: %.1f\n", float64(result.Ticks)/elapsed.Seconds())
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	samples, err := st.LoadTelemetry(meta.ID)
	if err != nil {
		return err
	}
	return gocsv.Marshal(samples, os.Stdout)
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", configPath)
	return nil
}

func writePNG(path string, fields *fluid.Fields) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := viz.WritePNG(f, fields, scale); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	return st.ExportJSON(os.Stdout, meta.ID)
}

func sweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	var names []string
	var ranges [][]float64
	add := func(name string, values []float64) {
		if len(values) > 0 {
			names = append(names, name)
			ranges = append(ranges, values)
		}
	}
	add("jacobi_iterations", ints(sweepJacobi))
	add("extrapolation_passes", ints(sweepBands))
	add("length_unit", sweepUnits)
	if len(names) == 0 {
		return fmt.Errorf("nothing to sweep")
	}

	fmt.Printf("sweeping %v on %s, %d ticks per candidate\n\n", names, presetName(cfg), cfg.Run.Ticks)
	g := optim.NewGridSearch(names, ranges)
	best, trials, err := g.Search(cmd.Context(), optim.SolverEvaluator(cfg, cfg.Run.Ticks), metric)

	rows := make([][]string, 0, len(trials))
	for _, t := range trials {
		row := make([]string, 0, len(names)+1)
		for _, name := range names {
			row = append(row, strconv.FormatFloat(t.Params[name], 'g', -1, 64))
		}
		if t.Err != nil {
			row = append(row, "failed: "+t.Err.Error())
		} else {
			row = append(row, strconv.FormatFloat(t.Value, 'g', 6, 64))
		}
		rows = append(rows, row)
	}
	headers := append(append([]string(nil), names...), strings.ToUpper(metric))
	fmt.Println(viz.Table(headers, rows))
	if err != nil {
		return err
	}

	fmt.Println()
	for _, name := range names {
		fmt.Printf("best %s: %g\n", name, best.Params[name])
	}
	fmt.Printf("%s: %.6g\n", metric, best.Value)
	return nil
}

func ints(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
