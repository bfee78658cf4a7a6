package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/eulerfluid/internal/config"
)

func quadratic(ctx context.Context, p map[string]float64) (map[string]float64, error) {
	a, b := p["a"]-2, p["b"]-1
	return map[string]float64{"cost": a*a + b*b}, nil
}

func TestGridSearch(t *testing.T) {
	g := NewGridSearch([]string{"a", "b"}, [][]float64{{1, 2, 3}, {0, 1}})
	best, trials, err := g.Search(context.Background(), quadratic, "cost")
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 6 {
		t.Errorf("expected 6 trials, got %d", len(trials))
	}
	if best.Params["a"] != 2 || best.Params["b"] != 1 || best.Value != 0 {
		t.Errorf("expected a=2 b=1 cost 0, got %+v", best)
	}
	if trials[0].Params["a"] != 1 || trials[0].Params["b"] != 0 {
		t.Errorf("expected first trial a=1 b=0, got %v", trials[0].Params)
	}
}

func TestGridSearchSkipsFailures(t *testing.T) {
	errBoom := errors.New("boom")
	eval := func(ctx context.Context, p map[string]float64) (map[string]float64, error) {
		if p["a"] == 2 {
			return nil, errBoom
		}
		return quadratic(ctx, p)
	}

	g := NewGridSearch([]string{"a"}, [][]float64{{1, 2, 4}})
	best, trials, err := g.Search(context.Background(), eval, "cost")
	if err != nil {
		t.Fatal(err)
	}
	if best.Params["a"] != 1 {
		t.Errorf("expected a=1, got %v", best.Params)
	}
	if !errors.Is(trials[1].Err, errBoom) {
		t.Errorf("expected failed trial to keep its error, got %v", trials[1].Err)
	}
}

func TestGridSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		ctx    func() context.Context
		want   error
	}{
		{"missing metric", "volume", context.Background, ErrNoCandidates},
		{"cancelled", "cost", func() context.Context {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx
		}, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGridSearch([]string{"a"}, [][]float64{{1, 2}})
			_, _, err := g.Search(tt.ctx(), quadratic, tt.metric)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplySolver(t *testing.T) {
	base := config.DefaultConfig()
	cfg, err := ApplySolver(base, map[string]float64{"jacobi_iterations": 12, "length_unit": 20})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Solver.JacobiIterations != 12 || cfg.Solver.LengthUnit != 20 {
		t.Errorf("unexpected solver %+v", cfg.Solver)
	}
	if base.Solver.JacobiIterations != config.DefaultJacobi {
		t.Errorf("expected base untouched, got %d iterations", base.Solver.JacobiIterations)
	}

	if _, err := ApplySolver(base, map[string]float64{"omega": 1}); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
	if _, err := ApplySolver(base, map[string]float64{"length_unit": 0}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSolverSweep(t *testing.T) {
	base := config.DefaultConfig()
	base.Domains[0].Width = 16
	base.Domains[0].Height = 16
	base.Domains[0].InitialFluidLevel = 0.5
	base.Solver.Backend = "serial"

	g := NewGridSearch([]string{"jacobi_iterations"}, [][]float64{{2, 8}})
	best, trials, err := g.Search(context.Background(), SolverEvaluator(base, 4), "max_divergence")
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 2 {
		t.Fatalf("expected 2 trials, got %d", len(trials))
	}
	for _, tr := range trials {
		if tr.Err != nil {
			t.Errorf("jacobi %v: %v", tr.Params["jacobi_iterations"], tr.Err)
		}
	}
	if best.Value < 0 {
		t.Errorf("expected non-negative divergence, got %f", best.Value)
	}
}
